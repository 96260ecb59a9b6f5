package board

import (
	"errors"
	"testing"

	"taskboard/internal/access"
	"taskboard/internal/store"
)

func TestLimitsValidate(t *testing.T) {
	cases := []struct {
		name   string
		limits Limits
		ok     bool
	}{
		{name: "defaults", limits: DefaultLimits(), ok: true},
		{name: "three columns", limits: Limits{ProjectsPerUser: 1, ColumnsPerProject: 3}, ok: true},
		{name: "too few columns", limits: Limits{ProjectsPerUser: 1, ColumnsPerProject: 2}, ok: false},
		{name: "no projects", limits: Limits{ProjectsPerUser: 0, ColumnsPerProject: 10}, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.limits.Validate(); (err == nil) != tc.ok {
				t.Fatalf("Validate() = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestCheckQuotaBoundary(t *testing.T) {
	l := NewLimitEnforcer(Limits{ProjectsPerUser: 2, ColumnsPerProject: 3})

	if err := l.CheckProjectQuota(access.Principal{Projects: []string{"a"}}); err != nil {
		t.Fatalf("limit-1 must pass: %v", err)
	}
	err := l.CheckProjectQuota(access.Principal{Projects: []string{"a", "b"}})
	if KindOf(err) != KindQuotaExceeded {
		t.Fatalf("expected quota error, got %v", err)
	}
	err = l.CheckColumnQuota(store.Project{Columns: []string{"a", "b", "c"}})
	var boardErr *Error
	if !errors.As(err, &boardErr) || boardErr.Message != "Due to limitations projects cannot contains more than 3 columns." {
		t.Fatalf("unexpected column quota error %v", err)
	}
}

func TestTranslateLeavesOtherErrorsAlone(t *testing.T) {
	l := NewLimitEnforcer(DefaultLimits())
	other := errors.New("boom")
	if got := l.translate(other, store.UserProjects); got != other {
		t.Fatalf("translate() = %v, want original error", got)
	}
	if KindOf(l.translate(store.ErrLimitReached, store.ProjectColumns)) != KindQuotaExceeded {
		t.Fatal("expected capped push to become a quota error")
	}
}
