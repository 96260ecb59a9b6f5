package search

import (
	"context"
	"errors"
	"testing"
)

func TestServiceWithoutMeiliIsUnavailable(t *testing.T) {
	s := NewService(nil)
	if _, err := s.SearchTasks(context.Background(), Query{Text: "x", ColumnIDs: []string{"c"}}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	// writes are dropped, not panics
	s.IndexTasks([]TaskDocument{{ID: "t"}})
	s.RemoveTasks([]string{"t"})
}

func TestColumnFilterQuotesIDs(t *testing.T) {
	got := columnFilter([]string{"a", "b"})
	want := `columnIds IN ["a", "b"]`
	if got != want {
		t.Fatalf("columnFilter() = %q, want %q", got, want)
	}
}
