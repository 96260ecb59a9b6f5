package board

import (
	"errors"
	"fmt"

	"taskboard/internal/access"
	"taskboard/internal/store"
)

const defaultColumnCount = 3

type Limits struct {
	ProjectsPerUser   int
	ColumnsPerProject int
}

func DefaultLimits() Limits {
	return Limits{ProjectsPerUser: 10, ColumnsPerProject: 10}
}

func (l Limits) Validate() error {
	if l.ProjectsPerUser < 1 {
		return fmt.Errorf("projects per user must be at least 1, got %d", l.ProjectsPerUser)
	}
	if l.ColumnsPerProject < defaultColumnCount {
		return fmt.Errorf("columns per project must be at least %d, got %d", defaultColumnCount, l.ColumnsPerProject)
	}
	return nil
}

// LimitEnforcer checks creation quotas. The checks here are a fast path;
// the capped push done inside the creation transaction is what actually
// holds the line under concurrency.
type LimitEnforcer struct {
	limits Limits
}

func NewLimitEnforcer(limits Limits) *LimitEnforcer {
	return &LimitEnforcer{limits: limits}
}

func (l *LimitEnforcer) Limits() Limits {
	return l.limits
}

func (l *LimitEnforcer) CheckProjectQuota(p access.Principal) error {
	if len(p.Projects) >= l.limits.ProjectsPerUser {
		return l.projectQuotaExceeded()
	}
	return nil
}

func (l *LimitEnforcer) CheckColumnQuota(project store.Project) error {
	if len(project.Columns) >= l.limits.ColumnsPerProject {
		return l.columnQuotaExceeded()
	}
	return nil
}

func (l *LimitEnforcer) projectQuotaExceeded() error {
	return &Error{
		Kind:    KindQuotaExceeded,
		Message: fmt.Sprintf("Due to limitations users cannot create more than %d projects.", l.limits.ProjectsPerUser),
	}
}

func (l *LimitEnforcer) columnQuotaExceeded() error {
	return &Error{
		Kind:    KindQuotaExceeded,
		Message: fmt.Sprintf("Due to limitations projects cannot contains more than %d columns.", l.limits.ColumnsPerProject),
	}
}

// translate turns a capped push failure into the matching quota error.
func (l *LimitEnforcer) translate(err error, field store.ArrayField) error {
	if !errors.Is(err, store.ErrLimitReached) {
		return err
	}
	switch field {
	case store.UserProjects:
		return l.projectQuotaExceeded()
	case store.ProjectColumns:
		return l.columnQuotaExceeded()
	}
	return err
}
