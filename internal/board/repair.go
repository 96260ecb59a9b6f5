package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"taskboard/internal/store"
)

// repairGrace keeps the scan away from documents a concurrent creation may
// not have linked yet.
const repairGrace = time.Minute

type RepairReport struct {
	MembershipsPulled    int      `json:"membershipsPulled"`
	ColumnRefsPulled     int      `json:"columnRefsPulled"`
	OrphanColumnsDeleted int      `json:"orphanColumnsDeleted"`
	TaskRefsPulled       int      `json:"taskRefsPulled"`
	OrphanTasksDeleted   int      `json:"orphanTasksDeleted"`
	DeletedTaskIDs       []string `json:"-"`
}

func (r RepairReport) Changed() bool {
	return r.MembershipsPulled+r.ColumnRefsPulled+r.OrphanColumnsDeleted+r.TaskRefsPulled+r.OrphanTasksDeleted > 0
}

// Repairer scans the whole store for dangling references and orphans. It is
// idempotent; a second run over a consistent store changes nothing.
type Repairer struct {
	store   store.Store
	cascade *CascadeDeleter
	now     func() time.Time
}

func NewRepairer(s store.Store, cascade *CascadeDeleter) *Repairer {
	return &Repairer{store: s, cascade: cascade, now: time.Now}
}

func (r *Repairer) Run(ctx context.Context) (RepairReport, error) {
	var report RepairReport
	cutoff := r.now().Add(-repairGrace)

	projects, err := r.idSet(ctx, store.Projects)
	if err != nil {
		return report, err
	}
	if err := r.pullDangling(ctx, store.Users, store.UserProjects, projects, &report.MembershipsPulled); err != nil {
		return report, err
	}

	columns, err := r.idSet(ctx, store.Columns)
	if err != nil {
		return report, err
	}
	if err := r.pullDangling(ctx, store.Projects, store.ProjectColumns, columns, &report.ColumnRefsPulled); err != nil {
		return report, err
	}

	for columnID := range columns {
		owners, err := r.store.Referencing(ctx, store.ProjectColumns, columnID)
		if err != nil {
			return report, fmt.Errorf("column owners: %w", err)
		}
		if len(owners) > 0 {
			continue
		}
		column, err := r.store.GetColumn(ctx, columnID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("load column: %w", err)
		}
		if column.CreatedAt.After(cutoff) {
			continue
		}
		var deleted []string
		err = r.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
			var err error
			deleted, err = r.cascade.DeleteColumn(ctx, tx, columnID, "")
			return err
		})
		if err != nil {
			return report, fmt.Errorf("delete orphan column %s: %w", columnID, err)
		}
		report.OrphanColumnsDeleted++
		report.DeletedTaskIDs = append(report.DeletedTaskIDs, deleted...)
	}

	tasks, err := r.idSet(ctx, store.Tasks)
	if err != nil {
		return report, err
	}
	if err := r.pullDangling(ctx, store.Columns, store.ColumnTasks, tasks, &report.TaskRefsPulled); err != nil {
		return report, err
	}

	for taskID := range tasks {
		refs, err := r.store.Referencing(ctx, store.ColumnTasks, taskID)
		if err != nil {
			return report, fmt.Errorf("task references: %w", err)
		}
		if len(refs) > 0 {
			continue
		}
		task, err := r.store.GetTask(ctx, taskID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, fmt.Errorf("load task: %w", err)
		}
		if task.CreatedAt.After(cutoff) {
			continue
		}
		n, err := r.store.Delete(ctx, store.Tasks, taskID)
		if err != nil {
			return report, fmt.Errorf("delete orphan task %s: %w", taskID, err)
		}
		if n > 0 {
			report.OrphanTasksDeleted++
			report.DeletedTaskIDs = append(report.DeletedTaskIDs, taskID)
		}
	}

	if report.Changed() {
		log.Printf("repair: memberships=%d column_refs=%d orphan_columns=%d task_refs=%d orphan_tasks=%d",
			report.MembershipsPulled, report.ColumnRefsPulled, report.OrphanColumnsDeleted, report.TaskRefsPulled, report.OrphanTasksDeleted)
	}
	return report, nil
}

func (r *Repairer) idSet(ctx context.Context, collection store.Collection) (map[string]struct{}, error) {
	ids, err := r.store.ListIDs(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// pullDangling removes entries of field that point at ids missing from live
// and still missing from the store.
func (r *Repairer) pullDangling(ctx context.Context, parents store.Collection, field store.ArrayField, live map[string]struct{}, counter *int) error {
	ids, err := r.store.ListIDs(ctx, parents)
	if err != nil {
		return fmt.Errorf("list %s: %w", parents, err)
	}
	for _, id := range ids {
		items, err := r.arrayOf(ctx, field, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, ok := live[item]; ok {
				continue
			}
			// the snapshot is stale for anything created since it was taken
			gone, err := r.missing(ctx, field, item)
			if err != nil {
				return err
			}
			if !gone {
				continue
			}
			removed, err := r.store.Pull(ctx, field, id, item)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("pull dangling %s: %w", field, err)
			}
			if removed {
				*counter++
			}
		}
	}
	return nil
}

func (r *Repairer) arrayOf(ctx context.Context, field store.ArrayField, id string) ([]string, error) {
	switch field {
	case store.UserProjects:
		user, err := r.store.GetUser(ctx, id)
		return user.Projects, err
	case store.ProjectColumns:
		project, err := r.store.GetProject(ctx, id)
		return project.Columns, err
	case store.ColumnTasks:
		column, err := r.store.GetColumn(ctx, id)
		return column.Tasks, err
	}
	return nil, fmt.Errorf("repair does not scan %s", field)
}

// missing reports whether the element an entry of field points at is absent.
func (r *Repairer) missing(ctx context.Context, field store.ArrayField, id string) (bool, error) {
	var err error
	switch field {
	case store.UserProjects:
		_, err = r.store.GetProject(ctx, id)
	case store.ProjectColumns:
		_, err = r.store.GetColumn(ctx, id)
	case store.ColumnTasks:
		_, err = r.store.GetTask(ctx, id)
	default:
		return false, fmt.Errorf("repair does not scan %s", field)
	}
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s entry %s: %w", field, id, err)
	}
	return false, nil
}
