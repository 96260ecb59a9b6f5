package board

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/store"
)

// CascadeDeleter removes a document together with everything it strongly
// owns. Tasks are shared between columns by reference and only go away once
// no column lists them.
type CascadeDeleter struct {
	linker *Linker
}

func NewCascadeDeleter(linker *Linker) *CascadeDeleter {
	return &CascadeDeleter{linker: linker}
}

// DeleteTask unlinks the task from every column and deletes the record.
func (c *CascadeDeleter) DeleteTask(ctx context.Context, tx store.Store, taskID string) error {
	if _, err := tx.PullEverywhere(ctx, store.ColumnTasks, taskID); err != nil {
		return fmt.Errorf("unlink task everywhere: %w", err)
	}
	n, err := tx.Delete(ctx, store.Tasks, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n == 0 {
		return deleteFailed(nil)
	}
	return nil
}

// DeleteColumn returns the ids of tasks that were deleted with the column.
func (c *CascadeDeleter) DeleteColumn(ctx context.Context, tx store.Store, columnID, projectID string) ([]string, error) {
	column, err := tx.GetColumn(ctx, columnID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, deleteFailed(err)
	}
	if err != nil {
		return nil, fmt.Errorf("load column: %w", err)
	}
	deleted, err := c.releaseTasks(ctx, tx, column)
	if err != nil {
		return nil, err
	}
	n, err := tx.Delete(ctx, store.Columns, columnID)
	if err != nil {
		return nil, fmt.Errorf("delete column: %w", err)
	}
	if n == 0 {
		return nil, deleteFailed(nil)
	}
	if projectID != "" {
		if _, err := c.linker.UnlinkChild(ctx, tx, store.ProjectColumns, projectID, columnID); err != nil {
			return nil, err
		}
	}
	return deleted, nil
}

// releaseTasks unlinks every task of the column and deletes the ones no
// other column references.
func (c *CascadeDeleter) releaseTasks(ctx context.Context, tx store.Store, column store.Column) ([]string, error) {
	var deleted []string
	for _, taskID := range column.Tasks {
		if _, err := c.linker.UnlinkChild(ctx, tx, store.ColumnTasks, column.ID, taskID); err != nil {
			return nil, err
		}
		gone, err := c.deleteIfUnreferenced(ctx, tx, taskID)
		if err != nil {
			return nil, err
		}
		if gone {
			deleted = append(deleted, taskID)
		}
	}
	return deleted, nil
}

func (c *CascadeDeleter) deleteIfUnreferenced(ctx context.Context, tx store.Store, taskID string) (bool, error) {
	refs, err := tx.Referencing(ctx, store.ColumnTasks, taskID)
	if err != nil {
		return false, fmt.Errorf("count task references: %w", err)
	}
	if len(refs) > 0 {
		return false, nil
	}
	n, err := tx.Delete(ctx, store.Tasks, taskID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return n > 0, nil
}

// DeleteProject cascades into the project's columns, deletes the project and
// drops it from the requester's membership. Other members are scrubbed
// later by the cleanup job.
func (c *CascadeDeleter) DeleteProject(ctx context.Context, tx store.Store, projectID, requesterID string) ([]string, error) {
	project, err := tx.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, deleteFailed(err)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	var deleted []string
	for _, columnID := range project.Columns {
		column, err := tx.GetColumn(ctx, columnID)
		if errors.Is(err, store.ErrNotFound) {
			// dangling reference, nothing to cascade
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load column: %w", err)
		}
		tasks, err := c.releaseTasks(ctx, tx, column)
		if err != nil {
			return nil, err
		}
		deleted = append(deleted, tasks...)
		if _, err := tx.Delete(ctx, store.Columns, columnID); err != nil {
			return nil, fmt.Errorf("delete column: %w", err)
		}
	}

	n, err := tx.Delete(ctx, store.Projects, projectID)
	if err != nil {
		return nil, fmt.Errorf("delete project: %w", err)
	}
	if n == 0 {
		return nil, deleteFailed(nil)
	}
	if _, err := c.linker.UnlinkChild(ctx, tx, store.UserProjects, requesterID, projectID); err != nil {
		return nil, err
	}
	return deleted, nil
}
