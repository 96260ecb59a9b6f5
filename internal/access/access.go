// Package access decides whether a principal may touch a project, column or
// task. Access is derived from containment: a user reaches a project through
// their membership list, a column through the project listing it, and a task
// through a column listing it.
package access

import (
	"context"
	"errors"
	"fmt"

	"taskboard/internal/store"
	"taskboard/internal/util"
)

// Principal is the authenticated user as loaded for one request.
type Principal struct {
	UserID   string
	Email    string
	Projects []string
}

// Store is the read side the resolver needs.
type Store interface {
	GetColumn(ctx context.Context, id string) (store.Column, error)
	Referencing(ctx context.Context, field store.ArrayField, value string) ([]string, error)
}

type Resolver struct {
	store Store
}

func NewResolver(s Store) *Resolver {
	return &Resolver{store: s}
}

func (r *Resolver) CanAccessProject(p Principal, projectID string) bool {
	if !util.ValidID(projectID) {
		return false
	}
	for _, id := range p.Projects {
		if id == projectID {
			return true
		}
	}
	return false
}

// CanAccessColumn looks up the projects listing the column instead of loading
// every project the principal belongs to.
func (r *Resolver) CanAccessColumn(ctx context.Context, p Principal, columnID string) (bool, error) {
	if !util.ValidID(columnID) {
		return false, nil
	}
	owners, err := r.store.Referencing(ctx, store.ProjectColumns, columnID)
	if err != nil {
		return false, fmt.Errorf("resolve column owners: %w", err)
	}
	for _, projectID := range owners {
		if r.CanAccessProject(p, projectID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) CanAccessTask(ctx context.Context, p Principal, columnID, taskID string) (bool, error) {
	if !util.ValidID(taskID) {
		return false, nil
	}
	ok, err := r.CanAccessColumn(ctx, p, columnID)
	if err != nil || !ok {
		return false, err
	}
	column, err := r.store.GetColumn(ctx, columnID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load column: %w", err)
	}
	for _, id := range column.Tasks {
		if id == taskID {
			return true, nil
		}
	}
	return false, nil
}

// CanAccessTaskViaAnyColumn is for operations that carry no column context.
func (r *Resolver) CanAccessTaskViaAnyColumn(ctx context.Context, p Principal, taskID string) (bool, error) {
	if !util.ValidID(taskID) {
		return false, nil
	}
	columns, err := r.store.Referencing(ctx, store.ColumnTasks, taskID)
	if err != nil {
		return false, fmt.Errorf("resolve task columns: %w", err)
	}
	for _, columnID := range columns {
		ok, err := r.CanAccessColumn(ctx, p, columnID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
