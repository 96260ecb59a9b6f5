// Package store persists users, projects, columns and tasks as documents
// with id arrays and exposes the primitives the board layer composes:
// get-by-id, array push/pull, delete-by-id and bulk pull.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrLimitReached = errors.New("array limit reached")
	ErrDuplicate    = errors.New("duplicate key")
)

// Store is implemented by every backend. Each method is atomic on its own;
// WithinTx groups several of them where the backend supports it.
type Store interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	InsertUser(ctx context.Context, user User) error

	GetProject(ctx context.Context, id string) (Project, error)
	ListProjects(ctx context.Context, ids []string) ([]Project, error)
	InsertProject(ctx context.Context, project Project) error
	UpdateProject(ctx context.Context, project Project) error

	GetColumn(ctx context.Context, id string) (Column, error)
	ListColumns(ctx context.Context, ids []string) ([]Column, error)
	InsertColumn(ctx context.Context, column Column) error
	UpdateColumn(ctx context.Context, column Column) error

	GetTask(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, ids []string) ([]Task, error)
	InsertTask(ctx context.Context, task Task) error
	UpdateTask(ctx context.Context, task Task) error

	// Push adds value to the array unless already present. With limit > 0
	// the push only applies while the array holds fewer than limit items.
	Push(ctx context.Context, field ArrayField, id, value string, limit int) (added bool, err error)
	Pull(ctx context.Context, field ArrayField, id, value string) (removed bool, err error)
	PullEverywhere(ctx context.Context, field ArrayField, value string) (int64, error)
	Referencing(ctx context.Context, field ArrayField, value string) ([]string, error)

	Delete(ctx context.Context, collection Collection, id string) (int64, error)
	ListIDs(ctx context.Context, collection Collection) ([]string, error)

	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Ping(ctx context.Context) error
}

func checkField(field ArrayField) error {
	if !field.valid() {
		return fmt.Errorf("unknown array field %s", field)
	}
	return nil
}

func checkCollection(collection Collection) error {
	if !validCollection(collection) {
		return fmt.Errorf("unknown collection %q", collection)
	}
	return nil
}

// orderByIDs returns the items matching ids in the order of ids, skipping
// ids that resolved to nothing.
func orderByIDs[T any](ids []string, items []T, idOf func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[idOf(item)] = item
	}
	ordered := make([]T, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
		}
	}
	return ordered
}
