package store

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// runStoreContract checks the behaviour every backend must share. The store
// is expected to be empty.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("UserRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		user := newUser("Alice@Example.com")
		if err := s.InsertUser(ctx, user); err != nil {
			t.Fatalf("insert user: %v", err)
		}
		got, err := s.GetUserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("get by email: %v", err)
		}
		if got.ID != user.ID || len(got.Projects) != 0 {
			t.Fatalf("unexpected user %+v", got)
		}
		if err := s.InsertUser(ctx, newUser("alice@example.com")); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if _, err := s.GetUser(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("PushIsSetLikeAndCapped", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		user := newUser("cap@example.com")
		if err := s.InsertUser(ctx, user); err != nil {
			t.Fatalf("insert user: %v", err)
		}
		first := uuid.NewString()
		added, err := s.Push(ctx, UserProjects, user.ID, first, 2)
		if err != nil || !added {
			t.Fatalf("first push added=%v err=%v", added, err)
		}
		added, err = s.Push(ctx, UserProjects, user.ID, first, 2)
		if err != nil || added {
			t.Fatalf("duplicate push added=%v err=%v", added, err)
		}
		if _, err := s.Push(ctx, UserProjects, user.ID, uuid.NewString(), 2); err != nil {
			t.Fatalf("second push: %v", err)
		}
		if _, err := s.Push(ctx, UserProjects, user.ID, uuid.NewString(), 2); !errors.Is(err, ErrLimitReached) {
			t.Fatalf("expected ErrLimitReached, got %v", err)
		}
		if _, err := s.Push(ctx, UserProjects, uuid.NewString(), first, 0); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing parent, got %v", err)
		}
		got, _ := s.GetUser(ctx, user.ID)
		if len(got.Projects) != 2 || got.Projects[0] != first {
			t.Fatalf("unexpected projects %v", got.Projects)
		}
	})

	t.Run("PullAndReverseLookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		taskID := uuid.NewString()
		var columnIDs []string
		for i := 0; i < 3; i++ {
			column := newColumn("col")
			if err := s.InsertColumn(ctx, column); err != nil {
				t.Fatalf("insert column: %v", err)
			}
			if _, err := s.Push(ctx, ColumnTasks, column.ID, taskID, 0); err != nil {
				t.Fatalf("push task: %v", err)
			}
			columnIDs = append(columnIDs, column.ID)
		}
		sort.Strings(columnIDs)

		refs, err := s.Referencing(ctx, ColumnTasks, taskID)
		if err != nil {
			t.Fatalf("referencing: %v", err)
		}
		if len(refs) != 3 || refs[0] != columnIDs[0] {
			t.Fatalf("unexpected refs %v want %v", refs, columnIDs)
		}

		removed, err := s.Pull(ctx, ColumnTasks, columnIDs[0], taskID)
		if err != nil || !removed {
			t.Fatalf("pull removed=%v err=%v", removed, err)
		}
		removed, err = s.Pull(ctx, ColumnTasks, columnIDs[0], taskID)
		if err != nil || removed {
			t.Fatalf("second pull removed=%v err=%v", removed, err)
		}

		changed, err := s.PullEverywhere(ctx, ColumnTasks, taskID)
		if err != nil || changed != 2 {
			t.Fatalf("pull everywhere changed=%d err=%v", changed, err)
		}
		refs, _ = s.Referencing(ctx, ColumnTasks, taskID)
		if len(refs) != 0 {
			t.Fatalf("expected no refs, got %v", refs)
		}
	})

	t.Run("DeleteReportsCount", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		task := newTask("Write docs")
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("insert task: %v", err)
		}
		n, err := s.Delete(ctx, Tasks, task.ID)
		if err != nil || n != 1 {
			t.Fatalf("delete n=%d err=%v", n, err)
		}
		n, err = s.Delete(ctx, Tasks, task.ID)
		if err != nil || n != 0 {
			t.Fatalf("second delete n=%d err=%v", n, err)
		}
	})

	t.Run("ListKeepsRequestedOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a, b := newTask("Alpha task"), newTask("Beta task")
		for _, task := range []Task{a, b} {
			if err := s.InsertTask(ctx, task); err != nil {
				t.Fatalf("insert task: %v", err)
			}
		}
		got, err := s.ListTasks(ctx, []string{b.ID, uuid.NewString(), a.ID, b.ID})
		if err != nil {
			t.Fatalf("list tasks: %v", err)
		}
		if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
			t.Fatalf("unexpected order %+v", got)
		}
	})

	t.Run("UpdateTaskKeepsArrays", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		task := newTask("Original")
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("insert task: %v", err)
		}
		assignee := uuid.NewString()
		if _, err := s.Push(ctx, TaskAssignees, task.ID, assignee, 0); err != nil {
			t.Fatalf("assign: %v", err)
		}
		expire := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
		task.Title, task.Label, task.ExpireAt = "Renamed", "bug", &expire
		if err := s.UpdateTask(ctx, task); err != nil {
			t.Fatalf("update task: %v", err)
		}
		got, err := s.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if got.Title != "Renamed" || got.Label != "bug" || got.ExpireAt == nil || !got.ExpireAt.Equal(expire) {
			t.Fatalf("unexpected task %+v", got)
		}
		if len(got.AssignedUsers) != 1 || got.AssignedUsers[0] != assignee {
			t.Fatalf("assignees lost: %v", got.AssignedUsers)
		}
		missing := newTask("Missing")
		if err := s.UpdateTask(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RejectsUnknownField", func(t *testing.T) {
		s := newStore(t)
		bogus := ArrayField{Collection: Users, Name: "password_hash"}
		if _, err := s.Push(context.Background(), bogus, uuid.NewString(), "x", 0); err == nil {
			t.Fatal("expected error for unknown field")
		}
	})
}

// runTxContract needs a backend that really rolls back.
func runTxContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("RollbackOnError", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		project := newProject("Rollback")
		if err := s.InsertProject(ctx, project); err != nil {
			t.Fatalf("insert project: %v", err)
		}
		boom := errors.New("boom")
		err := s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
			if _, err := tx.Push(ctx, ProjectColumns, project.ID, uuid.NewString(), 0); err != nil {
				return err
			}
			if _, err := tx.Delete(ctx, Projects, project.ID); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		got, err := s.GetProject(ctx, project.ID)
		if err != nil {
			t.Fatalf("project should survive rollback: %v", err)
		}
		if len(got.Columns) != 0 {
			t.Fatalf("push should be rolled back, got %v", got.Columns)
		}
	})

	t.Run("CommitOnSuccess", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		project := newProject("Commit")
		err := s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
			return tx.InsertProject(ctx, project)
		})
		if err != nil {
			t.Fatalf("tx: %v", err)
		}
		if _, err := s.GetProject(ctx, project.ID); err != nil {
			t.Fatalf("get committed project: %v", err)
		}
	})
}

func newUser(email string) User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return User{ID: uuid.NewString(), Email: email, PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}
}

func newProject(title string) Project {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Project{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
}

func newColumn(title string) Column {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Column{ID: uuid.NewString(), Title: title, Icon: "todo", CreatedAt: now, UpdatedAt: now}
}

func newTask(title string) Task {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Task{ID: uuid.NewString(), Title: title, Label: "feature", LabelType: "info", CreatedAt: now, UpdatedAt: now}
}
