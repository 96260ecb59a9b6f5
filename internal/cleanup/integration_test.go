package cleanup

import (
	"context"
	"testing"
	"time"

	"taskboard/internal/board"
	"taskboard/internal/store"
	"taskboard/internal/util"
)

func TestBoardDeleteScrubsEveryMemberThroughWorker(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	worker := NewWorker(NewMemoryQueue(), s, WorkerOptions{})
	svc := board.NewService(s, board.Options{Cleanup: worker})

	insert := func(email string) string {
		now := time.Now().UTC()
		id := util.NewID()
		if err := s.InsertUser(ctx, store.User{ID: id, Email: email, PasswordHash: "x", CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("insert user: %v", err)
		}
		return id
	}
	alice, bob := insert("alice@example.com"), insert("bob@example.com")

	owner, err := svc.Principal(ctx, alice)
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	project, err := svc.CreateProject(ctx, owner, board.ProjectInput{Title: "Shared"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := svc.AddUserToProject(ctx, owner, project.ID, "bob@example.com"); err != nil {
		t.Fatalf("invite: %v", err)
	}

	owner, _ = svc.Principal(ctx, alice)
	if err := svc.DeleteProject(ctx, owner, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	worker.Wait()

	member, err := s.GetUser(ctx, bob)
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if len(member.Projects) != 0 {
		t.Fatalf("bob still lists %v", member.Projects)
	}
	for _, column := range project.Columns {
		if _, err := s.GetColumn(ctx, column.ID); err == nil {
			t.Fatalf("column %s survived the cascade", column.ID)
		}
	}
}
