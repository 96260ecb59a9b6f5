package store

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStoreContract(t *testing.T) {
	newStore := func(t *testing.T) Store { return NewMemoryStore() }
	runStoreContract(t, newStore)
	runTxContract(t, newStore)
}

func TestMemoryStoreCappedPushUnderContention(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	user := newUser("race@example.com")
	if err := s.InsertUser(ctx, user); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	const limit = 5
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Push(ctx, UserProjects, user.ID, uuid.NewString(), limit)
		}()
	}
	wg.Wait()

	got, err := s.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(got.Projects) != limit {
		t.Fatalf("expected exactly %d projects, got %d", limit, len(got.Projects))
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	column := newColumn("Todo")
	column.Tasks = []string{"a"}
	if err := s.InsertColumn(ctx, column); err != nil {
		t.Fatalf("insert column: %v", err)
	}
	got, _ := s.GetColumn(ctx, column.ID)
	got.Tasks[0] = "mutated"

	again, _ := s.GetColumn(ctx, column.ID)
	if again.Tasks[0] != "a" {
		t.Fatalf("stored array was mutated through a returned copy: %v", again.Tasks)
	}
}

func TestMemoryStoreNestedTxJoinsOuter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	project := newProject("Nested")
	err := s.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.WithinTx(ctx, func(ctx context.Context, inner Store) error {
			return inner.InsertProject(ctx, project)
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
	if _, err := s.GetProject(ctx, project.ID); err != nil {
		t.Fatalf("expected committed project: %v", err)
	}
}
