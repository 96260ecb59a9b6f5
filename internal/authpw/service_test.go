package authpw

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/store"
)

func newTestService() (*Service, *store.MemoryStore) {
	s := store.NewMemoryStore()
	svc := NewService(s)
	svc.cost = bcrypt.MinCost
	return svc, s
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService()

	t.Run("successful sign up", func(t *testing.T) {
		user, err := svc.SignUp(ctx, SignUpRequest{Email: "Test@Example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("SignUp() error = %v", err)
		}
		if user.ID == "" || user.Email != "test@example.com" {
			t.Fatalf("unexpected user %+v", user)
		}
		stored, err := s.GetUserByEmail(ctx, "test@example.com")
		if err != nil {
			t.Fatalf("user not stored: %v", err)
		}
		if stored.PasswordHash == "password123" || len(stored.Projects) != 0 {
			t.Fatalf("unexpected stored user %+v", stored)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{Email: "test@example.com", Password: "password456"})
		if !errors.Is(err, ErrEmailTaken) {
			t.Fatalf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := []SignUpRequest{
			{Email: "", Password: "password123"},
			{Email: "short@example.com", Password: "short"},
			{Email: "not-an-email", Password: "password123"},
		}
		for _, req := range cases {
			_, err := svc.SignUp(ctx, req)
			var input *InputError
			if !errors.As(err, &input) {
				t.Fatalf("%+v: expected InputError, got %v", req, err)
			}
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	created, err := svc.SignUp(ctx, SignUpRequest{Email: "user@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("correct password", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "USER@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if user.ID != created.ID {
			t.Fatalf("signed in as %s, want %s", user.ID, created.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "user@example.com", Password: "wrong-password"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@example.com", Password: "password123"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "user@example.com"})
		var input *InputError
		if !errors.As(err, &input) {
			t.Fatalf("expected InputError, got %v", err)
		}
	})
}
