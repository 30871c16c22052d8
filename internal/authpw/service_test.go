package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"scribe/api/internal/store"
)

type fakeUserStore struct {
	users map[string]store.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]store.User)}
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.users[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user store.User) error {
	f.users[user.Email] = user
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	service := NewService(newFakeUserStore())
	ctx := context.Background()

	user, err := service.SignUp(ctx, SignUpRequest{
		Email:       "Avery@Example.com",
		Password:    "correct horse",
		DisplayName: "Avery",
		TeamID:      "team_1",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.Email != "avery@example.com" {
		t.Errorf("email not normalized: %s", user.Email)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Error("password was not hashed")
	}

	got, err := service.SignIn(ctx, "avery@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("SignIn returned wrong user: %s", got.ID)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	service := NewService(newFakeUserStore())
	ctx := context.Background()

	if _, err := service.SignUp(ctx, SignUpRequest{
		Email: "a@b.co", Password: "password1", DisplayName: "A", TeamID: "team_1",
	}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := service.SignIn(ctx, "a@b.co", "password2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInUnknownEmail(t *testing.T) {
	service := NewService(newFakeUserStore())
	if _, err := service.SignIn(context.Background(), "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	service := NewService(newFakeUserStore())
	ctx := context.Background()

	cases := []SignUpRequest{
		{Email: "", Password: "password1", DisplayName: "A"},
		{Email: "a@b.co", Password: "", DisplayName: "A"},
		{Email: "a@b.co", Password: "password1", DisplayName: ""},
		{Email: "a@b.co", Password: "short", DisplayName: "A"},
	}
	for _, req := range cases {
		if _, err := service.SignUp(ctx, req); err == nil {
			t.Errorf("expected validation error for %+v", req)
		}
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	service := NewService(newFakeUserStore())
	ctx := context.Background()

	req := SignUpRequest{Email: "a@b.co", Password: "password1", DisplayName: "A", TeamID: "team_1"}
	if _, err := service.SignUp(ctx, req); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := service.SignUp(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}
