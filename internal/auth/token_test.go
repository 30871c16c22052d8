package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var secret = []byte("test-secret")

func validClaims() Claims {
	return Claims{
		Sub:    "user_1",
		Name:   "Avery",
		TeamID: "team_1",
		Exp:    time.Now().Add(time.Hour).Unix(),
	}
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(secret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.Sub != "user_1" || claims.TeamID != "team_1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := IssueToken(secret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenTampered(t *testing.T) {
	token, err := IssueToken(secret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0] + "x." + parts[1]
	if _, err := ParseToken(secret, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenExpired(t *testing.T) {
	claims := validClaims()
	claims.Exp = time.Now().Add(-time.Minute).Unix()
	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken(secret, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseTokenMissingClaims(t *testing.T) {
	claims := validClaims()
	claims.TeamID = ""
	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := ParseToken(secret, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b.c", "!!!.???"} {
		if _, err := ParseToken(secret, token); err == nil {
			t.Errorf("expected error for token %q", token)
		}
	}
}
