package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mycontrol/internal/core"
	"mycontrol/internal/storage/memory"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, exp, err := m.Issue(core.User{ID: 42, Email: "a@b.c", Name: "A"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) > time.Hour || time.Until(exp) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id, _ := claims.UserID()
	if id != 42 || claims.Email != "a@b.c" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	good, _, _ := m.Issue(core.User{ID: 1, Email: "a@b.c"})

	expired := NewTokenManager("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, _ := expired.Issue(core.User{ID: 1})

	other := NewTokenManager("other", time.Hour)
	forged, _, _ := other.Issue(core.User{ID: 1})

	cases := map[string]string{
		"garbage":      "not-a-token",
		"expired":      old,
		"wrong secret": forged,
		"tampered":     good[:len(good)-2] + "xx",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestLoginAndSeed(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	svc := NewService(store, NewTokenManager("secret", time.Hour))

	created, err := svc.SeedDefaultUser(ctx, "admin@mycontrol.dev", "s3cret", "Admin")
	if err != nil || !created {
		t.Fatalf("seed: created=%v err=%v", created, err)
	}
	created, err = svc.SeedDefaultUser(ctx, "admin@mycontrol.dev", "s3cret", "Admin")
	if err != nil || created {
		t.Fatalf("second seed should be a no-op: created=%v err=%v", created, err)
	}

	res, err := svc.Login(ctx, "Admin@MyControl.dev", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.TokenType != "Bearer" || res.AccessToken == "" || res.User.Email != "admin@mycontrol.dev" {
		t.Fatalf("unexpected login result %+v", res)
	}
	if strings.Contains(res.User.PasswordHash, "s3cret") {
		t.Fatal("hash leaks password")
	}

	for _, tc := range []struct{ email, password string }{
		{"admin@mycontrol.dev", "wrong"},
		{"nobody@mycontrol.dev", "s3cret"},
	} {
		if _, err := svc.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.email, err)
		}
	}
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	svc := NewService(store, NewTokenManager("secret", time.Hour))
	if _, err := svc.SeedDefaultUser(ctx, "admin@mycontrol.dev", "s3cret", "Admin"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name  string
		email string
		want  error
	}{
		{"known user", "admin@mycontrol.dev", nil},
		{"case and spaces", "  Admin@MyControl.dev ", nil},
		{"unknown user", "nobody@mycontrol.dev", core.ErrUserNotFound},
		{"empty", "", ErrInvalidEmail},
		{"not an address", "admin", ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ResetPassword(ctx, tt.email)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ResetPassword(%q) = %v, want %v", tt.email, err, tt.want)
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context should have no principal")
	}
	ctx := WithPrincipal(context.Background(), Principal{UserID: 7, Email: "x@y"})
	p, ok := FromContext(ctx)
	if !ok || p.UserID != 7 {
		t.Fatalf("unexpected principal %+v %v", p, ok)
	}
}
