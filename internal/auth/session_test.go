package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"budgetbuddy/internal/api"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/storage"
)

type fakeRemote struct {
	token     string
	loginErr  error
	signupErr error
	logins    int
	signups   int
}

func (f *fakeRemote) Login(_ context.Context, email, password string) (string, error) {
	f.logins++
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *fakeRemote) Signup(_ context.Context, email, password, inviteCode string) (api.Account, error) {
	f.signups++
	if f.signupErr != nil {
		return api.Account{}, f.signupErr
	}
	return api.Account{ID: "7", Email: email}, nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "42",
		"email": "ana@example.com",
		"exp":   exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestAuthenticatePersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := NewSession(&fakeRemote{token: "tok-1"}, kv, nil)

	var seen []string
	s.OnChange(func(token string) { seen = append(seen, "a:"+token) })
	s.OnChange(func(token string) { seen = append(seen, "b:"+token) })

	token, err := s.Authenticate(ctx, " ana@example.com ", "pw")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("token = %q", token)
	}
	if got, ok := s.CurrentToken(); !ok || got != "tok-1" {
		t.Errorf("CurrentToken = %q, %v", got, ok)
	}
	if stored, ok, _ := kv.Get(ctx, TokenKey); !ok || stored != "tok-1" {
		t.Errorf("slot = %q, %v", stored, ok)
	}
	if len(seen) != 2 || seen[0] != "a:tok-1" || seen[1] != "b:tok-1" {
		t.Errorf("notifications = %v", seen)
	}
}

func TestAuthenticateFailureLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	remote := &fakeRemote{loginErr: &api.StatusError{Op: "login", StatusCode: 401, Message: "Invalid credentials"}}
	s := NewSession(remote, kv, nil)

	notified := false
	s.OnChange(func(string) { notified = true })

	_, err := s.Authenticate(ctx, "ana@example.com", "wrong")
	if !errors.Is(err, core.ErrAuth) {
		t.Fatalf("error = %v, want ErrAuth", err)
	}
	if got := core.UserMessage(err); got != "Invalid credentials" {
		t.Errorf("UserMessage = %q", got)
	}
	if _, ok := s.CurrentToken(); ok {
		t.Error("session should stay unauthenticated")
	}
	if _, ok, _ := kv.Get(ctx, TokenKey); ok {
		t.Error("slot should stay empty")
	}
	if notified {
		t.Error("listeners should not run on failure")
	}
}

func TestAuthenticateRequiresCredentials(t *testing.T) {
	remote := &fakeRemote{token: "x"}
	s := NewSession(remote, nil, nil)
	for _, tc := range []struct{ email, password string }{
		{"", "pw"},
		{"  ", "pw"},
		{"ana@example.com", ""},
	} {
		if _, err := s.Authenticate(context.Background(), tc.email, tc.password); !errors.Is(err, core.ErrAuth) {
			t.Errorf("Authenticate(%q, %q) error = %v", tc.email, tc.password, err)
		}
	}
	if remote.logins != 0 {
		t.Errorf("remote called %d times", remote.logins)
	}
}

func TestSignupLogsIn(t *testing.T) {
	remote := &fakeRemote{token: "tok-2"}
	s := NewSession(remote, nil, nil)

	account, err := s.Signup(context.Background(), "bo@example.com", "pw", "INVITE")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if account.Email != "bo@example.com" {
		t.Errorf("account = %+v", account)
	}
	if remote.logins != 1 {
		t.Errorf("logins = %d", remote.logins)
	}
	if got, _ := s.CurrentToken(); got != "tok-2" {
		t.Errorf("token = %q", got)
	}
}

func TestSignupFailure(t *testing.T) {
	remote := &fakeRemote{signupErr: &api.StatusError{Op: "signup", StatusCode: 400, Message: "Invalid invite code"}}
	s := NewSession(remote, nil, nil)

	_, err := s.Signup(context.Background(), "bo@example.com", "pw", "nope")
	if !errors.Is(err, core.ErrAuth) {
		t.Fatalf("error = %v", err)
	}
	if core.UserMessage(err) != "Invalid invite code" {
		t.Errorf("UserMessage = %q", core.UserMessage(err))
	}
	if remote.logins != 0 {
		t.Error("should not log in after failed signup")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := NewSession(&fakeRemote{token: "tok"}, kv, nil)
	if _, err := s.Authenticate(ctx, "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}

	var last *string
	s.OnChange(func(token string) { last = &token })

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if last == nil || *last != Unauthenticated {
		t.Error("listener should see the cleared token")
	}
	if _, err := s.Token(); !errors.Is(err, core.ErrAuth) {
		t.Errorf("Token error = %v", err)
	}
	if _, ok, _ := kv.Get(ctx, TokenKey); ok {
		t.Error("slot should be cleared")
	}
}

func TestOnChangeUnsubscribe(t *testing.T) {
	s := NewSession(&fakeRemote{token: "tok"}, nil, nil)
	calls := 0
	cancel := s.OnChange(func(string) { calls++ })
	cancel()
	if _, err := s.Authenticate(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("calls = %d", calls)
	}
}

func TestRestore(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		stored   string
		wantAuth bool
		wantKept bool
	}{
		{name: "empty slot"},
		{name: "opaque token", stored: "opaque", wantAuth: true, wantKept: true},
		{name: "valid jwt", stored: signedToken(t, now.Add(time.Hour)), wantAuth: true, wantKept: true},
		{name: "expired jwt", stored: signedToken(t, now.Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemoryKV()
			if tt.stored != "" {
				_ = kv.Set(ctx, TokenKey, tt.stored)
			}
			s := NewSession(&fakeRemote{}, kv, nil)
			s.now = func() time.Time { return now }

			if err := s.Restore(ctx); err != nil {
				t.Fatalf("Restore: %v", err)
			}
			if _, ok := s.CurrentToken(); ok != tt.wantAuth {
				t.Errorf("authenticated = %v, want %v", ok, tt.wantAuth)
			}
			if _, ok, _ := kv.Get(ctx, TokenKey); ok != tt.wantKept {
				t.Errorf("slot kept = %v, want %v", ok, tt.wantKept)
			}
		})
	}
}

func TestClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	s := NewSession(&fakeRemote{token: signedToken(t, exp)}, nil, nil)
	if _, ok := s.Claims(); ok {
		t.Error("no claims before login")
	}
	if _, err := s.Authenticate(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	c, ok := s.Claims()
	if !ok {
		t.Fatal("expected claims")
	}
	if c.Subject != "42" || c.Email != "ana@example.com" || !c.ExpiresAt.Equal(exp) {
		t.Errorf("claims = %+v", c)
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(core.ErrAuth) {
		t.Error("ErrAuth")
	}
	if !IsAuthError(&api.StatusError{StatusCode: 403}) {
		t.Error("403")
	}
	if IsAuthError(core.ErrRemote) {
		t.Error("ErrRemote")
	}
}
