// Package auth holds the session credential: obtaining it from the remote
// store, persisting it in the durable slot, and notifying dependents when
// it changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"budgetbuddy/internal/api"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/storage"
)

// TokenKey names the durable slot holding the credential.
const TokenKey = "bb_token"

// Unauthenticated is the token value when no credential is held.
const Unauthenticated = ""

// Authenticator is the remote side of login and signup.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, email, password, inviteCode string) (api.Account, error)
}

var _ Authenticator = (*api.Client)(nil)

// Claims are read from the token without verifying its signature; they are
// used only for display and to drop expired tokens at startup.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

type listener struct {
	id int
	fn func(token string)
}

// Session owns the single bearer credential of the process.
type Session struct {
	remote Authenticator
	slot   storage.KV
	log    *log.Logger
	now    func() time.Time

	// changeMu serializes credential changes with their notifications.
	changeMu sync.Mutex

	mu        sync.RWMutex
	token     string
	listeners []listener
	nextID    int
}

func NewSession(remote Authenticator, slot storage.KV, logger *log.Logger) *Session {
	if slot == nil {
		slot = storage.NewMemoryKV()
	}
	return &Session{
		remote: remote,
		slot:   slot,
		log:    log.OrDiscard(logger).WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
}

// OnChange registers fn to run synchronously, in registration order, every
// time the credential is set or cleared. fn must not change the credential.
// The returned function unregisters it.
func (s *Session) OnChange(fn func(token string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// CurrentToken returns the credential, or Unauthenticated and false.
func (s *Session) CurrentToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != Unauthenticated
}

// Token returns the credential or core.ErrAuth when there is none.
func (s *Session) Token() (string, error) {
	token, ok := s.CurrentToken()
	if !ok {
		return "", core.ErrAuth
	}
	return token, nil
}

// Restore loads the credential persisted by a previous run. Expired JWTs are
// discarded.
func (s *Session) Restore(ctx context.Context) error {
	token, ok, err := s.slot.Get(ctx, TokenKey)
	if err != nil {
		return fmt.Errorf("read credential slot: %w", err)
	}
	if !ok || strings.TrimSpace(token) == "" {
		return nil
	}
	if claims, ok := parseClaims(token); ok && !claims.ExpiresAt.IsZero() && !claims.ExpiresAt.After(s.now()) {
		s.log.InfoContext(ctx, "Stored credential expired, discarding",
			log.FieldOperation, log.OpRestore,
			"expired_at", claims.ExpiresAt)
		if err := s.slot.Delete(ctx, TokenKey); err != nil {
			return fmt.Errorf("delete expired credential: %w", err)
		}
		return nil
	}
	s.setToken(token)
	s.log.DebugContext(ctx, "Restored credential", log.FieldOperation, log.OpRestore)
	return nil
}

// Authenticate logs in and makes the returned token the session credential.
// Any failure, including network errors, is reported as core.ErrAuth.
func (s *Session) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", core.ErrAuth)
	}
	token, err := s.remote.Login(ctx, email, password)
	if err != nil {
		s.log.WarnContext(ctx, "Login failed",
			log.NewFields().WithOperation(log.OpLogin).WithError(err).ToSlice()...)
		return "", fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	if err := s.slot.Set(ctx, TokenKey, token); err != nil {
		// The session still works; it just will not survive a restart.
		s.log.ErrorContext(ctx, "Failed to persist credential", log.FieldError, err.Error())
	}
	s.setToken(token)
	s.log.InfoContext(ctx, "Logged in", log.FieldOperation, log.OpLogin)
	return token, nil
}

// Signup registers an account and then logs in with the same credentials.
func (s *Session) Signup(ctx context.Context, email, password, inviteCode string) (api.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return api.Account{}, fmt.Errorf("%w: email and password are required", core.ErrAuth)
	}
	account, err := s.remote.Signup(ctx, email, password, strings.TrimSpace(inviteCode))
	if err != nil {
		s.log.WarnContext(ctx, "Signup failed",
			log.NewFields().WithOperation(log.OpSignup).WithError(err).ToSlice()...)
		return api.Account{}, fmt.Errorf("%w: %w", core.ErrAuth, err)
	}
	s.log.InfoContext(ctx, "Account created", log.FieldOperation, log.OpSignup, "account_id", account.ID.String())
	if _, err := s.Authenticate(ctx, email, password); err != nil {
		return account, err
	}
	return account, nil
}

// Clear discards the credential and its persisted copy. Dependents are
// notified before Clear returns, even when deleting the slot fails.
func (s *Session) Clear(ctx context.Context) error {
	s.setToken(Unauthenticated)
	if err := s.slot.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("delete credential slot: %w", err)
	}
	s.log.InfoContext(ctx, "Session cleared", log.FieldOperation, log.OpLogout)
	return nil
}

// Claims decodes the current token when it is a JWT.
func (s *Session) Claims() (Claims, bool) {
	token, ok := s.CurrentToken()
	if !ok {
		return Claims{}, false
	}
	return parseClaims(token)
}

func (s *Session) setToken(token string) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.Lock()
	changed := s.token != token
	s.token = token
	fns := make([]func(string), len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(token)
	}
}

func parseClaims(token string) (Claims, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, false
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, false
	}
	var c Claims
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	return c, true
}

// IsAuthError reports whether err should send the user back to login.
func IsAuthError(err error) bool {
	return errors.Is(err, core.ErrAuth) || errors.Is(err, api.ErrUnauthorized)
}
