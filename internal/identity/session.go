package identity

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/felixgeelhaar/canvass/internal/errors"
)

// Session is the acting user for one process. It caches what the Store
// holds; Login and Logout write through.
type Session struct {
	store Store

	mu     sync.RWMutex
	userID string
	token  string
}

// NewSession returns a logged-out session backed by store. Call Restore to
// pick up a previously saved identity.
func NewSession(store Store) *Session {
	return &Session{store: store}
}

// Restore loads the stored identity. A store with nothing saved leaves the
// session logged out and is not an error.
func (s *Session) Restore(ctx context.Context) error {
	id, err := s.store.GetUserID(ctx)
	if stderrors.Is(err, ErrNotLoggedIn) {
		s.set("", "")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.store.GetToken(ctx)
	if err != nil && !stderrors.Is(err, ErrNotLoggedIn) {
		return err
	}
	s.set(id, token)
	return nil
}

// Login records userID, and token when non-empty, as the acting identity.
func (s *Session) Login(ctx context.Context, userID, token string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New(errors.ErrCodeIdentityInvalid, "user id cannot be empty").
			WithSuggestion("Pass a non-empty id with --user")
	}

	if err := s.store.SaveUserID(ctx, userID); err != nil {
		return err
	}
	if token != "" {
		if err := s.store.SaveToken(ctx, token); err != nil {
			return err
		}
	}
	s.set(userID, token)
	return nil
}

// Logout forgets the identity, both in memory and in the store.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.ClearUserID(ctx); err != nil {
		return err
	}
	s.set("", "")
	return nil
}

// UserID returns the acting user, if any.
func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

// RequireUserID returns the acting user or ErrNotLoggedIn.
func (s *Session) RequireUserID() (string, error) {
	id, ok := s.UserID()
	if !ok {
		return "", ErrNotLoggedIn
	}
	return id, nil
}

// Token returns the backend session token, possibly empty.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) set(userID, token string) {
	s.mu.Lock()
	s.userID, s.token = userID, token
	s.mu.Unlock()
}
