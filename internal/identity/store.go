// Package identity keeps track of who is taking questionnaires on this
// machine. A Session is passed explicitly to whatever needs the acting user;
// it is backed by a Store that persists the id (and the backend session
// token) between runs.
package identity

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/canvass/internal/errors"
)

// ErrNotLoggedIn is returned when no user id is stored.
var ErrNotLoggedIn = errors.NewNotLoggedInError()

// Store persists the logged-in user.
type Store interface {
	GetUserID(ctx context.Context) (string, error)
	SaveUserID(ctx context.Context, userID string) error
	// ClearUserID removes the user id and any token. Clearing an empty
	// store is not an error.
	ClearUserID(ctx context.Context) error

	GetToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
}

// record is the on-disk format of FileStore.
type record struct {
	UserID  string    `json:"user_id"`
	Token   string    `json:"token,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// FileStore keeps the identity in a JSON file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns ~/.canvass/identity.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "cannot locate home directory", err)
	}
	return filepath.Join(home, ".canvass", "identity.json"), nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) GetUserID(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return "", err
	}
	if rec.UserID == "" {
		return "", ErrNotLoggedIn
	}
	return rec.UserID, nil
}

func (s *FileStore) SaveUserID(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil && !stderrors.Is(err, ErrNotLoggedIn) {
		return err
	}
	if rec.UserID != userID {
		rec.Token = ""
	}
	rec.UserID = userID
	return s.save(rec)
}

func (s *FileStore) ClearUserID(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to remove identity file", err)
	}
	return nil
}

func (s *FileStore) GetToken(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return "", err
	}
	return rec.Token, nil
}

func (s *FileStore) SaveToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return err
	}
	rec.Token = token
	return s.save(rec)
}

// load returns ErrNotLoggedIn (with a zero record) when the file is absent.
func (s *FileStore) load() (record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return record{}, ErrNotLoggedIn
	}
	if err != nil {
		return record{}, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read identity file", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, errors.NewFileUnmarshalError(s.path, "JSON", err).
			WithSuggestion("Run 'canvass logout' to reset the stored identity")
	}
	return rec, nil
}

func (s *FileStore) save(rec record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create identity directory", err)
	}

	rec.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode identity", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write identity file", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	userID string
	token  string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) GetUserID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userID == "" {
		return "", ErrNotLoggedIn
	}
	return m.userID, nil
}

func (m *MemoryStore) SaveUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userID != userID {
		m.token = ""
	}
	m.userID = userID
	return nil
}

func (m *MemoryStore) ClearUserID(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID, m.token = "", ""
	return nil
}

func (m *MemoryStore) GetToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userID == "" {
		return "", ErrNotLoggedIn
	}
	return m.token, nil
}

func (m *MemoryStore) SaveToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userID == "" {
		return ErrNotLoggedIn
	}
	m.token = token
	return nil
}
