package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/canvass/internal/errors"
)

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "identity.json")),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetUserID(ctx)
			assert.ErrorIs(t, err, ErrNotLoggedIn)

			require.NoError(t, s.SaveUserID(ctx, "alice"))
			require.NoError(t, s.SaveToken(ctx, "tok"))

			id, err := s.GetUserID(ctx)
			require.NoError(t, err)
			assert.Equal(t, "alice", id)

			tok, err := s.GetToken(ctx)
			require.NoError(t, err)
			assert.Equal(t, "tok", tok)

			require.NoError(t, s.SaveUserID(ctx, "bob"))
			tok, err = s.GetToken(ctx)
			require.NoError(t, err)
			assert.Empty(t, tok, "switching users drops the old token")

			require.NoError(t, s.ClearUserID(ctx))
			_, err = s.GetUserID(ctx)
			assert.ErrorIs(t, err, ErrNotLoggedIn)

			require.NoError(t, s.ClearUserID(ctx), "clearing twice is fine")
		})
	}
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	s := NewFileStore(path)

	require.NoError(t, s.SaveUserID(context.Background(), "alice"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).GetUserID(context.Background())
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileUnmarshal))
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := NewSession(store)

	require.NoError(t, s.Restore(ctx))
	_, ok := s.UserID()
	assert.False(t, ok)
	_, err := s.RequireUserID()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.Login(ctx, "  alice  ", "tok"))
	id, err := s.RequireUserID()
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
	assert.Equal(t, "tok", s.Token())

	restored := NewSession(store)
	require.NoError(t, restored.Restore(ctx))
	id, ok = restored.UserID()
	assert.True(t, ok)
	assert.Equal(t, "alice", id)
	assert.Equal(t, "tok", restored.Token())

	require.NoError(t, s.Logout(ctx))
	_, ok = s.UserID()
	assert.False(t, ok)
	assert.Empty(t, s.Token())

	_, err = store.GetUserID(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestSessionLoginRejectsBlank(t *testing.T) {
	s := NewSession(NewMemoryStore())

	err := s.Login(context.Background(), "   ", "")
	assert.True(t, errors.HasCode(err, errors.ErrCodeIdentityInvalid))
	_, ok := s.UserID()
	assert.False(t, ok)
}
