package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, CheckPassword(hash, "correct horse battery"))
	assert.False(t, CheckPassword(hash, "wrong password"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestPrefsStore_LoadMissingFile(t *testing.T) {
	store := NewPrefsStore(filepath.Join(t.TempDir(), "session_prefs.json"))

	p, err := store.Load()
	require.NoError(t, err)
	assert.False(t, p.RememberMe)
	assert.Empty(t, p.SavedUID)
}

func TestPrefsStore_RememberRoundTrip(t *testing.T) {
	store := NewPrefsStore(filepath.Join(t.TempDir(), "session_prefs.json"))

	require.NoError(t, store.Remember("u1"))

	p, err := store.Load()
	require.NoError(t, err)
	assert.True(t, p.RememberMe)
	assert.Equal(t, "u1", p.SavedUID)

	require.NoError(t, store.Forget())

	p, err = store.Load()
	require.NoError(t, err)
	assert.False(t, p.RememberMe)
}

func TestPrefsStore_RestoreSession(t *testing.T) {
	store := NewPrefsStore(filepath.Join(t.TempDir(), "session_prefs.json"))

	// Nothing remembered yet.
	ok, err := store.RestoreSession("u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remember("u1"))

	ok, err = store.RestoreSession("u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrefsStore_RestoreSessionUIDMismatchForcesSignOut(t *testing.T) {
	store := NewPrefsStore(filepath.Join(t.TempDir(), "session_prefs.json"))

	require.NoError(t, store.Remember("u1"))

	ok, err := store.RestoreSession("u2")
	require.NoError(t, err)
	assert.False(t, ok)

	// The stale preference was cleared, so the original uid cannot restore
	// either.
	ok, err = store.RestoreSession("u1")
	require.NoError(t, err)
	assert.False(t, ok)
}
