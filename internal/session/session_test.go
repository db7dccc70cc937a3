package session

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calcweb/internal/security/secretbox"
	storepkg "calcweb/internal/store"
	"calcweb/internal/store/file"
	"calcweb/internal/store/memory"
)

type failingBackend struct {
	storepkg.Store
	putErr error
	delErr error
}

func (f failingBackend) Put(ctx context.Context, key, value string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, key, value)
}

func (f failingBackend) Delete(ctx context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	return f.Store.Delete(ctx, key)
}

func TestOpen_EmptyBackendIsUnauthenticated(t *testing.T) {
	s, err := Open(context.Background(), memory.NewStore())
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
	_, ok := s.Token()
	assert.False(t, ok)
}

func TestSet_PersistsAndAuthenticates(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	s, err := Open(ctx, backend)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "tok-1"))
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-1", token)

	stored, err := backend.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", stored)

	require.NoError(t, s.Set(ctx, "tok-2"))
	token, _ = s.Token()
	assert.Equal(t, "tok-2", token, "a new login replaces the previous token")
}

func TestSet_RejectsEmptyToken(t *testing.T) {
	s, err := Open(context.Background(), memory.NewStore())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Set(context.Background(), ""), ErrEmptyToken)
	assert.False(t, s.IsAuthenticated())
}

func TestSet_FailedPersistKeepsPreviousToken(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	s, err := Open(ctx, mem)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "old"))

	s.backend = failingBackend{Store: mem, putErr: errors.New("disk full")}
	require.Error(t, s.Set(ctx, "new"))
	token, _ := s.Token()
	assert.Equal(t, "old", token)
}

func TestClear_RemovesPersistedToken(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStore()
	s, err := Open(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "tok"))

	require.NoError(t, s.Clear(ctx))
	assert.False(t, s.IsAuthenticated())
	_, err = backend.Get(ctx, TokenKey)
	assert.ErrorIs(t, err, storepkg.ErrNotFound)
}

func TestClear_ForgetsTokenEvenIfDeleteFails(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	s, err := Open(ctx, mem)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "tok"))

	s.backend = failingBackend{Store: mem, delErr: errors.New("unavailable")}
	require.Error(t, s.Clear(ctx))
	assert.False(t, s.IsAuthenticated())
}

func TestOpen_RestoresAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	backend, err := file.NewStore(path)
	require.NoError(t, err)
	first, err := Open(ctx, backend)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "persisted"))

	reopened, err := file.NewStore(path)
	require.NoError(t, err)
	second, err := Open(ctx, reopened)
	require.NoError(t, err)
	token, ok := second.Token()
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func TestSealer_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	box, err := secretbox.New(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)

	backend := memory.NewStore()
	s, err := Open(ctx, backend, WithSealer(box))
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "secret-token"))

	stored, err := backend.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.NotEqual(t, "secret-token", stored)

	restored, err := Open(ctx, backend, WithSealer(box))
	require.NoError(t, err)
	token, _ := restored.Token()
	assert.Equal(t, "secret-token", token)
}

func TestOpen_DiscardsUnreadableToken(t *testing.T) {
	ctx := context.Background()
	box, err := secretbox.New(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)

	backend := memory.NewStore()
	require.NoError(t, backend.Put(ctx, TokenKey, "plaintext-from-before-encryption"))

	s, err := Open(ctx, backend, WithSealer(box))
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
	_, err = backend.Get(ctx, TokenKey)
	assert.ErrorIs(t, err, storepkg.ErrNotFound)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, memory.NewStore())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "tok")
		}()
		go func() {
			defer wg.Done()
			if token, ok := s.Token(); ok {
				assert.Equal(t, "tok", token)
			}
		}()
	}
	wg.Wait()
	assert.True(t, s.IsAuthenticated())
}
