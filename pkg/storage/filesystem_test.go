package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), "http://files.test", NewSignedURLSigner("secret", time.Hour))
	require.NoError(t, err)
	return store
}

func TestLocalStoragePutGetList(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)

	require.NoError(t, store.Put(ctx, "prhi-files", "assignments/a1/brief.pdf", strings.NewReader("brief"), 5, "application/pdf"))
	require.NoError(t, store.Put(ctx, "prhi-files", "assignments/a1/rubric.pdf", strings.NewReader("rubric"), 6, "application/pdf"))
	require.NoError(t, store.Put(ctx, "prhi-files", "assignments/a2/other.pdf", strings.NewReader("x"), 1, ""))

	rc, err := store.Get(ctx, "prhi-files", "assignments/a1/brief.pdf")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "brief", string(body))

	objects, err := store.List(ctx, "prhi-files", "assignments/a1")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "assignments/a1/brief.pdf", objects[0].Key)
	assert.Equal(t, "rubric.pdf", objects[1].Name)

	require.NoError(t, store.Remove(ctx, "prhi-files", objects[0].Key, objects[1].Key, "assignments/a1/missing.pdf"))
	objects, err = store.List(ctx, "prhi-files", "assignments/a1")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalStorageMissingObject(t *testing.T) {
	store := newLocal(t)
	_, err := store.Get(context.Background(), "documents", "nope.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	objects, err := store.List(context.Background(), "documents", "never/created")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store := newLocal(t)
	err := store.Put(context.Background(), "documents", "../../etc/passwd", strings.NewReader("x"), 1, "")
	require.NoError(t, err, "leading dot segments are clamped to the bucket root")

	err = store.Put(context.Background(), "../documents", "a.txt", strings.NewReader("x"), 1, "")
	require.Error(t, err)
}

func TestLocalStorageURLs(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)
	require.NoError(t, store.Put(ctx, "documents", "user-documents/u1/Valid_ID-id.png", strings.NewReader("png"), 3, "image/png"))

	assert.Equal(t, "http://files.test/public/prhi-files/modules/m1/lessons/intro%20deck.pdf", store.PublicURL("prhi-files", "modules/m1/lessons/intro deck.pdf"))

	signed, err := store.SignedURL(ctx, "documents", "user-documents/u1/Valid_ID-id.png", time.Hour)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(signed, "http://files.test/signed/"))

	bucket, key, _, err := store.signer.Parse(strings.TrimPrefix(signed, "http://files.test/signed/"))
	require.NoError(t, err)
	assert.Equal(t, "documents", bucket)
	assert.Equal(t, "user-documents/u1/Valid_ID-id.png", key)

	_, err = store.SignedURL(ctx, "documents", "user-documents/u1/absent.png", time.Hour)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
