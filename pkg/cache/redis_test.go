package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
)

func TestStoreWithoutClientMisses(t *testing.T) {
	store := NewStore(nil, "prhi:")
	var dest string
	err := store.Get(context.Background(), "signed:documents:a", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	require.NoError(t, store.Set(context.Background(), "k", "v", time.Minute))
	require.NoError(t, store.DeleteByPattern(context.Background(), "*"))
	assert.Equal(t, "prhi:k", store.key("k"))
}
