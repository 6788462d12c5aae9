package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKV_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	kv := NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	_, err := kv.Get(ctx, "catalog:items")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "catalog:items", `[{"id":"a"}]`, time.Minute))
	v, err := kv.Get(ctx, "catalog:items")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, v)

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "catalog:items")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryPhotoStorage_Upload(t *testing.T) {
	s := NewMemoryPhotoStorage("http://localhost:8080/photos")

	obj, err := s.Upload(context.Background(), "jobs/j1/r1/a.jpg", "image/jpeg", []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "jobs/j1/r1/a.jpg", obj.StoragePath)
	assert.Equal(t, "http://localhost:8080/photos/jobs/j1/r1/a.jpg", obj.DownloadURL)
	assert.Equal(t, 1, s.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Upload(ctx, "x", "", nil)
	assert.Error(t, err)
}
