package service

import (
	"context"
	"testing"
	"time"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/repository"
	"remediation-engine/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogService_LoadUsesRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	kv := store.NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	repo := &countingCatalogRepo{items: repository.DefaultCatalog}
	svc := NewCatalogService(repo, kv, "remediation:catalog", 10*time.Minute, zap.NewNop())

	items, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, items, len(repository.DefaultCatalog))
	assert.True(t, mr.Exists("remediation:catalog"))
	assert.Equal(t, 10*time.Minute, mr.TTL("remediation:catalog"))

	again, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, items, again)
	assert.Equal(t, int32(1), repo.calls.Load())

	mr.FastForward(11 * time.Minute)
	_, err = svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.calls.Load())
}

func TestCatalogService_CorruptCacheFallsBackToRepo(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("remediation:catalog", "{not json"))
	kv := store.NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	repo := &countingCatalogRepo{items: repository.DefaultCatalog[:2]}
	svc := NewCatalogService(repo, kv, "remediation:catalog", time.Minute, zap.NewNop())

	items, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestFilterCatalog(t *testing.T) {
	items := repository.DefaultCatalog

	assert.Len(t, FilterCatalog(items, ""), len(items))
	assert.Len(t, FilterCatalog(items, "   "), len(items))

	got := FilterCatalog(items, "REMOVAL")
	names := make([]string, 0, len(got))
	for _, it := range got {
		names = append(names, it.Name)
	}
	assert.ElementsMatch(t, []string{"Baseboard Removal", "Carpet Pad Removal"}, names)

	assert.Empty(t, FilterCatalog(items, "asbestos"))
}

func TestFindCatalogItem(t *testing.T) {
	item, ok := FindCatalogItem(repository.DefaultCatalog, "containment")
	require.True(t, ok)
	assert.Equal(t, "Containment Barrier", item.Name)

	_, ok = FindCatalogItem(repository.DefaultCatalog, domain.EquipmentItemID)
	assert.False(t, ok)
}
