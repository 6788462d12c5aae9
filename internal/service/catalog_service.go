package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/repository"
	"remediation-engine/internal/store"

	"go.uber.org/zap"
)

// CatalogService 计费目录读取（Redis 缓存 + 数据库）
// 会话内的懒加载缓存见 Session.catalogItems
type CatalogService struct {
	repo     repository.CatalogRepository
	kv       store.KV // 可为 nil
	cacheKey string
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewCatalogService(repo repository.CatalogRepository, kv store.KV, cacheKey string, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		repo:     repo,
		kv:       kv,
		cacheKey: cacheKey,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Load 读取完整目录；缓存读写失败不影响结果
func (s *CatalogService) Load(ctx context.Context) ([]domain.CatalogItem, error) {
	if s.kv != nil {
		raw, err := s.kv.Get(ctx, s.cacheKey)
		switch {
		case err == nil:
			var items []domain.CatalogItem
			if jsonErr := json.Unmarshal([]byte(raw), &items); jsonErr == nil {
				return items, nil
			}
			s.logger.Warn("Discarding undecodable catalog cache entry", zap.String("key", s.cacheKey))
		case !errors.Is(err, store.ErrMiss):
			s.logger.Warn("Catalog cache read failed", zap.String("key", s.cacheKey), zap.Error(err))
		}
	}

	items, err := s.repo.ListCatalogItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if s.kv != nil {
		if b, err := json.Marshal(items); err == nil {
			if err := s.kv.Set(ctx, s.cacheKey, string(b), s.cacheTTL); err != nil {
				s.logger.Warn("Catalog cache write failed", zap.String("key", s.cacheKey), zap.Error(err))
			}
		}
	}
	return items, nil
}

// FilterCatalog 按名称做不区分大小写的子串匹配；空查询返回全部
func FilterCatalog(items []domain.CatalogItem, query string) []domain.CatalogItem {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.CatalogItem, 0, len(items))
	for _, it := range items {
		if q == "" || strings.Contains(strings.ToLower(it.Name), q) {
			out = append(out, it)
		}
	}
	return out
}

// FindCatalogItem 按 id 查找
func FindCatalogItem(items []domain.CatalogItem, id string) (domain.CatalogItem, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return domain.CatalogItem{}, false
}
