package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/discovery-search/internal/pkg/querycompiler"
	"github.com/kart-io/discovery-search/pkg/infra/logger"
	"github.com/kart-io/discovery-search/pkg/utils/json"
)

var _ CacheInvalidator = (*SearchCache)(nil)

// SearchCacheConfig 搜索结果缓存配置。
type SearchCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// SearchCache 搜索结果缓存。
type SearchCache struct {
	redis  goredis.UniversalClient
	config *SearchCacheConfig
}

// NewSearchCache 创建搜索缓存实例。redis 为 nil 时缓存不可用。
func NewSearchCache(redis goredis.UniversalClient, config *SearchCacheConfig) *SearchCache {
	if config == nil {
		config = &SearchCacheConfig{
			Enabled:   false,
			TTL:       5 * time.Minute,
			KeyPrefix: "discovery:search:",
		}
	}
	return &SearchCache{redis: redis, config: config}
}

func (c *SearchCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// Key 基于编译时使用的查询参数生成缓存键（SHA256）。
// 只做不改变查询语义的规范化: 去空白、国家代码大写、同一维度内排序。
func (c *SearchCache) Key(params querycompiler.Params) string {
	f := params.Filters.Normalized()
	sorted := func(values []string) string {
		out := slices.Clone(values)
		slices.Sort(out)
		return strings.Join(out, ",")
	}

	parts := []string{
		"q=" + params.TrimmedText(),
		"type=" + f.Type,
		"industry=" + sorted(f.Industries),
		"country=" + sorted(f.Countries),
		"stage=" + sorted(f.Stages),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "&")))
	return c.config.KeyPrefix + hex.EncodeToString(sum[:])
}

// Get 从缓存获取搜索结果，未命中返回 nil, nil。
func (c *SearchCache) Get(ctx context.Context, params querycompiler.Params) (*SearchResults, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := c.Key(params)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		logger.GetLogger(ctx).Warnw("failed to get from cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var results SearchResults
	if err := json.Unmarshal(data, &results); err != nil {
		logger.GetLogger(ctx).Warnw("failed to unmarshal cached result", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}
	return &results, nil
}

// Set 将搜索结果写入缓存。
func (c *SearchCache) Set(ctx context.Context, params querycompiler.Params, results *SearchResults) error {
	if !c.enabled() {
		return nil
	}

	data, err := json.Marshal(results)
	if err != nil {
		return err
	}

	key := c.Key(params)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Invalidate 清除所有搜索缓存。
func (c *SearchCache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.GetLogger(ctx).Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.GetLogger(ctx).Infow("cleared search cache", "deleted_count", deleted)
	return nil
}
