// Package cache provides search result cache options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/discovery-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 搜索结果缓存配置，连接复用顶层 redis 配置。
type Options struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:   false,
		TTL:       5 * time.Minute,
		KeyPrefix: "discovery:search:",
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the Redis search result cache.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Search result cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Search result cache key prefix.")
}

// Complete is a no-op.
func (o *Options) Complete() error { return nil }

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o.Enabled && o.TTL <= 0 {
		return []error{fmt.Errorf("cache.ttl must be positive when cache is enabled")}
	}
	return nil
}
