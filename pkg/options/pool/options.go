// Package pool provides goroutine pool options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/discovery-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 协程池配置。
type Options struct {
	// DefaultCapacity 默认池容量
	DefaultCapacity int `json:"default-capacity" mapstructure:"default-capacity"`
	// QueryCapacity 查询扇出池容量（健康检查、筛选项）
	QueryCapacity  int           `json:"query-capacity" mapstructure:"query-capacity"`
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	Nonblocking    bool          `json:"nonblocking" mapstructure:"nonblocking"`
}

// NewOptions 创建默认协程池配置。
func NewOptions() *Options {
	return &Options{
		DefaultCapacity: 200,
		QueryCapacity:   50,
		ExpiryDuration:  10 * time.Second,
		Nonblocking:     false,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.DefaultCapacity, p+"default-capacity", o.DefaultCapacity, "Capacity of the default goroutine pool")
	fs.IntVar(&o.QueryCapacity, p+"query-capacity", o.QueryCapacity, "Capacity of the query fan-out pool")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry")
	fs.BoolVar(&o.Nonblocking, p+"nonblocking", o.Nonblocking, "Fail submissions instead of blocking when the pool is full")
}

// Complete is a no-op.
func (o *Options) Complete() error { return nil }

// Validate validates pool options.
func (o *Options) Validate() []error {
	var errs []error
	if o.DefaultCapacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.default-capacity must be positive"))
	}
	if o.QueryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.query-capacity must be positive"))
	}
	return errs
}
