// Package bleve provides options for the embedded bleve search engine.
package bleve

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/discovery-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines configuration options for the embedded engine.
type Options struct {
	// Dir holds one sub directory per physical index. Empty keeps indices in memory.
	Dir string `json:"dir" mapstructure:"dir"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{}
}

// AddFlags adds flags for bleve options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Dir, options.Join(prefixes...)+"bleve.dir", o.Dir, "Directory for embedded indices (empty = in-memory)")
}

// Complete is a no-op.
func (o *Options) Complete() error { return nil }

// Validate is a no-op.
func (o *Options) Validate() []error { return nil }
