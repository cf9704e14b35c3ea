// Package sqlite provides options for the embedded SQLite store.
package sqlite

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/discovery-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines configuration options for SQLite.
type Options struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path     string `json:"path" mapstructure:"path"`
	LogLevel int    `json:"log-level" mapstructure:"log-level"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Path:     "discovery.db",
		LogLevel: 1,
	}
}

// AddFlags adds flags for SQLite options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "sqlite."
	fs.StringVar(&o.Path, p+"path", o.Path, "SQLite database file (\":memory:\" for in-process)")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "Gorm log level (1 silent, 2 error, 3 warn, 4 info)")
}

// Complete is a no-op.
func (o *Options) Complete() error { return nil }

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	if o.Path == "" {
		return []error{fmt.Errorf("sqlite.path cannot be empty")}
	}
	return nil
}
