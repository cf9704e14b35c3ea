// Package elasticsearch provides Elasticsearch client options.
package elasticsearch

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/discovery-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options defines configuration options for Elasticsearch.
type Options struct {
	Addresses []string `json:"addresses" mapstructure:"addresses"`
	Username  string   `json:"username" mapstructure:"username"`
	Password  string   `json:"-" mapstructure:"password"`
	APIKey    string   `json:"-" mapstructure:"api-key"`
	// MaxRetries 传输层重试次数
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
	// RequestTimeout bounds every call issued by the engine adapter.
	RequestTimeout     time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
	InsecureSkipVerify bool          `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`
	// Shards / Replicas 新建物理索引的设置
	Shards   int `json:"shards" mapstructure:"shards"`
	Replicas int `json:"replicas" mapstructure:"replicas"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Addresses:      []string{"http://127.0.0.1:9200"},
		MaxRetries:     3,
		RequestTimeout: 30 * time.Second,
		Shards:         1,
		Replicas:       0,
	}
}

// AddFlags adds flags for Elasticsearch options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "elasticsearch."
	fs.StringSliceVar(&o.Addresses, p+"addresses", o.Addresses, "Elasticsearch node URLs")
	fs.StringVar(&o.Username, p+"username", o.Username, "Elasticsearch basic auth username")
	fs.StringVar(&o.Password, p+"password", o.Password, "Elasticsearch basic auth password (prefer ELASTICSEARCH_PASSWORD env var)")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Elasticsearch API key (prefer ELASTICSEARCH_API_KEY env var)")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Elasticsearch transport max retries")
	fs.DurationVar(&o.RequestTimeout, p+"request-timeout", o.RequestTimeout, "Elasticsearch per-request timeout")
	fs.BoolVar(&o.InsecureSkipVerify, p+"insecure-skip-verify", o.InsecureSkipVerify, "Skip TLS certificate verification")
	fs.IntVar(&o.Shards, p+"shards", o.Shards, "Number of primary shards for new indices")
	fs.IntVar(&o.Replicas, p+"replicas", o.Replicas, "Number of replicas for new indices")
}

// Complete reads credentials from the environment when unset.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("ELASTICSEARCH_PASSWORD")
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("ELASTICSEARCH_API_KEY")
	}
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() []error {
	var errs []error
	if len(o.Addresses) == 0 {
		errs = append(errs, fmt.Errorf("elasticsearch.addresses cannot be empty"))
	}
	if o.Shards <= 0 {
		errs = append(errs, fmt.Errorf("elasticsearch.shards must be positive"))
	}
	if o.Replicas < 0 {
		errs = append(errs, fmt.Errorf("elasticsearch.replicas cannot be negative"))
	}
	return errs
}
