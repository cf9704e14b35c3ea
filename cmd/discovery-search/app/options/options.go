// Package options contains flags and options for initializing the discovery
// search server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	discoverysvc "github.com/kart-io/discovery-search/internal/discovery"
	bleveopts "github.com/kart-io/discovery-search/pkg/options/bleve"
	cacheopts "github.com/kart-io/discovery-search/pkg/options/cache"
	discoveryopts "github.com/kart-io/discovery-search/pkg/options/discovery"
	esopts "github.com/kart-io/discovery-search/pkg/options/elasticsearch"
	etcdopts "github.com/kart-io/discovery-search/pkg/options/etcd"
	httpopts "github.com/kart-io/discovery-search/pkg/options/http"
	logopts "github.com/kart-io/discovery-search/pkg/options/logger"
	mysqlopts "github.com/kart-io/discovery-search/pkg/options/mysql"
	poolopts "github.com/kart-io/discovery-search/pkg/options/pool"
	postgresopts "github.com/kart-io/discovery-search/pkg/options/postgres"
	redisopts "github.com/kart-io/discovery-search/pkg/options/redis"
	sqliteopts "github.com/kart-io/discovery-search/pkg/options/sqlite"
	tracingopts "github.com/kart-io/discovery-search/pkg/options/tracing"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	PostgresOptions *postgresopts.Options `json:"postgres" mapstructure:"postgres"`
	MySQLOptions    *mysqlopts.Options    `json:"mysql" mapstructure:"mysql"`
	SQLiteOptions   *sqliteopts.Options   `json:"sqlite" mapstructure:"sqlite"`

	// RedisOptions is used by the search cache and the redis lock driver.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// CacheOptions contains search result cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	ElasticsearchOptions *esopts.Options    `json:"elasticsearch" mapstructure:"elasticsearch"`
	BleveOptions         *bleveopts.Options `json:"bleve" mapstructure:"bleve"`

	// EtcdOptions is used by the etcd lock driver.
	EtcdOptions *etcdopts.Options `json:"etcd" mapstructure:"etcd"`

	PoolOptions    *poolopts.Options    `json:"pool" mapstructure:"pool"`
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// 领域配置直接展开在顶层: store / engine / reindex / search / lock / admin
	*discoveryopts.Options `mapstructure:",squash"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:          httpopts.NewOptions(),
		LogOptions:           logopts.NewOptions(),
		PostgresOptions:      postgresopts.NewOptions(),
		MySQLOptions:         mysqlopts.NewOptions(),
		SQLiteOptions:        sqliteopts.NewOptions(),
		RedisOptions:         redisopts.NewOptions(),
		CacheOptions:         cacheopts.NewOptions(),
		ElasticsearchOptions: esopts.NewOptions(),
		BleveOptions:         bleveopts.NewOptions(),
		EtcdOptions:          etcdopts.NewOptions(),
		PoolOptions:          poolopts.NewOptions(),
		TracingOptions:       tracingopts.NewOptions(),
		Options:              discoveryopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.MySQLOptions.AddFlags(fss.FlagSet("mysql"))
	o.SQLiteOptions.AddFlags(fss.FlagSet("sqlite"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.ElasticsearchOptions.AddFlags(fss.FlagSet("elasticsearch"))
	o.BleveOptions.AddFlags(fss.FlagSet("bleve"))
	o.EtcdOptions.AddFlags(fss.FlagSet("etcd"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.Options.AddFlags(fss.FlagSet("discovery"))

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.Options.Complete(); err != nil {
		return err
	}

	// 只补全实际选中的后端，避免读取无关的环境变量
	switch o.Store.Driver {
	case discoveryopts.StorePostgres:
		if err := o.PostgresOptions.Complete(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	case discoveryopts.StoreMySQL:
		if err := o.MySQLOptions.Complete(); err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
	}
	if o.Engine.Driver == discoveryopts.EngineElasticsearch {
		if err := o.ElasticsearchOptions.Complete(); err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
	}
	if o.CacheOptions.Enabled || o.Lock.Driver == discoveryopts.LockRedis {
		if err := o.RedisOptions.Complete(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if o.Lock.Driver == discoveryopts.LockEtcd {
		if err := o.EtcdOptions.Complete(); err != nil {
			return fmt.Errorf("etcd: %w", err)
		}
	}
	return o.TracingOptions.Complete()
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.Options.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	switch o.Store.Driver {
	case discoveryopts.StorePostgres:
		errs = append(errs, o.PostgresOptions.Validate()...)
	case discoveryopts.StoreMySQL:
		errs = append(errs, o.MySQLOptions.Validate()...)
	case discoveryopts.StoreSQLite:
		errs = append(errs, o.SQLiteOptions.Validate()...)
	}
	switch o.Engine.Driver {
	case discoveryopts.EngineElasticsearch:
		errs = append(errs, o.ElasticsearchOptions.Validate()...)
	case discoveryopts.EngineBleve:
		errs = append(errs, o.BleveOptions.Validate()...)
	}
	if o.CacheOptions.Enabled || o.Lock.Driver == discoveryopts.LockRedis {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	if o.Lock.Driver == discoveryopts.LockEtcd {
		errs = append(errs, o.EtcdOptions.Validate()...)
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a discoverysvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*discoverysvc.Config, error) {
	return &discoverysvc.Config{
		HTTPOptions:          o.HTTPOptions,
		LogOptions:           o.LogOptions,
		PostgresOptions:      o.PostgresOptions,
		MySQLOptions:         o.MySQLOptions,
		SQLiteOptions:        o.SQLiteOptions,
		RedisOptions:         o.RedisOptions,
		CacheOptions:         o.CacheOptions,
		ElasticsearchOptions: o.ElasticsearchOptions,
		BleveOptions:         o.BleveOptions,
		EtcdOptions:          o.EtcdOptions,
		PoolOptions:          o.PoolOptions,
		TracingOptions:       o.TracingOptions,
		DiscoveryOptions:     o.Options,
	}, nil
}
