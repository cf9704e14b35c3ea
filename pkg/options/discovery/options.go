// Package discovery holds the options of the reindex pipeline, the search
// executor and the pluggable store / engine / lock backends.
package discovery

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/discovery-search/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
	StoreSQLite   = "sqlite"
)

// Engine drivers.
const (
	EngineElasticsearch = "elasticsearch"
	EngineBleve         = "bleve"
)

// Lock drivers.
const (
	LockStore = "store" // advisory lock of the relational store (postgres / mysql)
	LockRedis = "redis"
	LockEtcd  = "etcd"
	LockFile  = "file"
)

// Options groups the domain options.
type Options struct {
	Store   *StoreOptions   `json:"store" mapstructure:"store"`
	Engine  *EngineOptions  `json:"engine" mapstructure:"engine"`
	Reindex *ReindexOptions `json:"reindex" mapstructure:"reindex"`
	Search  *SearchOptions  `json:"search" mapstructure:"search"`
	Lock    *LockOptions    `json:"lock" mapstructure:"lock"`
	Admin   *AdminOptions   `json:"admin" mapstructure:"admin"`
}

// StoreOptions selects the relational system of record.
type StoreOptions struct {
	Driver string `json:"driver" mapstructure:"driver"`
	// AutoMigrate creates the entity tables on startup (sqlite / development).
	AutoMigrate bool `json:"auto-migrate" mapstructure:"auto-migrate"`
}

// EngineOptions selects the search engine.
type EngineOptions struct {
	Driver string `json:"driver" mapstructure:"driver"`
}

// ReindexOptions 重建索引配置。
type ReindexOptions struct {
	Alias        string        `json:"alias" mapstructure:"alias"`
	IndexPrefix  string        `json:"index-prefix" mapstructure:"index-prefix"`
	BatchSize    int           `json:"batch-size" mapstructure:"batch-size"`
	ChunkSize    int           `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap int           `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	// Schedule 周期性重建间隔，0 表示只通过管理接口触发
	Schedule time.Duration `json:"schedule" mapstructure:"schedule"`
}

// SearchOptions 搜索配置。
type SearchOptions struct {
	MaxHits      int           `json:"max-hits" mapstructure:"max-hits"`
	FragmentSize int           `json:"fragment-size" mapstructure:"fragment-size"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	FacetsTTL    time.Duration `json:"facets-ttl" mapstructure:"facets-ttl"`
	FacetsSize   int           `json:"facets-size" mapstructure:"facets-size"`
}

// LockOptions selects the cluster-visible reindex lock.
type LockOptions struct {
	Driver string `json:"driver" mapstructure:"driver"`
	// Key is the numeric advisory lock id (postgres).
	Key int64 `json:"key" mapstructure:"key"`
	// Name is the lock name (mysql GET_LOCK, redis key, etcd prefix).
	Name string `json:"name" mapstructure:"name"`
	// TTL bounds a redis lock whose holder crashed.
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
	FilePath string        `json:"file-path" mapstructure:"file-path"`
}

// AdminOptions 管理接口配置。
type AdminOptions struct {
	Token        string `json:"-" mapstructure:"token"`
	RequireToken bool   `json:"require-token" mapstructure:"require-token"`
}

// NewOptions creates the default domain options.
func NewOptions() *Options {
	return &Options{
		Store:  &StoreOptions{Driver: StorePostgres},
		Engine: &EngineOptions{Driver: EngineElasticsearch},
		Reindex: &ReindexOptions{
			Alias:        "discovery_chunks_current",
			IndexPrefix:  "discovery_chunks_v2",
			BatchSize:    500,
			ChunkSize:    400,
			ChunkOverlap: 60,
			Timeout:      10 * time.Minute,
		},
		Search: &SearchOptions{
			MaxHits:      100,
			FragmentSize: 150,
			Timeout:      10 * time.Second,
			FacetsTTL:    5 * time.Minute,
			FacetsSize:   16,
		},
		Lock: &LockOptions{
			Driver:   LockStore,
			Key:      42,
			Name:     "discovery:reindex",
			TTL:      15 * time.Minute,
			FilePath: os.TempDir() + "/discovery-reindex.lock",
		},
		Admin: &AdminOptions{},
	}
}

// AddFlags adds flags for the domain options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)

	fs.StringVar(&o.Store.Driver, p+"store.driver", o.Store.Driver, "Relational store driver (postgres, mysql, sqlite)")
	fs.BoolVar(&o.Store.AutoMigrate, p+"store.auto-migrate", o.Store.AutoMigrate, "Create entity tables on startup")
	fs.StringVar(&o.Engine.Driver, p+"engine.driver", o.Engine.Driver, "Search engine driver (elasticsearch, bleve)")

	fs.StringVar(&o.Reindex.Alias, p+"reindex.alias", o.Reindex.Alias, "Serving alias name")
	fs.StringVar(&o.Reindex.IndexPrefix, p+"reindex.index-prefix", o.Reindex.IndexPrefix, "Physical index name prefix")
	fs.IntVar(&o.Reindex.BatchSize, p+"reindex.batch-size", o.Reindex.BatchSize, "Documents per bulk request")
	fs.IntVar(&o.Reindex.ChunkSize, p+"reindex.chunk-size", o.Reindex.ChunkSize, "Maximum chunk length in characters")
	fs.IntVar(&o.Reindex.ChunkOverlap, p+"reindex.chunk-overlap", o.Reindex.ChunkOverlap, "Forward overlap between sliced windows")
	fs.DurationVar(&o.Reindex.Timeout, p+"reindex.timeout", o.Reindex.Timeout, "Upper bound of one reindex run")
	fs.DurationVar(&o.Reindex.Schedule, p+"reindex.schedule", o.Reindex.Schedule, "Periodic reindex interval (0 disables)")

	fs.IntVar(&o.Search.MaxHits, p+"search.max-hits", o.Search.MaxHits, "Maximum hits per search")
	fs.IntVar(&o.Search.FragmentSize, p+"search.fragment-size", o.Search.FragmentSize, "Highlight fragment size")
	fs.DurationVar(&o.Search.Timeout, p+"search.timeout", o.Search.Timeout, "Search engine call timeout")
	fs.DurationVar(&o.Search.FacetsTTL, p+"search.facets-ttl", o.Search.FacetsTTL, "Facet memo TTL")

	fs.StringVar(&o.Lock.Driver, p+"lock.driver", o.Lock.Driver, "Reindex lock driver (store, redis, etcd, file)")
	fs.Int64Var(&o.Lock.Key, p+"lock.key", o.Lock.Key, "Advisory lock id")
	fs.StringVar(&o.Lock.Name, p+"lock.name", o.Lock.Name, "Lock name")
	fs.DurationVar(&o.Lock.TTL, p+"lock.ttl", o.Lock.TTL, "Redis lock expiry")
	fs.StringVar(&o.Lock.FilePath, p+"lock.file-path", o.Lock.FilePath, "Lock file for the file driver")

	fs.StringVar(&o.Admin.Token, p+"admin.token", o.Admin.Token, "Admin token (prefer ADMIN_TOKEN env var)")
	fs.BoolVar(&o.Admin.RequireToken, p+"admin.require-token", o.Admin.RequireToken, "Require X-Admin-Token on admin routes")
}

// Complete reads the admin token from the environment and defaults the
// lock driver for stores without advisory locks.
func (o *Options) Complete() error {
	if o.Admin.Token == "" {
		o.Admin.Token = os.Getenv("ADMIN_TOKEN")
	}
	// sqlite 没有咨询锁，退化为单机文件锁
	if o.Store.Driver == StoreSQLite && o.Lock.Driver == LockStore {
		o.Lock.Driver = LockFile
	}
	return nil
}

// Validate validates the domain options.
func (o *Options) Validate() []error {
	var errs []error

	switch o.Store.Driver {
	case StorePostgres, StoreMySQL, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be postgres, mysql or sqlite, got %q", o.Store.Driver))
	}
	switch o.Engine.Driver {
	case EngineElasticsearch, EngineBleve:
	default:
		errs = append(errs, fmt.Errorf("engine.driver must be elasticsearch or bleve, got %q", o.Engine.Driver))
	}
	switch o.Lock.Driver {
	case LockStore, LockRedis, LockEtcd, LockFile:
	default:
		errs = append(errs, fmt.Errorf("lock.driver must be store, redis, etcd or file, got %q", o.Lock.Driver))
	}

	if o.Reindex.Alias == "" || o.Reindex.IndexPrefix == "" {
		errs = append(errs, fmt.Errorf("reindex.alias and reindex.index-prefix cannot be empty"))
	}
	if o.Reindex.Alias == o.Reindex.IndexPrefix {
		errs = append(errs, fmt.Errorf("reindex.alias must differ from reindex.index-prefix"))
	}
	if o.Reindex.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("reindex.batch-size must be positive"))
	}
	if o.Reindex.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("reindex.chunk-size must be positive"))
	}
	if o.Reindex.ChunkOverlap < 0 || o.Reindex.ChunkOverlap >= o.Reindex.ChunkSize {
		errs = append(errs, fmt.Errorf("reindex.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.Reindex.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("reindex.timeout must be positive"))
	}
	// redis 锁按 TTL 自动过期，运行中过期会让第二个重建并发执行
	if o.Lock.Driver == LockRedis && o.Lock.TTL <= o.Reindex.Timeout {
		errs = append(errs, fmt.Errorf("lock.ttl (%s) must exceed reindex.timeout (%s)", o.Lock.TTL, o.Reindex.Timeout))
	}
	if o.Search.MaxHits <= 0 {
		errs = append(errs, fmt.Errorf("search.max-hits must be positive"))
	}
	if o.Admin.RequireToken && o.Admin.Token == "" {
		errs = append(errs, fmt.Errorf("admin.token is required when admin.require-token is set"))
	}
	return errs
}
