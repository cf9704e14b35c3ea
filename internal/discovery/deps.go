package discoverysvc

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/discovery-search/internal/discovery/store"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine/bleve"
	"github.com/kart-io/discovery-search/internal/pkg/searchengine/elastic"
	"github.com/kart-io/discovery-search/pkg/component/database"
	"github.com/kart-io/discovery-search/pkg/component/elasticsearch"
	"github.com/kart-io/discovery-search/pkg/component/etcd"
	"github.com/kart-io/discovery-search/pkg/component/mysql"
	"github.com/kart-io/discovery-search/pkg/component/postgres"
	"github.com/kart-io/discovery-search/pkg/component/redis"
	"github.com/kart-io/discovery-search/pkg/component/sqlite"
	discoveryopts "github.com/kart-io/discovery-search/pkg/options/discovery"
)

// deps holds the connected backends. close releases them in reverse order.
type deps struct {
	db      *database.Client
	factory store.Factory
	engine  searchengine.Engine
	redis   *redis.Client
	etcd    *etcd.Client
	locker  store.Locker

	closers []func()
}

func (d *deps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// buildDeps connects every backend the configuration selects. On failure the
// already opened backends are closed.
func (cfg *Config) buildDeps(ctx context.Context) (_ *deps, err error) {
	d := &deps{}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	if d.db, err = cfg.openStore(ctx); err != nil {
		return nil, err
	}
	d.onClose(func() { _ = d.db.Close() })
	d.factory = store.NewFactory(d.db)
	logger.Infow("Store initialized", "driver", cfg.DiscoveryOptions.Store.Driver)

	if cfg.DiscoveryOptions.Store.AutoMigrate {
		if err = d.factory.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate store: %w", err)
		}
		logger.Info("Store schema migrated")
	}

	if d.engine, err = cfg.openEngine(ctx); err != nil {
		return nil, err
	}
	d.onClose(func() { _ = d.engine.Close() })
	logger.Infow("Search engine initialized", "driver", cfg.DiscoveryOptions.Engine.Driver)

	if cfg.needsRedis() {
		if d.redis, err = redis.New(ctx, cfg.RedisOptions); err != nil {
			if cfg.DiscoveryOptions.Lock.Driver == discoveryopts.LockRedis {
				return nil, fmt.Errorf("failed to initialize redis: %w", err)
			}
			// 缓存可降级，锁不可降级
			logger.Warnw("Failed to connect to redis, search cache will be disabled", "error", err.Error())
			d.redis, err = nil, nil
		} else {
			d.onClose(func() { _ = d.redis.Close() })
			logger.Infow("Redis client initialized", "addr", cfg.RedisOptions.Addr())
		}
	}

	if cfg.DiscoveryOptions.Lock.Driver == discoveryopts.LockEtcd {
		if d.etcd, err = etcd.New(ctx, cfg.EtcdOptions); err != nil {
			return nil, fmt.Errorf("failed to initialize etcd: %w", err)
		}
		d.onClose(func() { _ = d.etcd.Close() })
		logger.Infow("Etcd client initialized", "endpoints", cfg.EtcdOptions.Endpoints)
	}

	if d.locker, err = cfg.newLocker(d); err != nil {
		return nil, err
	}
	logger.Infow("Reindex lock initialized", "lock", d.locker.Name())
	return d, nil
}

func (cfg *Config) openStore(ctx context.Context) (*database.Client, error) {
	var (
		client *database.Client
		err    error
	)
	switch driver := cfg.DiscoveryOptions.Store.Driver; driver {
	case discoveryopts.StorePostgres:
		client, err = postgres.New(ctx, cfg.PostgresOptions)
	case discoveryopts.StoreMySQL:
		client, err = mysql.New(ctx, cfg.MySQLOptions)
	case discoveryopts.StoreSQLite:
		client, err = sqlite.New(ctx, cfg.SQLiteOptions)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return client, nil
}

func (cfg *Config) openEngine(ctx context.Context) (searchengine.Engine, error) {
	switch driver := cfg.DiscoveryOptions.Engine.Driver; driver {
	case discoveryopts.EngineElasticsearch:
		client, err := elasticsearch.New(cfg.ElasticsearchOptions)
		if err != nil {
			return nil, err
		}
		// 搜索引擎暂不可用时仍然启动，由 /health 报告
		if err := client.Ping(ctx); err != nil {
			logger.Warnw("Elasticsearch is not reachable yet", "addresses", cfg.ElasticsearchOptions.Addresses, "error", err.Error())
		}
		return elastic.New(client), nil
	case discoveryopts.EngineBleve:
		return bleve.New(cfg.BleveOptions.Dir)
	default:
		return nil, fmt.Errorf("unsupported engine driver %q", driver)
	}
}

func (cfg *Config) newLocker(d *deps) (store.Locker, error) {
	lock := cfg.DiscoveryOptions.Lock

	switch lock.Driver {
	case discoveryopts.LockStore:
		sqlDB, err := d.db.SQLDB()
		if err != nil {
			return nil, err
		}
		switch cfg.DiscoveryOptions.Store.Driver {
		case discoveryopts.StorePostgres:
			return store.NewPostgresLocker(sqlDB, lock.Key), nil
		case discoveryopts.StoreMySQL:
			return store.NewMySQLLocker(sqlDB, lock.Name), nil
		default:
			return nil, fmt.Errorf("store driver %q has no advisory lock, use lock.driver=file", cfg.DiscoveryOptions.Store.Driver)
		}
	case discoveryopts.LockRedis:
		return store.NewRedisLocker(d.redis.Client(), lock.Name, lock.TTL), nil
	case discoveryopts.LockEtcd:
		return store.NewEtcdLocker(d.etcd.Client(), lock.Name, int(d.etcd.LeaseTTL())), nil
	case discoveryopts.LockFile:
		return store.NewFileLocker(lock.FilePath), nil
	default:
		return nil, fmt.Errorf("unsupported lock driver %q", lock.Driver)
	}
}
