// Package discoverysvc assembles the discovery search service: the store,
// the search engine, the reindex lock, the biz services and the HTTP server.
package discoverysvc

import (
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

// Name is the name of the application.
const Name = "discovery-search"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions          *httpopts.Options
	LogOptions           *logopts.Options
	PostgresOptions      *postgresopts.Options
	MySQLOptions         *mysqlopts.Options
	SQLiteOptions        *sqliteopts.Options
	RedisOptions         *redisopts.Options
	CacheOptions         *cacheopts.Options
	ElasticsearchOptions *esopts.Options
	BleveOptions         *bleveopts.Options
	EtcdOptions          *etcdopts.Options
	PoolOptions          *poolopts.Options
	TracingOptions       *tracingopts.Options
	DiscoveryOptions     *discoveryopts.Options
}

// needsRedis reports whether any component uses the redis connection.
func (cfg *Config) needsRedis() bool {
	return cfg.CacheOptions.Enabled || cfg.DiscoveryOptions.Lock.Driver == discoveryopts.LockRedis
}
