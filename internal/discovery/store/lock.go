package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// Locker is a non-blocking mutual exclusion primitive visible to every
// replica of the service.
type Locker interface {
	// TryLock reports whether the lock was acquired. It never waits.
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases a held lock. Releasing a lock that is not held is a no-op.
	Unlock(ctx context.Context) error
	Name() string
}

var (
	_ Locker = (*SQLLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*EtcdLocker)(nil)
	_ Locker = (*FileLocker)(nil)
)

// ============================================================================
// 关系库会话锁 (postgres advisory lock / mysql GET_LOCK)
// ============================================================================

// SQLLocker holds a session-scoped lock on a pinned connection. The lock
// lives as long as that connection, so a crashed holder releases it.
type SQLLocker struct {
	mu        sync.Mutex
	db        *sql.DB
	name      string
	lockSQL   string
	unlockSQL string
	arg       interface{}
	conn      *sql.Conn
}

// NewPostgresLocker returns a locker backed by pg_try_advisory_lock(key).
func NewPostgresLocker(db *sql.DB, key int64) *SQLLocker {
	return &SQLLocker{
		db:        db,
		name:      "postgres-advisory",
		lockSQL:   "SELECT pg_try_advisory_lock($1)",
		unlockSQL: "SELECT pg_advisory_unlock($1)",
		arg:       key,
	}
}

// NewMySQLLocker returns a locker backed by GET_LOCK(name, 0).
func NewMySQLLocker(db *sql.DB, name string) *SQLLocker {
	return &SQLLocker{
		db:        db,
		name:      "mysql-get-lock",
		lockSQL:   "SELECT COALESCE(GET_LOCK(?, 0), 0) = 1",
		unlockSQL: "SELECT RELEASE_LOCK(?)",
		arg:       name,
	}
}

// TryLock implements Locker.
func (l *SQLLocker) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to pin lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, l.lockSQL, l.arg).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to acquire %s: %w", l.name, err)
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Unlock implements Locker.
func (l *SQLLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil

	_, err := conn.ExecContext(ctx, l.unlockSQL, l.arg)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to release %s: %w", l.name, err)
	}
	return nil
}

// Name implements Locker.
func (l *SQLLocker) Name() string { return l.name }

// ============================================================================
// Redis
// ============================================================================

// 只有持有者本人才能删除
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX PX lock with an owner token.
type RedisLocker struct {
	mu     sync.Mutex
	client goredis.UniversalClient
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLocker creates a redis lock on key. ttl bounds a crashed holder.
func NewRedisLocker(client goredis.UniversalClient, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl}
}

// TryLock implements Locker.
func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" {
		return false, nil
	}

	token := ulid.Make().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire redis lock %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Unlock implements Locker.
func (l *RedisLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""

	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release redis lock %s: %w", l.key, err)
	}
	return nil
}

// Name implements Locker.
func (l *RedisLocker) Name() string { return "redis" }

// ============================================================================
// etcd
// ============================================================================

// EtcdLocker uses a concurrency mutex bound to a leased session.
type EtcdLocker struct {
	mu      sync.Mutex
	client  *clientv3.Client
	prefix  string
	ttl     int
	session *concurrency.Session
	mutex   *concurrency.Mutex
}

// NewEtcdLocker creates an etcd lock under prefix. ttlSeconds is the lease TTL.
func NewEtcdLocker(client *clientv3.Client, prefix string, ttlSeconds int) *EtcdLocker {
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &EtcdLocker{client: client, prefix: prefix, ttl: ttlSeconds}
}

// TryLock implements Locker.
func (l *EtcdLocker) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mutex != nil {
		return false, nil
	}

	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(l.ttl))
	if err != nil {
		return false, fmt.Errorf("failed to open etcd session: %w", err)
	}

	mutex := concurrency.NewMutex(session, l.prefix)
	if err := mutex.TryLock(ctx); err != nil {
		_ = session.Close()
		if errors.Is(err, concurrency.ErrLocked) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire etcd lock %s: %w", l.prefix, err)
	}

	l.session = session
	l.mutex = mutex
	return true, nil
}

// Unlock implements Locker.
func (l *EtcdLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mutex == nil {
		return nil
	}
	mutex, session := l.mutex, l.session
	l.mutex, l.session = nil, nil

	err := mutex.Unlock(ctx)
	if cerr := session.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to release etcd lock %s: %w", l.prefix, err)
	}
	return nil
}

// Name implements Locker.
func (l *EtcdLocker) Name() string { return "etcd" }

// ============================================================================
// 本地文件锁 (单机部署)
// ============================================================================

// FileLocker is an flock(2) lock for single host deployments.
type FileLocker struct {
	lock *flock.Flock
}

// NewFileLocker creates a file lock at path.
func NewFileLocker(path string) *FileLocker {
	return &FileLocker{lock: flock.New(path)}
}

// TryLock implements Locker.
func (l *FileLocker) TryLock(_ context.Context) (bool, error) {
	if l.lock.Locked() {
		return false, nil
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire file lock %s: %w", l.lock.Path(), err)
	}
	return ok, nil
}

// Unlock implements Locker.
func (l *FileLocker) Unlock(_ context.Context) error {
	if !l.lock.Locked() {
		return nil
	}
	return l.lock.Unlock()
}

// Name implements Locker.
func (l *FileLocker) Name() string { return "file" }
