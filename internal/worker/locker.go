package worker

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker guards a sweep so that only one process runs it at a time.
// TryLock never blocks; it reports false when another holder has the lock.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease in Redis: SET NX with a TTL and a random token.
type RedisLocker struct {
	client   *redis.Client
	key      string
	ttl      time.Duration
	newToken func() string

	mu    sync.Mutex
	token string
}

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl, newToken: uuid.NewString}
}

func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
	return true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
}

// MySQLLocker uses a named server lock.  GET_LOCK is bound to the session,
// so the lock holds a dedicated connection until Unlock.
type MySQLLocker struct {
	db   *sql.DB
	name string

	mu   sync.Mutex
	conn *sql.Conn
}

func NewMySQLLocker(db *sql.DB, name string) *MySQLLocker {
	return &MySQLLocker{db: db, name: name}
}

var errLockHeld = errors.New("lock already held by this process")

func (l *MySQLLocker) TryLock(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return false, errLockHeld
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", l.name).Scan(&got); err != nil {
		conn.Close()
		return false, err
	}
	if !got.Valid || got.Int64 != 1 {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *MySQLLocker) Unlock(ctx context.Context) error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	defer conn.Close()
	var released sql.NullInt64
	return conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.name).Scan(&released)
}
