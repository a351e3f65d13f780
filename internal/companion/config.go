package companion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/redis/go-redis/v9"
)

// Config configures the companion simulator process.
type Config struct {
	ID          string
	Addr        string
	Version     string
	ReplyDelay  time.Duration
	CORSOrigins []string
	Permit      []string
	// AdminToken guards the mutating admin routes when set.
	AdminToken string
	Redis      RedisConfig
	NATS       NATSConfig
}

// RedisConfig selects the redis permission store. An empty Addr keeps
// permissions in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NATSConfig enables the NATS listener when URL is set. App "*" answers every
// app.
type NATSConfig struct {
	URL string
	App string
}

// Companion simulator defaults for standalone runtime configuration.
func DefaultConfig() Config {
	return Config{
		ID:          "companion.local",
		Addr:        ":8787",
		Version:     protocol.DefaultLibraryVersion,
		ReplyDelay:  0,
		CORSOrigins: []string{"http://localhost:3000"},
		Permit:      []string{},
		Redis:       RedisConfig{Key: DefaultPermissionsKey},
		NATS:        NATSConfig{App: "*"},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("companion: addr is required")
	}
	if _, _, ok := parseVersion(c.Version); !ok {
		return fmt.Errorf("companion: version %q is not major.minor", c.Version)
	}
	if c.ReplyDelay < 0 {
		return fmt.Errorf("companion: reply_delay must be >= 0")
	}
	return nil
}

// OpenPermissions builds the configured store and grants the Permit list.
// The returned close func releases the redis client, if any.
func OpenPermissions(ctx context.Context, cfg Config) (PermissionStore, func() error, error) {
	var (
		store   PermissionStore
		closeFn = func() error { return nil }
	)
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("companion: redis %s: %w", addr, err)
		}
		store = NewRedisPermissions(rdb, cfg.Redis.Key)
		closeFn = rdb.Close
	} else {
		store = NewMemoryPermissions()
	}

	for _, app := range cfg.Permit {
		if strings.TrimSpace(app) == "" {
			continue
		}
		if err := store.SetPermitted(ctx, app, true); err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("companion: permit %q: %w", app, err)
		}
	}
	return store, closeFn, nil
}
