package companion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidApp = errors.New("companion: invalid app name")

// AppPermission is one known client app and whether it may change features.
type AppPermission struct {
	Name      string `json:"name"`
	Permitted bool   `json:"permitted"`
}

// PermissionStore remembers which client apps may change features.
type PermissionStore interface {
	// Register records app as not permitted if it has never been seen.
	// It reports whether the app was new.
	Register(ctx context.Context, app string) (bool, error)
	Permitted(ctx context.Context, app string) (bool, error)
	SetPermitted(ctx context.Context, app string, on bool) error
	List(ctx context.Context) ([]AppPermission, error)
}

type MemoryPermissions struct {
	mu   sync.RWMutex
	apps map[string]bool
}

func NewMemoryPermissions() *MemoryPermissions {
	return &MemoryPermissions{apps: make(map[string]bool)}
}

func (m *MemoryPermissions) Register(_ context.Context, app string) (bool, error) {
	key := strings.TrimSpace(app)
	if key == "" {
		return false, ErrInvalidApp
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[key]; ok {
		return false, nil
	}
	m.apps[key] = false
	return true, nil
}

func (m *MemoryPermissions) Permitted(_ context.Context, app string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apps[strings.TrimSpace(app)], nil
}

func (m *MemoryPermissions) SetPermitted(_ context.Context, app string, on bool) error {
	key := strings.TrimSpace(app)
	if key == "" {
		return ErrInvalidApp
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[key] = on
	return nil
}

func (m *MemoryPermissions) List(_ context.Context) ([]AppPermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AppPermission, 0, len(m.apps))
	for name, on := range m.apps {
		out = append(out, AppPermission{Name: name, Permitted: on})
	}
	sortApps(out)
	return out, nil
}

// RedisPermissions keeps every app in one hash: field is the app name, value
// is "1" or "0".
type RedisPermissions struct {
	rdb *redis.Client
	key string
}

const DefaultPermissionsKey = "dashlink:permissions"

func NewRedisPermissions(rdb *redis.Client, key string) *RedisPermissions {
	if strings.TrimSpace(key) == "" {
		key = DefaultPermissionsKey
	}
	return &RedisPermissions{rdb: rdb, key: key}
}

func (r *RedisPermissions) Register(ctx context.Context, app string) (bool, error) {
	field := strings.TrimSpace(app)
	if field == "" {
		return false, ErrInvalidApp
	}
	return r.rdb.HSetNX(ctx, r.key, field, "0").Result()
}

func (r *RedisPermissions) Permitted(ctx context.Context, app string) (bool, error) {
	v, err := r.rdb.HGet(ctx, r.key, strings.TrimSpace(app)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (r *RedisPermissions) SetPermitted(ctx context.Context, app string, on bool) error {
	field := strings.TrimSpace(app)
	if field == "" {
		return ErrInvalidApp
	}
	v := "0"
	if on {
		v = "1"
	}
	return r.rdb.HSet(ctx, r.key, field, v).Err()
}

func (r *RedisPermissions) List(ctx context.Context) ([]AppPermission, error) {
	all, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AppPermission, 0, len(all))
	for name, v := range all {
		out = append(out, AppPermission{Name: name, Permitted: v == "1"})
	}
	sortApps(out)
	return out, nil
}

func sortApps(apps []AppPermission) {
	sort.Slice(apps, func(i, j int) bool {
		return apps[i].Name < apps[j].Name
	})
}
