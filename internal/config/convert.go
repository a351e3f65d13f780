package config

import (
	"strings"

	"github.com/danmuck/dashlink/internal/companion"
	"github.com/danmuck/dashlink/internal/dash"
)

// EngineConfig converts the file form into engine settings.
func (c ClientConfig) EngineConfig() (dash.Config, error) {
	cfg := dash.DefaultConfig()
	c = c.WithDefaults()
	d, err := parseDuration("send_delay", c.SendDelay, true)
	if err != nil {
		return dash.Config{}, err
	}
	cfg.SendDelay = d
	if d, err = parseDuration("reply_timeout", c.ReplyTimeout, false); err != nil {
		return dash.Config{}, err
	}
	cfg.ReplyTimeout = d
	if v := strings.TrimSpace(c.LibraryVersion); v != "" {
		cfg.LibraryVersion = v
	}
	cfg.LogRequests = c.LogRequests
	return cfg, nil
}

// Companion converts the file form into simulator settings. Unset fields keep
// companion.DefaultConfig values.
func (c CompanionConfig) Companion() (companion.Config, error) {
	cfg := companion.DefaultConfig()
	if v := strings.TrimSpace(c.ID); v != "" {
		cfg.ID = v
	}
	if v := strings.TrimSpace(c.Addr); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(c.Version); v != "" {
		cfg.Version = v
	}
	if strings.TrimSpace(c.ReplyDelay) != "" {
		d, err := parseDuration("reply_delay", c.ReplyDelay, true)
		if err != nil {
			return companion.Config{}, err
		}
		cfg.ReplyDelay = d
	}
	if len(c.CorsOrigins) > 0 {
		cfg.CORSOrigins = c.CorsOrigins
	}
	cfg.Permit = append(cfg.Permit, c.Permit...)
	cfg.AdminToken = strings.TrimSpace(c.AdminToken)
	cfg.Redis.Addr = c.Redis.Addr
	cfg.Redis.Password = c.Redis.Password
	cfg.Redis.DB = c.Redis.DB
	if v := strings.TrimSpace(c.Redis.Key); v != "" {
		cfg.Redis.Key = v
	}
	cfg.NATS.URL = c.NATS.URL
	if v := strings.TrimSpace(c.NATS.App); v != "" {
		cfg.NATS.App = v
	}
	return cfg, cfg.Validate()
}
