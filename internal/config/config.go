package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ClientConfig is the dashctl side: which companion to reach and how the
// engine paces its exchanges.
type ClientConfig struct {
	App            string `toml:"app"`
	Transport      string `toml:"transport"`
	Addr           string `toml:"addr"`
	NATSURL        string `toml:"nats_url"`
	SendDelay      string `toml:"send_delay"`
	ReplyTimeout   string `toml:"reply_timeout"`
	LibraryVersion string `toml:"library_version"`
	LogRequests    bool   `toml:"log_requests"`
}

type CompanionConfig struct {
	ID          string      `toml:"id"`
	Addr        string      `toml:"addr"`
	Version     string      `toml:"version"`
	ReplyDelay  string      `toml:"reply_delay"`
	CorsOrigins []string    `toml:"cors_origins"`
	Permit      []string    `toml:"permit"`
	AdminToken  string      `toml:"admin_token"`
	Redis       RedisConfig `toml:"redis"`
	NATS        NATSConfig  `toml:"nats"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Key      string `toml:"key"`
}

type NATSConfig struct {
	URL string `toml:"url"`
	App string `toml:"app"`
}

const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
	TransportLoopback  = "loopback"
)

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	cfg = cfg.WithDefaults()
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// WithDefaults fills every unset field.
func (c ClientConfig) WithDefaults() ClientConfig {
	if strings.TrimSpace(c.App) == "" {
		c.App = "dashctl"
	}
	if strings.TrimSpace(c.Transport) == "" {
		c.Transport = TransportWebSocket
	}
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = "ws://localhost:8787/ws"
	}
	if strings.TrimSpace(c.SendDelay) == "" {
		c.SendDelay = "200ms"
	}
	if strings.TrimSpace(c.ReplyTimeout) == "" {
		c.ReplyTimeout = "10s"
	}
	return c
}

func LoadCompanionConfig(path string) (CompanionConfig, error) {
	var cfg CompanionConfig
	if err := loadToml(path, &cfg); err != nil {
		return CompanionConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "companion.local"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	if err := ValidateCompanionConfig(cfg); err != nil {
		return CompanionConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.App) == "" {
		return fmt.Errorf("client config missing app")
	}
	switch cfg.Transport {
	case TransportWebSocket:
		if !strings.HasPrefix(cfg.Addr, "ws://") && !strings.HasPrefix(cfg.Addr, "wss://") {
			return fmt.Errorf("client config addr must be a ws:// or wss:// url")
		}
	case TransportNATS:
		if strings.TrimSpace(cfg.NATSURL) == "" {
			return fmt.Errorf("client config nats_url required for nats transport")
		}
	case TransportLoopback:
	default:
		return fmt.Errorf("client config unknown transport %q", cfg.Transport)
	}
	if _, err := parseDuration("send_delay", cfg.SendDelay, true); err != nil {
		return err
	}
	if _, err := parseDuration("reply_timeout", cfg.ReplyTimeout, false); err != nil {
		return err
	}
	return nil
}

func ValidateCompanionConfig(cfg CompanionConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("companion config missing id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("companion config missing addr")
	}
	if strings.TrimSpace(cfg.ReplyDelay) != "" {
		if _, err := parseDuration("reply_delay", cfg.ReplyDelay, true); err != nil {
			return err
		}
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("companion config redis.db must be >= 0")
	}
	return nil
}

func parseDuration(field, raw string, zeroOK bool) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d < 0 || (!zeroOK && d == 0) {
		return 0, fmt.Errorf("%s out of range: %s", field, raw)
	}
	return d, nil
}
