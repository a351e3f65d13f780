package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/dashlink/internal/companion"
)

type fileConfig struct {
	ID          string   `toml:"id"`
	Addr        string   `toml:"addr"`
	Version     string   `toml:"version"`
	ReplyDelay  string   `toml:"reply_delay"`
	CorsOrigins []string `toml:"cors_origins"`
	Permit      []string `toml:"permit"`
	AdminToken  string   `toml:"admin_token"`
	Redis       struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Key      string `toml:"key"`
	} `toml:"redis"`
	NATS struct {
		URL string `toml:"url"`
		App string `toml:"app"`
	} `toml:"nats"`
}

func loadConfig(path string) (companion.Config, error) {
	cfg := companion.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return companion.Config{}, fmt.Errorf("load companion config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("version") {
		cfg.Version = strings.TrimSpace(raw.Version)
	}
	if meta.IsDefined("reply_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReplyDelay))
		if err != nil {
			return companion.Config{}, fmt.Errorf("parse reply_delay: %w", err)
		}
		cfg.ReplyDelay = d
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("permit") {
		cfg.Permit = normalizeList(raw.Permit)
	}

	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	if meta.IsDefined("redis", "addr") {
		cfg.Redis.Addr = strings.TrimSpace(raw.Redis.Addr)
	}
	if meta.IsDefined("redis", "password") {
		cfg.Redis.Password = raw.Redis.Password
	}
	if meta.IsDefined("redis", "db") {
		cfg.Redis.DB = raw.Redis.DB
	}
	if meta.IsDefined("redis", "key") {
		cfg.Redis.Key = strings.TrimSpace(raw.Redis.Key)
	}

	if meta.IsDefined("nats", "url") {
		cfg.NATS.URL = strings.TrimSpace(raw.NATS.URL)
	}
	if meta.IsDefined("nats", "app") {
		cfg.NATS.App = strings.TrimSpace(raw.NATS.App)
	}

	if err := cfg.Validate(); err != nil {
		return companion.Config{}, err
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
