package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/dashlink/internal/companion"
	"github.com/danmuck/dashlink/internal/observability"
	"github.com/nats-io/nats.go"
)

func main() {
	configPath := flag.String("config", "", "companion config toml (defaults apply when empty)")
	flag.Parse()

	log := observability.InitLogger("companiond")

	cfg := companion.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			log.Error().Err(err).Str("path", *configPath).Msg("config rejected")
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	perms, closePerms, err := companion.OpenPermissions(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("permission store unavailable")
		os.Exit(1)
	}
	defer closePerms()

	handler := companion.NewHandler(companion.NewDevice(), perms, cfg.Version, log)

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.ID))
		if err != nil {
			log.Error().Err(err).Str("url", cfg.NATS.URL).Msg("nats connect failed")
			os.Exit(1)
		}
		defer nc.Drain()
		listener, err := companion.ServeNATS(ctx, nc, handler, cfg.NATS.App, log)
		if err != nil {
			log.Error().Err(err).Msg("nats subscribe failed")
			os.Exit(1)
		}
		defer listener.Close()
	}

	server := companion.NewServer(cfg, handler, log)
	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("companion server failed")
		os.Exit(1)
	}
}
