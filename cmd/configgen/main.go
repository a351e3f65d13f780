package main

import (
	"flag"
	"os"

	"github.com/danmuck/dashlink/internal/config"
	"github.com/danmuck/dashlink/internal/logging"
)

func defaultPath(kind string) (string, bool) {
	switch kind {
	case "client":
		return "cmd/dashctl/config.toml", true
	case "companion":
		return "cmd/companiond/config.toml", true
	default:
		return "", false
	}
}

func main() {
	kind := flag.String("kind", "companion", "config kind: client|companion")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.Component("configgen")

	fallback, ok := defaultPath(*kind)
	if !ok {
		log.Error().Str("kind", *kind).Msg("unknown kind")
		os.Exit(2)
	}

	if *validate {
		path := *input
		if path == "" {
			path = fallback
		}
		if err := config.Validate(path, *kind); err != nil {
			log.Error().Err(err).Str("path", path).Msg("validation failed")
			os.Exit(1)
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		target = fallback
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Error().Err(err).Str("path", target).Msg("write failed")
		os.Exit(1)
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}
