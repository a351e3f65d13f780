package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/dashlink/internal/companion"
	"github.com/danmuck/dashlink/internal/config"
	"github.com/danmuck/dashlink/internal/dash"
	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/logging"
	"github.com/danmuck/dashlink/internal/transport"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

type options struct {
	configPath string
	addr       string
	natsURL    string
	app        string
	timeout    time.Duration
	loopback   bool
	verbose    bool
	output     string
}

// resolve merges the config file with flag overrides.
func (o *options) resolve() (config.ClientConfig, error) {
	cfg := config.ClientConfig{}
	if o.configPath != "" {
		loaded, err := config.LoadClientConfig(o.configPath)
		if err != nil {
			return config.ClientConfig{}, err
		}
		cfg = loaded
	}
	if v := strings.TrimSpace(o.addr); v != "" {
		cfg.Addr = v
		cfg.Transport = config.TransportWebSocket
	}
	if v := strings.TrimSpace(o.natsURL); v != "" {
		cfg.NATSURL = v
		cfg.Transport = config.TransportNATS
	}
	if o.loopback {
		cfg.Transport = config.TransportLoopback
	}
	if v := strings.TrimSpace(o.app); v != "" {
		cfg.App = v
	}
	if o.timeout > 0 {
		cfg.ReplyTimeout = o.timeout.String()
	}
	if o.verbose {
		cfg.LogRequests = true
	}
	cfg = cfg.WithDefaults()
	return cfg, config.ValidateClientConfig(cfg)
}

type client struct {
	session *dash.Session
	timeout time.Duration
	closers []func()
}

func (c *client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// dial starts a loop, connects the configured transport and opens a session.
func dial(ctx context.Context, o *options) (*client, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, err
	}
	engCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	logging.ConfigureRuntime()
	log := logging.Component("dashctl")
	if !o.verbose {
		log = log.Level(zerolog.WarnLevel)
	}

	c := &client{timeout: engCfg.SendDelay + engCfg.ReplyTimeout + time.Second}
	loop := eventloop.New()
	go func() { _ = loop.Run(context.Background()) }()
	c.closers = append(c.closers, loop.Stop)

	tr, link, err := openTransport(ctx, cfg, loop, log, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	eng := dash.New(dash.Deps{
		Transport: tr,
		Link:      link,
		Scheduler: eventloop.NewLoopScheduler(loop),
		Logger:    &log,
	}, engCfg)
	session, err := dash.OpenSession(ctx, loop, eng, cfg.App, nil)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.session = session
	return c, nil
}

func openTransport(ctx context.Context, cfg config.ClientConfig, loop *eventloop.Loop, log zerolog.Logger, c *client) (transport.Transport, transport.LinkProbe, error) {
	switch cfg.Transport {
	case config.TransportLoopback:
		local, peer := transport.NewPipe(loop)
		perms := companion.NewMemoryPermissions()
		// the in-process companion trusts its only client
		if err := perms.SetPermitted(ctx, cfg.App, true); err != nil {
			return nil, nil, err
		}
		h := companion.NewHandler(companion.NewDevice(), perms, "", log)
		h.Attach(context.Background(), peer, eventloop.NewLoopScheduler(loop), 0, log)
		return local, local, nil

	case config.TransportNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("dashctl"))
		if err != nil {
			return nil, nil, fmt.Errorf("nats connect: %w", err)
		}
		c.closers = append(c.closers, nc.Close)
		pub, sub := transport.ClientSubjects(cfg.App)
		tr, err := transport.NewNATS(nc, pub, sub, loop, log)
		if err != nil {
			return nil, nil, fmt.Errorf("nats subscribe: %w", err)
		}
		c.closers = append(c.closers, func() { _ = tr.Close() })
		return tr, tr, nil

	default:
		ws, err := transport.DialWebSocket(ctx, cfg.Addr, loop, log)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.Addr, err)
		}
		c.closers = append(c.closers, func() { _ = ws.Close() })
		return ws, ws, nil
	}
}
