package companion

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/dashlink/internal/auth"
	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/observability"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/danmuck/dashlink/internal/transport"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

// Server exposes the simulator over HTTP: one websocket endpoint for the Dash
// exchange and a small admin API.
type Server struct {
	cfg      Config
	handler  *Handler
	router   *gin.Engine
	log      zerolog.Logger
	upgrader websocket.Upgrader
	started  time.Time

	mu       sync.Mutex
	sessions map[string]SessionInfo

	closing   chan struct{}
	closeOnce sync.Once
}

// SessionInfo describes one connected websocket client.
type SessionInfo struct {
	ID        string    `json:"id"`
	Remote    string    `json:"remote"`
	Connected time.Time `json:"connected"`
}

func NewServer(cfg Config, h *Handler, log zerolog.Logger) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(log))
	r.Use(observability.RequestMetricsMiddleware(cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "PUT"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		handler:  h,
		router:   r,
		log:      log.With().Str("companion", cfg.ID).Logger(),
		started:  time.Now(),
		sessions: make(map[string]SessionInfo),
		closing:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"companion": s.cfg.ID,
			"protocol":  s.handler.version,
			"version":   version,
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws", s.serveWS)
	s.router.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": s.Sessions()})
	})

	s.router.GET("/apps", func(c *gin.Context) {
		apps, err := s.handler.perms.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"apps": apps})
	})
	admin := s.router.Group("", auth.Bearer(s.adminValidator()))
	admin.PUT("/apps/:name/permission", func(c *gin.Context) {
		var body struct {
			Permitted *bool `json:"permitted"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Permitted == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"permitted\": bool}"})
			return
		}
		name := c.Param("name")
		if err := s.handler.perms.SetPermitted(c.Request.Context(), name, *body.Permitted); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrInvalidApp) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		s.log.Info().Str("app", name).Bool("permitted", *body.Permitted).Msg("permission changed")
		c.JSON(http.StatusOK, AppPermission{Name: name, Permitted: *body.Permitted})
	})

	s.router.GET("/device", func(c *gin.Context) {
		data, features := s.handler.device.Snapshot()
		c.JSON(http.StatusOK, gin.H{"data": data, "features": features})
	})
	admin.PUT("/features/:kind", func(c *gin.Context) {
		kind, err := protocol.ParseFeatureKind(c.Param("kind"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		var body struct {
			State string `json:"state"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		state, err := protocol.ParseFeatureState(body.State)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		got, err := s.handler.device.SetFeature(kind, state)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "state": got.String()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"feature": kind.String(), "state": got.String()})
	})
	admin.PUT("/data/:kind", func(c *gin.Context) {
		kind, err := protocol.ParseDataKind(c.Param("kind"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		var body struct {
			Int  *int32  `json:"int"`
			Text *string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var v protocol.DataValue
		switch {
		case kind.Shape() == protocol.ShapeInteger && body.Int != nil:
			v = protocol.IntValue(kind, *body.Int)
		case kind.Shape() == protocol.ShapeText && body.Text != nil:
			v = protocol.TextValue(kind, *body.Text)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": protocol.ErrValueShapeMismatch.Error(), "shape": kind.Shape().String()})
			return
		}
		if err := s.handler.device.SetData(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": kind.String(), "value": v.String()})
	})
}

// adminValidator is nil when no admin token is configured.
func (s *Server) adminValidator() auth.Validator {
	if s.cfg.AdminToken == "" {
		return nil
	}
	return auth.StaticToken{Token: s.cfg.AdminToken}
}

// serveWS runs one Dash session until the client goes away or the request
// context ends. Each session gets its own loop so replies are serialized.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	info := SessionInfo{ID: uuid.NewString(), Remote: conn.RemoteAddr().String(), Connected: time.Now()}
	log := s.log.With().Str("session", info.ID).Logger()
	s.track(info)
	defer s.untrack(info.ID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	loop := eventloop.New()
	go func() { _ = loop.Run(ctx) }()
	defer loop.Stop()

	ws := transport.NewWebSocket(conn, loop, log)
	s.handler.Attach(ctx, ws, eventloop.NewLoopScheduler(loop), s.cfg.ReplyDelay, log)
	ws.Start()
	log.Info().Str("remote", info.Remote).Msg("session opened")

	select {
	case <-ws.Done():
	case <-ctx.Done():
	case <-s.closing:
	}
	_ = ws.Close()
	log.Info().Dur("duration", time.Since(info.Connected)).Msg("session closed")
}

func (s *Server) track(info SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[info.ID] = info
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, info := range s.sessions {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Connected.Before(out[j].Connected) })
	return out
}

// CloseSessions ends every open websocket session.
func (s *Server) CloseSessions() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("companion listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// hijacked websocket connections are not tracked by Shutdown
	s.CloseSessions()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("companion stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
