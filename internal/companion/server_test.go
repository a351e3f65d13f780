package companion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/dashlink/internal/dash"
	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/logging"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/danmuck/dashlink/internal/testutil/testlog"
	"github.com/danmuck/dashlink/internal/transport"
	"github.com/gin-gonic/gin"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	// session goroutines can outlive the test, so avoid the t.Log writer
	log := logging.Component("companion-test")
	cfg := DefaultConfig()
	cfg.ID = "companion-test"
	s := NewServer(cfg, NewHandler(NewDevice(), NewMemoryPermissions(), cfg.Version, log), log)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.CloseSessions()
		ts.Close()
	})
	return s, ts
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res.StatusCode
}

func TestServerHealthAndAdminRoutes(t *testing.T) {
	_, ts := newTestServer(t)

	var health map[string]any
	if code := doJSON(t, http.MethodGet, ts.URL+"/health", "", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("unexpected health code=%d body=%v", code, health)
	}

	var feat map[string]string
	if code := doJSON(t, http.MethodPut, ts.URL+"/features/hot_spot", `{"state":"on"}`, &feat); code != http.StatusOK || feat["state"] != "On" {
		t.Fatalf("unexpected feature update code=%d body=%v", code, feat)
	}
	if code := doJSON(t, http.MethodPut, ts.URL+"/features/ringer", `{"state":"on"}`, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unsupported ringer state, got %d", code)
	}
	if code := doJSON(t, http.MethodPut, ts.URL+"/features/toaster", `{"state":"on"}`, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown feature, got %d", code)
	}

	if code := doJSON(t, http.MethodPut, ts.URL+"/data/battery_percent", `{"int":12}`, nil); code != http.StatusOK {
		t.Fatalf("unexpected data update code=%d", code)
	}
	if code := doJSON(t, http.MethodPut, ts.URL+"/data/battery_percent", `{"text":"full"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for shape mismatch, got %d", code)
	}

	var device struct {
		Data     map[string]string `json:"data"`
		Features map[string]string `json:"features"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/device", "", &device)
	if device.Features["HotSpot"] != "On" || !strings.Contains(device.Data["BatteryPercent"], "12") {
		t.Fatalf("unexpected device=%+v", device)
	}

	if code := doJSON(t, http.MethodPut, ts.URL+"/apps/face/permission", `{}`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without permitted field, got %d", code)
	}
	if code := doJSON(t, http.MethodPut, ts.URL+"/apps/face/permission", `{"permitted":true}`, nil); code != http.StatusOK {
		t.Fatalf("unexpected permission update code=%d", code)
	}
	var apps struct {
		Apps []AppPermission `json:"apps"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/apps", "", &apps)
	if len(apps.Apps) != 1 || !apps.Apps[0].Permitted {
		t.Fatalf("unexpected apps=%+v", apps)
	}
}

func TestServerAdminTokenGuardsWrites(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	log := logging.Component("companion-test")
	cfg := DefaultConfig()
	cfg.AdminToken = "s3cret"
	s := NewServer(cfg, NewHandler(NewDevice(), NewMemoryPermissions(), cfg.Version, log), log)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	if code := doJSON(t, http.MethodPut, ts.URL+"/apps/face/permission", `{"permitted":true}`, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/apps/face/permission", strings.NewReader(`{"permitted":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer s3cret")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.StatusCode)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/apps", "", nil); code != http.StatusOK {
		t.Fatalf("reads stay open, got %d", code)
	}
}

func TestServerWebSocketSessionDrivesEngine(t *testing.T) {
	s, ts := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loop := eventloop.New()
	go func() { _ = loop.Run(context.Background()) }()
	defer loop.Stop()

	log := logging.Component("dash-test")
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, err := transport.DialWebSocket(ctx, wsURL, loop, log)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	cfg := dash.DefaultConfig()
	cfg.SendDelay = time.Millisecond
	cfg.ReplyTimeout = 2 * time.Second
	eng := dash.New(dash.Deps{Transport: ws, Link: ws, Scheduler: eventloop.NewLoopScheduler(loop), Logger: &log}, cfg)
	session, err := dash.OpenSession(ctx, loop, eng, "face", nil)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	data, err := session.GetData(ctx, protocol.DataBatteryPercent)
	if err != nil || data.Value.Int != 87 {
		t.Fatalf("unexpected data=%+v err=%v", data, err)
	}
	if len(s.Sessions()) != 1 {
		t.Fatalf("expected one tracked session, got %+v", s.Sessions())
	}

	if _, err := session.SetFeature(ctx, protocol.FeatureWifi, protocol.FeatureStateOff); !errors.Is(err, dash.ErrNoPermission) {
		t.Fatalf("expected ErrNoPermission, got %v", err)
	}
	if code := doJSON(t, http.MethodPut, ts.URL+"/apps/face/permission", `{"permitted":true}`, nil); code != http.StatusOK {
		t.Fatalf("grant failed code=%d", code)
	}
	feat, err := session.SetFeature(ctx, protocol.FeatureWifi, protocol.FeatureStateOff)
	if err != nil || feat.State != protocol.FeatureStateOff {
		t.Fatalf("unexpected feature=%+v err=%v", feat, err)
	}

	code, err := session.Check(ctx)
	if err != nil || code != protocol.ErrorSuccess {
		t.Fatalf("unexpected check code=%s err=%v", code, err)
	}
}
