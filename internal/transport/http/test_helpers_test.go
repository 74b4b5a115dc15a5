package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/buzzline-server/internal/auth"
	"github.com/vovakirdan/buzzline-server/internal/config"
	"github.com/vovakirdan/buzzline-server/internal/core"
	"github.com/vovakirdan/buzzline-server/internal/proto"
	"github.com/vovakirdan/buzzline-server/internal/store"
	"github.com/vovakirdan/buzzline-server/internal/store/sqlite"
)

const testJWTSecret = "testsecret"

type testEnv struct {
	server   *httptest.Server
	registry *core.Registry
	verifier *auth.Verifier
	store    store.Store
}

func testConfig(mode string) config.Config {
	cfg := config.Default()
	cfg.Mode = mode
	cfg.JWTSecret = testJWTSecret
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.OAuth.FrontendCallbackURL = "https://front.example.com/auth/callback"
	cfg.OAuth.FrontendLoginURL = "https://front.example.com/login"
	return cfg
}

// startTestServer runs the full router against an in-memory store.
func startTestServer(t *testing.T, cfg config.Config, provider auth.Provider) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()

	mode := core.ModeIncludeSender
	if cfg.Mode == config.ModeAnonymous {
		mode = core.ModeExcludeSender
	}
	registry := core.NewRegistry(core.Options{
		Mode:      mode,
		QueueSize: cfg.SendQueueSize,
		Overflow:  core.OverflowPolicy(cfg.OverflowPolicy),
	}, &disabledLogger)

	verifier := auth.NewVerifier(&auth.JWTConfig{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL})
	authService := auth.NewService(verifier, provider, st)

	server := NewServer(registry, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, registry: registry, verifier: verifier, store: st}
}

func (e *testEnv) mint(t *testing.T, name, email string) string {
	t.Helper()
	token, err := e.verifier.Mint(core.Identity{Name: name, Email: email})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (e *testEnv) dial(ctx context.Context, t *testing.T, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
	if token != "" {
		wsURL += "?" + proto.TokenQueryParam + "=" + url.QueryEscape(token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func (e *testEnv) waitForPeers(t *testing.T, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.registry.Len() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d peers, registry has %d", n, e.registry.Len())
}

func readEnvelope(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.Envelope {
	t.Helper()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("unexpected frame type: %v", typ)
	}

	var env proto.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope %q: %v", data, err)
	}
	return env
}

// expectSilence asserts nothing arrives within d. The read timeout closes conn.
func expectSilence(t *testing.T, conn *websocket.Conn, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	if _, data, err := conn.Read(ctx); err == nil {
		t.Fatalf("expected no message, got %q", data)
	}
}
