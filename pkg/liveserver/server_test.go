package liveserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hedge_advisor/internal/advisor"
	"hedge_advisor/internal/hedge"
	"hedge_advisor/internal/infrastructure/health"
	"hedge_advisor/internal/journal"
	apperrors "hedge_advisor/pkg/errors"
	"hedge_advisor/pkg/logging"
	"hedge_advisor/pkg/telemetry"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	price float64
	err   error
}

func (f stubFeed) Price(ctx context.Context, symbol string) (float64, error) {
	return f.price, f.err
}

type testEnv struct {
	hub    *Hub
	svc    *advisor.Service
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, origins ...string) *testEnv {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	go hub.Run(ctx)

	svc := advisor.NewService(advisor.Options{
		Registry:      hedge.NewRegistry(),
		Journal:       journal.NewMemoryStore(20),
		Metrics:       &telemetry.MetricsHolder{},
		SweepMaxSteps: 100,
	}, logging.NewNopLogger())
	t.Cleanup(func() { _ = svc.Close() })

	server := NewServer(hub, svc, logging.NewNopLogger(), origins)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{hub: hub, svc: svc, server: server, http: ts}
}

func (e *testEnv) dial(t *testing.T, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.http.URL, "http")+"/ws", headers)
}

func (e *testEnv) post(t *testing.T, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(e.http.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

const symmetricBody = `{
	"simPrice": 100,
	"long": {"entry": 100, "size": 1000, "liquidation": 80},
	"short": {"entry": 100, "size": 1000, "liquidation": 120},
	"targetMargin": 0.5
}`

func TestServerRecommendEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.post(t, "/api/recommendations", symmetricBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "default", out["profile"])
	assert.InDelta(t, -1000, out["longDelta"], 1e-9)
	assert.InDelta(t, -1000, out["shortDelta"], 1e-9)
	assert.Equal(t, true, out["longActionable"])
	assert.NotEmpty(t, out["id"])

	resp, out = env.get(t, "/api/history?limit=5")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	entries, ok := out["entries"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entries, 1)
}

func TestServerRecommendEndpoint_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.post(t, "/api/recommendations", `{"simPrice": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "invalid JSON body")

	resp, out = env.post(t, "/api/recommendations", `{"long": {"size": -1}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "invalid input")

	resp, _ = env.get(t, "/api/recommendations")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}

func TestServerSweepEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := strings.TrimSuffix(strings.TrimSpace(symmetricBody), "}") + `, "from": 80, "to": 120, "steps": 5}`
	resp, out := env.post(t, "/api/sweep", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	points, ok := out["points"].([]interface{})
	require.True(t, ok)
	require.Len(t, points, 5)
	first := points[0].(map[string]interface{})
	assert.InDelta(t, 80, first["simPrice"], 1e-9)
	assert.Equal(t, false, first["longActionable"])

	body = strings.TrimSuffix(strings.TrimSpace(symmetricBody), "}") + `, "from": 80, "to": 120, "steps": 101}`
	resp, out = env.post(t, "/api/sweep", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "too many steps")
}

func TestServerProfilesEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.get(t, "/api/profiles")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{"default"}, out["profiles"])
}

func TestServerHistoryEndpoint_BadLimit(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := env.get(t, "/api/history")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, out["entries"])
}

func TestServerPriceEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/price?symbol=BTCUSDT")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	env.server.SetPriceFeed(stubFeed{price: 42000.5})
	resp, out := env.get(t, "/api/price?symbol=btcusdt")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BTCUSDT", out["symbol"])
	assert.Equal(t, 42000.5, out["price"])

	resp, _ = env.get(t, "/api/price?symbol=BTC/USDT")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.server.SetPriceFeed(stubFeed{err: apperrors.ErrPriceUnavailable})
	resp, _ = env.get(t, "/api/price?symbol=BTCUSDT")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServerHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.NotNil(t, out["clients"])
	pool, ok := out["sweep_pool"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, pool, "running_workers")
	assert.Contains(t, pool, "submitted_tasks")

	hm := health.NewHealthManager(nil, time.Second)
	hm.Register("journal", func(ctx context.Context) error { return errors.New("locked") })
	env.server.SetHealth(hm)

	resp, out = env.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", out["status"])
	assert.Equal(t, map[string]interface{}{"journal": "Unhealthy: locked"}, out["components"])
}

func TestServerMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/recommendations", symmetricBody)

	resp, err := http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, buf.String(), "hedge_advisor_api_requests_total")
}

func TestServerBroadcastsRecommendations(t *testing.T) {
	env := newTestEnv(t)

	ws, _, err := env.dial(t, "http://test.local")
	require.NoError(t, err)
	defer ws.Close()

	assert.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp, out := env.post(t, "/api/recommendations", symmetricBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, TypeRecommendation, msg.Type)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, out["id"], data["id"])
	assert.InDelta(t, -1000, data["longDelta"], 1e-9)

	ws.Close()
	assert.Eventually(t, func() bool { return env.hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServerMultipleClients(t *testing.T) {
	env := newTestEnv(t)

	conns := make([]*websocket.Conn, 5)
	for i := range conns {
		ws, _, err := env.dial(t, "http://test.local")
		require.NoError(t, err)
		defer ws.Close()
		conns[i] = ws
	}
	assert.Eventually(t, func() bool { return env.server.ClientCount() == 5 }, time.Second, 10*time.Millisecond)

	env.hub.Broadcast(NewMessage(TypePrice, map[string]interface{}{"symbol": "BTCUSDT", "price": 42000.0}))

	for _, ws := range conns {
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, ws.ReadJSON(&msg))
		assert.Equal(t, TypePrice, msg.Type)
	}
}

func TestServerStartStop(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, nil, nil, []string{"*"})

	done := make(chan error, 1)
	go func() { done <- server.Start(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestOriginValidation(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		wantOK  bool
	}{
		{"allowed origin", []string{"http://localhost:8090"}, "http://localhost:8090", true},
		{"second of several", []string{"http://a.test", "https://b.test"}, "https://b.test", true},
		{"unauthorized origin", []string{"http://localhost:8090"}, "http://evil.com", false},
		{"missing origin", []string{"http://localhost:8090"}, "", false},
		{"wildcard", []string{"*"}, "http://anything.test", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.allowed...)
			ws, resp, err := env.dial(t, tt.origin)
			if tt.wantOK {
				require.NoError(t, err)
				ws.Close()
				return
			}
			assert.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}
