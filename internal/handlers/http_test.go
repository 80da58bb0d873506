package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-traffic-sim/internal/alerts"
	"iot-traffic-sim/internal/analytics"
	"iot-traffic-sim/internal/cache"
	"iot-traffic-sim/internal/events"
	"iot-traffic-sim/internal/metrics"
	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/registry"
	"iot-traffic-sim/internal/rng"
	"iot-traffic-sim/internal/traffic"
)

type testEnv struct {
	srv *httptest.Server
	reg *registry.Registry
	sim *traffic.Simulator
	bus *events.Bus
	hub *Hub
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWithStore(t, cache.NewMemoryStore(0))
}

func newEnvWithStore(t *testing.T, store cache.Store) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	src := rng.New(21)
	bus := events.NewBus()
	reg := registry.New(ctx, store, registry.WithRandom(src), registry.WithPublisher(bus))
	sim := traffic.NewSimulator(reg, traffic.NewGenerator(src, nil), traffic.NewLog(0), src, bus, time.Hour)
	sched := alerts.NewScheduler(reg, src, bus, alerts.Options{Interval: time.Hour})
	engine := analytics.NewEngine(reg, sim.Log(), src, bus, analytics.Options{CostPerKWh: 0.12})
	hub := NewHub()

	h := NewHandler(Deps{
		BaseContext: ctx,
		Registry:    reg,
		Simulator:   sim,
		Alerts:      sched,
		Analytics:   engine,
		Store:       store,
		Hub:         hub,
		CostPerKWh:  0.12,
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		sim.Stop()
		sched.Stop()
		hub.Close()
		srv.Close()
	})
	return &testEnv{srv: srv, reg: reg, sim: sim, bus: bus, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestListDevices(t *testing.T) {
	env := newEnv(t)

	var devices []models.Device
	resp := env.do(t, http.MethodGet, "/api/devices", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &devices)
	assert.Len(t, devices, 15)

	_, ok := env.reg.ToggleBlock(context.Background(), "tv-001")
	require.True(t, ok)

	resp = env.do(t, http.MethodGet, "/api/devices?filter=blocked", nil)
	decodeBody(t, resp, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "tv-001", devices[0].ID)

	resp = env.do(t, http.MethodGet, "/api/devices?filter=online", nil)
	decodeBody(t, resp, &devices)
	assert.Len(t, devices, 14)

	resp = env.do(t, http.MethodGet, "/api/devices?source=custom", nil)
	decodeBody(t, resp, &devices)
	assert.Empty(t, devices)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/devices?filter=nope", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/devices?source=nope", nil).StatusCode)
}

func TestCustomDeviceLifecycle(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/api/devices", map[string]string{"name": "Test", "type": "Sensor"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var verr struct {
		Error   string   `json:"error"`
		Missing []string `json:"missing"`
	}
	decodeBody(t, resp, &verr)
	assert.Equal(t, []string{"ip"}, verr.Missing)

	resp = env.do(t, http.MethodPost, "/api/devices", map[string]interface{}{
		"name": "Test", "type": "Sensor", "ip": "10.0.0.5", "powerWatts": 12,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Device
	decodeBody(t, resp, &created)
	assert.Equal(t, models.SourceCustom, created.Source)
	assert.Equal(t, models.StatusOnline, created.Status)

	resp = env.do(t, http.MethodGet, "/api/devices/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/devices/"+created.ID, map[string]interface{}{"powerWatts": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Device
	decodeBody(t, resp, &updated)
	assert.Zero(t, updated.PowerWatts)
	assert.Equal(t, "Test", updated.Name)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/api/devices/laptop-001", map[string]string{"name": "x"}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/devices/"+created.ID, "{").StatusCode)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/devices/"+created.ID, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/devices/"+created.ID, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/devices/"+created.ID, nil).StatusCode)
}

func TestToggles(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/api/devices/tv-001/power", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d models.Device
	decodeBody(t, resp, &d)
	assert.Equal(t, models.StatusOffline, d.Status)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/devices/laptop-001/power", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/devices/missing/power", nil).StatusCode)

	resp = env.do(t, http.MethodPost, "/api/devices/laptop-001/block", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &d)
	assert.True(t, d.Blocked)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/devices/missing/block", nil).StatusCode)
}

func TestTemplates(t *testing.T) {
	env := newEnv(t)

	var templates []registry.Template
	decodeBody(t, env.do(t, http.MethodGet, "/api/templates", nil), &templates)
	assert.Len(t, templates, 6)

	resp := env.do(t, http.MethodPost, "/api/templates/Smart%20Lock", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var d models.Device
	decodeBody(t, resp, &d)
	assert.Equal(t, "Smart Lock", d.Name)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/templates/Toaster", nil).StatusCode)
}

func TestRealDevices(t *testing.T) {
	env := newEnv(t)

	resp := env.do(t, http.MethodPost, "/api/real-devices", map[string]string{"ip": "192.168.1.50", "name": "Unknown"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/real-devices", map[string]string{"ip": "192.168.1.50", "name": "Printer"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d models.Device
	decodeBody(t, resp, &d)
	assert.Equal(t, "Printer", d.Name)
	assert.Len(t, env.reg.BySource(models.SourceReal), 1)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/real-devices", map[string]string{"name": "x"}).StatusCode)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/real-devices", nil).StatusCode)
	assert.Empty(t, env.reg.BySource(models.SourceReal))
}

func TestTrafficEndpoints(t *testing.T) {
	env := newEnv(t)
	for i := 0; i < 10; i++ {
		env.sim.Tick(context.Background())
	}

	var packets []PacketView
	resp := env.do(t, http.MethodGet, "/api/traffic?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &packets)
	require.Len(t, packets, 2)
	assert.NotEmpty(t, packets[0].ID)
	assert.True(t, strings.HasSuffix(packets[0].Ago, "ago"))
	for _, p := range packets {
		info, ok := traffic.LookupProtocol(p.Protocol)
		require.True(t, ok, p.Protocol)
		assert.Equal(t, info.Description, p.ProtocolDescription)
	}
	assert.Contains(t, packets[0].SizeText, "B")

	deviceID := packets[0].Device.ID
	decodeBody(t, env.do(t, http.MethodGet, "/api/devices/"+deviceID+"/traffic", nil), &packets)
	require.NotEmpty(t, packets)
	for _, p := range packets {
		assert.Equal(t, deviceID, p.Device.ID)
	}

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/traffic?limit=abc", nil).StatusCode)

	var speeds map[string]interface{}
	decodeBody(t, env.do(t, http.MethodGet, "/api/traffic/speeds", nil), &speeds)
	assert.Contains(t, speeds, "downloadText")

	var stats struct {
		Stats   models.TrafficStats `json:"stats"`
		Total   int64               `json:"totalTransferredKb"`
		LogSize int                 `json:"logSize"`
		LogCap  int                 `json:"logCapacity"`
	}
	decodeBody(t, env.do(t, http.MethodGet, "/api/traffic/stats", nil), &stats)
	assert.Positive(t, stats.Total)
	assert.Equal(t, env.sim.Log().Capacity(), stats.LogCap)
	assert.LessOrEqual(t, stats.LogSize, stats.LogCap)
	assert.NotEmpty(t, stats.Stats.ByDevice)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/traffic", nil).StatusCode)
	decodeBody(t, env.do(t, http.MethodGet, "/api/traffic/stats", nil), &stats)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.LogSize)
}

func TestPowerAndAnalytics(t *testing.T) {
	env := newEnv(t)

	var power map[string]float64
	decodeBody(t, env.do(t, http.MethodGet, "/api/power", nil), &power)
	assert.Equal(t, env.reg.TotalPower(), power["totalWatts"])
	assert.InDelta(t, env.reg.TotalPower()/1000*24*0.12, power["estimatedDailyCost"], 1e-9)

	var snap analytics.Snapshot
	resp := env.do(t, http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &snap)
	assert.NotEmpty(t, snap.Health.Status)
	assert.Equal(t, env.reg.TotalPower(), snap.Summary.TotalPowerWatts)
}

func TestSimulationControl(t *testing.T) {
	env := newEnv(t)

	var state map[string]interface{}
	decodeBody(t, env.do(t, http.MethodGet, "/api/simulation", nil), &state)
	assert.Equal(t, false, state["traffic"])

	decodeBody(t, env.do(t, http.MethodPost, "/api/simulation/start?component=traffic", nil), &state)
	assert.Equal(t, true, state["traffic"])
	assert.Equal(t, false, state["alerts"])

	decodeBody(t, env.do(t, http.MethodPost, "/api/simulation/start", nil), &state)
	assert.Equal(t, true, state["traffic"])
	assert.Equal(t, true, state["alerts"])

	decodeBody(t, env.do(t, http.MethodPost, "/api/simulation/stop", nil), &state)
	assert.Equal(t, false, state["traffic"])
	assert.Equal(t, false, state["alerts"])

	decodeBody(t, env.do(t, http.MethodPost, "/api/simulation/stop", nil), &state)
	assert.Equal(t, false, state["traffic"], "stopping twice is a no-op")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/simulation/start?component=x", nil).StatusCode)
}

func TestHealthAndPrometheus(t *testing.T) {
	env := newEnv(t)

	var health map[string]interface{}
	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["store"])
	assert.NotContains(t, health, "storeStats", "memory store has no pool")
	analyzer, ok := health["analyzer"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, analyzer, "window_size")
	assert.Contains(t, analyzer, "anomalies")

	resp = env.do(t, http.MethodGet, "/prometheus", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthReportsRedisPoolStats(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), mr.Addr(), "", 0, "test:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	env := newEnvWithStore(t, store)

	var health map[string]interface{}
	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &health)
	stats, ok := health["storeStats"].(map[string]interface{})
	require.True(t, ok, "redis backend exposes pool stats")
	assert.Contains(t, stats, "total_conns")
	assert.Contains(t, stats, "hits")
}

func TestInstrumentUsesRouteTemplate(t *testing.T) {
	env := newEnv(t)
	counter := metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/api/devices/{id}", "404")
	before := testutil.ToFloat64(counter)

	env.do(t, http.MethodGet, "/api/devices/does-not-exist", nil)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestWebSocketReceivesEvents(t *testing.T) {
	env := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := env.bus.Subscribe(16)
	defer sub.Close()
	go env.hub.Run(ctx, sub)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	env.sim.Tick(context.Background())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.TypeTick, msg.Type)

	var tick traffic.TickResult
	require.NoError(t, json.Unmarshal(msg.Payload, &tick))
	assert.Positive(t, tick.LogSize)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newEnv(t)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
