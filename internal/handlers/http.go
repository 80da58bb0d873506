package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iot-traffic-sim/internal/alerts"
	"iot-traffic-sim/internal/analytics"
	"iot-traffic-sim/internal/cache"
	"iot-traffic-sim/internal/format"
	"iot-traffic-sim/internal/log"
	"iot-traffic-sim/internal/metrics"
	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/registry"
	"iot-traffic-sim/internal/traffic"
)

// Deps are the components served over HTTP.
type Deps struct {
	// BaseContext parents loops started through the API; request contexts
	// end with the response.
	BaseContext context.Context
	Registry    *registry.Registry
	Simulator   *traffic.Simulator
	Alerts      *alerts.Scheduler
	Analytics   *analytics.Engine
	Store       cache.Store
	Hub         *Hub
	CostPerKWh  float64
	Now         func() time.Time
}

// Handler serves the dashboard API
type Handler struct {
	ctx        context.Context
	registry   *registry.Registry
	sim        *traffic.Simulator
	log        *traffic.Log
	alerts     *alerts.Scheduler
	analytics  *analytics.Engine
	store      cache.Store
	hub        *Hub
	costPerKWh float64
	now        func() time.Time
}

// NewHandler creates a handler
func NewHandler(d Deps) *Handler {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		ctx:        d.BaseContext,
		registry:   d.Registry,
		sim:        d.Simulator,
		log:        d.Simulator.Log(),
		alerts:     d.Alerts,
		analytics:  d.Analytics,
		store:      d.Store,
		hub:        d.Hub,
		costPerKWh: d.CostPerKWh,
		now:        d.Now,
	}
}

// Router builds the route table
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(instrument)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/devices", h.ListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices", h.CreateDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}", h.GetDevice).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", h.UpdateDevice).Methods(http.MethodPut)
	api.HandleFunc("/devices/{id}", h.DeleteDevice).Methods(http.MethodDelete)
	api.HandleFunc("/devices/{id}/power", h.TogglePower).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}/block", h.ToggleBlock).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}/traffic", h.DeviceTraffic).Methods(http.MethodGet)

	api.HandleFunc("/templates", h.ListTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates/{name}", h.CreateFromTemplate).Methods(http.MethodPost)

	api.HandleFunc("/real-devices", h.UpsertRealDevice).Methods(http.MethodPost)
	api.HandleFunc("/real-devices", h.ClearRealDevices).Methods(http.MethodDelete)

	api.HandleFunc("/power", h.GetPower).Methods(http.MethodGet)

	api.HandleFunc("/traffic", h.GetTraffic).Methods(http.MethodGet)
	api.HandleFunc("/traffic", h.ClearTraffic).Methods(http.MethodDelete)
	api.HandleFunc("/traffic/stats", h.GetTrafficStats).Methods(http.MethodGet)
	api.HandleFunc("/traffic/speeds", h.GetSpeeds).Methods(http.MethodGet)

	api.HandleFunc("/analytics", h.GetAnalytics).Methods(http.MethodGet)

	api.HandleFunc("/simulation", h.SimulationStatus).Methods(http.MethodGet)
	api.HandleFunc("/simulation/start", h.StartSimulation).Methods(http.MethodPost)
	api.HandleFunc("/simulation/stop", h.StopSimulation).Methods(http.MethodPost)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	if h.hub != nil {
		r.HandleFunc("/ws", h.hub.HandleWebSocket)
	}
	r.Handle("/prometheus", promhttp.Handler())

	return r
}

// ListDevices handles GET /api/devices
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []models.Device
	switch filter := r.URL.Query().Get("filter"); filter {
	case "", "all":
		devices = h.registry.All()
	case "online":
		devices = h.registry.Online()
	case "blocked":
		devices = h.registry.Blocked()
	case "controllable":
		devices = h.registry.Controllable()
	default:
		http.Error(w, "unknown filter "+strconv.Quote(filter), http.StatusBadRequest)
		return
	}

	if src := models.Source(r.URL.Query().Get("source")); src != "" {
		if src != models.SourceSimulated && src != models.SourceCustom && src != models.SourceReal {
			http.Error(w, "unknown source "+strconv.Quote(string(src)), http.StatusBadRequest)
			return
		}
		kept := devices[:0]
		for _, d := range devices {
			if d.Source == src {
				kept = append(kept, d)
			}
		}
		devices = kept
	}

	writeJSON(w, http.StatusOK, devices)
}

// GetDevice handles GET /api/devices/{id}
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := h.registry.Get(id)
	if !ok {
		writeError(w, &registry.NotFoundError{Kind: "device", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CreateDevice handles POST /api/devices
func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var in registry.DeviceInput
	if !decode(w, r, &in) {
		return
	}

	d, err := h.registry.Add(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// UpdateDevice handles PUT /api/devices/{id}
func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	var in registry.DeviceUpdate
	if !decode(w, r, &in) {
		return
	}

	d, err := h.registry.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DeleteDevice handles DELETE /api/devices/{id}
func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TogglePower handles POST /api/devices/{id}/power
func (h *Handler) TogglePower(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := h.registry.TogglePower(r.Context(), id)
	if !ok {
		if _, exists := h.registry.Get(id); !exists {
			writeError(w, &registry.NotFoundError{Kind: "device", ID: id})
			return
		}
		http.Error(w, "device is not controllable", http.StatusConflict)
		return
	}
	log.Info("Device power toggled", "id", d.ID, "status", d.Status)
	writeJSON(w, http.StatusOK, d)
}

// ToggleBlock handles POST /api/devices/{id}/block
func (h *Handler) ToggleBlock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := h.registry.ToggleBlock(r.Context(), id)
	if !ok {
		writeError(w, &registry.NotFoundError{Kind: "device", ID: id})
		return
	}
	log.Info("Device block toggled", "id", d.ID, "blocked", d.Blocked)
	writeJSON(w, http.StatusOK, d)
}

// DeviceTraffic handles GET /api/devices/{id}/traffic
func (h *Handler) DeviceTraffic(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.packetViews(h.log.ForDevice(mux.Vars(r)["id"], limit)))
}

// ListTemplates handles GET /api/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, registry.Templates())
}

// CreateFromTemplate handles POST /api/templates/{name}
func (h *Handler) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	d, err := h.registry.AddFromTemplate(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// UpsertRealDevice handles POST /api/real-devices
func (h *Handler) UpsertRealDevice(w http.ResponseWriter, r *http.Request) {
	var in registry.RealDeviceInput
	if !decode(w, r, &in) {
		return
	}

	d, created, err := h.registry.UpsertReal(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, d)
}

// ClearRealDevices handles DELETE /api/real-devices
func (h *Handler) ClearRealDevices(w http.ResponseWriter, r *http.Request) {
	h.registry.ClearReal(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GetPower handles GET /api/power
func (h *Handler) GetPower(w http.ResponseWriter, r *http.Request) {
	total := h.registry.TotalPower()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalWatts":         total,
		"estimatedDailyCost": analytics.DailyCost(total, h.costPerKWh),
	})
}

// PacketView is a packet with presentation strings
type PacketView struct {
	models.Packet
	SizeText            string `json:"sizeText"`
	Ago                 string `json:"ago"`
	ProtocolDescription string `json:"protocolDescription,omitempty"`
}

func (h *Handler) packetViews(packets []models.Packet) []PacketView {
	now := h.now()
	out := make([]PacketView, len(packets))
	for i, p := range packets {
		out[i] = PacketView{
			Packet:   p,
			SizeText: format.Bytes(float64(p.Size)),
			Ago:      format.TimeAgo(p.Timestamp, now),
		}
		if info, ok := traffic.LookupProtocol(p.Protocol); ok {
			out[i].ProtocolDescription = info.Description
		}
	}
	return out
}

// GetTraffic handles GET /api/traffic
func (h *Handler) GetTraffic(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.packetViews(h.log.Recent(limit)))
}

// ClearTraffic handles DELETE /api/traffic
func (h *Handler) ClearTraffic(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	metrics.TrafficLogSize.Set(0)
	log.Info("Traffic log cleared")
	w.WriteHeader(http.StatusNoContent)
}

// GetTrafficStats handles GET /api/traffic/stats
func (h *Handler) GetTrafficStats(w http.ResponseWriter, r *http.Request) {
	total := h.log.TotalTransferred()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":              h.log.Stats(),
		"totalTransferredKb": total,
		"totalTransferred":   format.Bytes(float64(total)),
		"logSize":            h.log.Len(),
		"logCapacity":        h.log.Capacity(),
	})
}

// GetSpeeds handles GET /api/traffic/speeds
func (h *Handler) GetSpeeds(w http.ResponseWriter, r *http.Request) {
	s := h.log.Speeds()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"download":     s.Download,
		"upload":       s.Upload,
		"downloadText": format.Speed(s.Download),
		"uploadText":   format.Speed(s.Upload),
	})
}

// GetAnalytics handles GET /api/analytics
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analytics.Latest())
}

func (h *Handler) simulationState() map[string]interface{} {
	return map[string]interface{}{
		"traffic":      h.sim.Running(),
		"alerts":       h.alerts.Running(),
		"analytics":    h.analytics.Running(),
		"nextAlertDue": h.alerts.NextDue(),
	}
}

// SimulationStatus handles GET /api/simulation
func (h *Handler) SimulationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.simulationState())
}

// StartSimulation handles POST /api/simulation/start[?component=traffic|alerts]
func (h *Handler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	component := r.URL.Query().Get("component")
	switch component {
	case "", "traffic", "alerts":
	default:
		http.Error(w, "unknown component "+strconv.Quote(component), http.StatusBadRequest)
		return
	}
	if component != "alerts" {
		h.sim.Start(h.ctx)
	}
	if component != "traffic" {
		h.alerts.Start(h.ctx)
	}
	writeJSON(w, http.StatusOK, h.simulationState())
}

// StopSimulation handles POST /api/simulation/stop[?component=traffic|alerts]
func (h *Handler) StopSimulation(w http.ResponseWriter, r *http.Request) {
	component := r.URL.Query().Get("component")
	switch component {
	case "", "traffic", "alerts":
	default:
		http.Error(w, "unknown component "+strconv.Quote(component), http.StatusBadRequest)
		return
	}
	if component != "alerts" {
		h.sim.Stop()
	}
	if component != "traffic" {
		h.alerts.Stop()
	}
	writeJSON(w, http.StatusOK, h.simulationState())
}

// poolStatser is implemented by stores backed by a connection pool.
type poolStatser interface {
	Stats() map[string]interface{}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeOK := h.store.Ping(ctx) == nil

	status := "healthy"
	httpStatus := http.StatusOK
	if !storeOK {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"status":    status,
		"store":     storeOK,
		"simulator": h.sim.Running(),
		"timestamp": h.now(),
	}
	if err := h.registry.LastPersistenceError(); err != nil {
		body["persistenceError"] = err.Error()
	}
	if h.hub != nil {
		body["clients"] = h.hub.Clients()
	}
	if ps, ok := h.store.(poolStatser); ok {
		body["storeStats"] = ps.Stats()
	}
	if h.analytics != nil {
		body["analyzer"] = h.analytics.Analyzer().GetStats()
	}
	writeJSON(w, httpStatus, body)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return traffic.DefaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "missing": verr.Missing})
	case errors.Is(err, registry.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		log.Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// instrument records request count and latency per route template
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}
