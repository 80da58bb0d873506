package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal HTTP requests by method, endpoint and status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// PacketsGenerated simulated traffic events
	PacketsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sim_packets_generated_total",
			Help: "Total number of simulated traffic events",
		},
		[]string{"protocol", "direction"},
	)

	// KilobytesTransferred cumulative simulated volume
	KilobytesTransferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sim_transferred_kilobytes_total",
			Help: "Total simulated kilobytes transferred",
		},
	)

	// TrafficLogSize entries currently held by the traffic log
	TrafficLogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sim_traffic_log_entries",
			Help: "Number of entries in the bounded traffic log",
		},
	)

	// CurrentSpeed smoothed per-tick volume
	CurrentSpeed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sim_current_speed_kilobytes",
			Help: "Exponentially smoothed kilobytes per tick",
		},
		[]string{"direction"},
	)

	// AlertsEmitted synthetic security alerts
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sim_alerts_emitted_total",
			Help: "Total number of synthetic security alerts",
		},
		[]string{"type"},
	)

	// AlertChecksMissed due alert checks without an eligible device
	AlertChecksMissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sim_alert_checks_missed_total",
			Help: "Due alert checks that found no eligible device",
		},
	)

	// PersistenceOperations device store loads and saves
	PersistenceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sim_persistence_operations_total",
			Help: "Total number of device store operations",
		},
		[]string{"operation", "status"},
	)

	// OnlineDevices devices eligible for traffic
	OnlineDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sim_online_devices",
			Help: "Number of online, unblocked devices",
		},
	)

	// TotalPower draw of online devices
	TotalPower = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sim_total_power_watts",
			Help: "Sum of power draw over online devices",
		},
	)

	// HealthScore network health score
	HealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sim_health_score",
			Help: "Current network health score (0-100)",
		},
	)

	// SpeedAnomalies z-score flagged speed samples
	SpeedAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sim_speed_anomalies_total",
			Help: "Total number of speed samples flagged as anomalous",
		},
		[]string{"type"},
	)

	// RollingAverage rolling speed average over the history window
	RollingAverage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sim_rolling_average_speed",
			Help: "Rolling average of smoothed speeds",
		},
		[]string{"direction"},
	)

	// WebSocketClients connected presentation clients
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sim_websocket_clients",
			Help: "Number of connected WebSocket clients",
		},
	)
)
