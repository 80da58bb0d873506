// Package analytics derives the dashboard view of the simulation: speed
// history with anomaly scoring, a network health score, cost summary and
// top talkers.
package analytics

import (
	"context"
	"sync"
	"time"

	"iot-traffic-sim/internal/events"
	"iot-traffic-sim/internal/format"
	"iot-traffic-sim/internal/log"
	"iot-traffic-sim/internal/metrics"
	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/rng"
	"iot-traffic-sim/internal/schedule"
)

const (
	TopDevices      = 5
	ChartDevices    = 8
	DefaultAlertTTL = 5 * time.Minute
)

// DeviceSource is the registry view the engine needs.
type DeviceSource interface {
	All() []models.Device
	Online() []models.Device
	TotalPower() float64
}

// TrafficSource is the traffic log view the engine needs.
type TrafficSource interface {
	Stats() models.TrafficStats
	Speeds() models.Speeds
	TotalTransferred() int64
}

// Options tune the engine. AlertTTL is how long an alert counts as active
// for the health score.
type Options struct {
	Interval         time.Duration
	HistoryPoints    int
	AnomalyThreshold float64
	CostPerKWh       float64
	AlertTTL         time.Duration
	Now              func() time.Time
}

// DevicePower one bar of the power chart
type DevicePower struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Watts float64 `json:"watts"`
}

// Summary headline numbers
type Summary struct {
	TotalTransferredKB int64   `json:"totalTransferredKb"`
	TotalData          string  `json:"totalData"`
	AverageSpeed       float64 `json:"averageSpeed"`
	AverageSpeedText   string  `json:"averageSpeedText"`
	TotalPowerWatts    float64 `json:"totalPowerWatts"`
	EstimatedDailyCost float64 `json:"estimatedDailyCost"`
}

// Snapshot result of one refresh
type Snapshot struct {
	Timestamp   time.Time                 `json:"timestamp"`
	Speeds      models.Speeds             `json:"speeds"`
	History     []SpeedSample             `json:"history"`
	Speed       SpeedResult               `json:"speed"`
	Health      Health                    `json:"health"`
	Summary     Summary                   `json:"summary"`
	TopDevices  []models.DeviceTraffic    `json:"topDevices"`
	DeviceChart []models.DeviceTraffic    `json:"deviceChart"`
	ByProtocol  map[models.Protocol]int64 `json:"byProtocol"`
	Power       []DevicePower             `json:"power"`
}

// Engine refreshes the snapshot on a fixed cadence
type Engine struct {
	devices   DeviceSource
	traffic   TrafficSource
	rnd       rng.Source
	publisher events.Publisher
	analyzer  *Analyzer
	opts      Options
	loop      *schedule.Loop

	mu     sync.RWMutex
	alerts []time.Time
	last   Snapshot
}

// NewEngine creates a stopped engine. publisher may be nil.
func NewEngine(devices DeviceSource, traffic TrafficSource, rnd rng.Source, publisher events.Publisher, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.HistoryPoints <= 0 {
		opts.HistoryPoints = 20
	}
	if opts.AnomalyThreshold <= 0 {
		opts.AnomalyThreshold = 2.0
	}
	if opts.AlertTTL <= 0 {
		opts.AlertTTL = DefaultAlertTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		devices:   devices,
		traffic:   traffic,
		rnd:       rnd,
		publisher: publisher,
		analyzer:  NewAnalyzer(opts.HistoryPoints, opts.AnomalyThreshold),
		opts:      opts,
	}
	e.loop = schedule.NewLoop("analytics", opts.Interval, func(ctx context.Context) {
		e.Refresh()
	})
	return e
}

// Analyzer exposes the speed analyzer.
func (e *Engine) Analyzer() *Analyzer {
	return e.analyzer
}

// RecordAlert counts an alert towards the health score until it expires.
func (e *Engine) RecordAlert(a models.Alert) {
	at := a.Timestamp
	if at.IsZero() {
		at = e.opts.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = append(e.alerts, at)
}

// ActiveAlerts counts alerts younger than the alert TTL.
func (e *Engine) ActiveAlerts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pruneLocked(e.opts.Now())
}

func (e *Engine) pruneLocked(now time.Time) int {
	cutoff := now.Add(-e.opts.AlertTTL)
	kept := e.alerts[:0]
	for _, t := range e.alerts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.alerts = kept
	return len(kept)
}

// Watch records alert events from sub until ctx is done or sub is closed.
func (e *Engine) Watch(ctx context.Context, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if a, isAlert := ev.Payload.(models.Alert); ev.Type == events.TypeAlert && isAlert {
				e.RecordAlert(a)
			}
		}
	}
}

// Refresh samples the current state into a new snapshot.
func (e *Engine) Refresh() Snapshot {
	now := e.opts.Now()

	speeds := e.traffic.Speeds()
	speed := e.analyzer.Analyze(SpeedSample{Timestamp: now, Download: speeds.Download, Upload: speeds.Upload})
	metrics.RollingAverage.WithLabelValues(string(models.Download)).Set(speed.RollingAvgDownload)
	metrics.RollingAverage.WithLabelValues(string(models.Upload)).Set(speed.RollingAvgUpload)
	if speed.IsAnomaly {
		metrics.SpeedAnomalies.WithLabelValues(speed.AnomalyType).Inc()
		log.Debug("Speed anomaly detected", "type", speed.AnomalyType, "score", speed.AnomalyScore)
	}

	totalPower := e.devices.TotalPower()
	health := ScoreHealth(e.ActiveAlerts(), totalPower, e.devices.Online(), e.rnd.Intn(5))
	metrics.HealthScore.Set(float64(health.Score))
	metrics.TotalPower.Set(totalPower)

	stats := e.traffic.Stats()
	total := e.traffic.TotalTransferred()
	avg := (speeds.Download + speeds.Upload) / 2

	snap := Snapshot{
		Timestamp: now,
		Speeds:    speeds,
		History:   e.analyzer.History(),
		Speed:     speed,
		Health:    health,
		Summary: Summary{
			TotalTransferredKB: total,
			TotalData:          format.Bytes(float64(total)),
			AverageSpeed:       avg,
			AverageSpeedText:   format.Speed(avg),
			TotalPowerWatts:    totalPower,
			EstimatedDailyCost: DailyCost(totalPower, e.opts.CostPerKWh),
		},
		TopDevices:  head(stats.ByDevice, TopDevices),
		DeviceChart: head(stats.ByDevice, ChartDevices),
		ByProtocol:  stats.ByProtocol,
		Power:       powerByDevice(e.devices.All()),
	}

	e.mu.Lock()
	e.last = snap
	e.mu.Unlock()

	if e.publisher != nil {
		e.publisher.Publish(events.Event{Type: events.TypeAnalytics, Payload: snap, Timestamp: now})
	}
	return snap
}

// Latest returns the most recent snapshot, refreshing once if none exists.
func (e *Engine) Latest() Snapshot {
	e.mu.RLock()
	snap := e.last
	e.mu.RUnlock()

	if snap.Timestamp.IsZero() {
		return e.Refresh()
	}
	return snap
}

// Start begins periodic refreshes. Returns false when already running.
func (e *Engine) Start(ctx context.Context) bool {
	return e.loop.Start(ctx)
}

// Stop halts refreshes. Safe to call when not running.
func (e *Engine) Stop() bool {
	return e.loop.Stop()
}

// Running reports whether refreshes are scheduled.
func (e *Engine) Running() bool {
	return e.loop.Running()
}

// DailyCost estimates the cost of running totalWatts for 24 hours.
func DailyCost(totalWatts, costPerKWh float64) float64 {
	return totalWatts / 1000 * 24 * costPerKWh
}

func head(items []models.DeviceTraffic, n int) []models.DeviceTraffic {
	n = min(n, len(items))
	out := make([]models.DeviceTraffic, n)
	copy(out, items[:n])
	return out
}

// powerByDevice lists devices with status online, blocked ones included.
func powerByDevice(devices []models.Device) []DevicePower {
	out := make([]DevicePower, 0, len(devices))
	for _, d := range devices {
		if d.Status != models.StatusOnline {
			continue
		}
		out = append(out, DevicePower{ID: d.ID, Name: d.Name, Watts: d.PowerWatts})
	}
	return out
}
