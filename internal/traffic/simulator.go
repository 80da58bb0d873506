package traffic

import (
	"context"
	"time"

	"iot-traffic-sim/internal/events"
	"iot-traffic-sim/internal/log"
	"iot-traffic-sim/internal/metrics"
	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/rng"
	"iot-traffic-sim/internal/schedule"
)

// DeviceSource lists the devices eligible for traffic.
type DeviceSource interface {
	Online() []models.Device
}

// TickResult is the outcome of one simulation step.
type TickResult struct {
	Packets          []models.Packet `json:"packets"`
	Speeds           models.Speeds   `json:"speeds"`
	TotalTransferred int64           `json:"totalTransferred"`
	LogSize          int             `json:"logSize"`
}

// Simulator generates 1-3 packets per tick from random online devices.
type Simulator struct {
	devices   DeviceSource
	gen       *Generator
	log       *Log
	rnd       rng.Source
	publisher events.Publisher
	loop      *schedule.Loop
}

// NewSimulator wires a simulator ticking every interval. publisher may be nil.
func NewSimulator(devices DeviceSource, gen *Generator, l *Log, rnd rng.Source, publisher events.Publisher, interval time.Duration) *Simulator {
	s := &Simulator{
		devices:   devices,
		gen:       gen,
		log:       l,
		rnd:       rnd,
		publisher: publisher,
	}
	s.loop = schedule.NewLoop("traffic", interval, func(ctx context.Context) {
		s.Tick(ctx)
	})
	return s
}

// Log returns the log the simulator records into.
func (s *Simulator) Log() *Log {
	return s.log
}

// Tick runs one step. Devices are picked with replacement.
func (s *Simulator) Tick(ctx context.Context) TickResult {
	online := s.devices.Online()
	metrics.OnlineDevices.Set(float64(len(online)))

	var batch []models.Packet
	if len(online) > 0 {
		n := s.rnd.Intn(3) + 1
		for i := 0; i < n; i++ {
			d := online[s.rnd.Intn(len(online))]
			if p, ok := s.gen.Generate(d); ok {
				batch = append(batch, p)
			}
		}
	}

	speeds := s.log.Record(batch)

	for _, p := range batch {
		metrics.PacketsGenerated.WithLabelValues(string(p.Protocol), string(p.Direction)).Inc()
		metrics.KilobytesTransferred.Add(float64(p.Size))
	}
	metrics.CurrentSpeed.WithLabelValues(string(models.Download)).Set(speeds.Download)
	metrics.CurrentSpeed.WithLabelValues(string(models.Upload)).Set(speeds.Upload)

	res := TickResult{
		Packets:          batch,
		Speeds:           speeds,
		TotalTransferred: s.log.TotalTransferred(),
		LogSize:          s.log.Len(),
	}
	metrics.TrafficLogSize.Set(float64(res.LogSize))

	if s.publisher != nil {
		s.publisher.Publish(events.Event{Type: events.TypeTick, Payload: res})
	}
	return res
}

// Start begins ticking. Returns false when already running.
func (s *Simulator) Start(ctx context.Context) bool {
	started := s.loop.Start(ctx)
	if started {
		log.Info("Traffic simulation started")
	}
	return started
}

// Stop halts ticking. Safe to call when not running.
func (s *Simulator) Stop() bool {
	stopped := s.loop.Stop()
	if stopped {
		log.Info("Traffic simulation stopped")
	}
	return stopped
}

// Running reports whether the simulation is ticking.
func (s *Simulator) Running() bool {
	return s.loop.Running()
}
