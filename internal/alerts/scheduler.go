// Package alerts emits synthetic security alerts on a randomized schedule.
package alerts

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
	TypeTrafficSpike = "Traffic Spike"
	SpikeMessage     = "Suspicious outgoing traffic burst detected. Recommended action: Block device immediately."

	MinMagnitudeKB = 2000
	MaxMagnitudeKB = 7000
)

// Due-time offsets, in seconds.
var (
	firstDelay = [2]float64{60, 120}
	nextDelay  = [2]float64{60, 180}
)

// DeviceSource lists the devices an alert may reference.
type DeviceSource interface {
	Online() []models.Device
}

// Options tune the scheduler. RescheduleOnMiss moves the due time forward
// when a due check finds no eligible device; when off, the next check retries.
type Options struct {
	Interval         time.Duration
	RescheduleOnMiss bool
	Now              func() time.Time
}

// Scheduler keeps a single due time and fires at most one alert per check.
type Scheduler struct {
	mu      sync.Mutex
	nextDue time.Time

	devices          DeviceSource
	rnd              rng.Source
	now              func() time.Time
	rescheduleOnMiss bool
	publisher        events.Publisher
	loop             *schedule.Loop
}

// NewScheduler creates a stopped scheduler whose first alert is due 60-120s
// from now. publisher may be nil.
func NewScheduler(devices DeviceSource, rnd rng.Source, publisher events.Publisher, opts Options) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}

	s := &Scheduler{
		devices:          devices,
		rnd:              rnd,
		now:              opts.Now,
		rescheduleOnMiss: opts.RescheduleOnMiss,
		publisher:        publisher,
	}
	s.nextDue = s.after(s.now(), firstDelay)
	s.loop = schedule.NewLoop("alerts", opts.Interval, func(ctx context.Context) {
		s.Check()
	})
	return s
}

// NextDue returns the time after which the next alert may fire.
func (s *Scheduler) NextDue() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDue
}

// Check fires an alert when the due time has passed and an online, unblocked
// device exists.
func (s *Scheduler) Check() (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !now.After(s.nextDue) {
		return models.Alert{}, false
	}

	candidates := s.devices.Online()
	if len(candidates) == 0 {
		metrics.AlertChecksMissed.Inc()
		if s.rescheduleOnMiss {
			s.nextDue = s.after(now, nextDelay)
		}
		log.Debug("Alert due but no eligible device", "next_due", s.nextDue)
		return models.Alert{}, false
	}

	victim := candidates[s.rnd.Intn(len(candidates))]
	magnitude := rng.Between(s.rnd, MinMagnitudeKB, MaxMagnitudeKB)
	alert := models.Alert{
		Type:        TypeTrafficSpike,
		DeviceName:  victim.Name,
		DeviceID:    victim.ID,
		MagnitudeKB: magnitude,
		Value:       format.Bytes(magnitude),
		Message:     SpikeMessage,
		Timestamp:   now,
	}
	s.nextDue = s.after(now, nextDelay)

	metrics.AlertsEmitted.WithLabelValues(alert.Type).Inc()
	log.Info("Security alert emitted", "device", alert.DeviceID, "value", alert.Value, "next_due", s.nextDue)

	if s.publisher != nil {
		s.publisher.Publish(events.Event{Type: events.TypeAlert, Payload: alert, Timestamp: now})
	}
	return alert, true
}

// Start begins periodic checks. Returns false when already running.
func (s *Scheduler) Start(ctx context.Context) bool {
	return s.loop.Start(ctx)
}

// Stop halts periodic checks. Safe to call when not running.
func (s *Scheduler) Stop() bool {
	return s.loop.Stop()
}

// Running reports whether checks are scheduled.
func (s *Scheduler) Running() bool {
	return s.loop.Running()
}

func (s *Scheduler) after(now time.Time, window [2]float64) time.Time {
	secs := rng.Between(s.rnd, window[0], window[1])
	return now.Add(time.Duration(secs * float64(time.Second)))
}
