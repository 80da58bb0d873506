package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-traffic-sim/internal/events"
	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/rng"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type deviceList []models.Device

func (l *deviceList) Online() []models.Device { return *l }

var start = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func camera() models.Device {
	return models.Device{ID: "camera-001", Name: "Security Camera", Status: models.StatusOnline}
}

func TestFirstDueWindow(t *testing.T) {
	for i := 0; i < 100; i++ {
		clock := &fakeClock{t: start}
		s := NewScheduler(&deviceList{}, rng.New(int64(i+1)), nil, Options{Now: clock.Now})

		delay := s.NextDue().Sub(start)
		assert.GreaterOrEqual(t, delay, 60*time.Second)
		assert.Less(t, delay, 120*time.Second)
	}
}

func TestCheck_NotDue(t *testing.T) {
	clock := &fakeClock{t: start}
	devices := deviceList{camera()}
	s := NewScheduler(&devices, rng.Fixed(0), nil, Options{Now: clock.Now})

	clock.Advance(59 * time.Second)
	_, ok := s.Check()
	assert.False(t, ok)

	clock.Advance(time.Second)
	_, ok = s.Check()
	assert.False(t, ok, "fires only strictly after the due time")
}

func TestCheck_FiresAndReschedules(t *testing.T) {
	clock := &fakeClock{t: start}
	devices := deviceList{camera()}
	bus := events.NewBus()
	sub := bus.Subscribe(1)
	defer sub.Close()

	s := NewScheduler(&devices, rng.Fixed(0), bus, Options{Now: clock.Now})
	clock.Advance(61 * time.Second)

	alert, ok := s.Check()
	require.True(t, ok)
	assert.Equal(t, TypeTrafficSpike, alert.Type)
	assert.Equal(t, "Security Camera", alert.DeviceName)
	assert.Equal(t, "camera-001", alert.DeviceID)
	assert.Equal(t, float64(MinMagnitudeKB), alert.MagnitudeKB)
	assert.Equal(t, "2.0 MB", alert.Value)
	assert.Equal(t, SpikeMessage, alert.Message)
	assert.Equal(t, clock.Now(), alert.Timestamp)

	assert.Equal(t, clock.Now().Add(60*time.Second), s.NextDue())

	ev := <-sub.C
	assert.Equal(t, events.TypeAlert, ev.Type)
	assert.Equal(t, alert, ev.Payload)

	_, ok = s.Check()
	assert.False(t, ok, "at most one alert per due time")
}

func TestCheck_MagnitudeRange(t *testing.T) {
	clock := &fakeClock{t: start}
	devices := deviceList{camera()}
	s := NewScheduler(&devices, rng.New(8), nil, Options{Now: clock.Now})

	for i := 0; i < 200; i++ {
		clock.Advance(181 * time.Second)
		alert, ok := s.Check()
		require.True(t, ok)
		assert.GreaterOrEqual(t, alert.MagnitudeKB, float64(MinMagnitudeKB))
		assert.Less(t, alert.MagnitudeKB, float64(MaxMagnitudeKB))

		delay := s.NextDue().Sub(clock.Now())
		assert.GreaterOrEqual(t, delay, 60*time.Second)
		assert.Less(t, delay, 180*time.Second)
	}
}

// A due check without eligible devices leaves the due time unchanged, so
// every later check retries until a device comes online.
func TestCheck_MissKeepsDueTime(t *testing.T) {
	clock := &fakeClock{t: start}
	devices := deviceList{}
	s := NewScheduler(&devices, rng.Fixed(0), nil, Options{Now: clock.Now})
	due := s.NextDue()

	clock.Advance(2 * time.Minute)
	for i := 0; i < 3; i++ {
		_, ok := s.Check()
		assert.False(t, ok)
		assert.Equal(t, due, s.NextDue())
		clock.Advance(2 * time.Second)
	}

	devices = append(devices, camera())
	_, ok := s.Check()
	assert.True(t, ok, "fires on the first check after a device comes online")
}

func TestCheck_RescheduleOnMiss(t *testing.T) {
	clock := &fakeClock{t: start}
	devices := deviceList{}
	s := NewScheduler(&devices, rng.Fixed(0), nil, Options{Now: clock.Now, RescheduleOnMiss: true})

	clock.Advance(2 * time.Minute)
	_, ok := s.Check()
	assert.False(t, ok)
	assert.Equal(t, clock.Now().Add(60*time.Second), s.NextDue())

	devices = append(devices, camera())
	_, ok = s.Check()
	assert.False(t, ok, "not due again until the new time passes")
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&deviceList{}, rng.New(1), nil, Options{Interval: 5 * time.Millisecond})

	assert.False(t, s.Stop())
	assert.True(t, s.Start(context.Background()))
	assert.False(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	assert.True(t, s.Stop())
	assert.False(t, s.Running())
}
