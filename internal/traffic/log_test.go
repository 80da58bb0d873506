package traffic

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot-traffic-sim/internal/models"
)

func packet(id, deviceID string, protocol models.Protocol, size int64, dir models.Direction) models.Packet {
	return models.Packet{
		ID:        id,
		Device:    models.Device{ID: deviceID, Name: deviceID},
		Protocol:  protocol,
		Size:      size,
		Direction: dir,
	}
}

func ids(packets []models.Packet) []string {
	out := make([]string, len(packets))
	for i, p := range packets {
		out[i] = p.ID
	}
	return out
}

func TestLog_NewestFirst(t *testing.T) {
	l := NewLog(0)
	l.Record([]models.Packet{
		packet("a", "d1", models.HTTPS, 1, models.Download),
		packet("b", "d1", models.HTTPS, 1, models.Download),
	})
	l.Record([]models.Packet{packet("c", "d2", models.MQTT, 1, models.Upload)})

	assert.Equal(t, []string{"c", "b", "a"}, ids(l.Recent(10)))
	assert.Equal(t, []string{"c", "b"}, ids(l.Recent(2)))
}

func TestLog_BoundedAndTotalIncludesEvicted(t *testing.T) {
	l := NewLog(DefaultCapacity)

	var want int64
	for tick := 0; tick < 150; tick++ {
		batch := []models.Packet{
			packet(fmt.Sprintf("p%d-0", tick), "d1", models.HTTPS, int64(tick), models.Download),
			packet(fmt.Sprintf("p%d-1", tick), "d2", models.RTSP, 3, models.Upload),
		}
		want += int64(tick) + 3
		l.Record(batch)
		require.LessOrEqual(t, l.Len(), DefaultCapacity)
	}

	assert.Equal(t, DefaultCapacity, l.Len())
	assert.Equal(t, want, l.TotalTransferred())

	recent := l.Recent(DefaultCapacity)
	assert.Equal(t, "p149-1", recent[0].ID)
	assert.Equal(t, "p50-0", recent[len(recent)-1].ID)
}

func TestLog_OversizedBatch(t *testing.T) {
	l := NewLog(3)
	var batch []models.Packet
	for i := 0; i < 5; i++ {
		batch = append(batch, packet(fmt.Sprintf("p%d", i), "d", models.HTTPS, 1, models.Download))
	}
	l.Record(batch)

	assert.Equal(t, []string{"p4", "p3", "p2"}, ids(l.Recent(10)))
	assert.Equal(t, int64(5), l.TotalTransferred())
}

func TestLog_DefaultLimit(t *testing.T) {
	l := NewLog(0)
	for i := 0; i < 80; i++ {
		l.Record([]models.Packet{packet(fmt.Sprintf("p%d", i), "d", models.HTTPS, 1, models.Download)})
	}
	assert.Len(t, l.Recent(0), DefaultLimit)
	assert.Len(t, l.Recent(-1), DefaultLimit)
	assert.Len(t, l.ForDevice("d", 0), DefaultLimit)
}

func TestLog_ForDevice(t *testing.T) {
	l := NewLog(0)
	l.Record([]models.Packet{
		packet("a", "d1", models.HTTPS, 1, models.Download),
		packet("b", "d2", models.HTTPS, 1, models.Download),
		packet("c", "d1", models.HTTPS, 1, models.Download),
		packet("d", "d1", models.HTTPS, 1, models.Download),
	})

	assert.Equal(t, []string{"d", "c", "a"}, ids(l.ForDevice("d1", 10)))
	assert.Equal(t, []string{"d", "c"}, ids(l.ForDevice("d1", 2)))
	assert.Empty(t, l.ForDevice("missing", 10))
}

func TestLog_Stats(t *testing.T) {
	l := NewLog(0)
	l.Record([]models.Packet{
		packet("a", "small", models.MQTT, 5, models.Upload),
		packet("b", "big", models.RTSP, 400, models.Download),
		packet("c", "mid", models.HTTPS, 50, models.Download),
		packet("d", "big", models.HTTPS, 100, models.Download),
	})

	stats := l.Stats()
	require.Len(t, stats.ByDevice, 3)
	assert.Equal(t, "big", stats.ByDevice[0].Device.ID)
	assert.Equal(t, int64(500), stats.ByDevice[0].TotalSize)
	assert.Equal(t, 2, stats.ByDevice[0].PacketCount)
	assert.Equal(t, "mid", stats.ByDevice[1].Device.ID)
	assert.Equal(t, "small", stats.ByDevice[2].Device.ID)

	assert.Equal(t, int64(150), stats.ByProtocol[models.HTTPS])
	assert.Equal(t, int64(400), stats.ByProtocol[models.RTSP])
	assert.Equal(t, int64(5), stats.ByProtocol[models.MQTT])

	var sum int64
	for _, d := range stats.ByDevice {
		sum += d.TotalSize
	}
	assert.Equal(t, int64(555), sum)
}

func TestLog_StatsEmpty(t *testing.T) {
	stats := NewLog(0).Stats()
	assert.NotNil(t, stats.ByDevice)
	assert.Empty(t, stats.ByDevice)
	assert.Empty(t, stats.ByProtocol)
}

func TestLog_SpeedSmoothing(t *testing.T) {
	l := NewLog(0)

	s := l.Record([]models.Packet{
		packet("a", "d", models.HTTPS, 100, models.Download),
		packet("b", "d", models.HTTPS, 50, models.Upload),
	})
	assert.InDelta(t, 30.0, s.Download, 1e-9)
	assert.InDelta(t, 15.0, s.Upload, 1e-9)

	s = l.Record(nil)
	assert.InDelta(t, 21.0, s.Download, 1e-9)
	assert.InDelta(t, 10.5, s.Upload, 1e-9)
	assert.Equal(t, s, l.Speeds())
}

func TestLog_ClearKeepsSpeeds(t *testing.T) {
	l := NewLog(0)
	l.Record([]models.Packet{packet("a", "d", models.HTTPS, 100, models.Download)})
	before := l.Speeds()

	l.Clear()

	assert.Zero(t, l.Len())
	assert.Zero(t, l.TotalTransferred())
	assert.Empty(t, l.Recent(10))
	assert.Equal(t, before, l.Speeds())
}

func TestLog_RecentReturnsCopy(t *testing.T) {
	l := NewLog(0)
	l.Record([]models.Packet{packet("a", "d", models.HTTPS, 1, models.Download)})

	got := l.Recent(1)
	got[0].ID = "changed"
	assert.Equal(t, "a", l.Recent(1)[0].ID)
}
