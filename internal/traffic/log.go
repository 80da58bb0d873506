package traffic

import (
	"sort"
	"sync"

	"iot-traffic-sim/internal/models"
)

const (
	// DefaultCapacity bounds the number of retained packets.
	DefaultCapacity = 200
	// DefaultLimit applies to reads that pass a non-positive limit.
	DefaultLimit = 50

	// speed = speed*keep + tickSum*gain
	keep = 0.7
	gain = 0.3
)

// Log is a bounded, newest-first record of packets plus the running
// aggregates derived from it.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []models.Packet
	total    int64
	speeds   models.Speeds
}

// NewLog creates an empty log; capacity <= 0 uses DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		entries:  make([]models.Packet, 0, capacity),
	}
}

// Record appends one tick's packets, oldest first, and folds their sizes into
// the smoothed speeds. Called once per tick, also for empty batches.
func (l *Log) Record(batch []models.Packet) models.Speeds {
	var down, up float64
	for _, p := range batch {
		if p.Direction == models.Download {
			down += float64(p.Size)
		} else {
			up += float64(p.Size)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(batch); n > 0 {
		next := make([]models.Packet, 0, min(len(l.entries)+n, l.capacity))
		for i := n - 1; i >= 0 && len(next) < l.capacity; i-- {
			next = append(next, batch[i])
		}
		for _, p := range l.entries {
			if len(next) >= l.capacity {
				break
			}
			next = append(next, p)
		}
		l.entries = next
		for _, p := range batch {
			l.total += p.Size
		}
	}

	l.speeds.Download = l.speeds.Download*keep + down*gain
	l.speeds.Upload = l.speeds.Upload*keep + up*gain
	return l.speeds
}

// Recent returns up to limit packets, newest first.
func (l *Log) Recent(limit int) []models.Packet {
	if limit <= 0 {
		limit = DefaultLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	n := min(limit, len(l.entries))
	out := make([]models.Packet, n)
	copy(out, l.entries[:n])
	return out
}

// ForDevice returns up to limit packets of one device, newest first.
func (l *Log) ForDevice(deviceID string, limit int) []models.Packet {
	if limit <= 0 {
		limit = DefaultLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Packet, 0)
	for _, p := range l.entries {
		if len(out) >= limit {
			break
		}
		if p.Device.ID == deviceID {
			out = append(out, p)
		}
	}
	return out
}

// Stats folds the current log into per-device and per-protocol totals.
// ByDevice is sorted by TotalSize descending; ties keep first-seen order.
func (l *Log) Stats() models.TrafficStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := models.TrafficStats{
		ByDevice:   make([]models.DeviceTraffic, 0),
		ByProtocol: make(map[models.Protocol]int64),
	}
	index := make(map[string]int)
	for _, p := range l.entries {
		i, ok := index[p.Device.ID]
		if !ok {
			i = len(stats.ByDevice)
			index[p.Device.ID] = i
			stats.ByDevice = append(stats.ByDevice, models.DeviceTraffic{Device: p.Device})
		}
		stats.ByDevice[i].TotalSize += p.Size
		stats.ByDevice[i].PacketCount++
		stats.ByProtocol[p.Protocol] += p.Size
	}

	sort.SliceStable(stats.ByDevice, func(a, b int) bool {
		return stats.ByDevice[a].TotalSize > stats.ByDevice[b].TotalSize
	})
	return stats
}

// Speeds returns the smoothed download and upload estimates.
func (l *Log) Speeds() models.Speeds {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.speeds
}

// TotalTransferred is the KB sum of every packet recorded since the last
// Clear, evicted packets included.
func (l *Log) TotalTransferred() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Len returns the number of retained packets.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Capacity returns the retention bound.
func (l *Log) Capacity() int {
	return l.capacity
}

// Clear drops every packet and zeroes the total. Speeds are left as they are.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]models.Packet, 0, l.capacity)
	l.total = 0
}
