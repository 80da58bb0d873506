package models

import "time"

// DeviceStatus online/offline flag of a device
type DeviceStatus string

const (
	StatusOnline  DeviceStatus = "online"
	StatusOffline DeviceStatus = "offline"
)

// Source provenance of a device record
type Source string

const (
	SourceSimulated Source = "simulated"
	SourceCustom    Source = "custom"
	SourceReal      Source = "real"
)

// Durable reports whether devices of this source are persisted.
func (s Source) Durable() bool {
	return s == SourceCustom || s == SourceReal
}

// Server candidate traffic destination of a device
type Server struct {
	Host    string `json:"host"`
	IP      string `json:"ip"`
	Purpose string `json:"purpose"`
}

// TrafficPattern size range in KB and burst probability
type TrafficPattern struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	BurstChance float64 `json:"burstChance"`
}

// Valid checks min <= max, non-negative sizes and a burst probability in [0,1].
func (p TrafficPattern) Valid() bool {
	return p.Min >= 0 && p.Max >= p.Min && p.BurstChance >= 0 && p.BurstChance <= 1
}

// DefaultTrafficPattern is applied to custom devices created without one.
var DefaultTrafficPattern = TrafficPattern{Min: 10, Max: 100, BurstChance: 0.1}

// Device a simulated, custom or real network endpoint
type Device struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	Manufacturer   string         `json:"manufacturer"`
	Icon           string         `json:"icon"`
	IP             string         `json:"ip"`
	MAC            string         `json:"mac"`
	PowerWatts     float64        `json:"powerWatts"`
	Controllable   bool           `json:"controllable"`
	Status         DeviceStatus   `json:"status"`
	Blocked        bool           `json:"blocked"`
	Source         Source         `json:"source"`
	Servers        []Server       `json:"servers"`
	TrafficPattern TrafficPattern `json:"trafficPattern"`
}

// Online reports whether the device can produce traffic.
func (d Device) Online() bool {
	return d.Status == StatusOnline && !d.Blocked
}

// Clone returns a copy that shares no slices with d.
func (d Device) Clone() Device {
	c := d
	if d.Servers != nil {
		c.Servers = make([]Server, len(d.Servers))
		copy(c.Servers, d.Servers)
	}
	return c
}

// Direction of a traffic event
type Direction string

const (
	Download Direction = "download"
	Upload   Direction = "upload"
)

// Protocol of a traffic event
type Protocol string

const (
	HTTPS     Protocol = "HTTPS"
	HTTP      Protocol = "HTTP"
	DNS       Protocol = "DNS"
	MQTT      Protocol = "MQTT"
	RTSP      Protocol = "RTSP"
	WebSocket Protocol = "WEBSOCKET"
	NTP       Protocol = "NTP"
)

// Packet one synthesized traffic event. Immutable once created.
type Packet struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Device          Device    `json:"device"`
	SourceAddr      string    `json:"source"`
	DestAddr        string    `json:"destination"`
	DestinationHost string    `json:"destinationHost"`
	Protocol        Protocol  `json:"protocol"`
	Port            int       `json:"port"`
	Size            int64     `json:"size"` // KB
	Description     string    `json:"description"`
	Detail          string    `json:"detail"`
	Direction       Direction `json:"direction"`
	Origin          string    `json:"source_type"`
}

// Alert synthetic security alert. Dispatched, never stored by the core.
type Alert struct {
	Type        string    `json:"type"`
	DeviceName  string    `json:"device"`
	DeviceID    string    `json:"deviceId"`
	MagnitudeKB float64   `json:"magnitudeKb"`
	Value       string    `json:"value"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// DeviceTraffic per-device totals over the current log
type DeviceTraffic struct {
	Device      Device `json:"device"`
	TotalSize   int64  `json:"totalSize"`
	PacketCount int    `json:"packetCount"`
}

// TrafficStats fold over the current traffic log
type TrafficStats struct {
	ByDevice   []DeviceTraffic    `json:"byDevice"`
	ByProtocol map[Protocol]int64 `json:"byProtocol"`
}

// Speeds smoothed per-tick volumes (weighted KB per tick)
type Speeds struct {
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
}
