// Package traffic synthesizes traffic events for online devices and keeps the
// bounded log they are aggregated from.
package traffic

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/rng"
)

// Category is the kind of activity a packet describes.
type Category string

const (
	Streaming  Category = "streaming"
	Browsing   Category = "browsing"
	Syncing    Category = "syncing"
	Messaging  Category = "messaging"
	Control    Category = "control"
	Monitoring Category = "monitoring"
)

// Origin marks packets produced by the generator.
const Origin = "simulation"

// ProtocolInfo is the well-known port and a plain-English description.
type ProtocolInfo struct {
	Port        int    `json:"port"`
	Description string `json:"description"`
}

var protocols = map[models.Protocol]ProtocolInfo{
	models.HTTPS:     {Port: 443, Description: "secure web browsing"},
	models.HTTP:      {Port: 80, Description: "web browsing"},
	models.DNS:       {Port: 53, Description: "looking up website addresses"},
	models.MQTT:      {Port: 1883, Description: "smart home device communication"},
	models.RTSP:      {Port: 554, Description: "video streaming"},
	models.WebSocket: {Port: 443, Description: "real-time updates"},
	models.NTP:       {Port: 123, Description: "time synchronization"},
}

// LookupProtocol returns the port and description of p.
func LookupProtocol(p models.Protocol) (ProtocolInfo, bool) {
	info, ok := protocols[p]
	return info, ok
}

var activities = map[Category][]string{
	Streaming:  {"is streaming a video from", "is watching content on", "is playing media from"},
	Browsing:   {"is browsing", "is visiting", "is loading content from"},
	Syncing:    {"is syncing data with", "is backing up to", "is updating from"},
	Messaging:  {"is sending messages via", "is chatting on", "is communicating through"},
	Control:    {"is receiving commands from", "is sending status updates to", "is being controlled by"},
	Monitoring: {"is reporting to", "is sending sensor data to", "is updating status on"},
}

// Choice is one weighted outcome of classification.
type Choice struct {
	Protocol models.Protocol
	Category Category
	Weight   float64
}

// classes maps a device type to its weighted outcomes. Weights of a row sum to 1.
var classes = map[string][]Choice{
	"Entertainment": {
		{Protocol: models.HTTPS, Category: Streaming, Weight: 0.3},
		{Protocol: models.RTSP, Category: Streaming, Weight: 0.7},
	},
	"IoT Controller": {{Protocol: models.MQTT, Category: Control, Weight: 1}},
	"Smart Lighting": {{Protocol: models.MQTT, Category: Control, Weight: 1}},
	"Security": {
		{Protocol: models.HTTPS, Category: Monitoring, Weight: 0.5},
		{Protocol: models.RTSP, Category: Monitoring, Weight: 0.5},
	},
	"Voice Assistant": {
		{Protocol: models.WebSocket, Category: Control, Weight: 0.5},
		{Protocol: models.WebSocket, Category: Streaming, Weight: 0.5},
	},
	"Smart Speaker": {
		{Protocol: models.WebSocket, Category: Control, Weight: 0.5},
		{Protocol: models.WebSocket, Category: Streaming, Weight: 0.5},
	},
	"Smart Appliance": {{Protocol: models.MQTT, Category: Monitoring, Weight: 1}},
}

var fallback = Choice{Protocol: models.HTTPS, Category: Browsing, Weight: 1}

// Classify picks a protocol and activity for a device type talking to a
// server with the given purpose. Types without a row fall back to HTTPS
// browsing, refined to syncing or messaging by the purpose text.
func Classify(deviceType, purpose string, src rng.Source) (models.Protocol, Category) {
	row, ok := classes[deviceType]
	if !ok {
		p := strings.ToLower(purpose)
		switch {
		case strings.Contains(p, "sync") || strings.Contains(p, "backup"):
			return fallback.Protocol, Syncing
		case strings.Contains(p, "messaging") || strings.Contains(p, "chat"):
			return fallback.Protocol, Messaging
		}
		return fallback.Protocol, fallback.Category
	}
	if len(row) == 1 {
		return row[0].Protocol, row[0].Category
	}

	r := src.Float64()
	var cum float64
	for _, c := range row {
		cum += c.Weight
		if r < cum {
			return c.Protocol, c.Category
		}
	}
	last := row[len(row)-1]
	return last.Protocol, last.Category
}

// Generator turns a device into a single traffic event.
type Generator struct {
	rnd rng.Source
	now func() time.Time
}

// NewGenerator creates a generator; a nil now uses time.Now.
func NewGenerator(rnd rng.Source, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rnd: rnd, now: now}
}

// Generate synthesizes a packet for d. Returns false when d is offline,
// blocked or has no servers.
func (g *Generator) Generate(d models.Device) (models.Packet, bool) {
	if !d.Online() || len(d.Servers) == 0 {
		return models.Packet{}, false
	}

	server := d.Servers[g.rnd.Intn(len(d.Servers))]

	pattern := d.TrafficPattern
	burst := g.rnd.Float64() < pattern.BurstChance
	size := rng.Between(g.rnd, pattern.Min, pattern.Max)
	if burst {
		size *= 2
	}

	protocol, category := Classify(d.Type, server.Purpose, g.rnd)
	phrases := activities[category]
	phrase := phrases[g.rnd.Intn(len(phrases))]

	direction := models.Upload
	if g.rnd.Float64() > 0.3 {
		direction = models.Download
	}

	ts := g.now()
	return models.Packet{
		ID:              fmt.Sprintf("traffic-%d-%s", ts.UnixMilli(), uuid.NewString()),
		Timestamp:       ts,
		Device:          d.Clone(),
		SourceAddr:      d.IP,
		DestAddr:        server.IP,
		DestinationHost: server.Host,
		Protocol:        protocol,
		Port:            protocols[protocol].Port,
		Size:            int64(math.Round(size)),
		Description:     fmt.Sprintf("Your %s %s %s", d.Name, phrase, server.Host),
		Detail:          server.Purpose,
		Direction:       direction,
		Origin:          Origin,
	}, true
}
