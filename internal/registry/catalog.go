package registry

import "iot-traffic-sim/internal/models"

// Template is a catalog entry a custom device can be created from.
type Template struct {
	Name           string                `json:"name"`
	Type           string                `json:"type"`
	Icon           string                `json:"icon"`
	Manufacturer   string                `json:"manufacturer"`
	PowerWatts     float64               `json:"powerWatts"`
	Controllable   bool                  `json:"controllable"`
	Servers        []models.Server       `json:"servers"`
	TrafficPattern models.TrafficPattern `json:"trafficPattern"`
}

var templates = []Template{
	{
		Name: "Gaming Console", Type: "Entertainment", Icon: "🎮", Manufacturer: "Sony/Microsoft",
		PowerWatts: 200, Controllable: true,
		Servers: []models.Server{
			{Host: "playstation.net", IP: "23.66.213.11", Purpose: "Online gaming service"},
			{Host: "xboxlive.com", IP: "65.55.42.23", Purpose: "Multiplayer gaming"},
			{Host: "twitch.tv", IP: "151.101.2.167", Purpose: "Live streaming"},
		},
		TrafficPattern: models.TrafficPattern{Min: 100, Max: 2000, BurstChance: 0.4},
	},
	{
		Name: "Smart Lock", Type: "Security", Icon: "🔒", Manufacturer: "August",
		PowerWatts: 2, Controllable: true,
		Servers: []models.Server{
			{Host: "connect.august.com", IP: "52.203.111.90", Purpose: "Remote locking/unlocking"},
		},
		TrafficPattern: models.TrafficPattern{Min: 1, Max: 5, BurstChance: 0.05},
	},
	{
		Name: "Smart Printer", Type: "Computer", Icon: "🖨️", Manufacturer: "HP",
		PowerWatts: 40,
		Servers: []models.Server{
			{Host: "hpconnected.com", IP: "15.72.194.8", Purpose: "Cloud printing services"},
		},
		TrafficPattern: models.TrafficPattern{Min: 5, Max: 50, BurstChance: 0.1},
	},
	{
		Name: "Baby Monitor", Type: "Security", Icon: "👶", Manufacturer: "Nanit",
		PowerWatts: 5,
		Servers: []models.Server{
			{Host: "api.nanit.com", IP: "34.205.112.55", Purpose: "Video stream upload"},
		},
		TrafficPattern: models.TrafficPattern{Min: 50, Max: 400, BurstChance: 0.2},
	},
	{
		Name: "Smart Coffee Maker", Type: "Smart Appliance", Icon: "☕", Manufacturer: "Keurig",
		PowerWatts: 1400, Controllable: true,
		Servers: []models.Server{
			{Host: "iot.keurig.com", IP: "54.88.19.22", Purpose: "Remote brew control"},
		},
		TrafficPattern: models.TrafficPattern{Min: 1, Max: 10, BurstChance: 0.01},
	},
	{
		Name: "NAS Drive", Type: "Computer", Icon: "💾", Manufacturer: "Synology",
		PowerWatts: 30,
		Servers: []models.Server{
			{Host: "quickconnect.to", IP: "13.226.155.99", Purpose: "Remote file access"},
			{Host: "backblaze.com", IP: "104.16.2.5", Purpose: "Cloud backup"},
		},
		TrafficPattern: models.TrafficPattern{Min: 100, Max: 5000, BurstChance: 0.3},
	},
}

// Templates returns a copy of the template catalog.
func Templates() []Template {
	out := make([]Template, len(templates))
	for i, t := range templates {
		out[i] = t
		out[i].Servers = append([]models.Server(nil), t.Servers...)
	}
	return out
}

func findTemplate(name string) (Template, bool) {
	for _, t := range Templates() {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

func simulated(id, name, typ, icon, ip, mac, manufacturer string, watts float64, controllable bool,
	pattern models.TrafficPattern, servers ...models.Server) models.Device {
	return models.Device{
		ID:             id,
		Name:           name,
		Type:           typ,
		Icon:           icon,
		IP:             ip,
		MAC:            mac,
		Manufacturer:   manufacturer,
		PowerWatts:     watts,
		Controllable:   controllable,
		Status:         models.StatusOnline,
		Source:         models.SourceSimulated,
		Servers:        servers,
		TrafficPattern: pattern,
	}
}

// SimulatedDevices returns a fresh copy of the built-in home network.
func SimulatedDevices() []models.Device {
	type srv = models.Server
	type tp = models.TrafficPattern

	return []models.Device{
		simulated("laptop-001", "Work Laptop", "Computer", "💻", "192.168.1.101", "00:1B:44:11:3A:B7", "Dell", 45, false,
			tp{Min: 50, Max: 500, BurstChance: 0.3},
			srv{Host: "google.com", IP: "142.250.185.46", Purpose: "Web browsing and search"},
			srv{Host: "github.com", IP: "140.82.121.4", Purpose: "Code repository access"},
			srv{Host: "dropbox.com", IP: "162.125.65.1", Purpose: "Cloud file synchronization"},
			srv{Host: "slack.com", IP: "54.230.159.122", Purpose: "Team communication"}),
		simulated("phone-001", "iPhone 14", "Smartphone", "📱", "192.168.1.102", "00:1B:44:11:3A:B8", "Apple", 5, false,
			tp{Min: 20, Max: 200, BurstChance: 0.4},
			srv{Host: "icloud.com", IP: "17.253.144.10", Purpose: "Photo and data backup"},
			srv{Host: "whatsapp.net", IP: "31.13.82.51", Purpose: "Instant messaging"},
			srv{Host: "instagram.com", IP: "157.240.22.174", Purpose: "Social media browsing"},
			srv{Host: "spotify.com", IP: "35.186.224.25", Purpose: "Music streaming"}),
		simulated("tv-001", "Living Room Smart TV", "Entertainment", "📺", "192.168.1.103", "00:1B:44:11:3A:B9", "Samsung", 120, true,
			tp{Min: 500, Max: 3000, BurstChance: 0.2},
			srv{Host: "netflix.com", IP: "52.34.12.5", Purpose: "Streaming movies and shows"},
			srv{Host: "youtube.com", IP: "142.250.185.78", Purpose: "Video streaming"},
			srv{Host: "primevideo.com", IP: "54.239.28.85", Purpose: "Amazon Prime content"}),
		simulated("rpi-001", "Raspberry Pi Hub", "IoT Controller", "🔧", "192.168.1.104", "00:1B:44:11:3A:C0", "Raspberry Pi Foundation", 15, false,
			tp{Min: 5, Max: 50, BurstChance: 0.1},
			srv{Host: "mqtt.home", IP: "192.168.1.1", Purpose: "Home automation messaging"},
			srv{Host: "api.openweathermap.org", IP: "188.166.56.137", Purpose: "Weather data updates"},
			srv{Host: "home-assistant.io", IP: "104.21.53.196", Purpose: "Smart home coordination"}),
		simulated("vacuum-001", "Robot Vacuum", "Smart Appliance", "🤖", "192.168.1.105", "00:1B:44:11:3A:C1", "Roborock", 55, true,
			tp{Min: 10, Max: 80, BurstChance: 0.15},
			srv{Host: "roborock.com", IP: "47.88.62.108", Purpose: "Cleaning schedule sync"},
			srv{Host: "aws-iot.amazonaws.com", IP: "52.119.224.68", Purpose: "Remote control commands"}),
		simulated("light-living-001", "Living Room Lights", "Smart Lighting", "💡", "192.168.1.106", "00:1B:44:11:3A:C2", "Philips Hue", 12, true,
			tp{Min: 2, Max: 20, BurstChance: 0.05},
			srv{Host: "api.meethue.com", IP: "13.32.123.45", Purpose: "Lighting control and schedules"}),
		simulated("light-bedroom-001", "Bedroom Lights", "Smart Lighting", "🛏️", "192.168.1.107", "00:1B:44:11:3A:C3", "Philips Hue", 10, true,
			tp{Min: 2, Max: 15, BurstChance: 0.05},
			srv{Host: "api.meethue.com", IP: "13.32.123.45", Purpose: "Lighting control and schedules"}),
		simulated("alexa-001", "Amazon Alexa", "Voice Assistant", "🔊", "192.168.1.108", "00:1B:44:11:3A:C4", "Amazon", 3, true,
			tp{Min: 15, Max: 150, BurstChance: 0.25},
			srv{Host: "alexa.amazon.com", IP: "52.94.236.248", Purpose: "Voice commands processing"},
			srv{Host: "music.amazon.com", IP: "54.239.28.85", Purpose: "Music streaming"},
			srv{Host: "api.amazonalexa.com", IP: "52.94.236.250", Purpose: "Smart home device control"}),
		simulated("thermostat-001", "Smart Thermostat", "Climate Control", "🌡️", "192.168.1.109", "00:1B:44:11:3A:C5", "Nest", 2, true,
			tp{Min: 5, Max: 30, BurstChance: 0.1},
			srv{Host: "home.nest.com", IP: "216.58.214.206", Purpose: "Temperature control and scheduling"},
			srv{Host: "weather-api.nest.com", IP: "142.250.185.110", Purpose: "Weather-based adjustments"}),
		simulated("doorbell-001", "Smart Doorbell", "Security", "🔔", "192.168.1.110", "00:1B:44:11:3A:C6", "Ring", 8, false,
			tp{Min: 30, Max: 400, BurstChance: 0.2},
			srv{Host: "ring.com", IP: "54.148.37.5", Purpose: "Video streaming and alerts"},
			srv{Host: "api.ring.com", IP: "54.148.37.6", Purpose: "Motion detection notifications"}),
		simulated("camera-001", "Security Camera", "Security", "📷", "192.168.1.111", "00:1B:44:11:3A:C7", "Arlo", 6, true,
			tp{Min: 100, Max: 800, BurstChance: 0.15},
			srv{Host: "arlo.com", IP: "13.107.42.14", Purpose: "Video recording and storage"},
			srv{Host: "api.arlo.com", IP: "13.107.42.15", Purpose: "Motion alerts and live view"}),
		simulated("plug-fan-001", "Smart Plug (Fan)", "Smart Outlet", "🔌", "192.168.1.112", "00:1B:44:11:3A:C8", "TP-Link", 1, true,
			tp{Min: 1, Max: 10, BurstChance: 0.05},
			srv{Host: "use1-wap.tplinkcloud.com", IP: "54.172.115.98", Purpose: "Remote on/off control"}),
		simulated("fridge-001", "Smart Refrigerator", "Smart Appliance", "🧊", "192.168.1.113", "00:1B:44:11:3A:C9", "LG", 150, false,
			tp{Min: 5, Max: 40, BurstChance: 0.1},
			srv{Host: "lgthinq.com", IP: "52.78.123.45", Purpose: "Temperature monitoring"},
			srv{Host: "api.lgthinq.com", IP: "52.78.123.46", Purpose: "Smart diagnosis and alerts"}),
		simulated("tablet-001", "iPad", "Tablet", "📱", "192.168.1.114", "00:1B:44:11:3A:D0", "Apple", 10, false,
			tp{Min: 30, Max: 300, BurstChance: 0.3},
			srv{Host: "icloud.com", IP: "17.253.144.10", Purpose: "App and data synchronization"},
			srv{Host: "youtube.com", IP: "142.250.185.78", Purpose: "Video streaming"},
			srv{Host: "reddit.com", IP: "151.101.1.140", Purpose: "Social media browsing"}),
		simulated("speaker-001", "Google Home", "Smart Speaker", "🔈", "192.168.1.115", "00:1B:44:11:3A:D1", "Google", 5, true,
			tp{Min: 20, Max: 180, BurstChance: 0.2},
			srv{Host: "google.com", IP: "142.250.185.46", Purpose: "Voice search and commands"},
			srv{Host: "youtube.com", IP: "142.250.185.78", Purpose: "Music and podcast streaming"},
			srv{Host: "googleapis.com", IP: "142.250.185.10", Purpose: "Smart home integration"}),
	}
}
