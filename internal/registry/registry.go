// Package registry holds the catalog of simulated, custom and real devices
// and persists the durable subsets to a key-value store.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"iot-traffic-sim/internal/cache"
	"iot-traffic-sim/internal/events"
	"iot-traffic-sim/internal/log"
	"iot-traffic-sim/internal/metrics"
	"iot-traffic-sim/internal/models"
	"iot-traffic-sim/internal/rng"
)

// Store entry names for the durable device sets.
const (
	KeyCustomDevices = "iot_custom_devices"
	KeyRealDevices   = "iot_real_devices"
)

const (
	defaultIcon         = "📱"
	defaultManufacturer = "Custom"
	quotaAdvisory       = "Storage quota exceeded. Please delete some devices."
)

// Advisory is a user-visible notice raised by the registry.
type Advisory struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

// DeviceInput carries the fields of a new custom device.
type DeviceInput struct {
	Name           string                 `json:"name"`
	Type           string                 `json:"type"`
	IP             string                 `json:"ip"`
	Icon           string                 `json:"icon,omitempty"`
	MAC            string                 `json:"mac,omitempty"`
	Manufacturer   string                 `json:"manufacturer,omitempty"`
	PowerWatts     float64                `json:"powerWatts,omitempty"`
	Controllable   bool                   `json:"controllable,omitempty"`
	Servers        []models.Server        `json:"servers,omitempty"`
	TrafficPattern *models.TrafficPattern `json:"trafficPattern,omitempty"`
}

// DeviceUpdate carries a partial update of a custom device. Empty strings and
// nil pointers leave the current value in place.
type DeviceUpdate struct {
	Name           string                 `json:"name,omitempty"`
	Type           string                 `json:"type,omitempty"`
	IP             string                 `json:"ip,omitempty"`
	Icon           string                 `json:"icon,omitempty"`
	MAC            string                 `json:"mac,omitempty"`
	Manufacturer   string                 `json:"manufacturer,omitempty"`
	PowerWatts     *float64               `json:"powerWatts,omitempty"`
	Controllable   *bool                  `json:"controllable,omitempty"`
	Servers        []models.Server        `json:"servers,omitempty"`
	TrafficPattern *models.TrafficPattern `json:"trafficPattern,omitempty"`
}

// RealDeviceInput is a device reported by external discovery, keyed by IP.
type RealDeviceInput struct {
	IP             string                 `json:"ip"`
	Name           string                 `json:"name,omitempty"`
	Type           string                 `json:"type,omitempty"`
	Icon           string                 `json:"icon,omitempty"`
	MAC            string                 `json:"mac,omitempty"`
	Manufacturer   string                 `json:"manufacturer,omitempty"`
	PowerWatts     *float64               `json:"powerWatts,omitempty"`
	Controllable   *bool                  `json:"controllable,omitempty"`
	Status         *models.DeviceStatus   `json:"status,omitempty"`
	Blocked        *bool                  `json:"blocked,omitempty"`
	Servers        []models.Server        `json:"servers,omitempty"`
	TrafficPattern *models.TrafficPattern `json:"trafficPattern,omitempty"`
}

// Registry owns every device record. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	simulated []models.Device
	custom    []models.Device
	real      []models.Device

	store     cache.Store
	rnd       rng.Source
	publisher events.Publisher
	seed      func() []models.Device
	lastErr   error
}

// Option configures a Registry.
type Option func(*Registry)

// WithRandom sets the random source used for MACs and template IPs.
func WithRandom(src rng.Source) Option {
	return func(r *Registry) { r.rnd = src }
}

// WithPublisher routes advisories to p.
func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) { r.publisher = p }
}

// WithSimulated replaces the built-in simulated devices.
func WithSimulated(seed func() []models.Device) Option {
	return func(r *Registry) { r.seed = seed }
}

// New creates a registry and loads the durable device sets from store.
func New(ctx context.Context, store cache.Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		rnd:   rng.New(0),
		seed:  SimulatedDevices,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Reset(ctx)
	return r
}

// Reset restores the simulated devices to their defaults and reloads the
// custom and real sets from the store.
func (r *Registry) Reset(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.simulated = r.seed()
	for i := range r.simulated {
		r.simulated[i].Source = models.SourceSimulated
	}
	r.custom = nil
	r.real = nil
	r.custom = r.load(ctx, KeyCustomDevices, models.SourceCustom)
	r.real = r.load(ctx, KeyRealDevices, models.SourceReal)
	r.lastErr = nil

	log.Info("Device registry loaded",
		"simulated", len(r.simulated), "custom", len(r.custom), "real", len(r.real))
}

// All returns simulated, custom and real devices in that order.
func (r *Registry) All() []models.Device {
	return r.filter(func(models.Device) bool { return true })
}

// Get returns the device with the given id.
func (r *Registry) Get(id string) (models.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d := r.findLocked(id); d != nil {
		return d.Clone(), true
	}
	return models.Device{}, false
}

// Online returns devices that are online and not blocked.
func (r *Registry) Online() []models.Device {
	return r.filter(models.Device.Online)
}

// Blocked returns blocked devices regardless of status.
func (r *Registry) Blocked() []models.Device {
	return r.filter(func(d models.Device) bool { return d.Blocked })
}

// Controllable returns devices whose power state may be toggled.
func (r *Registry) Controllable() []models.Device {
	return r.filter(func(d models.Device) bool { return d.Controllable })
}

// BySource returns devices of one provenance.
func (r *Registry) BySource(src models.Source) []models.Device {
	return r.filter(func(d models.Device) bool { return d.Source == src })
}

// TotalPower sums powerWatts over online devices, blocked included.
func (r *Registry) TotalPower() float64 {
	var total float64
	for _, d := range r.filter(func(d models.Device) bool { return d.Status == models.StatusOnline }) {
		total += d.PowerWatts
	}
	return total
}

// LastPersistenceError returns the most recent failed save, or nil once a
// later save succeeded.
func (r *Registry) LastPersistenceError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Add creates a custom device.
func (r *Registry) Add(ctx context.Context, in DeviceInput) (models.Device, error) {
	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Type == "" {
		missing = append(missing, "type")
	}
	if in.IP == "" {
		missing = append(missing, "ip")
	}
	if len(missing) > 0 {
		return models.Device{}, &ValidationError{Missing: missing}
	}
	if in.PowerWatts < 0 {
		return models.Device{}, &ValidationError{Reason: "powerWatts must be non-negative"}
	}
	pattern := models.DefaultTrafficPattern
	if in.TrafficPattern != nil {
		if !in.TrafficPattern.Valid() {
			return models.Device{}, &ValidationError{Reason: "trafficPattern requires 0 <= min <= max and burstChance in [0,1]"}
		}
		pattern = *in.TrafficPattern
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := models.Device{
		ID:             r.newIDLocked("custom"),
		Name:           in.Name,
		Type:           in.Type,
		Icon:           orDefault(in.Icon, defaultIcon),
		IP:             in.IP,
		MAC:            in.MAC,
		Manufacturer:   orDefault(in.Manufacturer, defaultManufacturer),
		PowerWatts:     in.PowerWatts,
		Controllable:   in.Controllable,
		Status:         models.StatusOnline,
		Blocked:        false,
		Source:         models.SourceCustom,
		Servers:        append([]models.Server{}, in.Servers...),
		TrafficPattern: pattern,
	}
	if d.MAC == "" {
		d.MAC = RandomMAC(r.rnd)
	}

	r.custom = append(r.custom, d)
	r.saveLocked(ctx, KeyCustomDevices, r.custom)

	log.Info("Custom device added", "id", d.ID, "name", d.Name, "ip", d.IP)
	return d.Clone(), nil
}

// AddFromTemplate creates a custom device from a catalog template with a
// fresh IP in 192.168.1.100-249 and a random MAC.
func (r *Registry) AddFromTemplate(ctx context.Context, name string) (models.Device, error) {
	t, ok := findTemplate(name)
	if !ok {
		return models.Device{}, &NotFoundError{Kind: "template", ID: name}
	}

	pattern := t.TrafficPattern
	return r.Add(ctx, DeviceInput{
		Name:           t.Name,
		Type:           t.Type,
		IP:             fmt.Sprintf("192.168.1.%d", r.rnd.Intn(150)+100),
		Icon:           t.Icon,
		MAC:            RandomMAC(r.rnd),
		Manufacturer:   t.Manufacturer,
		PowerWatts:     t.PowerWatts,
		Controllable:   t.Controllable,
		Servers:        t.Servers,
		TrafficPattern: &pattern,
	})
}

// Update modifies a custom device. Simulated and real devices are not
// editable through this path.
func (r *Registry) Update(ctx context.Context, id string, in DeviceUpdate) (models.Device, error) {
	if in.PowerWatts != nil && *in.PowerWatts < 0 {
		return models.Device{}, &ValidationError{Reason: "powerWatts must be non-negative"}
	}
	if in.TrafficPattern != nil && !in.TrafficPattern.Valid() {
		return models.Device{}, &ValidationError{Reason: "trafficPattern requires 0 <= min <= max and burstChance in [0,1]"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.custom, id)
	if i < 0 {
		return models.Device{}, &NotFoundError{Kind: "device", ID: id}
	}

	d := &r.custom[i]
	d.Name = orDefault(in.Name, d.Name)
	d.Type = orDefault(in.Type, d.Type)
	d.Icon = orDefault(in.Icon, d.Icon)
	d.IP = orDefault(in.IP, d.IP)
	d.MAC = orDefault(in.MAC, d.MAC)
	d.Manufacturer = orDefault(in.Manufacturer, d.Manufacturer)
	if in.PowerWatts != nil {
		d.PowerWatts = *in.PowerWatts
	}
	if in.Controllable != nil {
		d.Controllable = *in.Controllable
	}
	if in.Servers != nil {
		d.Servers = append([]models.Server{}, in.Servers...)
	}
	if in.TrafficPattern != nil {
		d.TrafficPattern = *in.TrafficPattern
	}

	updated := d.Clone()
	r.saveLocked(ctx, KeyCustomDevices, r.custom)
	return updated, nil
}

// Delete removes a custom device.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.custom, id)
	if i < 0 {
		return &NotFoundError{Kind: "device", ID: id}
	}

	r.custom = append(r.custom[:i], r.custom[i+1:]...)
	r.saveLocked(ctx, KeyCustomDevices, r.custom)

	log.Info("Custom device deleted", "id", id)
	return nil
}

// UpsertReal merges a discovered device into the entry with the same IP, or
// creates a new real device. Reports whether a new record was created.
func (r *Registry) UpsertReal(ctx context.Context, in RealDeviceInput) (models.Device, bool, error) {
	if in.IP == "" {
		return models.Device{}, false, &ValidationError{Missing: []string{"ip"}}
	}
	if in.Status != nil && *in.Status != models.StatusOnline && *in.Status != models.StatusOffline {
		return models.Device{}, false, &ValidationError{Reason: fmt.Sprintf("unknown status %q", *in.Status)}
	}
	if in.PowerWatts != nil && *in.PowerWatts < 0 {
		return models.Device{}, false, &ValidationError{Reason: "powerWatts must be non-negative"}
	}
	if in.TrafficPattern != nil && !in.TrafficPattern.Valid() {
		return models.Device{}, false, &ValidationError{Reason: "trafficPattern requires 0 <= min <= max and burstChance in [0,1]"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := false
	i := -1
	for j := range r.real {
		if r.real[j].IP == in.IP {
			i = j
			break
		}
	}
	if i < 0 {
		r.real = append(r.real, models.Device{
			ID:     r.newIDLocked("real"),
			IP:     in.IP,
			Name:   in.IP,
			Source: models.SourceReal,
			Status: models.StatusOnline,
		})
		i = len(r.real) - 1
		created = true
	}

	mergeReal(&r.real[i], in)
	out := r.real[i].Clone()
	r.saveLocked(ctx, KeyRealDevices, r.real)

	log.Debug("Real device upserted", "id", out.ID, "ip", out.IP, "created", created)
	return out, created, nil
}

// ClearReal removes every real device and drops the stored entry.
func (r *Registry) ClearReal(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.real = nil
	if err := r.store.Delete(ctx, KeyRealDevices); err != nil {
		r.failedLocked("delete", KeyRealDevices, err)
		return
	}
	metrics.PersistenceOperations.WithLabelValues("delete", "success").Inc()
	r.lastErr = nil
}

// TogglePower flips online/offline for a controllable device. Returns false
// when the device is missing or not controllable.
func (r *Registry) TogglePower(ctx context.Context, id string) (models.Device, bool) {
	return r.mutate(ctx, id, func(d *models.Device) bool {
		if !d.Controllable {
			return false
		}
		if d.Status == models.StatusOnline {
			d.Status = models.StatusOffline
		} else {
			d.Status = models.StatusOnline
		}
		return true
	})
}

// ToggleBlock flips the blocked flag. Returns false when the device is missing.
func (r *Registry) ToggleBlock(ctx context.Context, id string) (models.Device, bool) {
	return r.mutate(ctx, id, func(d *models.Device) bool {
		d.Blocked = !d.Blocked
		return true
	})
}

func (r *Registry) mutate(ctx context.Context, id string, fn func(d *models.Device) bool) (models.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.findLocked(id)
	if d == nil || !fn(d) {
		return models.Device{}, false
	}

	out := d.Clone()
	if d.Source.Durable() {
		r.saveLocked(ctx, r.keyFor(d.Source), r.setFor(d.Source))
	}
	return out, true
}

func (r *Registry) keyFor(src models.Source) string {
	if src == models.SourceReal {
		return KeyRealDevices
	}
	return KeyCustomDevices
}

func (r *Registry) setFor(src models.Source) []models.Device {
	if src == models.SourceReal {
		return r.real
	}
	return r.custom
}

func (r *Registry) filter(keep func(models.Device) bool) []models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Device, 0, len(r.simulated)+len(r.custom)+len(r.real))
	for _, set := range [][]models.Device{r.simulated, r.custom, r.real} {
		for _, d := range set {
			if keep(d) {
				out = append(out, d.Clone())
			}
		}
	}
	return out
}

func (r *Registry) findLocked(id string) *models.Device {
	for _, set := range [][]models.Device{r.simulated, r.custom, r.real} {
		if i := indexOf(set, id); i >= 0 {
			return &set[i]
		}
	}
	return nil
}

func (r *Registry) newIDLocked(prefix string) string {
	for {
		id := prefix + "-" + uuid.NewString()
		if r.findLocked(id) == nil {
			return id
		}
	}
}

func (r *Registry) load(ctx context.Context, key string, src models.Source) []models.Device {
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		metrics.PersistenceOperations.WithLabelValues("load", "error").Inc()
		log.Error("Failed to load devices", "error", &PersistenceError{Op: "load", Key: key, Err: err})
		return nil
	}

	var stored []models.Device
	if err := json.Unmarshal(data, &stored); err != nil {
		metrics.PersistenceOperations.WithLabelValues("load", "error").Inc()
		log.Error("Failed to decode devices", "error", &PersistenceError{Op: "load", Key: key, Err: err})
		return nil
	}

	devices := make([]models.Device, 0, len(stored))
	for _, d := range stored {
		if d.ID == "" || r.findLocked(d.ID) != nil || indexOf(devices, d.ID) >= 0 {
			log.Warn("Skipping stored device with empty or duplicate id", "key", key, "id", d.ID)
			continue
		}
		if !d.TrafficPattern.Valid() || d.PowerWatts < 0 {
			log.Warn("Skipping stored device with invalid traffic pattern or power",
				"key", key, "id", d.ID, "pattern", d.TrafficPattern, "power_watts", d.PowerWatts)
			continue
		}
		d.Source = src
		if d.Status != models.StatusOffline {
			d.Status = models.StatusOnline
		}
		devices = append(devices, d)
	}
	metrics.PersistenceOperations.WithLabelValues("load", "success").Inc()
	return devices
}

// saveLocked writes a durable set. Failures are logged and recorded but never
// roll back the in-memory change.
func (r *Registry) saveLocked(ctx context.Context, key string, devices []models.Device) {
	if devices == nil {
		devices = []models.Device{}
	}

	data, err := json.Marshal(devices)
	if err == nil {
		err = r.store.Set(ctx, key, data)
	}
	if err == nil {
		metrics.PersistenceOperations.WithLabelValues("save", "success").Inc()
		r.lastErr = nil
		return
	}

	r.failedLocked("save", key, err)
}

// failedLocked records a failed write. Capacity errors raise an advisory.
func (r *Registry) failedLocked(op, key string, err error) {
	perr := &PersistenceError{Op: op, Key: key, Err: err}
	r.lastErr = perr
	metrics.PersistenceOperations.WithLabelValues(op, "error").Inc()
	log.Error("Failed to persist devices", "op", op, "key", key, "error", perr)

	if errors.Is(err, cache.ErrCapacity) && r.publisher != nil {
		r.publisher.Publish(events.Event{
			Type:    events.TypeAdvisory,
			Payload: Advisory{Message: quotaAdvisory, Key: key},
		})
	}
}

func mergeReal(d *models.Device, in RealDeviceInput) {
	d.Name = orDefault(in.Name, d.Name)
	d.Type = orDefault(in.Type, d.Type)
	d.Icon = orDefault(in.Icon, d.Icon)
	d.MAC = orDefault(in.MAC, d.MAC)
	d.Manufacturer = orDefault(in.Manufacturer, d.Manufacturer)
	if in.PowerWatts != nil {
		d.PowerWatts = *in.PowerWatts
	}
	if in.Controllable != nil {
		d.Controllable = *in.Controllable
	}
	if in.Status != nil {
		d.Status = *in.Status
	}
	if in.Blocked != nil {
		d.Blocked = *in.Blocked
	}
	if in.Servers != nil {
		d.Servers = append([]models.Server{}, in.Servers...)
	}
	if in.TrafficPattern != nil {
		d.TrafficPattern = *in.TrafficPattern
	}
}

// RandomMAC returns six random upper-case hex octets joined by colons.
func RandomMAC(src rng.Source) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		src.Intn(256), src.Intn(256), src.Intn(256),
		src.Intn(256), src.Intn(256), src.Intn(256))
}

func indexOf(devices []models.Device, id string) int {
	for i := range devices {
		if devices[i].ID == id {
			return i
		}
	}
	return -1
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
