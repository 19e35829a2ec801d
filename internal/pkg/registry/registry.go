package registry

import (
	"sort"
	"sync"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

// Registry owns every Device record, keyed by derived device key. Devices
// are value copies on the way in and out; no mutable alias ever escapes the
// lock.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]model.Device
}

func New() *Registry {
	return &Registry{
		devices: make(map[string]model.Device),
	}
}

// Add inserts or overwrites a device under its derived key.
func (r *Registry) Add(device model.Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[device.Key()] = device
}

// Get returns a copy of the device for key.
func (r *Registry) Get(key string) (model.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	device, ok := r.devices[key]
	return device, ok
}

// Update applies fn to the device under the write lock. The mutation is
// atomic per key: readers observe either the old or the new record, never a
// half-written one. fn must not block on I/O.
func (r *Registry) Update(key string, fn func(*model.Device)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.devices[key]
	if !ok {
		return false
	}
	fn(&device)
	r.devices[key] = device
	return true
}

// All returns a point-in-time snapshot sorted by key.
func (r *Registry) All() []model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]model.Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, device)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Key() < devices[j].Key()
	})
	return devices
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
