package model

import "strings"

// DeviceType is assigned once at discovery time from the visu page markup
// and never changes for the lifetime of the process.
type DeviceType string

const (
	DeviceTypeLight             DeviceType = "light"
	DeviceTypeDimmer            DeviceType = "dimmer"
	DeviceTypeWindowCovering    DeviceType = "window_covering"
	DeviceTypeTemperatureSensor DeviceType = "temperature_sensor"
	DeviceTypeFan               DeviceType = "fan"
	DeviceTypeScene             DeviceType = "scene"
	DeviceTypeSwitch            DeviceType = "switch"
)

func (dt DeviceType) String() string {
	return string(dt)
}

// Descriptor is a raw device as handed over by the page scraper, before it
// is registered.
type Descriptor struct {
	ID     string
	Name   string
	Page   string
	Index  string
	Type   DeviceType
	Active bool
}

// Device is one controllable or observable endpoint on the visu. State is
// the only mutable field and is owned by the state manager.
type Device struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Type  DeviceType  `json:"device_type"`
	Page  string      `json:"page"`
	Index string      `json:"index"`
	State DeviceState `json:"state"`
}

// DeviceKey derives the stable registry key from the vendor element id and
// page number. Idempotent: feeding a derived key back in returns it unchanged.
func DeviceKey(id, page string) string {
	if strings.Contains(id, "_page") {
		return id
	}
	return id + "_page" + page
}

// NewDevice builds a Device from a discovered descriptor with the zero state
// for its type.
func NewDevice(d Descriptor) Device {
	dev := Device{
		ID:    d.ID,
		Name:  d.Name,
		Type:  d.Type,
		Page:  d.Page,
		Index: d.Index,
		State: zeroState(d.Type),
	}
	dev.SetOn(d.Active)
	return dev
}

func zeroState(dt DeviceType) DeviceState {
	switch dt {
	case DeviceTypeDimmer:
		return Brightness{}
	case DeviceTypeWindowCovering:
		return WindowCovering{Motion: MotionStopped}
	case DeviceTypeTemperatureSensor:
		return Temperature{}
	default:
		return OnOff{}
	}
}

func (d *Device) Key() string {
	return DeviceKey(d.ID, d.Page)
}

// IsOn reports the on flag for on/off and brightness states; every other
// state kind reads as off.
func (d *Device) IsOn() bool {
	switch s := d.State.(type) {
	case OnOff:
		return s.On
	case Brightness:
		return s.On
	default:
		return false
	}
}

// SetOn flips the on flag where the state kind carries one and is a no-op
// otherwise.
func (d *Device) SetOn(on bool) {
	switch s := d.State.(type) {
	case OnOff:
		s.On = on
		d.State = s
	case Brightness:
		s.On = on
		d.State = s
	}
}
