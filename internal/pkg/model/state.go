package model

import (
	"encoding/json"
	"fmt"
)

// CoverMotion is the locally tracked travel direction of a window covering.
// The backend only offers up/stop/down pulses, so motion reflects the last
// confirmed command rather than a measured value.
type CoverMotion string

const (
	MotionStopped CoverMotion = "stopped"
	MotionOpening CoverMotion = "opening"
	MotionClosing CoverMotion = "closing"
)

// DeviceState is a closed set of per-type state variants. Every read/write
// site type-switches over the concrete kinds; there is no generic bag.
type DeviceState interface {
	StateKind() string
	isDeviceState()
}

type OnOff struct {
	On bool `json:"on"`
}

type Brightness struct {
	On    bool  `json:"on"`
	Level uint8 `json:"level"`
}

type WindowCovering struct {
	Position uint8       `json:"position"`
	Motion   CoverMotion `json:"motion"`
}

type Temperature struct {
	Celsius float64 `json:"celsius"`
}

type FanSpeed struct {
	Speed uint8 `json:"speed"`
}

const (
	StateKindOnOff          = "onoff"
	StateKindBrightness     = "brightness"
	StateKindWindowCovering = "window_covering"
	StateKindTemperature    = "temperature"
	StateKindFanSpeed       = "fan_speed"
)

func (OnOff) StateKind() string          { return StateKindOnOff }
func (Brightness) StateKind() string     { return StateKindBrightness }
func (WindowCovering) StateKind() string { return StateKindWindowCovering }
func (Temperature) StateKind() string    { return StateKindTemperature }
func (FanSpeed) StateKind() string       { return StateKindFanSpeed }

func (OnOff) isDeviceState()          {}
func (Brightness) isDeviceState()     {}
func (WindowCovering) isDeviceState() {}
func (Temperature) isDeviceState()    {}
func (FanSpeed) isDeviceState()       {}

func (s OnOff) MarshalJSON() ([]byte, error) {
	type alias OnOff
	return marshalState(s.StateKind(), alias(s))
}

func (s Brightness) MarshalJSON() ([]byte, error) {
	type alias Brightness
	return marshalState(s.StateKind(), alias(s))
}

func (s WindowCovering) MarshalJSON() ([]byte, error) {
	type alias WindowCovering
	return marshalState(s.StateKind(), alias(s))
}

func (s Temperature) MarshalJSON() ([]byte, error) {
	type alias Temperature
	return marshalState(s.StateKind(), alias(s))
}

func (s FanSpeed) MarshalJSON() ([]byte, error) {
	type alias FanSpeed
	return marshalState(s.StateKind(), alias(s))
}

// marshalState wraps the variant fields in a tagged envelope so clients can
// dispatch on "type" without knowing the registry entry's DeviceType.
func marshalState(kind string, fields any) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	envelope["type"] = json.RawMessage(fmt.Sprintf("%q", kind))
	return json.Marshal(envelope)
}

// UnmarshalState decodes a tagged state envelope back into its variant.
func UnmarshalState(data []byte) (DeviceState, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case StateKindOnOff:
		var s OnOff
		return s, json.Unmarshal(data, &s)
	case StateKindBrightness:
		var s Brightness
		return s, json.Unmarshal(data, &s)
	case StateKindWindowCovering:
		var s WindowCovering
		return s, json.Unmarshal(data, &s)
	case StateKindTemperature:
		var s Temperature
		return s, json.Unmarshal(data, &s)
	case StateKindFanSpeed:
		var s FanSpeed
		return s, json.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unknown state kind %q", probe.Type)
	}
}

// UnmarshalJSON restores the tagged state variant alongside the plain fields.
func (d *Device) UnmarshalJSON(data []byte) error {
	type alias Device
	aux := struct {
		State json.RawMessage `json:"state"`
		*alias
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.State) == 0 {
		return nil
	}
	state, err := UnmarshalState(aux.State)
	if err != nil {
		return err
	}
	d.State = state
	return nil
}
