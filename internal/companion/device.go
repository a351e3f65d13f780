package companion

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/dashlink/internal/protocol"
)

var ErrUnsupportedState = errors.New("companion: state not supported by feature")

// Device is the simulated phone state answered to clients.
type Device struct {
	mu       sync.RWMutex
	data     map[protocol.DataKind]protocol.DataValue
	features map[protocol.FeatureKind]protocol.FeatureState
}

func NewDevice() *Device {
	d := &Device{
		data:     make(map[protocol.DataKind]protocol.DataValue),
		features: make(map[protocol.FeatureKind]protocol.FeatureState),
	}
	for _, v := range []protocol.DataValue{
		protocol.IntValue(protocol.DataBatteryPercent, 87),
		protocol.TextValue(protocol.DataGSMOperatorName, "Carrier"),
		protocol.IntValue(protocol.DataGSMStrength, 72),
		protocol.TextValue(protocol.DataWifiNetworkName, "HomeNet"),
		protocol.IntValue(protocol.DataStoragePercentUsed, 41),
		protocol.TextValue(protocol.DataStorageFreeGBString, "18.4 GB"),
		protocol.IntValue(protocol.DataUnreadSMSCount, 2),
		protocol.TextValue(protocol.DataNextCalendarEventOneLine, "10:30 Standup"),
		protocol.TextValue(protocol.DataNextCalendarEventTwoLine, "10:30\nStandup"),
	} {
		d.data[v.Kind] = v
	}
	d.features[protocol.FeatureWifi] = protocol.FeatureStateOn
	d.features[protocol.FeatureBluetooth] = protocol.FeatureStateOn
	d.features[protocol.FeatureRinger] = protocol.FeatureStateRingerLoud
	d.features[protocol.FeatureAutoSync] = protocol.FeatureStateOn
	d.features[protocol.FeatureHotSpot] = protocol.FeatureStateOff
	d.features[protocol.FeatureAutoBrightness] = protocol.FeatureStateOn
	return d
}

func (d *Device) Data(kind protocol.DataKind) (protocol.DataValue, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.data[kind]
	return v, ok
}

// SetData replaces a datum. The value must match the kind's shape.
func (d *Device) SetData(v protocol.DataValue) error {
	if v.Shape() == protocol.ShapeInvalid {
		return fmt.Errorf("%w: %d", protocol.ErrInvalidDataKind, int32(v.Kind))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[v.Kind] = v
	return nil
}

func (d *Device) Feature(kind protocol.FeatureKind) protocol.FeatureState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if s, ok := d.features[kind]; ok {
		return s
	}
	return protocol.FeatureStateUnknown
}

// SetFeature applies state and returns the resulting state. The ringer takes
// only ringer states; every other feature takes On or Off.
func (d *Device) SetFeature(kind protocol.FeatureKind, state protocol.FeatureState) (protocol.FeatureState, error) {
	if !kind.Valid() {
		return protocol.FeatureStateUnknown, fmt.Errorf("%w: %d", protocol.ErrInvalidFeatureKind, int32(kind))
	}
	if !supports(kind, state) {
		return d.Feature(kind), fmt.Errorf("%w: %s %s", ErrUnsupportedState, kind, state)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.features[kind] = state
	return state, nil
}

// Snapshot returns display names for every datum and feature.
func (d *Device) Snapshot() (map[string]string, map[string]string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	data := make(map[string]string, len(d.data))
	for k, v := range d.data {
		data[k.String()] = v.String()
	}
	features := make(map[string]string, len(d.features))
	for k, s := range d.features {
		features[k.String()] = s.String()
	}
	return data, features
}

func supports(kind protocol.FeatureKind, state protocol.FeatureState) bool {
	switch state {
	case protocol.FeatureStateRingerLoud, protocol.FeatureStateRingerVibrate, protocol.FeatureStateRingerSilent:
		return kind == protocol.FeatureRinger
	case protocol.FeatureStateOn, protocol.FeatureStateOff:
		return kind != protocol.FeatureRinger
	default:
		return false
	}
}
