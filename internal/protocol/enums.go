package protocol

import (
	"fmt"
	"strings"
)

// RequestKind identifies an exchange. Its value doubles as the marker key
// written (with a zero value) into every request and reply.
type RequestKind int32

const (
	RequestGetData RequestKind = 24784 + iota
	RequestSetFeature
	RequestGetFeature
	RequestError
	RequestIsAvailable
)

// Key returns the marker key for k.
func (k RequestKind) Key() uint32 { return uint32(k) }

func (k RequestKind) known() bool {
	return k >= RequestGetData && k <= RequestIsAvailable
}

func (k RequestKind) String() string {
	switch k {
	case RequestGetData:
		return "GetData"
	case RequestSetFeature:
		return "SetFeature"
	case RequestGetFeature:
		return "GetFeature"
	case RequestError:
		return "Error"
	case RequestIsAvailable:
		return "IsAvailable"
	default:
		return fmt.Sprintf("RequestKind(%d)", int32(k))
	}
}

// ValueShape is the fixed wire type of a DataKind's value.
type ValueShape uint8

const (
	ShapeInvalid ValueShape = iota
	ShapeInteger
	ShapeText
)

func (s ValueShape) String() string {
	switch s {
	case ShapeInteger:
		return "integer"
	case ShapeText:
		return "text"
	default:
		return "invalid"
	}
}

// DataKind names a datum that can be read from the companion.
type DataKind int32

const (
	DataBatteryPercent DataKind = 678342 + iota
	DataGSMOperatorName
	DataGSMStrength
	DataWifiNetworkName
	DataStoragePercentUsed
	DataStorageFreeGBString
	DataUnreadSMSCount
	DataNextCalendarEventOneLine
	DataNextCalendarEventTwoLine
)

var dataKindNames = [...]string{
	"BatteryPercent",
	"GSMOperatorName",
	"GSMStrength",
	"WifiNetworkName",
	"StoragePercentUsed",
	"StorageFreeGBString",
	"UnreadSMSCount",
	"NextCalendarEventOneLine",
	"NextCalendarEventTwoLine",
}

// Valid reports whether k is inside the defined range.
func (k DataKind) Valid() bool {
	return k >= DataBatteryPercent && k <= DataNextCalendarEventTwoLine
}

// Shape returns the fixed value shape for k, or ShapeInvalid.
func (k DataKind) Shape() ValueShape {
	switch k {
	case DataBatteryPercent, DataGSMStrength, DataStoragePercentUsed, DataUnreadSMSCount:
		return ShapeInteger
	case DataGSMOperatorName, DataWifiNetworkName, DataStorageFreeGBString,
		DataNextCalendarEventOneLine, DataNextCalendarEventTwoLine:
		return ShapeText
	default:
		return ShapeInvalid
	}
}

func (k DataKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("DataKind(%d)", int32(k))
	}
	return dataKindNames[k-DataBatteryPercent]
}

// DataKinds lists every defined DataKind in wire order.
func DataKinds() []DataKind {
	out := make([]DataKind, 0, len(dataKindNames))
	for k := DataBatteryPercent; k <= DataNextCalendarEventTwoLine; k++ {
		out = append(out, k)
	}
	return out
}

// ParseDataKind accepts a kind name in any case, with or without separators
// ("battery-percent", "BatteryPercent").
func ParseDataKind(raw string) (DataKind, error) {
	want := normalizeName(raw)
	for _, k := range DataKinds() {
		if normalizeName(k.String()) == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDataKind, raw)
}

// FeatureKind names a settable companion capability.
type FeatureKind int32

const (
	FeatureWifi FeatureKind = 467822 + iota
	FeatureBluetooth
	FeatureRinger
	FeatureAutoSync
	FeatureHotSpot
	FeatureAutoBrightness
)

var featureKindNames = [...]string{
	"Wifi",
	"Bluetooth",
	"Ringer",
	"AutoSync",
	"HotSpot",
	"AutoBrightness",
}

func (k FeatureKind) Valid() bool {
	return k >= FeatureWifi && k <= FeatureAutoBrightness
}

func (k FeatureKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("FeatureKind(%d)", int32(k))
	}
	return featureKindNames[k-FeatureWifi]
}

func FeatureKinds() []FeatureKind {
	out := make([]FeatureKind, 0, len(featureKindNames))
	for k := FeatureWifi; k <= FeatureAutoBrightness; k++ {
		out = append(out, k)
	}
	return out
}

func ParseFeatureKind(raw string) (FeatureKind, error) {
	want := normalizeName(raw)
	for _, k := range FeatureKinds() {
		if normalizeName(k.String()) == want {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidFeatureKind, raw)
}

// FeatureState is a feature setting. Which states make sense depends on the
// feature, but only the range is checked here.
type FeatureState int32

const (
	FeatureStateUnknown FeatureState = iota
	FeatureStateOff
	FeatureStateOn
	FeatureStateRingerLoud
	FeatureStateRingerVibrate
	FeatureStateRingerSilent
)

var featureStateNames = [...]string{
	"Unknown",
	"Off",
	"On",
	"RingerLoud",
	"RingerVibrate",
	"RingerSilent",
}

// Valid reports whether s may be requested. Unknown is never valid.
func (s FeatureState) Valid() bool {
	return s >= FeatureStateOff && s <= FeatureStateRingerSilent
}

// InRange reports whether s may appear in a reply (Unknown included).
func (s FeatureState) InRange() bool {
	return s >= FeatureStateUnknown && s <= FeatureStateRingerSilent
}

func (s FeatureState) String() string {
	if !s.InRange() {
		return fmt.Sprintf("FeatureState(%d)", int32(s))
	}
	return featureStateNames[s]
}

func ParseFeatureState(raw string) (FeatureState, error) {
	want := normalizeName(raw)
	for s := FeatureStateOff; s <= FeatureStateRingerSilent; s++ {
		name := normalizeName(s.String())
		if name == want || strings.TrimPrefix(name, "ringer") == want {
			return s, nil
		}
	}
	return FeatureStateUnknown, fmt.Errorf("%w: %q", ErrInvalidFeatureState, raw)
}

// ErrorKind is the outcome of an exchange.
type ErrorKind int32

const (
	ErrorSuccess ErrorKind = iota
	ErrorSendFailed
	ErrorUnavailable
	ErrorNoPermission
	ErrorWrongVersion
)

func (k ErrorKind) Valid() bool {
	return k >= ErrorSuccess && k <= ErrorWrongVersion
}

func (k ErrorKind) String() string {
	switch k {
	case ErrorSuccess:
		return "Success"
	case ErrorSendFailed:
		return "SendFailed"
	case ErrorUnavailable:
		return "Unavailable"
	case ErrorNoPermission:
		return "NoPermission"
	case ErrorWrongVersion:
		return "WrongVersion"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int32(k))
	}
}

// Text returns a user-facing description of k.
func (k ErrorKind) Text() string {
	switch k {
	case ErrorSuccess:
		return "The request was successful."
	case ErrorSendFailed:
		return "The request failed to send."
	case ErrorUnavailable:
		return "The companion app is not installed, or the request timed out."
	case ErrorNoPermission:
		return "This app does not have write permission turned on in the companion app."
	case ErrorWrongVersion:
		return "An incompatible version of the companion app is installed."
	default:
		return fmt.Sprintf("Unknown error (code %d)", int32(k))
	}
}

func normalizeName(raw string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(raw)))
}
