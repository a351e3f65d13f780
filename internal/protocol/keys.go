package protocol

// Wire keys. Request kind markers share the same key space (see RequestKind).
const (
	KeyFeatureType uint32 = 47836 + iota
	KeyFeatureState
	KeyDataType
	KeyDataValue
	KeyUsesDashAPI
	KeyAppName
	KeyErrorCode
	KeyLibraryVersion
)

const (
	// DefaultLibraryVersion is the companion app version this library speaks.
	DefaultLibraryVersion = "1.2"
	// MaxAppNameBytes bounds the app name written into every header.
	MaxAppNameBytes = 32
)

func keyName(key uint32) string {
	switch key {
	case KeyFeatureType:
		return "FeatureType"
	case KeyFeatureState:
		return "FeatureState"
	case KeyDataType:
		return "DataType"
	case KeyDataValue:
		return "DataValue"
	case KeyUsesDashAPI:
		return "UsesDashAPI"
	case KeyAppName:
		return "AppName"
	case KeyErrorCode:
		return "ErrorCode"
	case KeyLibraryVersion:
		return "LibraryVersion"
	}
	if k := RequestKind(key); k.known() {
		return k.String()
	}
	return "Unknown"
}
