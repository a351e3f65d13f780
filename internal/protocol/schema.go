package protocol

import "fmt"

// FieldSpec declares a known field within a message shape. A zero Type
// accepts either wire type.
type FieldSpec struct {
	Key      uint32
	Type     FieldType
	Required bool
}

// Schema lists the fields that accompany one request kind marker.
type Schema struct {
	Marker RequestKind
	Fields []FieldSpec
}

var headerSchema = []FieldSpec{
	{Key: KeyUsesDashAPI, Type: FieldInt32, Required: true},
	{Key: KeyAppName, Type: FieldString, Required: true},
	{Key: KeyLibraryVersion, Type: FieldString, Required: true},
}

// Schemas for packets sent to the companion.
var requestSchemas = map[RequestKind]Schema{
	RequestGetData: {Marker: RequestGetData, Fields: []FieldSpec{
		{Key: KeyDataType, Type: FieldInt32, Required: true},
	}},
	RequestSetFeature: {Marker: RequestSetFeature, Fields: []FieldSpec{
		{Key: KeyFeatureType, Type: FieldInt32, Required: true},
		{Key: KeyFeatureState, Type: FieldInt32, Required: true},
	}},
	RequestGetFeature: {Marker: RequestGetFeature, Fields: []FieldSpec{
		{Key: KeyFeatureType, Type: FieldInt32, Required: true},
	}},
	RequestIsAvailable: {Marker: RequestIsAvailable},
}

// Schemas for packets sent back by the companion.
var replySchemas = map[RequestKind]Schema{
	RequestGetData: {Marker: RequestGetData, Fields: []FieldSpec{
		{Key: KeyDataType, Type: FieldInt32, Required: true},
		{Key: KeyDataValue, Required: true},
	}},
	RequestSetFeature: {Marker: RequestSetFeature, Fields: []FieldSpec{
		{Key: KeyFeatureType, Type: FieldInt32, Required: true},
		{Key: KeyFeatureState, Type: FieldInt32, Required: true},
	}},
	RequestGetFeature: {Marker: RequestGetFeature, Fields: []FieldSpec{
		{Key: KeyFeatureType, Type: FieldInt32, Required: true},
		{Key: KeyFeatureState, Type: FieldInt32, Required: true},
	}},
	RequestError: {Marker: RequestError, Fields: []FieldSpec{
		{Key: KeyErrorCode, Type: FieldInt32, Required: true},
	}},
}

// replyMarkerOrder is the precedence used when a reply carries several markers.
var replyMarkerOrder = []RequestKind{
	RequestGetData,
	RequestSetFeature,
	RequestGetFeature,
	RequestError,
}

var requestMarkerOrder = []RequestKind{
	RequestGetData,
	RequestSetFeature,
	RequestGetFeature,
	RequestIsAvailable,
}

func checkFields(d Dict, specs []FieldSpec) error {
	for _, spec := range specs {
		f, ok := d.Get(spec.Key)
		if !ok {
			if spec.Required {
				return MissingFieldError{Key: spec.Key}
			}
			continue
		}
		if spec.Type != 0 && f.Type != spec.Type {
			return fmt.Errorf("%w: key %s is %s, want %s", ErrFieldTypeMismatch, keyName(f.Key), f.Type, spec.Type)
		}
	}
	return nil
}

func findMarker(d Dict, order []RequestKind) (RequestKind, bool) {
	for _, k := range order {
		if d.Has(k.Key()) {
			return k, true
		}
	}
	return 0, false
}
