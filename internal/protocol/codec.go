package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Header is written at the start of every request.
type Header struct {
	AppName        string
	LibraryVersion string
}

// Request is one outbound exchange.
type Request struct {
	Kind    RequestKind
	Data    DataKind
	Feature FeatureKind
	State   FeatureState
}

func GetDataRequest(kind DataKind) Request {
	return Request{Kind: RequestGetData, Data: kind}
}

func SetFeatureRequest(kind FeatureKind, state FeatureState) Request {
	return Request{Kind: RequestSetFeature, Feature: kind, State: state}
}

func GetFeatureRequest(kind FeatureKind) Request {
	return Request{Kind: RequestGetFeature, Feature: kind}
}

func IsAvailableRequest() Request {
	return Request{Kind: RequestIsAvailable}
}

// Validate checks the kind-specific fields against their enumerated ranges.
func (r Request) Validate() error {
	switch r.Kind {
	case RequestGetData:
		if !r.Data.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidDataKind, int32(r.Data))
		}
	case RequestSetFeature:
		if !r.Feature.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidFeatureKind, int32(r.Feature))
		}
		if !r.State.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidFeatureState, int32(r.State))
		}
	case RequestGetFeature:
		if !r.Feature.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidFeatureKind, int32(r.Feature))
		}
	case RequestIsAvailable:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownRequest, int32(r.Kind))
	}
	return nil
}

func (r Request) String() string {
	switch r.Kind {
	case RequestGetData:
		return fmt.Sprintf("%s %s", r.Kind, r.Data)
	case RequestSetFeature:
		return fmt.Sprintf("%s %s %s", r.Kind, r.Feature, r.State)
	case RequestGetFeature:
		return fmt.Sprintf("%s %s", r.Kind, r.Feature)
	default:
		return r.Kind.String()
	}
}

// TruncateAppName cuts name to at most max bytes without splitting a rune.
func TruncateAppName(name string, max int) string {
	if max <= 0 || len(name) <= max {
		return name
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// EncodeRequest builds the outbound dictionary for r: the fixed header
// followed by the request marker and its fields.
func EncodeRequest(h Header, r Request) (Dict, error) {
	if err := r.Validate(); err != nil {
		return Dict{}, err
	}
	name := strings.TrimSpace(h.AppName)
	if name == "" {
		return Dict{}, fmt.Errorf("%w: empty", ErrInvalidAppName)
	}
	version := strings.TrimSpace(h.LibraryVersion)
	if version == "" {
		version = DefaultLibraryVersion
	}

	var d Dict
	d.SetInt32(KeyUsesDashAPI, 0)
	d.SetString(KeyAppName, TruncateAppName(name, MaxAppNameBytes))
	d.SetString(KeyLibraryVersion, version)
	d.SetInt32(r.Kind.Key(), 0)
	switch r.Kind {
	case RequestGetData:
		d.SetInt32(KeyDataType, int32(r.Data))
	case RequestSetFeature:
		d.SetInt32(KeyFeatureType, int32(r.Feature))
		// full 32-bit width; the state ordinals are tiny next to the other kinds
		d.SetInt32(KeyFeatureState, int32(r.State))
	case RequestGetFeature:
		d.SetInt32(KeyFeatureType, int32(r.Feature))
	}
	return d, nil
}

// Event is a decoded inbound message.
type Event interface {
	isEvent()
}

// DataReply answers a GetData request.
type DataReply struct {
	Value DataValue
}

// FeatureReply answers a SetFeature or GetFeature request.
type FeatureReply struct {
	Request RequestKind
	Kind    FeatureKind
	State   FeatureState
}

// ResultReply carries an ErrorKind that is not tied to a typed reply.
type ResultReply struct {
	Code ErrorKind
}

// Malformed is any inbound message that matches no known shape.
type Malformed struct {
	Reason error
}

func (DataReply) isEvent()    {}
func (FeatureReply) isEvent() {}
func (ResultReply) isEvent()  {}
func (Malformed) isEvent()    {}

// DecodeResponse classifies an inbound dictionary. Markers are checked in the
// order GetData, SetFeature, GetFeature, Error.
func DecodeResponse(d Dict) Event {
	marker, ok := findMarker(d, replyMarkerOrder)
	if !ok {
		return Malformed{Reason: ErrUnknownRequest}
	}
	if err := checkFields(d, replySchemas[marker].Fields); err != nil {
		return Malformed{Reason: fmt.Errorf("%s reply: %w", marker, err)}
	}

	switch marker {
	case RequestGetData:
		v, err := decodeDataValue(d)
		if err != nil {
			return Malformed{Reason: fmt.Errorf("%s reply: %w", marker, err)}
		}
		return DataReply{Value: v}
	case RequestSetFeature, RequestGetFeature:
		kind, state, err := decodeFeature(d, FeatureState.InRange)
		if err != nil {
			return Malformed{Reason: fmt.Errorf("%s reply: %w", marker, err)}
		}
		return FeatureReply{Request: marker, Kind: kind, State: state}
	default:
		raw, _ := d.Int32(KeyErrorCode)
		code := ErrorKind(raw)
		if !code.Valid() {
			return Malformed{Reason: fmt.Errorf("%w: %d", ErrInvalidErrorKind, raw)}
		}
		return ResultReply{Code: code}
	}
}

func decodeDataValue(d Dict) (DataValue, error) {
	raw, _ := d.Int32(KeyDataType)
	kind := DataKind(raw)
	f, _ := d.Get(KeyDataValue)
	switch kind.Shape() {
	case ShapeInteger:
		n, err := f.Int32()
		if err != nil {
			return DataValue{}, fmt.Errorf("%w: %s wants integer", ErrValueShapeMismatch, kind)
		}
		return IntValue(kind, n), nil
	case ShapeText:
		s, err := f.Str()
		if err != nil {
			return DataValue{}, fmt.Errorf("%w: %s wants text", ErrValueShapeMismatch, kind)
		}
		return TextValue(kind, s), nil
	default:
		return DataValue{}, fmt.Errorf("%w: %d", ErrInvalidDataKind, raw)
	}
}

func decodeFeature(d Dict, stateOK func(FeatureState) bool) (FeatureKind, FeatureState, error) {
	rawKind, _ := d.Int32(KeyFeatureType)
	kind := FeatureKind(rawKind)
	if !kind.Valid() {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidFeatureKind, rawKind)
	}
	state := FeatureStateUnknown
	if d.Has(KeyFeatureState) {
		rawState, _ := d.Int32(KeyFeatureState)
		state = FeatureState(rawState)
		if !stateOK(state) {
			return 0, 0, fmt.Errorf("%w: %d", ErrInvalidFeatureState, rawState)
		}
	}
	return kind, state, nil
}

// DecodeRequest parses a packet received by the companion. The header is
// returned even when the request body is rejected so the caller can still
// answer version mismatches.
func DecodeRequest(d Dict) (Header, Request, error) {
	var h Header
	h.AppName, _ = d.Str(KeyAppName)
	h.LibraryVersion, _ = d.Str(KeyLibraryVersion)
	if err := checkFields(d, headerSchema); err != nil {
		return h, Request{}, err
	}

	marker, ok := findMarker(d, requestMarkerOrder)
	if !ok {
		return h, Request{}, ErrUnknownRequest
	}
	if err := checkFields(d, requestSchemas[marker].Fields); err != nil {
		return h, Request{}, fmt.Errorf("%s request: %w", marker, err)
	}

	r := Request{Kind: marker}
	switch marker {
	case RequestGetData:
		raw, _ := d.Int32(KeyDataType)
		r.Data = DataKind(raw)
	case RequestSetFeature:
		rawKind, _ := d.Int32(KeyFeatureType)
		rawState, _ := d.Int32(KeyFeatureState)
		r.Feature = FeatureKind(rawKind)
		r.State = FeatureState(rawState)
	case RequestGetFeature:
		raw, _ := d.Int32(KeyFeatureType)
		r.Feature = FeatureKind(raw)
	}
	return h, r, r.Validate()
}

// EncodeDataReply builds the companion's answer to a GetData request.
func EncodeDataReply(v DataValue) (Dict, error) {
	f, err := v.Field()
	if err != nil {
		return Dict{}, fmt.Errorf("%w: %d", err, int32(v.Kind))
	}
	var d Dict
	d.SetInt32(RequestGetData.Key(), 0)
	d.SetInt32(KeyDataType, int32(v.Kind))
	d.Set(f)
	return d, nil
}

// EncodeFeatureReply builds the companion's answer to a SetFeature or
// GetFeature request.
func EncodeFeatureReply(req RequestKind, kind FeatureKind, state FeatureState) (Dict, error) {
	if req != RequestSetFeature && req != RequestGetFeature {
		return Dict{}, fmt.Errorf("%w: %s is not a feature request", ErrUnknownRequest, req)
	}
	if !kind.Valid() {
		return Dict{}, fmt.Errorf("%w: %d", ErrInvalidFeatureKind, int32(kind))
	}
	if !state.InRange() {
		return Dict{}, fmt.Errorf("%w: %d", ErrInvalidFeatureState, int32(state))
	}
	var d Dict
	d.SetInt32(req.Key(), 0)
	d.SetInt32(KeyFeatureType, int32(kind))
	d.SetInt32(KeyFeatureState, int32(state))
	return d, nil
}

// EncodeResult builds a result marker reply.
func EncodeResult(code ErrorKind) Dict {
	var d Dict
	d.SetInt32(RequestError.Key(), 0)
	d.SetInt32(KeyErrorCode, int32(code))
	return d
}
