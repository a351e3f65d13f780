package protocol

import "errors"

var (
	ErrFieldMissing        = errors.New("protocol: field missing")
	ErrFieldTypeMismatch   = errors.New("protocol: field type mismatch")
	ErrUnknownRequest      = errors.New("protocol: unknown request kind")
	ErrInvalidDataKind     = errors.New("protocol: invalid data kind")
	ErrInvalidFeatureKind  = errors.New("protocol: invalid feature kind")
	ErrInvalidFeatureState = errors.New("protocol: invalid feature state")
	ErrInvalidErrorKind    = errors.New("protocol: invalid error kind")
	ErrValueShapeMismatch  = errors.New("protocol: value shape mismatch")
	ErrInvalidAppName      = errors.New("protocol: invalid app name")
)
