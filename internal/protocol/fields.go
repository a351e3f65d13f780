package protocol

import "fmt"

// FieldType is the wire type of a dictionary value.
type FieldType uint8

const (
	FieldInt32  FieldType = 1
	FieldString FieldType = 2
)

func (t FieldType) String() string {
	switch t {
	case FieldInt32:
		return "int32"
	case FieldString:
		return "string"
	default:
		return fmt.Sprintf("FieldType(%d)", uint8(t))
	}
}

// Field is one keyed dictionary value.
type Field struct {
	Key  uint32
	Type FieldType
	Int  int32
	Text string
}

// NewFieldInt32 creates an int32 field.
func NewFieldInt32(key uint32, v int32) Field {
	return Field{Key: key, Type: FieldInt32, Int: v}
}

// NewFieldString creates a string field.
func NewFieldString(key uint32, v string) Field {
	return Field{Key: key, Type: FieldString, Text: v}
}

// Int32 returns the field value as int32.
func (f Field) Int32() (int32, error) {
	if f.Type != FieldInt32 {
		return 0, fmt.Errorf("%w: key %s is %s", ErrFieldTypeMismatch, keyName(f.Key), f.Type)
	}
	return f.Int, nil
}

// Str returns the field value as string.
func (f Field) Str() (string, error) {
	if f.Type != FieldString {
		return "", fmt.Errorf("%w: key %s is %s", ErrFieldTypeMismatch, keyName(f.Key), f.Type)
	}
	return f.Text, nil
}

func (f Field) String() string {
	if f.Type == FieldString {
		return fmt.Sprintf("%s=%q", keyName(f.Key), f.Text)
	}
	return fmt.Sprintf("%s=%d", keyName(f.Key), f.Int)
}

// Dict is a flat set of uniquely keyed fields. Insertion order is kept so
// encoded packets are deterministic.
type Dict struct {
	fields []Field
}

func NewDict(fields ...Field) Dict {
	var d Dict
	for _, f := range fields {
		d.Set(f)
	}
	return d
}

// Set stores f, replacing any field with the same key.
func (d *Dict) Set(f Field) {
	for i := range d.fields {
		if d.fields[i].Key == f.Key {
			d.fields[i] = f
			return
		}
	}
	d.fields = append(d.fields, f)
}

func (d *Dict) SetInt32(key uint32, v int32) { d.Set(NewFieldInt32(key, v)) }

func (d *Dict) SetString(key uint32, v string) { d.Set(NewFieldString(key, v)) }

func (d Dict) Get(key uint32) (Field, bool) {
	for _, f := range d.fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

func (d Dict) Has(key uint32) bool {
	_, ok := d.Get(key)
	return ok
}

func (d Dict) Int32(key uint32) (int32, error) {
	f, ok := d.Get(key)
	if !ok {
		return 0, MissingFieldError{Key: key}
	}
	return f.Int32()
}

func (d Dict) Str(key uint32) (string, error) {
	f, ok := d.Get(key)
	if !ok {
		return "", MissingFieldError{Key: key}
	}
	return f.Str()
}

// Fields returns a copy of the fields in insertion order.
func (d Dict) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d Dict) Len() int { return len(d.fields) }

// MissingFieldError indicates a required field was not present.
type MissingFieldError struct {
	Key uint32
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("protocol: missing required field %s (%d)", keyName(e.Key), e.Key)
}

func (e MissingFieldError) Is(target error) bool {
	return target == ErrFieldMissing
}
