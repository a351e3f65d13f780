package protocol

import "strconv"

// DataValue is a reply payload. Kind is the discriminant: Int is meaningful
// for integer-shaped kinds, Text for text-shaped kinds.
type DataValue struct {
	Kind DataKind
	Int  int32
	Text string
}

func IntValue(kind DataKind, v int32) DataValue {
	return DataValue{Kind: kind, Int: v}
}

func TextValue(kind DataKind, v string) DataValue {
	return DataValue{Kind: kind, Text: v}
}

func (v DataValue) Shape() ValueShape { return v.Kind.Shape() }

// Field returns the DataValue wire field for v.
func (v DataValue) Field() (Field, error) {
	switch v.Shape() {
	case ShapeInteger:
		return NewFieldInt32(KeyDataValue, v.Int), nil
	case ShapeText:
		return NewFieldString(KeyDataValue, v.Text), nil
	default:
		return Field{}, ErrInvalidDataKind
	}
}

func (v DataValue) String() string {
	if v.Shape() == ShapeInteger {
		return strconv.FormatInt(int64(v.Int), 10)
	}
	return v.Text
}
