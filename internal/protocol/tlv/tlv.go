package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/dashlink/internal/protocol"
)

// HeaderLen is key(4) + type(1) + len(2).
const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrUnknownType      = errors.New("tlv: unknown field type")
	ErrBadIntLength     = errors.New("tlv: invalid int32 length")
	ErrValueTooLarge    = errors.New("tlv: value too large")
)

// EncodeField appends one field to dst.
func EncodeField(dst []byte, f protocol.Field) ([]byte, error) {
	var value []byte
	switch f.Type {
	case protocol.FieldInt32:
		value = binary.BigEndian.AppendUint32(nil, uint32(f.Int))
	case protocol.FieldString:
		value = []byte(f.Text)
	default:
		return dst, fmt.Errorf("%w: key %d type %d", ErrUnknownType, f.Key, f.Type)
	}
	if len(value) > math.MaxUint16 {
		return dst, fmt.Errorf("%w: key %d is %d bytes", ErrValueTooLarge, f.Key, len(value))
	}
	dst = binary.BigEndian.AppendUint32(dst, f.Key)
	dst = append(dst, uint8(f.Type))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(value)))
	return append(dst, value...), nil
}

// EncodeDict encodes every field of d in insertion order.
func EncodeDict(d protocol.Dict) ([]byte, error) {
	out := make([]byte, 0, d.Len()*(HeaderLen+4))
	var err error
	for _, f := range d.Fields() {
		out, err = EncodeField(out, f)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeDict parses a full payload. A repeated key keeps the last value.
func DecodeDict(payload []byte) (protocol.Dict, error) {
	var d protocol.Dict
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return protocol.Dict{}, ErrShortFieldHeader
		}
		key := binary.BigEndian.Uint32(payload[i : i+4])
		typeID := protocol.FieldType(payload[i+4])
		l := int(binary.BigEndian.Uint16(payload[i+5 : i+7]))
		i += HeaderLen
		if len(payload)-i < l {
			return protocol.Dict{}, ErrShortFieldValue
		}
		val := payload[i : i+l]
		i += l

		switch typeID {
		case protocol.FieldInt32:
			if l != 4 {
				return protocol.Dict{}, fmt.Errorf("%w: key %d has %d bytes", ErrBadIntLength, key, l)
			}
			d.SetInt32(key, int32(binary.BigEndian.Uint32(val)))
		case protocol.FieldString:
			d.SetString(key, string(val))
		default:
			return protocol.Dict{}, fmt.Errorf("%w: key %d type %d", ErrUnknownType, key, typeID)
		}
	}
	return d, nil
}
