package zcl

import (
	"errors"
	"fmt"
	"math"
)

// Data type IDs
const (
	TypeNoData  uint8 = 0x00
	TypeBool    uint8 = 0x10
	TypeBitmap8 uint8 = 0x18
	TypeUint8   uint8 = 0x20
	TypeUint16  uint8 = 0x21
	TypeInt16   uint8 = 0x29
	TypeEnum8   uint8 = 0x30
	TypeFloat32 uint8 = 0x39
)

var (
	ErrNotNullable  = errors.New("zcl: attribute is not nullable")
	ErrInvalidValue = errors.New("zcl: invalid value")
)

// TypeName returns a human-readable name for a data type.
func TypeName(typeID uint8) string {
	switch typeID {
	case TypeNoData:
		return "nodata"
	case TypeBool:
		return "bool"
	case TypeBitmap8:
		return "map8"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeInt16:
		return "int16"
	case TypeEnum8:
		return "enum8"
	case TypeFloat32:
		return "float32"
	default:
		return fmt.Sprintf("0x%02X", typeID)
	}
}

// Coerce converts v to the canonical Go type for attr: bool, uint8,
// uint16, int16 or float32. JSON numbers (float64) and Go integers are
// accepted. nil is accepted only for nullable attributes.
func Coerce(attr *AttributeDef, v interface{}) (interface{}, error) {
	if v == nil {
		if !attr.Nullable {
			return nil, fmt.Errorf("%w: %s", ErrNotNullable, attr.Name)
		}
		return nil, nil
	}
	switch attr.Type {
	case TypeBool:
		if b, ok := toBool(v); ok {
			return b, nil
		}
	case TypeUint8, TypeEnum8, TypeBitmap8:
		if n, ok := toUint64(v); ok && n <= math.MaxUint8 {
			return uint8(n), nil
		}
	case TypeUint16:
		if n, ok := toUint64(v); ok && n <= math.MaxUint16 {
			return uint16(n), nil
		}
	case TypeInt16:
		if n, ok := toInt64(v); ok && n >= math.MinInt16 && n <= math.MaxInt16 {
			return int16(n), nil
		}
	case TypeFloat32:
		if f, ok := toFloat64(v); ok {
			return float32(f), nil
		}
	}
	return nil, fmt.Errorf("%w: %v (%T) for %s %s", ErrInvalidValue, v, v, TypeName(attr.Type), attr.Name)
}

func toBool(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case int:
		return val != 0, true
	}
	return false, false
}

func toUint64(v interface{}) (uint64, bool) {
	switch val := v.(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case int:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case int64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case float64:
		if val < 0 || val != math.Trunc(val) {
			return 0, false
		}
		return uint64(val), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case float64:
		if val != math.Trunc(val) || val > math.MaxInt64 || val < math.MinInt64 {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}
