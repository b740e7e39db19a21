package log

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

type FieldType uint8

const (
	FieldTypeUnknown FieldType = iota
	FieldTypeBool
	FieldTypeString
	FieldTypeStringer
	FieldTypeHex8
	FieldTypeHex16
	FieldTypeHex32
	FieldTypeInt
	FieldTypeUint
	FieldTypeError
	FieldTypeDuration
	FieldTypeBlob
)

// ZField is a typed log field. Only the value matching Type is set.
type ZField struct {
	Type FieldType
	Key  string

	String    string
	Integer   uint64
	Duration  time.Duration
	Error     error
	Interface any
	Boolean   bool
	Blob      []byte
}

// hex digits of the hexadecimal field types.
var hexDigits = [...]int{
	FieldTypeHex8:  2,
	FieldTypeHex16: 4,
	FieldTypeHex32: 8,
}

// Value formats the field value.
func (f *ZField) Value() string {
	switch f.Type {
	case FieldTypeBool:
		return strconv.FormatBool(f.Boolean)
	case FieldTypeString:
		return f.String
	case FieldTypeStringer:
		return f.Interface.(fmt.Stringer).String()
	case FieldTypeHex8, FieldTypeHex16, FieldTypeHex32:
		return fmt.Sprintf("%0*x", hexDigits[f.Type], f.Integer)
	case FieldTypeInt:
		return strconv.FormatInt(int64(f.Integer), 10)
	case FieldTypeUint:
		return strconv.FormatUint(f.Integer, 10)
	case FieldTypeError:
		if f.Error == nil {
			return "<nil>"
		}
		return f.Error.Error()
	case FieldTypeDuration:
		return f.Duration.String()
	case FieldTypeBlob:
		return hex.Dump(f.Blob)
	}
	return ""
}
