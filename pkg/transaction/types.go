package transaction

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scim-im/scim-ipc/pkg/imtypes"
)

// DataType is the one byte tag that precedes every encoded value.
// The numbering is shared by all peers and must never change.
type DataType uint8

const (
	DataTypeUnknown       DataType = 0
	DataTypeCommand       DataType = 1
	DataTypeRaw           DataType = 2
	DataTypeUint32        DataType = 3
	DataTypeString        DataType = 4
	DataTypeWString       DataType = 5
	DataTypeKeyEvent      DataType = 6
	DataTypeAttributeList DataType = 7
	DataTypeLookupTable   DataType = 8
	DataTypeProperty      DataType = 9
	DataTypePropertyList  DataType = 10
	DataTypeVectorUint32  DataType = 11
	DataTypeVectorString  DataType = 12
	DataTypeVectorWString DataType = 13
	DataTypeTransaction   DataType = 14
)

// String returns the data type name.
func (d DataType) String() string {
	switch d {
	case DataTypeUnknown:
		return "UNKNOWN"
	case DataTypeCommand:
		return "COMMAND"
	case DataTypeRaw:
		return "RAW"
	case DataTypeUint32:
		return "UINT32"
	case DataTypeString:
		return "STRING"
	case DataTypeWString:
		return "WSTRING"
	case DataTypeKeyEvent:
		return "KEYEVENT"
	case DataTypeAttributeList:
		return "ATTRIBUTE_LIST"
	case DataTypeLookupTable:
		return "LOOKUP_TABLE"
	case DataTypeProperty:
		return "PROPERTY"
	case DataTypePropertyList:
		return "PROPERTY_LIST"
	case DataTypeVectorUint32:
		return "VECTOR_UINT32"
	case DataTypeVectorString:
		return "VECTOR_STRING"
	case DataTypeVectorWString:
		return "VECTOR_WSTRING"
	case DataTypeTransaction:
		return "TRANSACTION"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(d))
	}
}

// Value is one encodable value. The set of implementations is closed;
// each maps to exactly one DataType.
type Value interface {
	// DataType returns the tag the value is encoded with.
	DataType() DataType

	// String returns a human-readable rendering of the value.
	String() string

	isValue()
}

// Raw is an opaque byte string.
type Raw []byte

// Uint32 is an unsigned 32-bit integer.
type Uint32 uint32

// String is a UTF-8 string.
type String string

// WString is a wide (Unicode code point) string.
type WString []rune

// KeyEvent wraps imtypes.KeyEvent.
type KeyEvent imtypes.KeyEvent

// AttributeList wraps imtypes.AttributeList.
type AttributeList imtypes.AttributeList

// LookupTable wraps imtypes.LookupTablePage.
type LookupTable imtypes.LookupTablePage

// Property wraps imtypes.Property.
type Property imtypes.Property

// PropertyList wraps imtypes.PropertyList.
type PropertyList imtypes.PropertyList

// Uint32Vector is a list of unsigned 32-bit integers.
type Uint32Vector []uint32

// StringVector is a list of UTF-8 strings.
type StringVector []string

// WStringVector is a list of wide strings.
type WStringVector [][]rune

// Nested is a Transaction carried as a value inside another Transaction.
type Nested struct {
	T *Transaction
}

func (Command) DataType() DataType { return DataTypeCommand }
func (Raw) DataType() DataType { return DataTypeRaw }
func (Uint32) DataType() DataType { return DataTypeUint32 }
func (String) DataType() DataType { return DataTypeString }
func (WString) DataType() DataType { return DataTypeWString }
func (KeyEvent) DataType() DataType { return DataTypeKeyEvent }
func (AttributeList) DataType() DataType { return DataTypeAttributeList }
func (LookupTable) DataType() DataType { return DataTypeLookupTable }
func (Property) DataType() DataType { return DataTypeProperty }
func (PropertyList) DataType() DataType { return DataTypePropertyList }
func (Uint32Vector) DataType() DataType { return DataTypeVectorUint32 }
func (StringVector) DataType() DataType { return DataTypeVectorString }
func (WStringVector) DataType() DataType { return DataTypeVectorWString }
func (Nested) DataType() DataType { return DataTypeTransaction }

func (Command) isValue() {}
func (Raw) isValue() {}
func (Uint32) isValue() {}
func (String) isValue() {}
func (WString) isValue() {}
func (KeyEvent) isValue() {}
func (AttributeList) isValue() {}
func (LookupTable) isValue() {}
func (Property) isValue() {}
func (PropertyList) isValue() {}
func (Uint32Vector) isValue() {}
func (StringVector) isValue() {}
func (WStringVector) isValue() {}
func (Nested) isValue() {}

func (v Raw) String() string {
	return fmt.Sprintf("raw(%d bytes)", len(v))
}

func (v Uint32) String() string {
	return strconv.FormatUint(uint64(v), 10)
}

func (v String) String() string {
	return strconv.Quote(string(v))
}

func (v WString) String() string {
	return "L" + strconv.Quote(string(v))
}

func (v KeyEvent) String() string {
	return imtypes.KeyEvent(v).String()
}

func (v AttributeList) String() string {
	return "attrs" + imtypes.AttributeList(v).String()
}

func (v LookupTable) String() string {
	return imtypes.LookupTablePage(v).String()
}

func (v Property) String() string {
	return imtypes.Property(v).String()
}

func (v PropertyList) String() string {
	parts := make([]string, len(v))
	for i, p := range v {
		parts[i] = p.String()
	}
	return "properties[" + strings.Join(parts, ", ") + "]"
}

func (v Uint32Vector) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.FormatUint(uint64(n), 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (v StringVector) String() string {
	parts := make([]string, len(v))
	for i, s := range v {
		parts[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (v WStringVector) String() string {
	parts := make([]string, len(v))
	for i, s := range v {
		parts[i] = "L" + strconv.Quote(string(s))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (v Nested) String() string {
	if v.T == nil {
		return "transaction(nil)"
	}
	return fmt.Sprintf("transaction(%d bytes)", v.T.Size())
}
