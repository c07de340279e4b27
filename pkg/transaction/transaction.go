package transaction

import (
	"encoding/binary"

	"github.com/scim-im/scim-ipc/pkg/imtypes"
)

// DefaultCapacity is the initial payload capacity of a new Transaction.
const DefaultCapacity = 512

// Transaction is one message under construction or just received.
//
// The first HeaderSize bytes of the buffer are reserved for the frame
// header, which is filled in when the Transaction is written. A
// Transaction is not safe for concurrent use.
type Transaction struct {
	buf []byte
}

// New creates an empty Transaction.
func New() *Transaction {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates an empty Transaction with room for n payload
// bytes before the buffer has to grow.
func NewWithCapacity(n int) *Transaction {
	if n < 0 {
		n = 0
	}
	return &Transaction{buf: make([]byte, HeaderSize, HeaderSize+n)}
}

// FromPayload creates a Transaction holding a copy of payload.
func FromPayload(payload []byte) *Transaction {
	t := NewWithCapacity(len(payload))
	t.buf = append(t.buf, payload...)
	return t
}

// Clear drops all values so the Transaction can be reused.
func (t *Transaction) Clear() {
	t.buf = t.buf[:HeaderSize]
	clear(t.buf)
}

// Size returns the payload size in bytes.
func (t *Transaction) Size() int {
	return len(t.buf) - HeaderSize
}

// Empty reports whether the Transaction holds no values.
func (t *Transaction) Empty() bool {
	return len(t.buf) == HeaderSize
}

// Payload returns the encoded values. The slice aliases the Transaction's
// buffer and is only valid until the next mutation.
func (t *Transaction) Payload() []byte {
	return t.buf[HeaderSize:]
}

// Reader returns a new Reader positioned at the first value.
func (t *Transaction) Reader() *Reader {
	return NewReader(t)
}

// Put appends any value.
func (t *Transaction) Put(v Value) {
	t.buf = appendValue(t.buf, v)
}

// PutCommand appends a command code.
func (t *Transaction) PutCommand(cmd Command) {
	t.buf = append(t.buf, byte(DataTypeCommand))
	t.buf = binary.LittleEndian.AppendUint32(t.buf, uint32(cmd))
}

// PutUint32 appends an unsigned integer.
func (t *Transaction) PutUint32(v uint32) {
	t.buf = append(t.buf, byte(DataTypeUint32))
	t.buf = binary.LittleEndian.AppendUint32(t.buf, v)
}

// PutString appends a UTF-8 string.
func (t *Transaction) PutString(s string) {
	t.buf = append(t.buf, byte(DataTypeString))
	t.buf = appendString(t.buf, s)
}

// PutWString appends a wide string. Invalid code points are replaced
// with U+FFFD.
func (t *Transaction) PutWString(s []rune) {
	t.buf = append(t.buf, byte(DataTypeWString))
	t.buf = appendString(t.buf, string(s))
}

// PutRaw appends an opaque byte string.
func (t *Transaction) PutRaw(b []byte) {
	t.buf = append(t.buf, byte(DataTypeRaw))
	t.buf = appendBytes(t.buf, b)
}

// PutKeyEvent appends a key event.
func (t *Transaction) PutKeyEvent(k imtypes.KeyEvent) {
	t.Put(KeyEvent(k))
}

// PutAttributeList appends an attribute list.
func (t *Transaction) PutAttributeList(attrs imtypes.AttributeList) {
	t.Put(AttributeList(attrs))
}

// PutProperty appends a property.
func (t *Transaction) PutProperty(p imtypes.Property) {
	t.Put(Property(p))
}

// PutPropertyList appends a property list.
func (t *Transaction) PutPropertyList(props imtypes.PropertyList) {
	t.Put(PropertyList(props))
}

// PutLookupTable appends the visible page of a lookup table. Pages larger
// than imtypes.MaxPageSize are cut, missing labels are sent empty and the
// cursor is clamped into the page.
func (t *Transaction) PutLookupTable(page imtypes.LookupTablePage) {
	t.Put(LookupTable(page))
}

// PutUint32Vector appends a list of unsigned integers.
func (t *Transaction) PutUint32Vector(v []uint32) {
	t.Put(Uint32Vector(v))
}

// PutStringVector appends a list of strings.
func (t *Transaction) PutStringVector(v []string) {
	t.Put(StringVector(v))
}

// PutWStringVector appends a list of wide strings.
func (t *Transaction) PutWStringVector(v [][]rune) {
	t.Put(WStringVector(v))
}

// PutTransaction appends a copy of inner's payload as a nested value.
func (t *Transaction) PutTransaction(inner *Transaction) {
	t.Put(Nested{T: inner})
}

// Status bits of an encoded lookup table page.
const (
	lookupPageUp        = 1 << 0
	lookupPageDown      = 1 << 1
	lookupCursorVisible = 1 << 2
	lookupFixedPageSize = 1 << 3
)

// appendValue appends the tag and body of v.
func appendValue(b []byte, v Value) []byte {
	b = append(b, byte(v.DataType()))

	switch v := v.(type) {
	case Command:
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	case Raw:
		b = appendBytes(b, v)
	case Uint32:
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	case String:
		b = appendString(b, string(v))
	case WString:
		b = appendString(b, string(v))
	case KeyEvent:
		b = binary.LittleEndian.AppendUint32(b, v.Code)
		b = binary.LittleEndian.AppendUint16(b, v.Mask)
		b = binary.LittleEndian.AppendUint16(b, v.Layout)
	case AttributeList:
		b = appendAttributes(b, imtypes.AttributeList(v))
	case LookupTable:
		b = appendLookupTable(b, imtypes.LookupTablePage(v))
	case Property:
		b = appendProperty(b, imtypes.Property(v))
	case PropertyList:
		b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
		for _, p := range v {
			b = appendProperty(b, p)
		}
	case Uint32Vector:
		b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
		for _, n := range v {
			b = binary.LittleEndian.AppendUint32(b, n)
		}
	case StringVector:
		b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
		for _, s := range v {
			b = appendString(b, s)
		}
	case WStringVector:
		b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
		for _, s := range v {
			b = appendString(b, string(s))
		}
	case Nested:
		if v.T == nil {
			b = appendBytes(b, nil)
		} else {
			b = appendBytes(b, v.T.Payload())
		}
	default:
		panic("transaction: unhandled value type " + v.DataType().String())
	}
	return b
}

func appendBytes(b, data []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func appendString(b []byte, s string) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

func appendAttributes(b []byte, attrs imtypes.AttributeList) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(attrs)))
	for _, a := range attrs {
		b = append(b, byte(a.Type))
		b = binary.LittleEndian.AppendUint32(b, a.Value)
		b = binary.LittleEndian.AppendUint32(b, a.Start)
		b = binary.LittleEndian.AppendUint32(b, a.Length)
	}
	return b
}

func appendProperty(b []byte, p imtypes.Property) []byte {
	b = appendString(b, p.Key)
	b = appendString(b, p.Label)
	b = appendString(b, p.Icon)
	b = appendString(b, p.Tip)
	return append(b, boolByte(p.Visible), boolByte(p.Active))
}

func appendLookupTable(b []byte, page imtypes.LookupTablePage) []byte {
	size := min(len(page.Candidates), imtypes.MaxPageSize)
	cursor := 0
	if size > 0 {
		cursor = max(0, min(page.CursorPos, size-1))
	}

	var status byte
	if page.PageUp {
		status |= lookupPageUp
	}
	if page.PageDown {
		status |= lookupPageDown
	}
	if page.CursorVisible {
		status |= lookupCursorVisible
	}
	if page.FixedPageSize {
		status |= lookupFixedPageSize
	}
	b = append(b, status, byte(size), byte(cursor))

	for i := 0; i < size; i++ {
		label := ""
		if i < len(page.Labels) {
			label = page.Labels[i]
		}
		b = append(b, byte(DataTypeWString))
		b = appendString(b, label)
	}
	for i := 0; i < size; i++ {
		c := page.Candidates[i]
		b = append(b, byte(DataTypeWString))
		b = appendString(b, c.Text)
		b = append(b, byte(DataTypeAttributeList))
		b = appendAttributes(b, c.Attrs)
	}
	return b
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
