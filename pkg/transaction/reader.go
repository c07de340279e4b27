package transaction

import (
	"encoding/binary"

	"github.com/scim-im/scim-ipc/pkg/imtypes"
)

// Minimum encoded sizes used to bound counts before allocating.
const (
	attributeSize   = 13
	minStringSize   = 4
	minPropertySize = 4*minStringSize + 2
)

// Reader decodes the values of a Transaction in order.
//
// A Reader shares the Transaction's storage and must not outlive it. The
// cursor moves only when a value decodes completely.
type Reader struct {
	t   *Transaction
	pos int
}

// NewReader creates a Reader positioned at the first value of t.
func NewReader(t *Transaction) *Reader {
	return &Reader{t: t, pos: HeaderSize}
}

// Rewind moves the cursor back to the first value.
func (r *Reader) Rewind() {
	r.pos = HeaderSize
}

// Pos returns the cursor offset within the payload.
func (r *Reader) Pos() int {
	return r.cursor().pos - HeaderSize
}

// Remaining returns the number of undecoded payload bytes.
func (r *Reader) Remaining() int {
	c := r.cursor()
	return c.remaining()
}

// DataType returns the tag of the next value without consuming it.
// It returns DataTypeUnknown when no value is left.
func (r *Reader) DataType() DataType {
	c := r.cursor()
	tag, ok := c.u8()
	if !ok {
		return DataTypeUnknown
	}
	return DataType(tag)
}

// Next decodes the next value, whatever its type.
func (r *Reader) Next() (Value, bool) {
	c := r.cursor()
	v, ok := decodeValue(&c)
	if !ok {
		return nil, false
	}
	r.pos = c.pos
	return v, true
}

// Skip decodes and discards the next value.
func (r *Reader) Skip() bool {
	_, ok := r.Next()
	return ok
}

// GetCommand decodes a command code.
func (r *Reader) GetCommand() (Command, bool) {
	v, ok := r.get(DataTypeCommand)
	if !ok {
		return CmdUnknown, false
	}
	return v.(Command), true
}

// GetUint32 decodes an unsigned integer.
func (r *Reader) GetUint32() (uint32, bool) {
	v, ok := r.get(DataTypeUint32)
	if !ok {
		return 0, false
	}
	return uint32(v.(Uint32)), true
}

// GetString decodes a UTF-8 string.
func (r *Reader) GetString() (string, bool) {
	v, ok := r.get(DataTypeString)
	if !ok {
		return "", false
	}
	return string(v.(String)), true
}

// GetWString decodes a wide string.
func (r *Reader) GetWString() ([]rune, bool) {
	v, ok := r.get(DataTypeWString)
	if !ok {
		return nil, false
	}
	return []rune(v.(WString)), true
}

// GetRaw decodes an opaque byte string. The result is a copy.
func (r *Reader) GetRaw() ([]byte, bool) {
	v, ok := r.get(DataTypeRaw)
	if !ok {
		return nil, false
	}
	return []byte(v.(Raw)), true
}

// GetKeyEvent decodes a key event.
func (r *Reader) GetKeyEvent() (imtypes.KeyEvent, bool) {
	v, ok := r.get(DataTypeKeyEvent)
	if !ok {
		return imtypes.KeyEvent{}, false
	}
	return imtypes.KeyEvent(v.(KeyEvent)), true
}

// GetAttributeList decodes an attribute list.
func (r *Reader) GetAttributeList() (imtypes.AttributeList, bool) {
	v, ok := r.get(DataTypeAttributeList)
	if !ok {
		return nil, false
	}
	return imtypes.AttributeList(v.(AttributeList)), true
}

// GetProperty decodes a property.
func (r *Reader) GetProperty() (imtypes.Property, bool) {
	v, ok := r.get(DataTypeProperty)
	if !ok {
		return imtypes.Property{}, false
	}
	return imtypes.Property(v.(Property)), true
}

// GetPropertyList decodes a property list.
func (r *Reader) GetPropertyList() (imtypes.PropertyList, bool) {
	v, ok := r.get(DataTypePropertyList)
	if !ok {
		return nil, false
	}
	return imtypes.PropertyList(v.(PropertyList)), true
}

// GetLookupTable decodes a lookup table page.
func (r *Reader) GetLookupTable() (imtypes.LookupTablePage, bool) {
	v, ok := r.get(DataTypeLookupTable)
	if !ok {
		return imtypes.LookupTablePage{}, false
	}
	return imtypes.LookupTablePage(v.(LookupTable)), true
}

// GetUint32Vector decodes a list of unsigned integers.
func (r *Reader) GetUint32Vector() ([]uint32, bool) {
	v, ok := r.get(DataTypeVectorUint32)
	if !ok {
		return nil, false
	}
	return []uint32(v.(Uint32Vector)), true
}

// GetStringVector decodes a list of strings.
func (r *Reader) GetStringVector() ([]string, bool) {
	v, ok := r.get(DataTypeVectorString)
	if !ok {
		return nil, false
	}
	return []string(v.(StringVector)), true
}

// GetWStringVector decodes a list of wide strings.
func (r *Reader) GetWStringVector() ([][]rune, bool) {
	v, ok := r.get(DataTypeVectorWString)
	if !ok {
		return nil, false
	}
	return [][]rune(v.(WStringVector)), true
}

// GetTransaction decodes a nested Transaction. The result owns a copy of
// the nested payload.
func (r *Reader) GetTransaction() (*Transaction, bool) {
	v, ok := r.get(DataTypeTransaction)
	if !ok {
		return nil, false
	}
	return v.(Nested).T, true
}

// get decodes the next value if its tag is want.
func (r *Reader) get(want DataType) (Value, bool) {
	c := r.cursor()
	if tag, ok := c.peek(); !ok || DataType(tag) != want {
		return nil, false
	}
	v, ok := decodeValue(&c)
	if !ok {
		return nil, false
	}
	r.pos = c.pos
	return v, true
}

// cursor returns a scratch cursor at the reader's position. Decoding
// happens on the copy; the reader commits its position on success only.
func (r *Reader) cursor() cursor {
	buf := r.t.buf
	pos := r.pos
	if pos < HeaderSize {
		pos = HeaderSize
	}
	if pos > len(buf) {
		pos = len(buf)
	}
	return cursor{buf: buf, pos: pos}
}

// decodeValue decodes one tagged value.
func decodeValue(c *cursor) (Value, bool) {
	tag, ok := c.u8()
	if !ok {
		return nil, false
	}

	switch DataType(tag) {
	case DataTypeCommand:
		n, ok := c.u32()
		return Command(n), ok
	case DataTypeRaw:
		b, ok := c.bytes()
		if !ok {
			return nil, false
		}
		return Raw(append([]byte{}, b...)), true
	case DataTypeUint32:
		n, ok := c.u32()
		return Uint32(n), ok
	case DataTypeString:
		s, ok := c.str()
		return String(s), ok
	case DataTypeWString:
		s, ok := c.str()
		return WString([]rune(s)), ok
	case DataTypeKeyEvent:
		return decodeKeyEvent(c)
	case DataTypeAttributeList:
		attrs, ok := decodeAttributes(c)
		return AttributeList(attrs), ok
	case DataTypeLookupTable:
		return decodeLookupTable(c)
	case DataTypeProperty:
		p, ok := decodeProperty(c)
		return Property(p), ok
	case DataTypePropertyList:
		return decodePropertyList(c)
	case DataTypeVectorUint32:
		return decodeUint32Vector(c)
	case DataTypeVectorString:
		return decodeStringVector(c)
	case DataTypeVectorWString:
		v, ok := decodeStringVector(c)
		if !ok {
			return nil, false
		}
		out := make(WStringVector, len(v))
		for i, s := range v {
			out[i] = []rune(s)
		}
		return out, true
	case DataTypeTransaction:
		b, ok := c.bytes()
		if !ok {
			return nil, false
		}
		return Nested{T: FromPayload(b)}, true
	default:
		return nil, false
	}
}

func decodeKeyEvent(c *cursor) (Value, bool) {
	code, ok := c.u32()
	if !ok {
		return nil, false
	}
	mask, ok := c.u16()
	if !ok {
		return nil, false
	}
	layout, ok := c.u16()
	if !ok {
		return nil, false
	}
	return KeyEvent{Code: code, Mask: mask, Layout: layout}, true
}

func decodeAttributes(c *cursor) (imtypes.AttributeList, bool) {
	n, ok := c.count(attributeSize)
	if !ok {
		return nil, false
	}
	attrs := make(imtypes.AttributeList, 0, n)
	for i := 0; i < n; i++ {
		typ, _ := c.u8()
		value, _ := c.u32()
		start, _ := c.u32()
		length, _ := c.u32()
		attrs = append(attrs, imtypes.Attribute{
			Start:  start,
			Length: length,
			Type:   imtypes.AttributeType(typ),
			Value:  value,
		})
	}
	return attrs, true
}

func decodeProperty(c *cursor) (imtypes.Property, bool) {
	var p imtypes.Property
	var ok bool
	if p.Key, ok = c.str(); !ok {
		return imtypes.Property{}, false
	}
	if p.Label, ok = c.str(); !ok {
		return imtypes.Property{}, false
	}
	if p.Icon, ok = c.str(); !ok {
		return imtypes.Property{}, false
	}
	if p.Tip, ok = c.str(); !ok {
		return imtypes.Property{}, false
	}
	visible, ok := c.u8()
	if !ok {
		return imtypes.Property{}, false
	}
	active, ok := c.u8()
	if !ok {
		return imtypes.Property{}, false
	}
	p.Visible = visible != 0
	p.Active = active != 0
	return p, true
}

func decodePropertyList(c *cursor) (Value, bool) {
	n, ok := c.count(minPropertySize)
	if !ok {
		return nil, false
	}
	props := make(PropertyList, 0, n)
	for i := 0; i < n; i++ {
		p, ok := decodeProperty(c)
		if !ok {
			return nil, false
		}
		props = append(props, p)
	}
	return props, true
}

func decodeLookupTable(c *cursor) (Value, bool) {
	status, ok := c.u8()
	if !ok {
		return nil, false
	}
	size, ok := c.u8()
	if !ok {
		return nil, false
	}
	cursorPos, ok := c.u8()
	if !ok {
		return nil, false
	}

	page := imtypes.LookupTablePage{
		PageUp:        status&lookupPageUp != 0,
		PageDown:      status&lookupPageDown != 0,
		CursorVisible: status&lookupCursorVisible != 0,
		FixedPageSize: status&lookupFixedPageSize != 0,
		CursorPos:     int(cursorPos),
		Labels:        make([]string, 0, size),
		Candidates:    make([]imtypes.Candidate, 0, size),
	}

	for i := 0; i < int(size); i++ {
		if !c.expect(DataTypeWString) {
			return nil, false
		}
		label, ok := c.str()
		if !ok {
			return nil, false
		}
		page.Labels = append(page.Labels, label)
	}
	for i := 0; i < int(size); i++ {
		if !c.expect(DataTypeWString) {
			return nil, false
		}
		text, ok := c.str()
		if !ok {
			return nil, false
		}
		if !c.expect(DataTypeAttributeList) {
			return nil, false
		}
		attrs, ok := decodeAttributes(c)
		if !ok {
			return nil, false
		}
		page.Candidates = append(page.Candidates, imtypes.Candidate{Text: text, Attrs: attrs})
	}
	return LookupTable(page), true
}

func decodeUint32Vector(c *cursor) (Value, bool) {
	n, ok := c.count(4)
	if !ok {
		return nil, false
	}
	v := make(Uint32Vector, n)
	for i := range v {
		v[i], _ = c.u32()
	}
	return v, true
}

func decodeStringVector(c *cursor) (StringVector, bool) {
	n, ok := c.count(minStringSize)
	if !ok {
		return nil, false
	}
	v := make(StringVector, 0, n)
	for i := 0; i < n; i++ {
		s, ok := c.str()
		if !ok {
			return nil, false
		}
		v = append(v, s)
	}
	return v, true
}

// cursor is a bounds-checked read position over a byte slice.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.pos
}

func (c *cursor) peek() (uint8, bool) {
	if c.remaining() < 1 {
		return 0, false
	}
	return c.buf[c.pos], true
}

func (c *cursor) u8() (uint8, bool) {
	v, ok := c.peek()
	if ok {
		c.pos++
	}
	return v, ok
}

func (c *cursor) u16() (uint16, bool) {
	if c.remaining() < 2 {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, true
}

func (c *cursor) u32() (uint32, bool) {
	if c.remaining() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, true
}

// expect consumes a tag byte equal to want.
func (c *cursor) expect(want DataType) bool {
	tag, ok := c.peek()
	if !ok || DataType(tag) != want {
		return false
	}
	c.pos++
	return true
}

// count reads an element count and checks that count elements of at
// least elemSize bytes each can still follow.
func (c *cursor) count(elemSize int) (int, bool) {
	n, ok := c.u32()
	if !ok {
		return 0, false
	}
	if uint64(n)*uint64(elemSize) > uint64(c.remaining()) {
		return 0, false
	}
	return int(n), true
}

// bytes reads a length-prefixed byte string. The result aliases buf.
func (c *cursor) bytes() ([]byte, bool) {
	n, ok := c.u32()
	if !ok {
		return nil, false
	}
	if uint64(n) > uint64(c.remaining()) {
		return nil, false
	}
	b := c.buf[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return b, true
}

func (c *cursor) str() (string, bool) {
	b, ok := c.bytes()
	if !ok {
		return "", false
	}
	return string(b), true
}
