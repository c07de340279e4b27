package transaction

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scim-im/scim-ipc/pkg/imtypes"
)

func TestRoundTripEachKind(t *testing.T) {
	attrs := imtypes.AttributeList{
		{Start: 0, Length: 2, Type: imtypes.AttrDecorate, Value: imtypes.DecorateUnderline},
		{Start: 2, Length: 1, Type: imtypes.AttrForeground, Value: imtypes.RGB(0xff, 0, 0)},
	}
	prop := imtypes.Property{Key: "/IMEngine/Pinyin/Mode", Label: "中", Icon: "icon.png", Tip: "mode", Visible: true}
	page := imtypes.LookupTablePage{
		PageDown:      true,
		CursorVisible: true,
		CursorPos:     1,
		Labels:        []string{"1", "2"},
		Candidates: []imtypes.Candidate{
			{Text: "你", Attrs: imtypes.AttributeList{}},
			{Text: "好", Attrs: attrs},
		},
	}
	inner := New()
	inner.PutCommand(CmdTrue)
	inner.PutString("inner")

	tests := []struct {
		name string
		put  func(*Transaction)
		get  func(*testing.T, *Reader)
	}{
		{"command", func(tr *Transaction) { tr.PutCommand(CmdOpenConnection) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetCommand()
			require.True(t, ok)
			assert.Equal(t, CmdOpenConnection, v)
		}},
		{"uint32", func(tr *Transaction) { tr.PutUint32(0xDEADBEEF) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetUint32()
			require.True(t, ok)
			assert.Equal(t, uint32(0xDEADBEEF), v)
		}},
		{"string", func(tr *Transaction) { tr.PutString("FrontEnd,Panel") }, func(t *testing.T, r *Reader) {
			v, ok := r.GetString()
			require.True(t, ok)
			assert.Equal(t, "FrontEnd,Panel", v)
		}},
		{"wstring", func(tr *Transaction) { tr.PutWString([]rune("拼音 input")) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetWString()
			require.True(t, ok)
			assert.Equal(t, "拼音 input", string(v))
		}},
		{"raw", func(tr *Transaction) { tr.PutRaw([]byte{0, 1, 0xff}) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetRaw()
			require.True(t, ok)
			assert.Equal(t, []byte{0, 1, 0xff}, v)
		}},
		{"key event", func(tr *Transaction) {
			tr.PutKeyEvent(imtypes.KeyEvent{Code: 0xff0d, Mask: imtypes.ModControl | imtypes.ModRelease, Layout: 3})
		}, func(t *testing.T, r *Reader) {
			v, ok := r.GetKeyEvent()
			require.True(t, ok)
			assert.Equal(t, imtypes.KeyEvent{Code: 0xff0d, Mask: imtypes.ModControl | imtypes.ModRelease, Layout: 3}, v)
		}},
		{"attribute list", func(tr *Transaction) { tr.PutAttributeList(attrs) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetAttributeList()
			require.True(t, ok)
			assert.Equal(t, attrs, v)
		}},
		{"property", func(tr *Transaction) { tr.PutProperty(prop) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetProperty()
			require.True(t, ok)
			assert.Equal(t, prop, v)
		}},
		{"property list", func(tr *Transaction) {
			tr.PutPropertyList(imtypes.PropertyList{prop, {Key: "/b", Active: true}})
		}, func(t *testing.T, r *Reader) {
			v, ok := r.GetPropertyList()
			require.True(t, ok)
			assert.Equal(t, imtypes.PropertyList{prop, {Key: "/b", Active: true}}, v)
		}},
		{"lookup table", func(tr *Transaction) { tr.PutLookupTable(page) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetLookupTable()
			require.True(t, ok)
			assert.Equal(t, page, v)
		}},
		{"uint32 vector", func(tr *Transaction) { tr.PutUint32Vector([]uint32{1, 2, 3}) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetUint32Vector()
			require.True(t, ok)
			assert.Equal(t, []uint32{1, 2, 3}, v)
		}},
		{"string vector", func(tr *Transaction) { tr.PutStringVector([]string{"a", "", "c"}) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetStringVector()
			require.True(t, ok)
			assert.Equal(t, []string{"a", "", "c"}, v)
		}},
		{"wstring vector", func(tr *Transaction) {
			tr.PutWStringVector([][]rune{[]rune("x"), []rune("输入")})
		}, func(t *testing.T, r *Reader) {
			v, ok := r.GetWStringVector()
			require.True(t, ok)
			require.Len(t, v, 2)
			assert.Equal(t, "x", string(v[0]))
			assert.Equal(t, "输入", string(v[1]))
		}},
		{"nested transaction", func(tr *Transaction) { tr.PutTransaction(inner) }, func(t *testing.T, r *Reader) {
			v, ok := r.GetTransaction()
			require.True(t, ok)
			assert.Equal(t, inner.Payload(), v.Payload())
			ir := v.Reader()
			cmd, ok := ir.GetCommand()
			require.True(t, ok)
			assert.Equal(t, CmdTrue, cmd)
			s, ok := ir.GetString()
			require.True(t, ok)
			assert.Equal(t, "inner", s)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			tt.put(tr)
			r := tr.Reader()
			tt.get(t, r)
			assert.Equal(t, 0, r.Remaining(), "value must be consumed completely")
			assert.Equal(t, tr.Size(), r.Pos())
		})
	}
}

func TestGetAdvancesByEncodedSize(t *testing.T) {
	tr := New()
	tr.PutCommand(CmdRequest)
	tr.PutUint32(7)
	tr.PutString("hi")

	r := tr.Reader()
	assert.Equal(t, DataTypeCommand, r.DataType())
	_, ok := r.GetCommand()
	require.True(t, ok)
	assert.Equal(t, 5, r.Pos())
	_, ok = r.GetUint32()
	require.True(t, ok)
	assert.Equal(t, 10, r.Pos())
	_, ok = r.GetString()
	require.True(t, ok)
	assert.Equal(t, 17, r.Pos())
	assert.Equal(t, DataTypeUnknown, r.DataType())

	r.Rewind()
	assert.Equal(t, 0, r.Pos())
}

func TestGetWrongTypeLeavesCursor(t *testing.T) {
	tr := New()
	tr.PutString("hi")

	r := tr.Reader()
	_, ok := r.GetUint32()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Pos())

	s, ok := r.GetString()
	require.True(t, ok)
	assert.Equal(t, "hi", s)
}

func TestTruncatedPayloadNeverDecodes(t *testing.T) {
	attrs := imtypes.AttributeList{{Start: 1, Length: 2, Type: imtypes.AttrBackground, Value: 7}}
	inner := New()
	inner.PutString("inner")

	tests := []struct {
		name string
		put  func(*Transaction)
		get  func(*Reader) bool
	}{
		{"command", func(tr *Transaction) { tr.PutCommand(CmdReply) },
			func(r *Reader) bool { _, ok := r.GetCommand(); return ok }},
		{"uint32", func(tr *Transaction) { tr.PutUint32(99) },
			func(r *Reader) bool { _, ok := r.GetUint32(); return ok }},
		{"string", func(tr *Transaction) { tr.PutString("abc") },
			func(r *Reader) bool { _, ok := r.GetString(); return ok }},
		{"wstring", func(tr *Transaction) { tr.PutWString([]rune("中文")) },
			func(r *Reader) bool { _, ok := r.GetWString(); return ok }},
		{"raw", func(tr *Transaction) { tr.PutRaw([]byte{1, 2, 3}) },
			func(r *Reader) bool { _, ok := r.GetRaw(); return ok }},
		{"key event", func(tr *Transaction) { tr.PutKeyEvent(imtypes.KeyEvent{Code: 0x61, Mask: imtypes.ModShift}) },
			func(r *Reader) bool { _, ok := r.GetKeyEvent(); return ok }},
		{"attribute list", func(tr *Transaction) { tr.PutAttributeList(attrs) },
			func(r *Reader) bool { _, ok := r.GetAttributeList(); return ok }},
		{"property", func(tr *Transaction) { tr.PutProperty(imtypes.NewProperty("/a", "A", "i", "t")) },
			func(r *Reader) bool { _, ok := r.GetProperty(); return ok }},
		{"property list", func(tr *Transaction) {
			tr.PutPropertyList(imtypes.PropertyList{{Key: "/a"}, {Key: "/a/b", Visible: true}})
		}, func(r *Reader) bool { _, ok := r.GetPropertyList(); return ok }},
		{"lookup table", func(tr *Transaction) {
			tr.PutLookupTable(imtypes.LookupTablePage{
				PageUp:     true,
				Labels:     []string{"1", "2"},
				Candidates: []imtypes.Candidate{{Text: "ab"}, {Text: "c", Attrs: attrs}},
			})
		}, func(r *Reader) bool { _, ok := r.GetLookupTable(); return ok }},
		{"uint32 vector", func(tr *Transaction) { tr.PutUint32Vector([]uint32{1, 2}) },
			func(r *Reader) bool { _, ok := r.GetUint32Vector(); return ok }},
		{"string vector", func(tr *Transaction) { tr.PutStringVector([]string{"one", "two"}) },
			func(r *Reader) bool { _, ok := r.GetStringVector(); return ok }},
		{"wstring vector", func(tr *Transaction) { tr.PutWStringVector([][]rune{[]rune("x"), []rune("yz")}) },
			func(r *Reader) bool { _, ok := r.GetWStringVector(); return ok }},
		{"transaction", func(tr *Transaction) { tr.PutTransaction(inner) },
			func(r *Reader) bool { _, ok := r.GetTransaction(); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full := New()
			full.PutUint32(1)
			tt.put(full)
			payload := full.Payload()

			// Every prefix that cuts into the value must fail in place.
			for cut := 5; cut < len(payload); cut++ {
				r := FromPayload(payload[:cut]).Reader()
				_, ok := r.GetUint32()
				require.True(t, ok)
				start := r.Pos()

				assert.False(t, tt.get(r), "decoded from %d of %d bytes", cut, len(payload))
				assert.Equal(t, start, r.Pos(), "cut %d: failed decode moved cursor", cut)
				_, ok = r.Next()
				assert.False(t, ok, "cut %d: Next decoded a truncated value", cut)
				assert.Equal(t, start, r.Pos())
			}

			r := FromPayload(payload).Reader()
			_, ok := r.GetUint32()
			require.True(t, ok)
			assert.True(t, tt.get(r), "full payload must decode")
			assert.Equal(t, 0, r.Remaining())
		})
	}
}

func TestOversizedCountRejected(t *testing.T) {
	for _, dt := range []DataType{DataTypeVectorUint32, DataTypeVectorString, DataTypeAttributeList, DataTypePropertyList, DataTypeRaw} {
		b := []byte{byte(dt)}
		b = binary.LittleEndian.AppendUint32(b, 0xFFFFFFFF)
		b = append(b, 1, 2, 3, 4)
		r := FromPayload(b).Reader()
		_, ok := r.Next()
		assert.False(t, ok, "type %s", dt)
		assert.Equal(t, 0, r.Pos())
	}
}

func TestUnknownTagRejected(t *testing.T) {
	r := FromPayload([]byte{0, 1, 2, 3}).Reader()
	_, ok := r.Next()
	assert.False(t, ok)
	assert.False(t, r.Skip())

	r = FromPayload([]byte{99}).Reader()
	_, ok = r.Next()
	assert.False(t, ok)
}

func TestClearResetsState(t *testing.T) {
	tr := New()
	tr.PutString("x")
	require.False(t, tr.Empty())

	tr.Clear()
	assert.True(t, tr.Empty())
	assert.Equal(t, 0, tr.Size())
	_, ok := tr.Reader().Next()
	assert.False(t, ok)

	tr.PutUint32(9)
	v, ok := tr.Reader().GetUint32()
	require.True(t, ok)
	assert.Equal(t, uint32(9), v)
}

func TestPutLookupTableClamps(t *testing.T) {
	cands := make([]imtypes.Candidate, 300)
	for i := range cands {
		cands[i] = imtypes.Candidate{Text: "c"}
	}
	tr := New()
	tr.PutLookupTable(imtypes.LookupTablePage{CursorPos: 400, Labels: []string{"1"}, Candidates: cands})

	page, ok := tr.Reader().GetLookupTable()
	require.True(t, ok)
	assert.Equal(t, imtypes.MaxPageSize, page.PageSize())
	assert.Equal(t, imtypes.MaxPageSize-1, page.CursorPos)
	assert.Equal(t, "1", page.Labels[0])
	assert.Equal(t, "", page.Labels[1])
}

func TestEmptyLookupTable(t *testing.T) {
	tr := New()
	tr.PutLookupTable(imtypes.LookupTablePage{CursorPos: 3, PageUp: true})

	page, ok := tr.Reader().GetLookupTable()
	require.True(t, ok)
	assert.Equal(t, 0, page.PageSize())
	assert.Equal(t, 0, page.CursorPos)
	assert.True(t, page.PageUp)
}

func TestPutValueMatchesTypedPut(t *testing.T) {
	a := New()
	a.Put(Command(CmdReply))
	a.Put(Uint32(5))
	a.Put(String("s"))
	a.Put(WString([]rune("w")))
	a.Put(Raw{1})

	b := New()
	b.PutCommand(CmdReply)
	b.PutUint32(5)
	b.PutString("s")
	b.PutWString([]rune("w"))
	b.PutRaw([]byte{1})

	assert.True(t, bytes.Equal(a.Payload(), b.Payload()))
}

func TestDump(t *testing.T) {
	tr := New()
	tr.PutCommand(CmdRequest)
	tr.PutCommand(CmdUserDefined + 4)
	tr.PutUint32(7)
	tr.PutString("hi")
	tr.PutUint32Vector([]uint32{1, 2})
	assert.Equal(t, `REQUEST USER(4) 7 "hi" [1 2]`, Dump(tr))

	trailing := FromPayload(append(append([]byte{}, tr.Payload()...), byte(DataTypeUint32), 1))
	assert.Contains(t, Dump(trailing), "<2 undecodable bytes at 35>")

	ev := Summarize(tr)
	assert.Equal(t, 5, ev.ValueCount)
	assert.Equal(t, []uint32{1, 10004}, ev.Commands)
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "OPEN_CONNECTION", CmdOpenConnection.String())
	assert.Equal(t, "CMD(42)", Command(42).String())
	assert.Equal(t, "USER(0)", CmdUserDefined.String())

	c, err := ParseCommand("REPLY")
	require.NoError(t, err)
	assert.Equal(t, CmdReply, c)

	c, err = ParseCommand("10001")
	require.NoError(t, err)
	assert.Equal(t, Command(10001), c)

	_, err = ParseCommand("7x")
	assert.Error(t, err)
	_, err = ParseCommand("reply")
	assert.Error(t, err)
}
