package imtypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEventString(t *testing.T) {
	press := KeyEvent{Code: 0xff0d}
	assert.False(t, press.IsRelease())
	assert.Equal(t, "key(0xff0d, mask=0x0000, layout=0)", press.String())

	release := KeyEvent{Code: 0x61, Mask: ModShift | ModRelease, Layout: 2}
	assert.True(t, release.IsRelease())
	assert.Equal(t, "key(0x0061, mask=0x0001, layout=2, release)", release.String())
}

func TestAttribute(t *testing.T) {
	assert.Equal(t, uint32(0xff0010), RGB(0xff, 0x00, 0x10))

	fg := Attribute{Start: 1, Length: 3, Type: AttrForeground, Value: RGB(0xff, 0x00, 0x10)}
	assert.Equal(t, uint32(4), fg.End())
	assert.Equal(t, "FOREGROUND[1+3]=0xff0010", fg.String())

	ul := Attribute{Length: 2, Type: AttrDecorate, Value: DecorateUnderline}
	assert.Equal(t, "{}", AttributeList{}.String())
	assert.Equal(t, "{DECORATE[0+2]=0x1, FOREGROUND[1+3]=0xff0010}", AttributeList{ul, fg}.String())
}

func TestAttributeTypeString(t *testing.T) {
	tests := map[AttributeType]string{
		AttrNone:         "NONE",
		AttrDecorate:     "DECORATE",
		AttrForeground:   "FOREGROUND",
		AttrBackground:   "BACKGROUND",
		AttributeType(9): "ATTR(9)",
	}
	for typ, want := range tests {
		assert.Equal(t, want, typ.String())
	}
}

func candidates(n int) ([]string, []Candidate) {
	labels := make([]string, n)
	cands := make([]Candidate, n)
	for i := range n {
		labels[i] = "x"
		cands[i] = Candidate{Text: "c"}
	}
	return labels, cands
}

func TestLookupTablePageValidate(t *testing.T) {
	labels, cands := candidates(3)
	maxLabels, maxCands := candidates(MaxPageSize)
	bigLabels, bigCands := candidates(MaxPageSize + 1)

	tests := []struct {
		name    string
		page    LookupTablePage
		wantErr string
	}{
		{name: "empty", page: LookupTablePage{}},
		{name: "cursor last", page: LookupTablePage{CursorPos: 2, Labels: labels, Candidates: cands}},
		{name: "full page", page: LookupTablePage{CursorPos: MaxPageSize - 1, Labels: maxLabels, Candidates: maxCands}},
		{name: "too many", page: LookupTablePage{Labels: bigLabels, Candidates: bigCands}, wantErr: "exceeds"},
		{name: "label mismatch", page: LookupTablePage{Labels: labels[:2], Candidates: cands}, wantErr: "label count 2"},
		{name: "cursor past end", page: LookupTablePage{CursorPos: 3, Labels: labels, Candidates: cands}, wantErr: "outside page"},
		{name: "negative cursor", page: LookupTablePage{CursorPos: -1, Labels: labels, Candidates: cands}, wantErr: "outside page"},
		{name: "cursor on empty", page: LookupTablePage{CursorPos: 1}, wantErr: "empty page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.page.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLookupTablePageString(t *testing.T) {
	page := LookupTablePage{
		PageDown:   true,
		CursorPos:  1,
		Labels:     []string{"1", "2"},
		Candidates: []Candidate{{Text: "a"}, {Text: "b"}},
	}
	assert.Equal(t, 2, page.PageSize())
	assert.Equal(t, "lookup(size=2, cursor=1, down)[1.a 2.b]", page.String())

	// Missing labels print empty rather than panicking.
	page.PageUp = true
	page.Labels = page.Labels[:1]
	s := page.String()
	assert.True(t, strings.HasPrefix(s, "lookup(size=2, cursor=1, up, down)"))
	assert.True(t, strings.HasSuffix(s, "[1.a .b]"))
}

func TestProperty(t *testing.T) {
	p := NewProperty("/IM/mode", "Mode", "mode.png", "Input mode")
	assert.True(t, p.Valid())
	assert.True(t, p.Visible)
	assert.True(t, p.Active)
	assert.Equal(t, `property("/IM/mode", label="Mode", visible=true, active=true)`, p.String())
	assert.False(t, Property{Label: "orphan"}.Valid())

	list := PropertyList{NewProperty("/IM", "IM", "", ""), p}
	assert.Equal(t, 1, list.Find("/IM/mode"))
	assert.Equal(t, 0, list.Find("/IM"))
	assert.Equal(t, -1, list.Find("/IM/other"))
	assert.Equal(t, -1, PropertyList(nil).Find("/IM"))
}
