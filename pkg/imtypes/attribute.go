package imtypes

import (
	"fmt"
	"strings"
)

// AttributeType selects how an Attribute's value is interpreted.
type AttributeType uint8

const (
	// AttrNone carries no styling.
	AttrNone AttributeType = 0
	// AttrDecorate carries a decoration value (underline, highlight, reverse).
	AttrDecorate AttributeType = 1
	// AttrForeground carries a foreground RGB color.
	AttrForeground AttributeType = 2
	// AttrBackground carries a background RGB color.
	AttrBackground AttributeType = 3
)

// Decoration values for AttrDecorate.
const (
	DecorateNone      uint32 = 0
	DecorateUnderline uint32 = 1
	DecorateHighlight uint32 = 2
	DecorateReverse   uint32 = 4
)

// String returns the attribute type name.
func (t AttributeType) String() string {
	switch t {
	case AttrNone:
		return "NONE"
	case AttrDecorate:
		return "DECORATE"
	case AttrForeground:
		return "FOREGROUND"
	case AttrBackground:
		return "BACKGROUND"
	default:
		return fmt.Sprintf("ATTR(%d)", uint8(t))
	}
}

// Attribute styles the run [Start, Start+Length) of a string.
type Attribute struct {
	Start  uint32
	Length uint32
	Type   AttributeType
	Value  uint32
}

// End returns the first index after the attributed run.
func (a Attribute) End() uint32 {
	return a.Start + a.Length
}

// String returns a compact representation of the attribute.
func (a Attribute) String() string {
	return fmt.Sprintf("%s[%d+%d]=0x%x", a.Type, a.Start, a.Length, a.Value)
}

// AttributeList is an ordered list of attributes.
type AttributeList []Attribute

// String returns the attributes joined by commas.
func (l AttributeList) String() string {
	parts := make([]string, len(l))
	for i, a := range l {
		parts[i] = a.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// RGB packs a color into an attribute value.
func RGB(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}
