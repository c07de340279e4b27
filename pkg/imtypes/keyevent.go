package imtypes

import "fmt"

// KeyEventSize is the encoded size of a KeyEvent in bytes.
const KeyEventSize = 8

// Modifier mask bits.
const (
	ModShift    uint16 = 1 << 0
	ModCapsLock uint16 = 1 << 1
	ModControl  uint16 = 1 << 2
	ModAlt      uint16 = 1 << 3
	ModMeta     uint16 = 1 << 4
	ModSuper    uint16 = 1 << 5
	ModHyper    uint16 = 1 << 6
	ModNumLock  uint16 = 1 << 7
	ModRelease  uint16 = 1 << 15
)

// KeyEvent is a single key press or release.
type KeyEvent struct {
	// Code is the key symbol code.
	Code uint32

	// Mask is the modifier bit mask.
	Mask uint16

	// Layout identifies the keyboard layout the event was produced with.
	Layout uint16
}

// IsRelease reports whether the event is a key release.
func (k KeyEvent) IsRelease() bool {
	return k.Mask&ModRelease != 0
}

// String returns a compact representation of the key event.
func (k KeyEvent) String() string {
	if k.IsRelease() {
		return fmt.Sprintf("key(0x%04x, mask=0x%04x, layout=%d, release)", k.Code, k.Mask&^ModRelease, k.Layout)
	}
	return fmt.Sprintf("key(0x%04x, mask=0x%04x, layout=%d)", k.Code, k.Mask, k.Layout)
}
