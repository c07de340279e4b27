package imtypes

import "fmt"

// Property is one entry of a panel property menu.
//
// Keys are slash separated paths; a property whose key is a prefix of
// another is that property's parent in the menu.
type Property struct {
	Key   string
	Label string
	Icon  string
	Tip   string

	Visible bool
	Active  bool
}

// NewProperty returns a visible, active property.
func NewProperty(key, label, icon, tip string) Property {
	return Property{
		Key:     key,
		Label:   label,
		Icon:    icon,
		Tip:     tip,
		Visible: true,
		Active:  true,
	}
}

// Valid reports whether the property has a key.
func (p Property) Valid() bool {
	return p.Key != ""
}

// String returns a compact representation of the property.
func (p Property) String() string {
	return fmt.Sprintf("property(%q, label=%q, visible=%t, active=%t)", p.Key, p.Label, p.Visible, p.Active)
}

// PropertyList is an ordered list of properties.
type PropertyList []Property

// Find returns the index of the property with the given key, or -1.
func (l PropertyList) Find(key string) int {
	for i := range l {
		if l[i].Key == key {
			return i
		}
	}
	return -1
}
