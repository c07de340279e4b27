// Package imtypes defines the input-method value types carried inside a
// Transaction.
//
// These are produced and consumed by the front-end, panel, helper and
// engine processes. The transport treats them as opaque values: it knows
// how to encode them, never what they mean.
//
//   - KeyEvent: a key code with modifier mask and keyboard layout
//   - Attribute / AttributeList: styling runs over a preedit or candidate string
//   - Property / PropertyList: entries of a panel property menu
//   - LookupTablePage: the visible page of a candidate lookup table
package imtypes
