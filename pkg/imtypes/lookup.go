package imtypes

import (
	"fmt"
	"strings"
)

// MaxPageSize is the largest page a LookupTablePage can describe.
const MaxPageSize = 255

// Candidate is one entry of a lookup table page.
type Candidate struct {
	Text  string
	Attrs AttributeList
}

// LookupTablePage is the visible page of a candidate lookup table.
//
// Only the page currently shown is carried. Cursor movement and paging
// belong to the engine that owns the full table.
type LookupTablePage struct {
	PageUp        bool
	PageDown      bool
	CursorVisible bool
	FixedPageSize bool

	// CursorPos is the cursor position within the page.
	CursorPos int

	// Labels holds one selection label per candidate.
	Labels []string

	// Candidates holds the page's candidates in display order.
	Candidates []Candidate
}

// PageSize returns the number of candidates on the page.
func (p LookupTablePage) PageSize() int {
	return len(p.Candidates)
}

// Validate checks the page is encodable.
func (p LookupTablePage) Validate() error {
	n := len(p.Candidates)
	if n > MaxPageSize {
		return fmt.Errorf("page size %d exceeds %d", n, MaxPageSize)
	}
	if len(p.Labels) != n {
		return fmt.Errorf("label count %d does not match page size %d", len(p.Labels), n)
	}
	if n > 0 && (p.CursorPos < 0 || p.CursorPos >= n) {
		return fmt.Errorf("cursor %d outside page of %d", p.CursorPos, n)
	}
	if n == 0 && p.CursorPos != 0 {
		return fmt.Errorf("cursor %d on empty page", p.CursorPos)
	}
	return nil
}

// String returns a compact representation of the page.
func (p LookupTablePage) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "lookup(size=%d, cursor=%d", len(p.Candidates), p.CursorPos)
	if p.PageUp {
		sb.WriteString(", up")
	}
	if p.PageDown {
		sb.WriteString(", down")
	}
	sb.WriteString(")[")
	for i, c := range p.Candidates {
		if i > 0 {
			sb.WriteString(" ")
		}
		label := ""
		if i < len(p.Labels) {
			label = p.Labels[i]
		}
		fmt.Fprintf(&sb, "%s.%s", label, c.Text)
	}
	sb.WriteString("]")
	return sb.String()
}
