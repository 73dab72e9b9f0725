package emit

import (
	"sort"

	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

// overlapEntry is one already-placed artifact's bit range.
type overlapEntry struct {
	position int
	size     int
	span     token.Span
}

// OverlapChecker rejects placing two artifacts whose bit ranges intersect,
// except when one of them has zero size.
type OverlapChecker struct {
	entries []overlapEntry
}

// CheckAndInsert reports an "output overlap" error (with a note pointing at
// the earlier artifact) and returns false if [position, position+size)
// intersects an already-inserted entry; otherwise inserts the new entry and
// returns true.
func (c *OverlapChecker) CheckAndInsert(rep *report.Report, span token.Span, position, size int) bool {
	index := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].position >= position })

	if index < len(c.entries) && c.entries[index].position == position {
		existing := c.entries[index]
		if existing.size > 0 && size > 0 {
			rep.PushParent(span, "output overlap")
			rep.Note(existing.span, "overlaps with:")
			rep.PopParent()
			return false
		}
	} else {
		if index < len(c.entries) {
			next := c.entries[index]
			if position+size > next.position {
				rep.PushParent(span, "output overlap")
				rep.Note(next.span, "overlaps with:")
				rep.PopParent()
				return false
			}
		}
		if index > 0 {
			prev := c.entries[index-1]
			if prev.position+prev.size > position {
				rep.PushParent(span, "output overlap")
				rep.Note(prev.span, "overlaps with:")
				rep.PopParent()
				return false
			}
		}
	}

	entry := overlapEntry{position: position, size: size, span: span}
	c.entries = append(c.entries, overlapEntry{})
	copy(c.entries[index+1:], c.entries[index:])
	c.entries[index] = entry
	return true
}
