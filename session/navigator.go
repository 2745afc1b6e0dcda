package session

import (
	"sort"

	"github.com/poiesic/loupe/core"
)

// SelectMatch computes the navigation target for one Next/Prev step over
// a match set of the given size.
//
// With no matches there is no target. With no current cursor the first
// match is the target regardless of direction, establishing a starting
// point. Otherwise the cursor steps by one with wraparound in both
// directions, so n Next steps from any start visit every match exactly
// once before repeating.
func SelectMatch(direction core.Direction, current int, hasCurrent bool, count int) (int, bool) {
	if count == 0 {
		return 0, false
	}
	if !hasCurrent {
		return 0, true
	}
	switch direction {
	case core.Prev:
		if current == 0 {
			return count - 1, true
		}
		return current - 1, true
	default:
		return (current + 1) % count, true
	}
}

// AnchorResolver translates a version-stamped anchor to an offset in the
// document's current text.
type AnchorResolver func(doc core.ID, a core.Anchor) int

// ResyncActiveIndex recomputes the cursor after the caret moved for a
// reason other than navigation, e.g. the user clicking into a result.
//
// It binary-searches the sorted ranges for the match containing or most
// closely following the caret. A false result means no match at or after
// the caret; it does not mean the match set is empty.
func ResyncActiveIndex(ranges []core.MatchRange, caretPath string, caretOffset int, resolve AnchorResolver) (int, bool) {
	if len(ranges) == 0 {
		return 0, false
	}
	if resolve == nil {
		resolve = func(_ core.ID, a core.Anchor) int { return a.Offset }
	}
	i := sort.Search(len(ranges), func(i int) bool {
		r := ranges[i]
		if r.Path != caretPath {
			return r.Path > caretPath
		}
		return resolve(r.Doc, r.End) >= caretOffset
	})
	if i == len(ranges) {
		return 0, false
	}
	return i, true
}
