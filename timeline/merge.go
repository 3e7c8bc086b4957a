package timeline

import (
	"sort"

	"github.com/hazyhaar/inkplay/ink"
)

// Event is a Segment placed into the single global chronological playback
// order. Its reveal time is T1; T0 is retained so a renderer can interpolate
// the partial segment at the cursor boundary.
type Event = Segment

// Events flattens the per-stroke segments into one stream sorted ascending
// by reveal time. At equal times ink events (pen, highlighter, other) order
// strictly before eraser events: an eraser recorded at the same instant as
// an ink action must not visually precede — and thus miss — ink that was
// logically drawn first. The sort is stable, so the order is total and
// replay is deterministic regardless of input array order.
//
// No coordinate or time transformation happens here; this is a pure
// O(n log n) sort/flatten stage. The returned slice is a fresh copy.
func (tl *Timeline) Events() []Event {
	evs := make([]Event, len(tl.segments))
	copy(evs, tl.segments)
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].T1 != evs[j].T1 {
			return evs[i].T1 < evs[j].T1
		}
		return mergeRank(evs[i].Tool) < mergeRank(evs[j].Tool)
	})
	return evs
}

func mergeRank(t ink.Tool) int {
	if t == ink.ToolEraser {
		return 1
	}
	return 0
}
