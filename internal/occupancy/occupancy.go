// Package occupancy holds the room occupant-count arithmetic.  The same
// functions run inside the server's write transactions, where they are
// authoritative, and in the client state cache, where they are advisory and
// later overwritten by the rooms the server returns.
//
// Every function is pure: the input Counts is never modified and a new map
// is returned.
package occupancy

import (
	"fmt"

	"github.com/iliyamo/dorm-occupancy/internal/apperrors"
)

// Counts maps a room id to its occupant count.
type Counts map[uint64]int

// Clone returns an independent copy of c.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Available reports whether a room with count occupants can take one more.
func Available(count, capacity int) bool {
	return count < capacity
}

// ApplyInsert adds one occupant to room.  It fails with ErrCapacity when the
// room is already full.
func ApplyInsert(counts Counts, room uint64, capacity int) (Counts, error) {
	if !Available(counts[room], capacity) {
		return counts, apperrors.Capacity(fmt.Sprintf("room %d is full (%d/%d)", room, counts[room], capacity))
	}
	out := counts.Clone()
	out[room]++
	return out, nil
}

// ApplyDelete removes one occupant from room, floored at zero so duplicate
// or out-of-order updates never produce a negative count.
func ApplyDelete(counts Counts, room uint64) Counts {
	out := counts.Clone()
	if out[room] > 0 {
		out[room]--
	} else {
		out[room] = 0
	}
	return out
}

// ApplyTransfer moves one occupant from one room to another as a single
// step.  capacity is the capacity of the destination.  When from == to the
// counts are returned unchanged; when the destination is full neither side
// is touched.
func ApplyTransfer(counts Counts, from, to uint64, capacity int) (Counts, error) {
	if from == to {
		return counts, nil
	}
	if !Available(counts[to], capacity) {
		return counts, apperrors.Capacity(fmt.Sprintf("room %d is full (%d/%d)", to, counts[to], capacity))
	}
	out := ApplyDelete(counts, from)
	out[to]++
	return out, nil
}
