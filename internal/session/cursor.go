package session

import "github.com/example/ride-ops-console/internal/models"

// Cursor tracks which single ride is chat-focused. It is reconciled
// against every new RideSet so the selection always refers to a ride that
// actually exists.
type Cursor struct {
	set     models.RideSet
	id      int64
	present bool
}

// Selected returns the current selection, if any.
func (c *Cursor) Selected() (int64, bool) {
	return c.id, c.present
}

// Apply reconciles the cursor against a freshly polled RideSet:
//
//  1. no selection and a non-empty set: select the first ride
//  2. the selected ride vanished: fall back to rule 1
//  3. the selected ride survived: leave it alone, the user's manual
//     choice outlives unrelated feed updates
//
// It reports whether the selection changed.
func (c *Cursor) Apply(set models.RideSet) bool {
	c.set = set

	if c.present && set.Contains(c.id) {
		return false
	}

	prevID, prevPresent := c.id, c.present
	if len(set) > 0 {
		c.id, c.present = set[0].ID, true
	} else {
		c.id, c.present = 0, false
	}
	return c.id != prevID || c.present != prevPresent
}

// Select moves the cursor to id. Rejected as a no-op when id is not in the
// current RideSet; that only happens through a benign race with a poll.
func (c *Cursor) Select(id int64) bool {
	if !c.set.Contains(id) {
		return false
	}
	c.id, c.present = id, true
	return true
}
