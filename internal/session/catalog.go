package session

import "github.com/analogrithems/rustored/internal/objectstore"

// Catalog is the ordered list of remote snapshots plus the selection
// cursor. Selection is absent while the catalog is empty.
type Catalog struct {
	snapshots []objectstore.Snapshot
	selected  int
}

// Replace swaps in a freshly listed snapshot set and resets the cursor.
func (c *Catalog) Replace(snaps []objectstore.Snapshot) {
	c.snapshots = snaps
	c.selected = 0
}

// Len returns the number of snapshots.
func (c *Catalog) Len() int { return len(c.snapshots) }

// Empty reports whether there is nothing to select.
func (c *Catalog) Empty() bool { return len(c.snapshots) == 0 }

// Snapshots returns the ordered snapshot list.
func (c *Catalog) Snapshots() []objectstore.Snapshot { return c.snapshots }

// Index returns the selection cursor. Meaningless when Empty.
func (c *Catalog) Index() int { return c.selected }

// Selected returns the snapshot under the cursor, or false when the
// catalog is empty.
func (c *Catalog) Selected() (objectstore.Snapshot, bool) {
	if c.Empty() {
		return objectstore.Snapshot{}, false
	}
	return c.snapshots[c.selected], true
}

// Select clamps i into [0, len) and moves the cursor there.
func (c *Catalog) Select(i int) {
	if c.Empty() {
		c.selected = 0
		return
	}
	if i < 0 {
		i = 0
	}
	if i >= len(c.snapshots) {
		i = len(c.snapshots) - 1
	}
	c.selected = i
}

// MoveUp moves the cursor to the previous snapshot, wrapping to the end.
func (c *Catalog) MoveUp() {
	if c.Empty() {
		return
	}
	c.selected = (c.selected - 1 + len(c.snapshots)) % len(c.snapshots)
}

// MoveDown moves the cursor to the next snapshot, wrapping to the start.
func (c *Catalog) MoveDown() {
	if c.Empty() {
		return
	}
	c.selected = (c.selected + 1) % len(c.snapshots)
}
