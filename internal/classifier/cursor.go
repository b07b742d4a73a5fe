package classifier

import "sync"

// FeedCursor remembers the identifier of the last message taken from the feed.
type FeedCursor struct {
	mu   sync.Mutex
	last string
	seen bool
}

func NewFeedCursor() *FeedCursor {
	return &FeedCursor{}
}

// Advance moves the cursor to id and reports whether id was new.
// Repeating the same id is a no-op that returns false.
func (c *FeedCursor) Advance(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen && c.last == id {
		return false
	}
	c.last = id
	c.seen = true
	return true
}

// Last returns the last seen id and whether any id was seen at all.
func (c *FeedCursor) Last() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.seen
}
