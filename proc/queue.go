package proc

import "github.com/disgoorg/snowflake/v2"

// QueueEntry is a track plus the control message currently showing it.
// MessageID is zero until the entry has been rendered.
type QueueEntry struct {
	Track     Track
	MessageID snowflake.ID
}

// Queue is a bounded FIFO. Entry 0 is the track that is playing.
// It is not safe for concurrent use; a Player owns exactly one.
type Queue struct {
	entries  []QueueEntry
	capacity int
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{entries: make([]QueueEntry, 0, capacity), capacity: capacity}
}

func (q *Queue) IsEmpty() bool { return len(q.entries) == 0 }

// IsFirst reports whether the queue holds exactly one entry.
func (q *Queue) IsFirst() bool { return len(q.entries) == 1 }

func (q *Queue) IsFull() bool { return len(q.entries) >= q.capacity }

func (q *Queue) Len() int { return len(q.entries) }

func (q *Queue) Cap() int { return q.capacity }

// Enqueue appends t and returns its index, 0 meaning it plays now.
func (q *Queue) Enqueue(t Track) (int, error) {
	if q.IsFull() {
		return 0, ErrQueueFull
	}
	q.entries = append(q.entries, QueueEntry{Track: t})
	return len(q.entries) - 1, nil
}

// Advance pops the entry at the head.
func (q *Queue) Advance() (QueueEntry, error) {
	if q.IsEmpty() {
		return QueueEntry{}, ErrQueueEmpty
	}
	head := q.entries[0]
	q.entries[0] = QueueEntry{}
	q.entries = q.entries[1:]
	return head, nil
}

// Clear empties the queue and returns what was in it.
func (q *Queue) Clear() []QueueEntry {
	removed := q.entries
	q.entries = make([]QueueEntry, 0, q.capacity)
	return removed
}

func (q *Queue) Current() (QueueEntry, bool) {
	if q.IsEmpty() {
		return QueueEntry{}, false
	}
	return q.entries[0], true
}

// Pending returns a copy of every entry after the head.
func (q *Queue) Pending() []QueueEntry {
	if len(q.entries) < 2 {
		return nil
	}
	out := make([]QueueEntry, len(q.entries)-1)
	copy(out, q.entries[1:])
	return out
}

// SetMessage records the control message displaying the head entry.
func (q *Queue) SetMessage(id snowflake.ID) {
	if q.IsEmpty() {
		return
	}
	q.entries[0].MessageID = id
}
