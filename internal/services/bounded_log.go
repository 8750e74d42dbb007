package services

import "roomchat/internal/models"

// BoundedLog is a fixed-capacity FIFO of messages. It is not safe for
// concurrent use; the owning store guards it.
type BoundedLog struct {
	items    []*models.Message
	capacity int
}

func NewBoundedLog(capacity int) *BoundedLog {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedLog{
		items:    make([]*models.Message, 0, capacity),
		capacity: capacity,
	}
}

// Append adds m at the tail and evicts from the head while over capacity.
// It returns the number of evicted entries.
func (l *BoundedLog) Append(m *models.Message) int {
	l.items = append(l.items, m)
	over := len(l.items) - l.capacity
	if over <= 0 {
		return 0
	}
	copy(l.items, l.items[over:])
	for i := len(l.items) - over; i < len(l.items); i++ {
		l.items[i] = nil
	}
	l.items = l.items[:len(l.items)-over]
	return over
}

// Find returns the entry with the given id, including soft-deleted ones.
func (l *BoundedLog) Find(id string) *models.Message {
	for i := len(l.items) - 1; i >= 0; i-- {
		if l.items[i].ID == id {
			return l.items[i]
		}
	}
	return nil
}

// Visible returns copies of the non-deleted entries, oldest first.
func (l *BoundedLog) Visible() []models.Message {
	out := make([]models.Message, 0, len(l.items))
	for _, m := range l.items {
		if !m.Deleted {
			out = append(out, m.Clone())
		}
	}
	return out
}

// All returns copies of every entry, oldest first.
func (l *BoundedLog) All() []models.Message {
	out := make([]models.Message, 0, len(l.items))
	for _, m := range l.items {
		out = append(out, m.Clone())
	}
	return out
}

func (l *BoundedLog) Len() int {
	return len(l.items)
}
