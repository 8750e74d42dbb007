package services

import (
	"sort"
	"sync"
	"time"

	"roomchat/internal/models"

	nanoid "github.com/jaevor/go-nanoid"
)

const DefaultHistoryLimit = 200

// NewMessageIDs returns a generator of compact, collision-resistant message ids.
func NewMessageIDs() (func() string, error) {
	return nanoid.Standard(16)
}

type roomLog struct {
	mu  sync.Mutex
	log *BoundedLog
}

// RoomStore maps room names to bounded message logs. The map has its own
// lock and every room has another; callbacks passed to Append and the
// mutation methods run while the room lock is held, so deliveries for one
// room happen in log order.
type RoomStore struct {
	mu       sync.RWMutex
	rooms    map[string]*roomLog
	capacity int
	newID    func() string
	now      func() time.Time
}

func NewRoomStore(capacity int, newID func() string) *RoomStore {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &RoomStore{
		rooms:    make(map[string]*roomLog),
		capacity: capacity,
		newID:    newID,
		now:      time.Now,
	}
}

func (s *RoomStore) get(name string) *roomLog {
	s.mu.RLock()
	r := s.rooms[name]
	s.mu.RUnlock()
	return r
}

func (s *RoomStore) getOrCreate(name string) *roomLog {
	if r := s.get(name); r != nil {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		r = &roomLog{log: NewBoundedLog(s.capacity)}
		s.rooms[name] = r
	}
	return r
}

// Ensure creates the room if it does not exist yet.
func (s *RoomStore) Ensure(name string) {
	s.getOrCreate(name)
}

// Append stores a new message from author in room and hands a copy of it to
// deliver before the room is unlocked.
func (s *RoomStore) Append(room, author, text string, deliver func(models.Message)) models.Message {
	msg := &models.Message{
		ID:        s.newID(),
		From:      author,
		Text:      text,
		Timestamp: s.now().Unix(),
		Reactions: make(map[string][]string),
	}

	r := s.getOrCreate(room)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Append(msg)
	out := msg.Clone()
	if deliver != nil {
		deliver(out)
	}
	return out
}

// ToggleReaction flips user's reaction on a live message. deliver receives
// whether the reaction was added.
func (s *RoomStore) ToggleReaction(room, msgID, emoji, user string, deliver func(added bool)) (bool, error) {
	r := s.get(room)
	if r == nil {
		return false, ErrMessageNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := r.log.Find(msgID)
	if msg == nil || msg.Deleted {
		return false, ErrMessageNotFound
	}
	added := msg.ToggleReaction(emoji, user)
	if deliver != nil {
		deliver(added)
	}
	return added, nil
}

func (s *RoomStore) Edit(room, msgID, author, newText string, deliver func()) error {
	r := s.get(room)
	if r == nil {
		return ErrMessageNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := r.log.Find(msgID)
	if msg == nil || msg.Deleted {
		return ErrMessageNotFound
	}
	if msg.From != author {
		return ErrNotAuthor
	}
	msg.Text = newText
	msg.Edited = true
	if deliver != nil {
		deliver()
	}
	return nil
}

// Delete soft-deletes a message. Deleting an already deleted message is a
// successful no-op and does not call deliver again.
func (s *RoomStore) Delete(room, msgID, author string, deliver func()) error {
	r := s.get(room)
	if r == nil {
		return ErrMessageNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := r.log.Find(msgID)
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.From != author {
		return ErrNotAuthor
	}
	if msg.Deleted {
		return nil
	}
	msg.Deleted = true
	if deliver != nil {
		deliver()
	}
	return nil
}

// History returns the non-deleted messages of room, oldest first.
func (s *RoomStore) History(room string) []models.Message {
	r := s.get(room)
	if r == nil {
		return []models.Message{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Visible()
}

// Rooms returns the known room names in lexical order.
func (s *RoomStore) Rooms() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Stats returns the number of rooms and of stored entries across all rooms.
func (s *RoomStore) Stats() (rooms, messages int) {
	s.mu.RLock()
	logs := make([]*roomLog, 0, len(s.rooms))
	for _, r := range s.rooms {
		logs = append(logs, r)
	}
	s.mu.RUnlock()

	for _, r := range logs {
		r.mu.Lock()
		messages += r.log.Len()
		r.mu.Unlock()
	}
	return len(logs), messages
}

// Snapshot copies every room log, soft-deleted entries included.
func (s *RoomStore) Snapshot() map[string][]models.Message {
	s.mu.RLock()
	rooms := make(map[string]*roomLog, len(s.rooms))
	for name, r := range s.rooms {
		rooms[name] = r
	}
	s.mu.RUnlock()

	out := make(map[string][]models.Message, len(rooms))
	for name, r := range rooms {
		r.mu.Lock()
		out[name] = r.log.All()
		r.mu.Unlock()
	}
	return out
}

// Restore replaces the logs of the rooms present in snapshot. Logs longer
// than the capacity keep their newest entries.
func (s *RoomStore) Restore(snapshot map[string][]models.Message) {
	for name, msgs := range snapshot {
		log := NewBoundedLog(s.capacity)
		for i := range msgs {
			m := msgs[i].Clone()
			log.Append(&m)
		}

		s.mu.Lock()
		r, ok := s.rooms[name]
		if !ok {
			s.rooms[name] = &roomLog{log: log}
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		r.mu.Lock()
		r.log = log
		r.mu.Unlock()
	}
}
