package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"roomchat/internal/models"
)

// ConversationKey identifies the private conversation between a and b
// regardless of argument order or letter case.
func ConversationKey(a, b string) string {
	pair := []string{strings.ToLower(a), strings.ToLower(b)}
	sort.Strings(pair)
	return strings.Join(pair, ",")
}

// PrivateStore keeps direct messages per participant pair. Conversations are
// never listed; they are only reachable by naming both participants.
type PrivateStore struct {
	mu       sync.RWMutex
	convs    map[string]*BoundedLog
	capacity int
	newID    func() string
	now      func() time.Time
}

func NewPrivateStore(capacity int, newID func() string) *PrivateStore {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &PrivateStore{
		convs:    make(map[string]*BoundedLog),
		capacity: capacity,
		newID:    newID,
		now:      time.Now,
	}
}

func (s *PrivateStore) Append(from, to, text string) models.Message {
	msg := &models.Message{
		ID:        s.newID(),
		From:      from,
		Text:      text,
		Timestamp: s.now().Unix(),
		Reactions: make(map[string][]string),
	}
	key := ConversationKey(from, to)

	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.convs[key]
	if !ok {
		log = NewBoundedLog(s.capacity)
		s.convs[key] = log
	}
	log.Append(msg)
	return msg.Clone()
}

func (s *PrivateStore) History(a, b string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.convs[ConversationKey(a, b)]
	if !ok {
		return []models.Message{}
	}
	return log.Visible()
}

func (s *PrivateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}
