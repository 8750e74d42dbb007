package websocket

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"roomchat/internal/models"
)

// Registry holds the live sessions. Name uniqueness is resolved while the
// write lock is held, so two sessions can never end up with names that
// differ only in case. The registry never calls into the room stores.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// uniqueNameLocked appends -1, -2, ... to desired until no other live
// session holds it case-insensitively. The system author is always taken.
func (r *Registry) uniqueNameLocked(desired, selfID string) string {
	taken := func(candidate string) bool {
		if strings.EqualFold(candidate, models.SystemAuthor) {
			return true
		}
		for id, s := range r.sessions {
			if id != selfID && strings.EqualFold(s.name, candidate) {
				return true
			}
		}
		return false
	}

	candidate := desired
	for suffix := 1; taken(candidate); suffix++ {
		candidate = fmt.Sprintf("%s-%d", desired, suffix)
	}
	return candidate
}

// Insert registers s in room under a unique form of desired and returns the
// assigned name.
func (r *Registry) Insert(s *Session, desired string, authenticated bool, room string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.name = r.uniqueNameLocked(desired, s.ID)
	s.authenticated = authenticated
	s.room = room
	s.status = StatusActive
	r.sessions[s.ID] = s
	return s.name
}

// Remove unregisters a session. ok is false if it was already gone, which
// is how a kicked session's teardown knows not to announce again.
func (r *Registry) Remove(id string) (SessionView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return SessionView{}, false
	}
	delete(r.sessions, id)
	return s.view(), true
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) View(id string) (SessionView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return SessionView{}, false
	}
	return s.view(), true
}

// Rename gives the session a unique form of desired.
func (r *Registry) Rename(id, desired string) (oldName, newName string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", "", false
	}
	oldName = s.name
	s.name = r.uniqueNameLocked(desired, id)
	return oldName, s.name, true
}

// Login renames the session like Rename and marks it authenticated.
func (r *Registry) Login(id, username string) (oldName, newName string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", "", false
	}
	oldName = s.name
	s.name = r.uniqueNameLocked(username, id)
	s.authenticated = true
	return oldName, s.name, true
}

// Move puts the session in room and clears its typing flag.
func (r *Registry) Move(id, room string) (oldRoom string, wasTyping, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", false, false
	}
	oldRoom, wasTyping = s.room, s.typing
	s.room = room
	s.typing = false
	return oldRoom, wasTyping, true
}

// SetTyping reports the session's room and whether the flag changed.
func (r *Registry) SetTyping(id string, typing bool) (room string, changed, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", false, false
	}
	changed = s.typing != typing
	s.typing = typing
	return s.room, changed, true
}

func (r *Registry) SetLastRead(id, msgID string) (SessionView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return SessionView{}, false
	}
	s.lastRead = msgID
	return s.view(), true
}

// Touch records inbound activity for the presence loop.
func (r *Registry) Touch(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.lastActive = now
	}
}

type member struct {
	name          string
	authenticated bool
}

func (r *Registry) members(room string) []member {
	r.mu.RLock()
	out := make([]member, 0)
	for _, s := range r.sessions {
		if s.room == room {
			out = append(out, member{name: s.name, authenticated: s.authenticated})
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return nameLess(out[i].name, out[j].name) })
	return out
}

// nameLess orders display names case-insensitively, then byte-wise so the
// order is total.
func nameLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// Names lists the display names in room, sorted case-insensitively.
func (r *Registry) Names(room string) []string {
	members := r.members(room)
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.name)
	}
	return names
}

// Who lists the members of room annotated with their login state.
func (r *Registry) Who(room string) []string {
	members := r.members(room)
	out := make([]string, 0, len(members))
	for _, m := range members {
		status := "guest"
		if m.authenticated {
			status = "✓"
		}
		out = append(out, fmt.Sprintf("%s (%s)", m.name, status))
	}
	return out
}

func (r *Registry) Typing(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0)
	for _, s := range r.sessions {
		if s.room == room && s.typing {
			names = append(names, s.name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return nameLess(names[i], names[j]) })
	return names
}

// FindInRoom looks a session up by case-insensitive name within room.
func (r *Registry) FindInRoom(room, name string) (*Session, SessionView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.room == room && strings.EqualFold(s.name, name) {
			return s, s.view(), true
		}
	}
	return nil, SessionView{}, false
}

// FindByName looks a session up by case-insensitive name in any room.
func (r *Registry) FindByName(name string) (*Session, SessionView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if strings.EqualFold(s.name, name) {
			return s, s.view(), true
		}
	}
	return nil, SessionView{}, false
}

// Broadcast queues data on every session currently in room.
func (r *Registry) Broadcast(room string, data []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.room == room && s.outbox.Push(data) {
			n++
		}
	}
	return n
}

func (r *Registry) MemberCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, s := range r.sessions {
		counts[s.room]++
	}
	return counts
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StatusChange is a presence transition produced by Classify.
type StatusChange struct {
	Room   string
	Name   string
	Status string
}

// Classify marks sessions idle when their last activity is at least
// idleAfter old and active otherwise, returning only the transitions.
func (r *Registry) Classify(now time.Time, idleAfter time.Duration) []StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []StatusChange
	for _, s := range r.sessions {
		status := StatusActive
		if now.Sub(s.lastActive) >= idleAfter {
			status = StatusIdle
		}
		if status != s.status {
			s.status = status
			changes = append(changes, StatusChange{Room: s.room, Name: s.name, Status: status})
		}
	}
	return changes
}

// Sessions returns every registered session.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
