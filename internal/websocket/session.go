package websocket

import (
	"time"

	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

const (
	StatusActive = "active"
	StatusIdle   = "idle"
)

// Session is the server-side state of one connection. Fields below the
// outbox are guarded by the Registry lock once the session is registered.
type Session struct {
	ID      string
	outbox  *Outbox
	limiter *RateWindow

	name          string
	authenticated bool
	room          string
	typing        bool
	lastRead      string
	lastActive    time.Time
	status        string
}

// SessionView is a consistent copy of a session's mutable fields.
type SessionView struct {
	ID            string
	Name          string
	Room          string
	Authenticated bool
	LastRead      string
}

func NewSession(id string, limiter *RateWindow) *Session {
	short := id
	if len(short) > 6 {
		short = short[:6]
	}
	return &Session{
		ID:         id,
		outbox:     NewOutbox(),
		limiter:    limiter,
		name:       "guest-" + short,
		lastActive: time.Now(),
		status:     StatusActive,
	}
}

func (s *Session) Outbox() *Outbox {
	return s.outbox
}

// Send queues an envelope for this session only.
func (s *Session) Send(o models.Outbound) {
	data, err := models.Encode(o)
	if err != nil {
		logger.Error("Error marshaling %s: %v", o.Kind(), err)
		return
	}
	s.outbox.Push(data)
}

func (s *Session) sendSystem(text string) {
	s.Send(models.NewSystem(text))
}

func (s *Session) view() SessionView {
	return SessionView{
		ID:            s.ID,
		Name:          s.name,
		Room:          s.room,
		Authenticated: s.authenticated,
		LastRead:      s.lastRead,
	}
}
