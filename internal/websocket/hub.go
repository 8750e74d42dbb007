package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roomchat/internal/config"
	"roomchat/internal/filter"
	"roomchat/internal/models"
	"roomchat/internal/services"
	"roomchat/pkg/logger"
)

// Authenticator is the credential store used by /register, /login and /token.
type Authenticator interface {
	Register(ctx context.Context, username, password string) error
	Verify(ctx context.Context, username, password string) error
	IssueToken(username string) (string, error)
	UsernameFromToken(ctx context.Context, token string) (string, error)
}

type ContentFilter interface {
	Filter(text string) string
}

type PreviewFetcher interface {
	Fetch(ctx context.Context, url string) (models.Preview, error)
}

type Dependencies struct {
	Rooms    *services.RoomStore
	Private  *services.PrivateStore
	Metrics  *services.Metrics
	Auth     Authenticator
	Filter   ContentFilter
	Previews PreviewFetcher
}

// Hub owns the shared chat state and interprets inbound envelopes against it.
type Hub struct {
	cfg      config.ChatConfig
	registry *Registry
	rooms    *services.RoomStore
	private  *services.PrivateStore
	metrics  *services.Metrics
	auth     Authenticator
	filter   ContentFilter
	previews PreviewFetcher
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	clientsMu sync.Mutex
	clients   map[*Client]struct{}
	closing   bool
	clientsWg sync.WaitGroup
	tasks     sync.WaitGroup
}

func NewHub(cfg config.ChatConfig, deps Dependencies) *Hub {
	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = "lobby"
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:      cfg,
		registry: NewRegistry(),
		rooms:    deps.Rooms,
		private:  deps.Private,
		metrics:  deps.Metrics,
		auth:     deps.Auth,
		filter:   deps.Filter,
		previews: deps.Previews,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[*Client]struct{}),
	}
	if h.metrics == nil {
		h.metrics = services.NewMetrics()
	}
	if h.filter == nil {
		h.filter = filter.New(nil)
	}
	h.rooms.Ensure(cfg.DefaultRoom)
	return h
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// NewSession creates an unregistered session with this hub's rate limits.
func (h *Hub) NewSession(id string) *Session {
	return NewSession(id, NewRateWindow(h.cfg.RateLimitCount, h.cfg.RateLimitWindow))
}

func (h *Hub) broadcast(room string, o models.Outbound) {
	data, err := models.Encode(o)
	if err != nil {
		logger.Error("Error marshaling %s: %v", o.Kind(), err)
		return
	}
	h.registry.Broadcast(room, data)
}

// announce appends a system entry to room's log and broadcasts it.
func (h *Hub) announce(room, text string) {
	h.rooms.Append(room, models.SystemAuthor, text, func(models.Message) {
		h.broadcast(room, models.NewSystem(text))
	})
}

func (h *Hub) sendUserList(room string) {
	h.broadcast(room, models.NewUserList(h.registry.Names(room)))
}

func (h *Hub) sendTyping(room string) {
	h.broadcast(room, models.NewTyping(h.registry.Typing(room)))
}

func (h *Hub) sendHistory(s *Session, room string) {
	s.Send(models.NewHistory(h.rooms.History(room)))
}

// Admit registers s in the default room under a unique form of desired,
// sends it confirm (formatted with the assigned name), announces the join
// and sends the new member its snapshot.
func (h *Hub) Admit(s *Session, desired string, authenticated bool, confirm string) string {
	room := h.cfg.DefaultRoom
	name := h.registry.Insert(s, desired, authenticated, room)
	h.metrics.IncConnections()
	logger.Info("User %s admitted (id: %s, authenticated=%t, room=%s)", name, s.ID, authenticated, room)

	s.sendSystem(fmt.Sprintf(confirm, name))
	h.announce(room, "-- "+name+" joined the room --")
	h.sendHistory(s, room)
	h.sendUserList(room)
	return name
}

// Leave unregisters s and, if it was still registered, tells its room.
func (h *Hub) Leave(s *Session) {
	v, ok := h.registry.Remove(s.ID)
	if !ok {
		return
	}
	h.announce(v.Room, "-- "+v.Name+" left the room --")
	h.sendUserList(v.Room)
	h.sendTyping(v.Room)
	logger.Info("User %s disconnected (id: %s, room: %s)", v.Name, s.ID, v.Room)
}

// Stats is the aggregate view reported by /stats and /health.
type Stats struct {
	Clients       int
	Rooms         int
	Messages      int
	TotalMessages int64
	Connections   int64
	Uptime        time.Duration
}

func (h *Hub) Stats() Stats {
	rooms, messages := h.rooms.Stats()
	return Stats{
		Clients:       h.registry.Len(),
		Rooms:         rooms,
		Messages:      messages,
		TotalMessages: h.metrics.Messages(),
		Connections:   h.metrics.Connections(),
		Uptime:        h.metrics.Uptime(),
	}
}

// RunPresence reclassifies sessions as active or idle every interval and
// broadcasts each change to the session's room.
func (h *Hub) RunPresence(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.PresenceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.checkPresence()
		}
	}
}

func (h *Hub) checkPresence() {
	for _, c := range h.registry.Classify(h.now(), h.cfg.IdleAfter) {
		logger.Debug("User %s is now %s", c.Name, c.Status)
		h.broadcast(c.Room, models.NewStatus(c.Name, c.Status))
	}
}

func (h *Hub) track(c *Client) bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.closing {
		return false
	}
	h.clients[c] = struct{}{}
	h.clientsWg.Add(1)
	return true
}

func (h *Hub) untrack(c *Client) {
	h.clientsMu.Lock()
	delete(h.clients, c)
	h.clientsMu.Unlock()
	h.clientsWg.Done()
}

// Shutdown closes every connection's outbox and waits for the connections
// and background preview tasks to finish, or for ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	h.clientsMu.Lock()
	h.closing = true
	for c := range h.clients {
		c.session.sendSystem("Server is shutting down.")
		c.session.outbox.Close()
	}
	h.clientsMu.Unlock()

	done := make(chan struct{})
	go func() {
		h.clientsWg.Wait()
		h.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
