package websocket

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"roomchat/internal/models"
	"roomchat/pkg/logger"
)

const helpText = `Available commands:
  /name <name>       - Set your display name
  /register <u> <p>  - Create an account
  /login <u> <p>     - Log in to your account
  /token <token>     - Log in with a session token
  /msg <user> <text> - Private message a user
  /join <room>       - Join or create a room
  /leave             - Return to the default room
  /rooms             - List all rooms
  /room              - Show current room
  /list              - List users in room
  /who               - Show users with status
  /kick <user>       - Kick a user (logged-in only)
  /nudge             - Send a nudge (shake screen)
  /history [user]    - Reload room history, or your conversation with a user
  /stats             - Show server metrics
  /help              - Show this help`

// ParseDirective splits a command line into the command and at most two
// arguments. The second argument keeps its embedded spaces.
func ParseDirective(line string) (string, []string) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 3)
	return parts[0], parts[1:]
}

func formatRateLimited(limit int, window time.Duration) string {
	per := window.String()
	if window%time.Second == 0 {
		per = fmt.Sprintf("%d seconds", int(window/time.Second))
	}
	return fmt.Sprintf(msgRateLimited, limit, per)
}

// HandleCommand runs a slash command for an admitted session.
func (h *Hub) HandleCommand(s *Session, line string) {
	v, ok := h.registry.View(s.ID)
	if !ok {
		return
	}
	cmd, args := ParseDirective(line)
	arg := func(i int) string {
		if i < len(args) {
			return strings.TrimSpace(args[i])
		}
		return ""
	}

	switch cmd {
	case "/join":
		if arg(0) == "" {
			s.sendSystem("Usage: /join <room>")
			return
		}
		h.joinRoom(s, v, arg(0))
	case "/leave":
		h.joinRoom(s, v, h.cfg.DefaultRoom)
	case "/rooms":
		h.listRooms(s)
	case "/room":
		s.sendSystem("Current room: " + v.Room)
	case "/name":
		if arg(0) == "" {
			s.sendSystem("Usage: /name <new_name>")
			return
		}
		h.rename(s, arg(0))
	case "/list":
		h.sendUserList(v.Room)
	case "/who":
		s.sendSystem(fmt.Sprintf("Users in '%s': %s", v.Room, strings.Join(h.registry.Who(v.Room), ", ")))
	case "/register":
		if arg(0) == "" || arg(1) == "" {
			s.sendSystem("Usage: /register <username> <password>")
			return
		}
		h.register(s, arg(0), arg(1))
	case "/login":
		if arg(0) == "" || arg(1) == "" {
			s.sendSystem("Usage: /login <username> <password>")
			return
		}
		h.login(s, arg(0), arg(1))
	case "/token":
		if arg(0) == "" {
			s.sendSystem("Usage: /token <token>")
			return
		}
		h.loginWithToken(s, arg(0))
	case "/history":
		if arg(0) == "" {
			h.sendHistory(s, v.Room)
			return
		}
		s.Send(models.NewHistory(h.private.History(v.Name, arg(0))))
	case "/msg":
		if arg(0) == "" || len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			s.sendSystem("Usage: /msg <user> <text>")
			return
		}
		h.privateMessage(s, v, arg(0), args[1])
	case "/kick":
		if arg(0) == "" {
			s.sendSystem("Usage: /kick <user>")
			return
		}
		h.kick(s, v, arg(0))
	case "/nudge":
		h.broadcast(v.Room, models.NewNudge(v.Name))
		h.announce(v.Room, v.Name+" sent a nudge!")
	case "/stats":
		s.sendSystem(h.statsText())
	case "/help":
		s.sendSystem(helpText)
	default:
		s.sendSystem("Unknown command. Type /help for available commands.")
	}
}

func (h *Hub) joinRoom(s *Session, v SessionView, target string) {
	if target == v.Room {
		s.sendSystem(fmt.Sprintf("You are already in room '%s'", target))
		return
	}
	h.rooms.Ensure(target)
	oldRoom, wasTyping, ok := h.registry.Move(s.ID, target)
	if !ok {
		return
	}

	h.announce(oldRoom, "-- "+v.Name+" left the room --")
	h.sendUserList(oldRoom)
	if wasTyping {
		h.sendTyping(oldRoom)
	}

	h.announce(target, "-- "+v.Name+" joined the room --")
	h.sendHistory(s, target)
	h.sendUserList(target)
	s.sendSystem(fmt.Sprintf("You joined room '%s'", target))
	logger.Info("User %s moved from %s to %s", v.Name, oldRoom, target)
}

func (h *Hub) listRooms(s *Session) {
	s.Send(models.NewRoomList(h.RoomInfos()))
}

// RoomInfos lists every room with its live member count.
func (h *Hub) RoomInfos() []models.RoomInfo {
	counts := h.registry.MemberCounts()
	names := h.rooms.Rooms()
	rooms := make([]models.RoomInfo, 0, len(names))
	for _, name := range names {
		rooms = append(rooms, models.RoomInfo{Name: name, Members: counts[name]})
	}
	return rooms
}

// History returns the visible messages of room.
func (h *Hub) History(room string) []models.Message {
	return h.rooms.History(room)
}

func (h *Hub) rename(s *Session, desired string) {
	oldName, newName, ok := h.registry.Rename(s.ID, desired)
	if !ok {
		return
	}
	v, _ := h.registry.View(s.ID)
	h.announce(v.Room, fmt.Sprintf("-- %s is now known as %s --", oldName, newName))
	h.sendUserList(v.Room)
	s.sendSystem(fmt.Sprintf("Your name is now '%s'", newName))
	logger.Info("User %s (id: %s) changed name to %s", oldName, s.ID, newName)
}

func (h *Hub) register(s *Session, username, password string) {
	ctx, cancel := context.WithTimeout(h.ctx, authTimeout)
	defer cancel()

	if err := h.auth.Register(ctx, username, password); err != nil {
		s.sendSystem("Register failed: " + err.Error())
		return
	}
	logger.Info("Registered account %s", username)
	s.sendSystem(fmt.Sprintf("Registered '%s'. Use /login to authenticate.", username))
}

func (h *Hub) login(s *Session, username, password string) {
	ctx, cancel := context.WithTimeout(h.ctx, authTimeout)
	defer cancel()

	if err := h.auth.Verify(ctx, username, password); err != nil {
		logger.Debug("Login failed for %s: %v", username, err)
		s.sendSystem("Login failed: invalid credentials")
		return
	}
	h.completeLogin(s, username)
	h.sendToken(s, username)
}

func (h *Hub) loginWithToken(s *Session, token string) {
	ctx, cancel := context.WithTimeout(h.ctx, authTimeout)
	defer cancel()

	username, err := h.auth.UsernameFromToken(ctx, token)
	if err != nil {
		logger.Debug("Token login failed: %v", err)
		s.sendSystem("Login failed: invalid or expired token")
		return
	}
	h.completeLogin(s, username)
}

func (h *Hub) completeLogin(s *Session, username string) {
	_, name, ok := h.registry.Login(s.ID, username)
	if !ok {
		return
	}
	v, _ := h.registry.View(s.ID)
	h.announce(v.Room, fmt.Sprintf("-- %s logged in --", name))
	h.sendUserList(v.Room)
	s.sendSystem(fmt.Sprintf("Logged in as '%s'", name))
	logger.Info("Client %s logged in as %s", s.ID, name)
}

// privateMessage delivers text to a member of the sender's room and records
// it in the private store. The room log never sees it.
func (h *Hub) privateMessage(s *Session, v SessionView, targetName, text string) {
	target, tv, ok := h.registry.FindInRoom(v.Room, targetName)
	if !ok {
		s.sendSystem(fmt.Sprintf("User '%s' not found in your room", targetName))
		return
	}

	msg := h.private.Append(v.Name, tv.Name, h.filter.Filter(text))
	target.Send(models.NewChat(msg))
	logger.Debug("Private message from %s to %s", v.Name, tv.Name)
}

func (h *Hub) kick(s *Session, v SessionView, targetName string) {
	if !v.Authenticated {
		s.sendSystem("You must be logged in to kick users.")
		return
	}
	target, tv, ok := h.registry.FindByName(targetName)
	if !ok {
		s.sendSystem(fmt.Sprintf("User '%s' not found", targetName))
		return
	}
	if target.ID == s.ID {
		s.sendSystem("You cannot kick yourself!")
		return
	}

	removed, ok := h.registry.Remove(target.ID)
	if !ok {
		s.sendSystem(fmt.Sprintf("User '%s' not found", targetName))
		return
	}
	target.sendSystem("You have been kicked by an admin.")
	target.outbox.Close()

	h.announce(removed.Room, fmt.Sprintf("-- %s has been kicked by an admin --", tv.Name))
	h.sendUserList(removed.Room)
	h.sendTyping(removed.Room)
	if removed.Room != v.Room {
		s.sendSystem(fmt.Sprintf("Kicked '%s'", tv.Name))
	}
	logger.Info("Client %s was kicked by %s", tv.Name, v.Name)
}

func (h *Hub) statsText() string {
	st := h.Stats()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return fmt.Sprintf("Server Stats:\nClients: %d\nRooms: %d\nMessages: %d\nMessages sent: %d\nConnections: %d\nUptime: %s\nMem: %.2f MB",
		st.Clients, st.Rooms, st.Messages, st.TotalMessages, st.Connections, st.Uptime,
		float64(mem.HeapAlloc)/(1024*1024))
}
