package websocket

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"roomchat/internal/models"
	"roomchat/internal/preview"
	"roomchat/internal/services"
	"roomchat/pkg/logger"
)

const (
	msgChooseName  = "Please choose a name or login/register before sending messages."
	msgRateLimited = "Rate limited: slow down! Max %d messages per %s."
	msgCannotEdit  = "Cannot edit this message"
	msgCannotDel   = "Cannot delete this message"
	authTimeout    = 5 * time.Second
)

var mentionPattern = regexp.MustCompile(`@([^\s@]+)`)

// HandleUnauthenticated processes an envelope from a connection that has not
// chosen a name yet. It reports whether the session was admitted.
func (h *Hub) HandleUnauthenticated(s *Session, env models.Inbound) bool {
	switch e := env.(type) {
	case models.Command:
		return h.handleAuthCommand(s, e.Cmd)
	case models.ChatText:
		s.sendSystem(msgChooseName)
	default:
		// typing, reactions and edits need a room
	}
	return false
}

func (h *Hub) handleAuthCommand(s *Session, line string) bool {
	cmd, args := ParseDirective(line)
	ctx, cancel := context.WithTimeout(h.ctx, authTimeout)
	defer cancel()

	switch cmd {
	case "/name":
		if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
			s.sendSystem("Usage: /name <username>")
			return false
		}
		h.Admit(s, strings.TrimSpace(args[0]), false, "Your name is '%s'. You are not authenticated.")
		return true

	case "/register":
		if len(args) < 2 {
			s.sendSystem("Usage: /register <username> <password>")
			return false
		}
		username, password := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
		if err := h.auth.Register(ctx, username, password); err != nil {
			s.sendSystem("Register failed: " + err.Error())
			return false
		}
		logger.Info("Registered account %s", username)
		h.Admit(s, username, true, "Registered and logged in as '%s'")
		h.sendToken(s, username)
		return true

	case "/login":
		if len(args) < 2 {
			s.sendSystem("Usage: /login <username> <password>")
			return false
		}
		username, password := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
		if err := h.auth.Verify(ctx, username, password); err != nil {
			logger.Debug("Login failed for %s: %v", username, err)
			s.sendSystem("Login failed: invalid username or password")
			return false
		}
		h.Admit(s, username, true, "Logged in as '%s'")
		h.sendToken(s, username)
		return true

	case "/token":
		if len(args) < 1 {
			s.sendSystem("Usage: /token <token>")
			return false
		}
		username, err := h.auth.UsernameFromToken(ctx, strings.TrimSpace(args[0]))
		if err != nil {
			logger.Debug("Token login failed: %v", err)
			s.sendSystem("Login failed: invalid or expired token")
			return false
		}
		h.Admit(s, username, true, "Logged in as '%s'")
		return true

	default:
		s.sendSystem("Please choose a name or login/register first. Unknown: " + cmd)
		return false
	}
}

func (h *Hub) sendToken(s *Session, username string) {
	token, err := h.auth.IssueToken(username)
	if err != nil {
		logger.Error("Error issuing token for %s: %v", username, err)
		return
	}
	s.sendSystem("Session token (use /token <token> to reconnect): " + token)
}

// Dispatch processes an envelope from an admitted session.
func (h *Hub) Dispatch(s *Session, env models.Inbound) {
	h.registry.Touch(s.ID, h.now())

	switch e := env.(type) {
	case models.Command:
		h.HandleCommand(s, e.Cmd)
	case models.ChatText:
		h.HandleChat(s, e.Text)
	case models.TypingUpdate:
		h.handleTyping(s, e.IsTyping)
	case models.ReactionToggle:
		h.handleReaction(s, e)
	case models.EditRequest:
		h.handleEdit(s, e)
	case models.DeleteRequest:
		h.handleDelete(s, e)
	case models.MarkRead:
		h.handleMarkRead(s, e)
	}
}

// HandleChat rate limits, filters, stores and broadcasts a chat message.
func (h *Hub) HandleChat(s *Session, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	v, ok := h.registry.View(s.ID)
	if !ok {
		return
	}
	if !s.limiter.Allow(h.now()) {
		logger.Warn("User %s is rate limited", v.Name)
		s.sendSystem(formatRateLimited(h.cfg.RateLimitCount, h.cfg.RateLimitWindow))
		return
	}

	filtered := h.filter.Filter(text)
	msg := h.rooms.Append(v.Room, v.Name, filtered, func(m models.Message) {
		h.broadcast(v.Room, models.NewChat(m))
	})
	h.metrics.IncMessages()

	if room, changed, ok := h.registry.SetTyping(s.ID, false); ok && changed {
		h.sendTyping(room)
	}

	h.notifyMentions(v, filtered)

	if url := preview.FirstURL(filtered); url != "" && h.previews != nil {
		h.attachPreview(v.Room, msg.ID, url)
	}
}

func (h *Hub) notifyMentions(from SessionView, text string) {
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimRight(m[1], ".,!?:;")
		key := strings.ToLower(name)
		if name == "" || seen[key] || strings.EqualFold(name, from.Name) {
			continue
		}
		seen[key] = true

		target, tv, ok := h.registry.FindInRoom(from.Room, name)
		if !ok {
			continue
		}
		target.Send(models.NewMention(from.Name, text, tv.Name))
	}
}

func (h *Hub) startTask() bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.closing {
		return false
	}
	h.tasks.Add(1)
	return true
}

// attachPreview fetches url in the background and broadcasts the result to
// room once it arrives.
func (h *Hub) attachPreview(room, msgID, url string) {
	if !h.startTask() {
		return
	}
	go func() {
		defer h.tasks.Done()

		p, err := h.previews.Fetch(h.ctx, url)
		if err != nil {
			if !errors.Is(err, preview.ErrNoPreview) {
				logger.Debug("Preview for %s failed: %v", url, err)
			}
			return
		}
		h.broadcast(room, models.NewLinkPreview(msgID, url, p))
	}()
}

func (h *Hub) handleTyping(s *Session, typing bool) {
	room, _, ok := h.registry.SetTyping(s.ID, typing)
	if !ok {
		return
	}
	h.sendTyping(room)
}

func (h *Hub) handleReaction(s *Session, e models.ReactionToggle) {
	v, ok := h.registry.View(s.ID)
	if !ok || e.Emoji == "" {
		return
	}
	_, err := h.rooms.ToggleReaction(v.Room, e.MsgID, e.Emoji, v.Name, func(added bool) {
		h.broadcast(v.Room, models.NewReaction(e.MsgID, e.Emoji, v.Name, added))
	})
	if err != nil {
		logger.Debug("Reaction by %s on %s ignored: %v", v.Name, e.MsgID, err)
	}
}

func (h *Hub) handleEdit(s *Session, e models.EditRequest) {
	v, ok := h.registry.View(s.ID)
	if !ok {
		return
	}
	if strings.TrimSpace(e.NewText) == "" {
		s.sendSystem(msgCannotEdit)
		return
	}
	text := h.filter.Filter(e.NewText)
	err := h.rooms.Edit(v.Room, e.MsgID, v.Name, text, func() {
		h.broadcast(v.Room, models.NewEdit(e.MsgID, text))
	})
	if err != nil {
		if isAuthorizationError(err) {
			logger.Info("Edit by %s on %s refused: %v", v.Name, e.MsgID, err)
		} else {
			logger.Debug("Edit by %s on %s ignored: %v", v.Name, e.MsgID, err)
		}
		s.sendSystem(msgCannotEdit)
	}
}

func (h *Hub) handleDelete(s *Session, e models.DeleteRequest) {
	v, ok := h.registry.View(s.ID)
	if !ok {
		return
	}
	err := h.rooms.Delete(v.Room, e.MsgID, v.Name, func() {
		h.broadcast(v.Room, models.NewDelete(e.MsgID))
	})
	if err != nil {
		if isAuthorizationError(err) {
			logger.Info("Delete by %s on %s refused: %v", v.Name, e.MsgID, err)
		} else {
			logger.Debug("Delete by %s on %s ignored: %v", v.Name, e.MsgID, err)
		}
		s.sendSystem(msgCannotDel)
	}
}

func (h *Hub) handleMarkRead(s *Session, e models.MarkRead) {
	if e.LastMsgID == "" {
		return
	}
	v, ok := h.registry.SetLastRead(s.ID, e.LastMsgID)
	if !ok {
		return
	}
	h.broadcast(v.Room, models.NewReadReceipt(v.Name, e.LastMsgID))
}

func isAuthorizationError(err error) bool {
	return errors.Is(err, services.ErrNotAuthor)
}
