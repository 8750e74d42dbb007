package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"roomchat/internal/config"
	"roomchat/internal/filter"
	"roomchat/internal/models"
	"roomchat/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadCredentials = errors.New("invalid credentials")

type fakeAuth struct {
	mu    sync.Mutex
	users map[string]string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: make(map[string]string)}
}

func (a *fakeAuth) Register(_ context.Context, username, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[username]; ok {
		return errors.New("username already exists")
	}
	a.users[username] = password
	return nil
}

func (a *fakeAuth) Verify(_ context.Context, username, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.users[username]; !ok || p != password {
		return errBadCredentials
	}
	return nil
}

func (a *fakeAuth) IssueToken(username string) (string, error) {
	return "tok-" + username, nil
}

func (a *fakeAuth) UsernameFromToken(_ context.Context, token string) (string, error) {
	username, ok := strings.CutPrefix(token, "tok-")
	if !ok {
		return "", errBadCredentials
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[username]; !ok {
		return "", errBadCredentials
	}
	return username, nil
}

type fakePreviews struct {
	preview models.Preview
	err     error
}

func (f *fakePreviews) Fetch(context.Context, string) (models.Preview, error) {
	return f.preview, f.err
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		DefaultRoom:      "lobby",
		HistoryLimit:     200,
		RateLimitCount:   5,
		RateLimitWindow:  10 * time.Second,
		PresenceInterval: time.Second,
		IdleAfter:        time.Minute,
		MaxMessageSize:   4096,
	}
}

func newTestHub(t *testing.T, deps Dependencies) *Hub {
	t.Helper()

	var mu sync.Mutex
	n := 0
	newID := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("m%d", n)
	}
	if deps.Rooms == nil {
		deps.Rooms = services.NewRoomStore(200, newID)
	}
	if deps.Private == nil {
		deps.Private = services.NewPrivateStore(200, newID)
	}
	if deps.Auth == nil {
		deps.Auth = newFakeAuth()
	}
	if deps.Filter == nil {
		deps.Filter = filter.New([]string{"darn"})
	}

	h := NewHub(testChatConfig(), deps)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.Shutdown(ctx)
	})
	return h
}

// frame is a decoded outbound envelope.
type frame map[string]any

func (f frame) kind() string {
	s, _ := f["type"].(string)
	return s
}

func (f frame) text() string {
	s, _ := f["text"].(string)
	return s
}

func drain(t *testing.T, s *Session) []frame {
	t.Helper()
	batch, _ := s.outbox.Drain()
	out := make([]frame, 0, len(batch))
	for _, data := range batch {
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		out = append(out, f)
	}
	return out
}

func ofKind(frames []frame, kind string) []frame {
	var out []frame
	for _, f := range frames {
		if f.kind() == kind {
			out = append(out, f)
		}
	}
	return out
}

func systemTexts(frames []frame) []string {
	var out []string
	for _, f := range ofKind(frames, "system") {
		out = append(out, f.text())
	}
	return out
}

func join(t *testing.T, h *Hub, id, name string) *Session {
	t.Helper()
	s := h.NewSession(id)
	require.True(t, h.HandleUnauthenticated(s, models.Command{Cmd: "/name " + name}))
	drain(t, s)
	return s
}

func cmd(h *Hub, s *Session, line string) {
	h.Dispatch(s, models.Command{Cmd: line})
}

func TestAdmitAnnouncesAndSendsSnapshot(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")

	bob := h.NewSession("bob-session")
	require.True(t, h.HandleUnauthenticated(bob, models.Command{Cmd: "/name bob"}))

	frames := drain(t, bob)
	require.GreaterOrEqual(t, len(frames), 4)
	assert.Equal(t, "Your name is 'bob'. You are not authenticated.", frames[0].text())
	assert.Equal(t, "-- bob joined the room --", frames[1].text())
	assert.Equal(t, "history", frames[2].kind())
	assert.Equal(t, "list", frames[3].kind())
	assert.ElementsMatch(t, []any{"alice", "bob"}, frames[3]["users"])

	aliceFrames := drain(t, alice)
	assert.Contains(t, systemTexts(aliceFrames), "-- bob joined the room --")
}

func TestUnauthenticatedSessionIsReminded(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	s := h.NewSession("anon")

	assert.False(t, h.HandleUnauthenticated(s, models.ChatText{Text: "hi"}))
	assert.False(t, h.HandleUnauthenticated(s, models.Command{Cmd: "/join games"}))
	assert.False(t, h.HandleUnauthenticated(s, models.TypingUpdate{IsTyping: true}))

	texts := systemTexts(drain(t, s))
	require.Len(t, texts, 2)
	assert.Equal(t, msgChooseName, texts[0])
	assert.Equal(t, "Please choose a name or login/register first. Unknown: /join", texts[1])
	assert.Equal(t, 0, h.registry.Len())
}

func TestRegisterAndTokenLoginBeforeAdmission(t *testing.T) {
	h := newTestHub(t, Dependencies{})

	s := h.NewSession("first")
	require.True(t, h.HandleUnauthenticated(s, models.Command{Cmd: "/register carol hunter22"}))
	texts := systemTexts(drain(t, s))
	assert.Contains(t, texts, "Registered and logged in as 'carol'")
	assert.Contains(t, texts, "Session token (use /token <token> to reconnect): tok-carol")
	h.Leave(s)

	again := h.NewSession("second")
	assert.False(t, h.HandleUnauthenticated(again, models.Command{Cmd: "/login carol wrong"}))
	assert.Contains(t, systemTexts(drain(t, again)), "Login failed: invalid username or password")

	require.True(t, h.HandleUnauthenticated(again, models.Command{Cmd: "/token tok-carol"}))
	v, ok := h.registry.View(again.ID)
	require.True(t, ok)
	assert.Equal(t, "carol", v.Name)
	assert.True(t, v.Authenticated)
}

func TestChatEditAndRoomIsolation(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	carol := join(t, h, "carol-session", "carol")
	cmd(h, carol, "/join games")
	drain(t, alice)
	drain(t, carol)

	h.Dispatch(alice, models.ChatText{Text: "hello"})

	aliceChats := ofKind(drain(t, alice), "msg")
	require.Len(t, aliceChats, 1)
	assert.Equal(t, "alice", aliceChats[0]["from"])
	assert.Equal(t, "hello", aliceChats[0].text())
	msgID := aliceChats[0]["id"].(string)

	bob := h.NewSession("bob-session")
	require.True(t, h.HandleUnauthenticated(bob, models.Command{Cmd: "/name bob"}))
	histories := ofKind(drain(t, bob), "history")
	require.Len(t, histories, 1)
	var found bool
	for _, item := range histories[0]["items"].([]any) {
		m := item.(map[string]any)
		if m["id"] == msgID {
			found = true
			assert.Equal(t, "hello", m["text"])
			assert.Equal(t, "alice", m["from"])
		}
	}
	assert.True(t, found, "late joiner history lacks %s", msgID)

	h.Dispatch(alice, models.EditRequest{MsgID: msgID, NewText: "hello there"})
	edits := ofKind(drain(t, bob), "edit")
	require.Len(t, edits, 1)
	assert.Equal(t, msgID, edits[0]["msg_id"])
	assert.Equal(t, "hello there", edits[0]["new_text"])

	carolFrames := drain(t, carol)
	assert.Empty(t, ofKind(carolFrames, "msg"))
	assert.Empty(t, ofKind(carolFrames, "edit"))

	var edited *models.Message
	for _, m := range h.History("lobby") {
		if m.ID == msgID {
			edited = &m
		}
	}
	require.NotNil(t, edited)
	assert.Equal(t, "hello there", edited.Text)
	assert.True(t, edited.Edited)

	h.Dispatch(bob, models.EditRequest{MsgID: msgID, NewText: "hijacked"})
	assert.Contains(t, systemTexts(drain(t, bob)), msgCannotEdit)
}

func TestIncompleteEnvelopeIsChatText(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")
	drain(t, bob)

	raw := `{"type":"msg","txt":"hello"}`
	h.Dispatch(alice, models.DecodeInbound([]byte(raw)))

	chats := ofKind(drain(t, bob), "msg")
	require.Len(t, chats, 1)
	assert.Equal(t, raw, chats[0].text())

	h.Dispatch(alice, models.DecodeInbound([]byte(`{"type":"typing"}`)))
	frames := drain(t, bob)
	assert.Empty(t, ofKind(frames, "typing"))
	assert.Len(t, ofKind(frames, "msg"), 1)
}

func TestDeleteIsIdempotent(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")

	h.Dispatch(alice, models.ChatText{Text: "oops"})
	chats := ofKind(drain(t, alice), "msg")
	require.Len(t, chats, 1)
	msgID := chats[0]["id"].(string)
	drain(t, bob)

	h.Dispatch(bob, models.DeleteRequest{MsgID: msgID})
	assert.Contains(t, systemTexts(drain(t, bob)), msgCannotDel)

	h.Dispatch(alice, models.DeleteRequest{MsgID: msgID})
	h.Dispatch(alice, models.DeleteRequest{MsgID: msgID})
	assert.Len(t, ofKind(drain(t, bob), "delete"), 1)
	assert.Empty(t, systemTexts(drain(t, alice)))

	for _, m := range h.History("lobby") {
		assert.NotEqual(t, msgID, m.ID)
	}

	h.Dispatch(bob, models.ReactionToggle{MsgID: msgID, Emoji: "👍"})
	assert.Empty(t, ofKind(drain(t, bob), "reaction"))
}

func TestReactionToggles(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")

	h.Dispatch(alice, models.ChatText{Text: "vote"})
	msgID := ofKind(drain(t, bob), "msg")[0]["id"].(string)

	h.Dispatch(bob, models.ReactionToggle{MsgID: msgID, Emoji: "👍"})
	h.Dispatch(bob, models.ReactionToggle{MsgID: msgID, Emoji: "👍"})

	reactions := ofKind(drain(t, alice), "reaction")
	require.Len(t, reactions, 2)
	assert.Equal(t, true, reactions[0]["added"])
	assert.Equal(t, false, reactions[1]["added"])
	assert.Equal(t, "bob", reactions[0]["user"])
}

func TestChatIsFiltered(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")

	h.Dispatch(alice, models.ChatText{Text: "well darn it"})
	chats := ofKind(drain(t, alice), "msg")
	require.Len(t, chats, 1)
	assert.Equal(t, "well **** it", chats[0].text())
}

func TestWhitespaceChatIsDropped(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")

	h.Dispatch(alice, models.ChatText{Text: "   "})
	assert.Empty(t, drain(t, alice))
}

func TestRateLimitMessage(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	now := time.Unix(1700000000, 0)
	h.now = func() time.Time { return now }
	alice := join(t, h, "alice-session", "alice")

	for i := 0; i < 6; i++ {
		h.Dispatch(alice, models.ChatText{Text: fmt.Sprintf("spam %d", i)})
	}
	frames := drain(t, alice)
	assert.Len(t, ofKind(frames, "msg"), 5)
	assert.Contains(t, systemTexts(frames), "Rate limited: slow down! Max 5 messages per 10 seconds.")

	now = now.Add(10 * time.Second)
	h.Dispatch(alice, models.ChatText{Text: "later"})
	assert.Len(t, ofKind(drain(t, alice), "msg"), 1)
}

func TestMentionsNotifyRoomMembersOnly(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")
	carol := join(t, h, "carol-session", "carol")
	cmd(h, carol, "/join games")
	drain(t, alice)
	drain(t, bob)
	drain(t, carol)

	h.Dispatch(alice, models.ChatText{Text: "hey @Bob and @carol, also @bob!"})

	mentions := ofKind(drain(t, bob), "mention")
	require.Len(t, mentions, 1)
	assert.Equal(t, "alice", mentions[0]["from"])
	assert.Equal(t, "bob", mentions[0]["mentioned"])
	assert.Empty(t, ofKind(drain(t, carol), "mention"))
	assert.Empty(t, ofKind(drain(t, alice), "mention"))
}

func TestTypingIsClearedBySending(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")
	drain(t, alice)

	h.Dispatch(bob, models.TypingUpdate{IsTyping: true})
	typing := ofKind(drain(t, alice), "typing")
	require.Len(t, typing, 1)
	assert.Equal(t, []any{"bob"}, typing[0]["users"])

	h.Dispatch(bob, models.ChatText{Text: "done"})
	typing = ofKind(drain(t, alice), "typing")
	require.Len(t, typing, 1)
	assert.Empty(t, typing[0]["users"])
}

func TestMarkReadBroadcastsReceipt(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")
	drain(t, alice)

	h.Dispatch(bob, models.MarkRead{LastMsgID: "m7"})
	receipts := ofKind(drain(t, alice), "readreceipt")
	require.Len(t, receipts, 1)
	assert.Equal(t, "bob", receipts[0]["user"])
	assert.Equal(t, "m7", receipts[0]["last_msg_id"])

	v, _ := h.registry.View(bob.ID)
	assert.Equal(t, "m7", v.LastRead)
}

func TestLinkPreviewIsBroadcast(t *testing.T) {
	previews := &fakePreviews{preview: models.Preview{Title: "Example", Description: "An example page"}}
	h := newTestHub(t, Dependencies{Previews: previews})
	alice := join(t, h, "alice-session", "alice")

	h.Dispatch(alice, models.ChatText{Text: "see https://example.com/page"})
	h.tasks.Wait()

	frames := drain(t, alice)
	chats := ofKind(frames, "msg")
	require.Len(t, chats, 1)
	links := ofKind(frames, "linkpreview")
	require.Len(t, links, 1)
	assert.Equal(t, chats[0]["id"], links[0]["msg_id"])
	assert.Equal(t, "https://example.com/page", links[0]["url"])
	assert.Equal(t, "Example", links[0]["title"])
}

func TestPresenceTransitions(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	now := time.Unix(1700000000, 0)
	h.now = func() time.Time { return now }
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")
	h.registry.Touch(alice.ID, now)
	h.registry.Touch(bob.ID, now)
	drain(t, alice)

	now = now.Add(2 * time.Minute)
	h.registry.Touch(alice.ID, now)
	h.checkPresence()

	statuses := ofKind(drain(t, alice), "status")
	require.Len(t, statuses, 1)
	assert.Equal(t, "bob", statuses[0]["user"])
	assert.Equal(t, StatusIdle, statuses[0]["status"])

	h.Dispatch(bob, models.TypingUpdate{IsTyping: false})
	h.checkPresence()
	statuses = ofKind(drain(t, alice), "status")
	require.Len(t, statuses, 1)
	assert.Equal(t, StatusActive, statuses[0]["status"])
}

func TestLeaveAnnouncesOnce(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	bob := join(t, h, "bob-session", "bob")
	drain(t, alice)

	h.Leave(bob)
	h.Leave(bob)

	texts := systemTexts(drain(t, alice))
	assert.Equal(t, []string{"-- bob left the room --"}, texts)
	assert.Equal(t, 1, h.registry.Len())
}

func TestStatsCountsState(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	join(t, h, "bob-session", "bob")
	h.Dispatch(alice, models.ChatText{Text: "one"})

	st := h.Stats()
	assert.Equal(t, 2, st.Clients)
	assert.Equal(t, 1, st.Rooms)
	assert.Equal(t, int64(1), st.TotalMessages)
	assert.Equal(t, int64(2), st.Connections)
	// two join announcements plus the chat
	assert.Equal(t, 3, st.Messages)
}

func TestShutdownClosesOutboxes(t *testing.T) {
	h := newTestHub(t, Dependencies{})
	alice := join(t, h, "alice-session", "alice")
	c := &Client{hub: h, session: alice, done: make(chan struct{})}
	require.True(t, h.track(c))
	select {
	case <-alice.outbox.Ready():
	default:
	}

	go func() {
		<-alice.outbox.Ready()
		h.untrack(c)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	batch, closed := alice.outbox.Drain()
	assert.True(t, closed)
	require.NotEmpty(t, batch)
	assert.Contains(t, string(batch[len(batch)-1]), "Server is shutting down.")
	assert.False(t, h.track(&Client{hub: h, session: h.NewSession("late")}))
}
