package models

import "encoding/json"

type MessageType string

const (
	MessageTypeCmd         MessageType = "cmd"
	MessageTypeMsg         MessageType = "msg"
	MessageTypeTyping      MessageType = "typing"
	MessageTypeReact       MessageType = "react"
	MessageTypeEdit        MessageType = "edit"
	MessageTypeDelete      MessageType = "delete"
	MessageTypeMarkRead    MessageType = "markread"
	MessageTypeSystem      MessageType = "system"
	MessageTypeList        MessageType = "list"
	MessageTypeHistory     MessageType = "history"
	MessageTypeReaction    MessageType = "reaction"
	MessageTypeReadReceipt MessageType = "readreceipt"
	MessageTypeMention     MessageType = "mention"
	MessageTypeRoomList    MessageType = "roomlist"
	MessageTypeStatus      MessageType = "status"
	MessageTypeNudge       MessageType = "nudge"
	MessageTypeLinkPreview MessageType = "linkpreview"
)

// Inbound is a client to server envelope. The set of implementations is closed.
type Inbound interface {
	inbound()
}

type Command struct {
	Cmd string `json:"cmd"`
}

type ChatText struct {
	Text string `json:"text"`
}

type TypingUpdate struct {
	IsTyping bool `json:"is_typing"`
}

type ReactionToggle struct {
	MsgID string `json:"msg_id"`
	Emoji string `json:"emoji"`
}

type EditRequest struct {
	MsgID   string `json:"msg_id"`
	NewText string `json:"new_text"`
}

type DeleteRequest struct {
	MsgID string `json:"msg_id"`
}

type MarkRead struct {
	LastMsgID string `json:"last_msg_id"`
}

func (Command) inbound()        {}
func (ChatText) inbound()       {}
func (TypingUpdate) inbound()   {}
func (ReactionToggle) inbound() {}
func (EditRequest) inbound()    {}
func (DeleteRequest) inbound()  {}
func (MarkRead) inbound()       {}

// Wire forms of the inbound kinds. Pointer fields tell a missing field
// apart from a zero value; every field of a kind is required.
type (
	commandWire struct {
		Cmd *string `json:"cmd"`
	}
	chatWire struct {
		Text *string `json:"text"`
	}
	typingWire struct {
		IsTyping *bool `json:"is_typing"`
	}
	reactWire struct {
		MsgID *string `json:"msg_id"`
		Emoji *string `json:"emoji"`
	}
	editWire struct {
		MsgID   *string `json:"msg_id"`
		NewText *string `json:"new_text"`
	}
	deleteWire struct {
		MsgID *string `json:"msg_id"`
	}
	markReadWire struct {
		LastMsgID *string `json:"last_msg_id"`
	}
)

func decodeWire[T any](data []byte) (T, bool) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err == nil
}

// DecodeInbound parses a text frame. Frames that are not a well-formed
// envelope of a known kind, including ones missing a field of their kind,
// come back as ChatText carrying the raw payload.
func DecodeInbound(data []byte) Inbound {
	if env, ok := decodeInbound(data); ok {
		return env
	}
	return ChatText{Text: string(data)}
}

func decodeInbound(data []byte) (Inbound, bool) {
	head, ok := decodeWire[struct {
		Type MessageType `json:"type"`
	}](data)
	if !ok {
		return nil, false
	}

	switch head.Type {
	case MessageTypeCmd:
		if w, ok := decodeWire[commandWire](data); ok && w.Cmd != nil {
			return Command{Cmd: *w.Cmd}, true
		}
	case MessageTypeMsg:
		if w, ok := decodeWire[chatWire](data); ok && w.Text != nil {
			return ChatText{Text: *w.Text}, true
		}
	case MessageTypeTyping:
		if w, ok := decodeWire[typingWire](data); ok && w.IsTyping != nil {
			return TypingUpdate{IsTyping: *w.IsTyping}, true
		}
	case MessageTypeReact:
		if w, ok := decodeWire[reactWire](data); ok && w.MsgID != nil && w.Emoji != nil {
			return ReactionToggle{MsgID: *w.MsgID, Emoji: *w.Emoji}, true
		}
	case MessageTypeEdit:
		if w, ok := decodeWire[editWire](data); ok && w.MsgID != nil && w.NewText != nil {
			return EditRequest{MsgID: *w.MsgID, NewText: *w.NewText}, true
		}
	case MessageTypeDelete:
		if w, ok := decodeWire[deleteWire](data); ok && w.MsgID != nil {
			return DeleteRequest{MsgID: *w.MsgID}, true
		}
	case MessageTypeMarkRead:
		if w, ok := decodeWire[markReadWire](data); ok && w.LastMsgID != nil {
			return MarkRead{LastMsgID: *w.LastMsgID}, true
		}
	}
	return nil, false
}

// Outbound is a server to client envelope. Values are built with the New*
// constructors so the type tag is always set.
type Outbound interface {
	Kind() MessageType
}

type SystemEvent struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type ChatEvent struct {
	Type      MessageType         `json:"type"`
	ID        string              `json:"id"`
	From      string              `json:"from"`
	Text      string              `json:"text"`
	Timestamp int64               `json:"ts"`
	Reactions map[string][]string `json:"reactions"`
	Edited    bool                `json:"edited"`
}

type UserListEvent struct {
	Type  MessageType `json:"type"`
	Users []string    `json:"users"`
}

type HistoryEvent struct {
	Type  MessageType `json:"type"`
	Items []Message   `json:"items"`
}

type TypingEvent struct {
	Type  MessageType `json:"type"`
	Users []string    `json:"users"`
}

type ReactionEvent struct {
	Type  MessageType `json:"type"`
	MsgID string      `json:"msg_id"`
	Emoji string      `json:"emoji"`
	User  string      `json:"user"`
	Added bool        `json:"added"`
}

type EditEvent struct {
	Type    MessageType `json:"type"`
	MsgID   string      `json:"msg_id"`
	NewText string      `json:"new_text"`
}

type DeleteEvent struct {
	Type  MessageType `json:"type"`
	MsgID string      `json:"msg_id"`
}

type ReadReceiptEvent struct {
	Type      MessageType `json:"type"`
	User      string      `json:"user"`
	LastMsgID string      `json:"last_msg_id"`
}

type MentionEvent struct {
	Type      MessageType `json:"type"`
	From      string      `json:"from"`
	Text      string      `json:"text"`
	Mentioned string      `json:"mentioned"`
}

type RoomListEvent struct {
	Type  MessageType `json:"type"`
	Rooms []RoomInfo  `json:"rooms"`
}

type StatusEvent struct {
	Type   MessageType `json:"type"`
	User   string      `json:"user"`
	Status string      `json:"status"`
}

type NudgeEvent struct {
	Type MessageType `json:"type"`
	From string      `json:"from"`
}

type LinkPreviewEvent struct {
	Type        MessageType `json:"type"`
	MsgID       string      `json:"msg_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	URL         string      `json:"url"`
}

func (e SystemEvent) Kind() MessageType      { return e.Type }
func (e ChatEvent) Kind() MessageType        { return e.Type }
func (e UserListEvent) Kind() MessageType    { return e.Type }
func (e HistoryEvent) Kind() MessageType     { return e.Type }
func (e TypingEvent) Kind() MessageType      { return e.Type }
func (e ReactionEvent) Kind() MessageType    { return e.Type }
func (e EditEvent) Kind() MessageType        { return e.Type }
func (e DeleteEvent) Kind() MessageType      { return e.Type }
func (e ReadReceiptEvent) Kind() MessageType { return e.Type }
func (e MentionEvent) Kind() MessageType     { return e.Type }
func (e RoomListEvent) Kind() MessageType    { return e.Type }
func (e StatusEvent) Kind() MessageType      { return e.Type }
func (e NudgeEvent) Kind() MessageType       { return e.Type }
func (e LinkPreviewEvent) Kind() MessageType { return e.Type }

func NewSystem(text string) SystemEvent {
	return SystemEvent{Type: MessageTypeSystem, Text: text}
}

func NewChat(m Message) ChatEvent {
	reactions := m.Reactions
	if reactions == nil {
		reactions = map[string][]string{}
	}
	return ChatEvent{
		Type:      MessageTypeMsg,
		ID:        m.ID,
		From:      m.From,
		Text:      m.Text,
		Timestamp: m.Timestamp,
		Reactions: reactions,
		Edited:    m.Edited,
	}
}

func NewUserList(users []string) UserListEvent {
	if users == nil {
		users = []string{}
	}
	return UserListEvent{Type: MessageTypeList, Users: users}
}

func NewHistory(items []Message) HistoryEvent {
	if items == nil {
		items = []Message{}
	}
	return HistoryEvent{Type: MessageTypeHistory, Items: items}
}

func NewTyping(users []string) TypingEvent {
	if users == nil {
		users = []string{}
	}
	return TypingEvent{Type: MessageTypeTyping, Users: users}
}

func NewReaction(msgID, emoji, user string, added bool) ReactionEvent {
	return ReactionEvent{Type: MessageTypeReaction, MsgID: msgID, Emoji: emoji, User: user, Added: added}
}

func NewEdit(msgID, newText string) EditEvent {
	return EditEvent{Type: MessageTypeEdit, MsgID: msgID, NewText: newText}
}

func NewDelete(msgID string) DeleteEvent {
	return DeleteEvent{Type: MessageTypeDelete, MsgID: msgID}
}

func NewReadReceipt(user, lastMsgID string) ReadReceiptEvent {
	return ReadReceiptEvent{Type: MessageTypeReadReceipt, User: user, LastMsgID: lastMsgID}
}

func NewMention(from, text, mentioned string) MentionEvent {
	return MentionEvent{Type: MessageTypeMention, From: from, Text: text, Mentioned: mentioned}
}

func NewRoomList(rooms []RoomInfo) RoomListEvent {
	if rooms == nil {
		rooms = []RoomInfo{}
	}
	return RoomListEvent{Type: MessageTypeRoomList, Rooms: rooms}
}

func NewStatus(user, status string) StatusEvent {
	return StatusEvent{Type: MessageTypeStatus, User: user, Status: status}
}

func NewNudge(from string) NudgeEvent {
	return NudgeEvent{Type: MessageTypeNudge, From: from}
}

func NewLinkPreview(msgID, url string, p Preview) LinkPreviewEvent {
	return LinkPreviewEvent{
		Type:        MessageTypeLinkPreview,
		MsgID:       msgID,
		Title:       p.Title,
		Description: p.Description,
		Image:       p.Image,
		URL:         url,
	}
}

// Preview is the metadata extracted from a linked page.
type Preview struct {
	Title       string
	Description string
	Image       string
}

// Encode serializes an outbound envelope for a text frame.
func Encode(o Outbound) ([]byte, error) {
	return json.Marshal(o)
}
