package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{"command", `{"type":"cmd","cmd":"/join dev"}`, Command{Cmd: "/join dev"}},
		{"chat", `{"type":"msg","text":"hello"}`, ChatText{Text: "hello"}},
		{"typing", `{"type":"typing","is_typing":true}`, TypingUpdate{IsTyping: true}},
		{"react", `{"type":"react","msg_id":"a1","emoji":"👍"}`, ReactionToggle{MsgID: "a1", Emoji: "👍"}},
		{"edit", `{"type":"edit","msg_id":"a1","new_text":"fixed"}`, EditRequest{MsgID: "a1", NewText: "fixed"}},
		{"delete", `{"type":"delete","msg_id":"a1"}`, DeleteRequest{MsgID: "a1"}},
		{"markread", `{"type":"markread","last_msg_id":"a1"}`, MarkRead{LastMsgID: "a1"}},
		{"plain text falls back to chat", `hi there`, ChatText{Text: "hi there"}},
		{"unknown kind falls back to chat", `{"type":"shout","text":"x"}`, ChatText{Text: `{"type":"shout","text":"x"}`}},
		{"wrong field type falls back to chat", `{"type":"typing","is_typing":"yes"}`, ChatText{Text: `{"type":"typing","is_typing":"yes"}`}},
		{"chat missing text", `{"type":"msg","txt":"hello"}`, ChatText{Text: `{"type":"msg","txt":"hello"}`}},
		{"typing missing flag", `{"type":"typing"}`, ChatText{Text: `{"type":"typing"}`}},
		{"react missing emoji", `{"type":"react","msg_id":"a1"}`, ChatText{Text: `{"type":"react","msg_id":"a1"}`}},
		{"react missing everything", `{"type":"react"}`, ChatText{Text: `{"type":"react"}`}},
		{"edit missing text", `{"type":"edit","msg_id":"a1"}`, ChatText{Text: `{"type":"edit","msg_id":"a1"}`}},
		{"delete missing id", `{"type":"delete"}`, ChatText{Text: `{"type":"delete"}`}},
		{"markread missing id", `{"type":"markread"}`, ChatText{Text: `{"type":"markread"}`}},
		{"command with null", `{"type":"cmd","cmd":null}`, ChatText{Text: `{"type":"cmd","cmd":null}`}},
		{"empty text is still chat", `{"type":"msg","text":""}`, ChatText{Text: ""}},
		{"typing false", `{"type":"typing","is_typing":false}`, TypingUpdate{IsTyping: false}},
		{"json string", `"hello"`, ChatText{Text: `"hello"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeInbound([]byte(tt.raw)))
		})
	}
}

func TestEncodeSetsTypeTag(t *testing.T) {
	msg := Message{ID: "m1", From: "alice", Text: "hello", Timestamp: 42}

	data, err := Encode(NewChat(msg))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "msg", got["type"])
	assert.Equal(t, "m1", got["id"])
	assert.Equal(t, "alice", got["from"])
	assert.Equal(t, map[string]interface{}{}, got["reactions"])

	data, err = Encode(NewTyping(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","users":[]}`, string(data))
}

func TestToggleReaction(t *testing.T) {
	m := &Message{ID: "m1"}

	assert.True(t, m.ToggleReaction("🔥", "bob"))
	assert.True(t, m.ToggleReaction("🔥", "carol"))
	assert.Equal(t, []string{"bob", "carol"}, m.Reactions["🔥"])

	assert.False(t, m.ToggleReaction("🔥", "bob"))
	assert.Equal(t, []string{"carol"}, m.Reactions["🔥"])

	assert.False(t, m.ToggleReaction("🔥", "carol"))
	_, ok := m.Reactions["🔥"]
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	m := &Message{ID: "m1"}
	m.ToggleReaction("👍", "bob")

	c := m.Clone()
	m.ToggleReaction("👍", "carol")

	assert.Equal(t, []string{"bob"}, c.Reactions["👍"])
}
