package models

// SystemAuthor is the author recorded for room announcements. It is never
// available as a display name.
const SystemAuthor = "system"

// Message is one stored entry of a room or private conversation log.
type Message struct {
	ID        string              `json:"id"`
	From      string              `json:"from"`
	Text      string              `json:"text"`
	Timestamp int64               `json:"ts"`
	Reactions map[string][]string `json:"reactions"`
	Edited    bool                `json:"edited"`
	Deleted   bool                `json:"deleted"`
}

// Clone returns a deep copy safe to hand outside the owning lock.
func (m *Message) Clone() Message {
	c := *m
	c.Reactions = make(map[string][]string, len(m.Reactions))
	for emoji, users := range m.Reactions {
		c.Reactions[emoji] = append([]string(nil), users...)
	}
	return c
}

// ToggleReaction adds user to the reactors of emoji, or removes them if
// already present. It reports whether the user was added.
func (m *Message) ToggleReaction(emoji, user string) bool {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	users := m.Reactions[emoji]
	for i, u := range users {
		if u == user {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = users
			}
			return false
		}
	}
	m.Reactions[emoji] = append(users, user)
	return true
}

type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}
