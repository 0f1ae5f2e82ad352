package domain

import "time"

// Conversation is the durable pairing of two users. Participants are
// stored sorted so the pair addresses the same row from either side.
type Conversation struct {
	ID            string         `json:"id"`
	Participants  [2]UserID      `json:"participants"`
	LastMessageID MessageID      `json:"lastMessageId,omitempty"`
	UnreadCount   map[UserID]int `json:"unreadCount,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// ParticipantPair returns the two user ids in sorted order.
func ParticipantPair(a, b UserID) (UserID, UserID) {
	if b < a {
		return b, a
	}
	return a, b
}

// Other returns the counterpart of uid, or "" if uid is not a participant.
func (c *Conversation) Other(uid UserID) UserID {
	switch uid {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}
