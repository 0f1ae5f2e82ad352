package domain

import (
	"errors"
	"time"
)

var (
	ErrNotMessageOwner = errors.New("not the message owner")
	ErrEmptyMessage    = errors.New("message has no content")
)

type MessageID string

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentVideo ContentType = "video"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// statusTransitions is the table of legal status moves. Anything not
// listed is ignored by the pipeline, so a late Deliver can never pull
// a read message back to delivered.
var statusTransitions = map[MessageStatus][]MessageStatus{
	StatusSent:      {StatusDelivered, StatusRead, StatusFailed},
	StatusDelivered: {StatusRead},
}

func (s MessageStatus) CanTransition(to MessageStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Reaction struct {
	UserID UserID `json:"userId"`
	Emoji  string `json:"emoji"`
}

type Message struct {
	ID             MessageID     `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       UserID        `json:"senderId"`
	ReceiverID     UserID        `json:"receiverId"`
	Content        string        `json:"content,omitempty"`
	MediaURL       string        `json:"mediaUrl,omitempty"`
	ContentType    ContentType   `json:"contentType"`
	Reactions      []Reaction    `json:"reactions"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// ToggleReaction applies the single-entry-per-user rule: the same emoji
// again removes the entry, a different emoji replaces it, otherwise a
// new entry is appended. Returns the updated list.
func ToggleReaction(reactions []Reaction, userID UserID, emoji string) []Reaction {
	for i, r := range reactions {
		if r.UserID != userID {
			continue
		}
		if r.Emoji == emoji {
			return append(reactions[:i], reactions[i+1:]...)
		}
		reactions[i].Emoji = emoji
		return reactions
	}
	return append(reactions, Reaction{UserID: userID, Emoji: emoji})
}
