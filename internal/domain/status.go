package domain

import "time"

// StatusTTL is how long a posted status stays visible.
const StatusTTL = 24 * time.Hour

// Status is an ephemeral story post, visible to all contacts until expiry.
type Status struct {
	ID          string      `json:"id"`
	UserID      UserID      `json:"userId"`
	Content     string      `json:"content,omitempty"`
	MediaURL    string      `json:"mediaUrl,omitempty"`
	ContentType ContentType `json:"contentType"`
	ViewedBy    []UserID    `json:"viewedBy"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

func (s *Status) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// MarkViewed records a viewer once; repeat views are no-ops.
func (s *Status) MarkViewed(viewer UserID) bool {
	for _, v := range s.ViewedBy {
		if v == viewer {
			return false
		}
	}
	s.ViewedBy = append(s.ViewedBy, viewer)
	return true
}
