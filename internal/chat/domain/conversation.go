package domain

import (
	"sort"
	"strings"
	"time"

	"realtime_chat_service/pkg"
)

// ConversationType definition conversation type
type ConversationType string

const (
	// ConversationDirect 1對1
	ConversationDirect ConversationType = "direct"
)

// Conversation 1對1 對話
type Conversation struct {
	ID           string           `bson:"_id" json:"id"`
	Type         ConversationType `bson:"type" json:"type"`
	Participants []string         `bson:"participants" json:"participants"`
	PairKey      string           `bson:"pair_key" json:"-"`
	LastMessage  *Message         `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	Unread       map[string]int   `bson:"unread" json:"-"`
	MessageSeq   int64            `bson:"message_seq" json:"-"`
	CreatedAt    time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `bson:"updated_at" json:"updatedAt"`
}

// NewDirectConversation build a direct conversation between a and b (a == b is a self chat)
func NewDirectConversation(id, a, b string, now time.Time) *Conversation {
	participants := SortedPair(a, b)
	unread := map[string]int{}
	for _, p := range participants {
		unread[p] = 0
	}
	return &Conversation{
		ID:           id,
		Type:         ConversationDirect,
		Participants: participants,
		PairKey:      PairKey(a, b),
		Unread:       unread,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SortedPair participants in canonical order
func SortedPair(a, b string) []string {
	p := []string{a, b}
	sort.Strings(p)
	return p
}

// PairKey unique key of a participant pair, order independent
func PairKey(a, b string) string {
	return strings.Join(SortedPair(a, b), ":")
}

// HasParticipant check user is in the conversation
func (c *Conversation) HasParticipant(userID string) bool {
	return pkg.Contains(c.Participants, userID)
}

// Counterpart the other participant, self chat returns userID
func (c *Conversation) Counterpart(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return userID
}

// UnreadFor unread count of one participant
func (c *Conversation) UnreadFor(userID string) int {
	if c.Unread == nil {
		return 0
	}
	return c.Unread[userID]
}

// ConversationView conversation as seen by one participant
type ConversationView struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Participants []User           `json:"participants"`
	LastMessage  *Message         `json:"lastMessage,omitempty"`
	UnreadCount  int              `json:"unreadCount"`
	IsOnline     bool             `json:"isOnline"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// OtherParticipant the counterpart of viewer in the view
func (v *ConversationView) OtherParticipant(viewerID string) string {
	for _, u := range v.Participants {
		if u.ID != viewerID {
			return u.ID
		}
	}
	return viewerID
}
