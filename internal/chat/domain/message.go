package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength max runes in one message
const MaxContentLength = 4000

// MaxAttachments max attachments in one message
const MaxAttachments = 10

// AttachmentType definition attachment kind
type AttachmentType string

const (
	// AttachmentImage image attachment
	AttachmentImage AttachmentType = "image"
	// AttachmentVideo video attachment
	AttachmentVideo AttachmentType = "video"
	// AttachmentAudio audio attachment
	AttachmentAudio AttachmentType = "audio"
	// AttachmentFile generic file attachment
	AttachmentFile AttachmentType = "file"
)

// Valid check attachment type
func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentFile:
		return true
	}
	return false
}

// Attachment message attachment
type Attachment struct {
	Type AttachmentType `bson:"type" json:"type"`
	URL  string         `bson:"url" json:"url"`
}

// DeliveryState sent ⊑ delivered ⊑ read
type DeliveryState int

const (
	// StateSent persisted, not yet acknowledged by the recipient
	StateSent DeliveryState = iota
	// StateDelivered recipient client received it
	StateDelivered
	// StateRead recipient opened the conversation
	StateRead
)

func (s DeliveryState) String() string {
	switch s {
	case StateDelivered:
		return "delivered"
	case StateRead:
		return "read"
	default:
		return "sent"
	}
}

// Message 一則 1對1 訊息
type Message struct {
	ID             string       `bson:"_id" json:"id"`
	ConversationID string       `bson:"conversation_id" json:"chatId"`
	SenderID       string       `bson:"sender_id" json:"senderId"`
	RecipientID    string       `bson:"recipient_id" json:"receiverId"`
	ClientID       string       `bson:"client_id,omitempty" json:"clientId,omitempty"`
	Content        string       `bson:"content" json:"content"`
	Attachments    []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Seq            int64        `bson:"seq" json:"seq"`
	CreatedAt      time.Time    `bson:"created_at" json:"createdAt"`
	DeliveredAt    *time.Time   `bson:"delivered_at" json:"deliveredAt"`
	ReadAt         *time.Time   `bson:"read_at" json:"readAt"`
}

// State current position in the delivery lattice
func (m *Message) State() DeliveryState {
	switch {
	case m.ReadAt != nil:
		return StateRead
	case m.DeliveredAt != nil:
		return StateDelivered
	default:
		return StateSent
	}
}

// MarkDelivered set deliveredAt once, reports whether it changed
func (m *Message) MarkDelivered(at time.Time) bool {
	if m.DeliveredAt != nil {
		return false
	}
	t := at
	m.DeliveredAt = &t
	return true
}

// MarkRead set readAt once (and deliveredAt if still empty), reports whether it changed
func (m *Message) MarkRead(at time.Time) bool {
	if m.ReadAt != nil {
		return false
	}
	m.MarkDelivered(at)
	t := at
	m.ReadAt = &t
	return true
}

// Join merge the delivery state of another copy of the same message.
// Timestamps already set are kept, so the result never moves backward.
func (m *Message) Join(other *Message) {
	if other == nil {
		return
	}
	if m.DeliveredAt == nil && other.DeliveredAt != nil {
		t := *other.DeliveredAt
		m.DeliveredAt = &t
	}
	if m.ReadAt == nil && other.ReadAt != nil {
		t := *other.ReadAt
		m.ReadAt = &t
	}
	if m.ReadAt != nil && m.DeliveredAt == nil {
		t := *m.ReadAt
		m.DeliveredAt = &t
	}
}

// ValidateContent check content and attachments of an outgoing message
func ValidateContent(content string, attachments []Attachment) error {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return fmt.Errorf("%w: message content is empty", ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("%w: message content exceeds %d characters", ErrValidation, MaxContentLength)
	}
	if len(attachments) > MaxAttachments {
		return fmt.Errorf("%w: too many attachments", ErrValidation)
	}
	for i, a := range attachments {
		if !a.Type.Valid() {
			return fmt.Errorf("%w: attachment %d has unknown type %q", ErrValidation, i, a.Type)
		}
		u, err := url.Parse(a.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: attachment %d has malformed url", ErrValidation, i)
		}
	}
	return nil
}

// Now server clock, truncated to what mongo stores
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// LifecycleType message lifecycle event kind
type LifecycleType string

const (
	// LifecycleSent message persisted
	LifecycleSent LifecycleType = "message.sent"
	// LifecycleDelivered message reached the recipient client
	LifecycleDelivered LifecycleType = "message.delivered"
	// LifecycleRead conversation read by the recipient
	LifecycleRead LifecycleType = "message.read"
)

// LifecycleEvent delivery state transition, published for downstream consumers
type LifecycleEvent struct {
	Type           LifecycleType `json:"type"`
	ConversationID string        `json:"chatId"`
	MessageID      string        `json:"messageId,omitempty"`
	SenderID       string        `json:"senderId,omitempty"`
	RecipientID    string        `json:"receiverId,omitempty"`
	Count          int64         `json:"count,omitempty"`
	At             time.Time     `json:"at"`
}
