package model

import "time"

// Message is a direct message between two users. Only Read ever changes after creation.
type Message struct {
	ID          int64     `json:"id,string" db:"id"`
	ClientMsgID string    `json:"clientMsgId,omitempty" db:"client_msg_id"`
	SenderID    int64     `json:"senderId,string" db:"sender_id"`
	RecipientID int64     `json:"recipientId,string" db:"recipient_id"`
	Content     string    `json:"content" db:"content"`
	Read        bool      `json:"read" db:"read"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// PartnerOf returns the participant that is not userID.
func (m *Message) PartnerOf(userID int64) int64 {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// Before orders messages by creation time, then by id.
func (m *Message) Before(o *Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}

// MessageWithUsers is a message with both participants expanded.
type MessageWithUsers struct {
	Message
	Sender    UserSummary `json:"sender"`
	Recipient UserSummary `json:"recipient"`
}
