package model

import "time"

// ConversationRow is what a store yields for one partner: the latest message of the pair
// and how many messages from that partner the viewer has not read.
type ConversationRow struct {
	PartnerID   int64
	LastMessage Message
	UnreadCount int64
}

// Conversation is a derived view, recomputed on every request.
type Conversation struct {
	User        UserSummary `json:"user"`
	LastMessage string      `json:"lastMessage"`
	LastSender  int64       `json:"lastSenderId,string"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	UnreadCount int64       `json:"unreadCount"`
}

// History is returned when a conversation is opened.
type History struct {
	Recipient PublicProfile      `json:"recipient"`
	Messages  []MessageWithUsers `json:"messages"`
}
