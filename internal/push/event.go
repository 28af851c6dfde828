package push

import "libraryconnect.chat/internal/model"

const (
	EventMessage = "message"
	EventRead    = "read"
)

// Event is the payload pushed to connected clients. Clients treat it as a hint to poll.
type Event struct {
	Type      string                  `json:"type"`
	Message   *model.MessageWithUsers `json:"message,omitempty"`
	ReaderID  int64                   `json:"readerId,string,omitempty"`
	PartnerID int64                   `json:"partnerId,string,omitempty"`
	Updated   int64                   `json:"updated,omitempty"`
}

// MessageEvent announces a new message to both participants.
func MessageEvent(msg *model.MessageWithUsers) Event {
	return Event{Type: EventMessage, Message: msg}
}

// ReadEvent announces that readerID has read updated messages from partnerID.
func ReadEvent(readerID, partnerID, updated int64) Event {
	return Event{Type: EventRead, ReaderID: readerID, PartnerID: partnerID, Updated: updated}
}

// Targets lists the users whose connections receive e.
func (e Event) Targets() []int64 {
	switch e.Type {
	case EventMessage:
		if e.Message == nil {
			return nil
		}
		return []int64{e.Message.RecipientID, e.Message.SenderID}
	case EventRead:
		return []int64{e.PartnerID, e.ReaderID}
	default:
		return nil
	}
}
