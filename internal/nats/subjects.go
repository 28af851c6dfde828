package nats

const (
	// libraryconnect.chat.event.{type}
	subjectEventPrefix = "libraryconnect.chat.event."
	// every instance receives every event and delivers to its own connections
	SubjectEventAll = subjectEventPrefix + ">"
)

// EventSubject returns the subject for an event type.
func EventSubject(eventType string) string {
	return subjectEventPrefix + eventType
}
