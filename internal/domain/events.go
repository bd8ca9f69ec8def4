package domain

import "fmt"

// MessageEvent is the broker payload pushed to every participant's inbox when
// a message lands, including the sender's own. RequestID lets the sender
// recognize the echo of its own optimistic send.
type MessageEvent struct {
	RoomID    string  `json:"roomId"`
	Message   Message `json:"message"`
	RequestID string  `json:"requestId"`
}

// ReadEvent is the broker payload pushed when a participant reads a batch of
// messages.
type ReadEvent struct {
	RoomID     string   `json:"roomId"`
	ReadBy     ReadBy   `json:"readBy"`
	MessageIDs []string `json:"messageIds"`
}

// Per-user inbox topics. These are inbox topics: every room the user
// participates in delivers here, not one topic per room.
func InboxTopic(userID int64) string {
	return fmt.Sprintf("/topic/chat.inbox.%d", userID)
}

func ReadTopic(userID int64) string {
	return fmt.Sprintf("/topic/chat.inbox.%d.read", userID)
}
