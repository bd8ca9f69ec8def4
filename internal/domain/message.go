package domain

import "time"

// Message is one entry in a room's timeline. ID is empty until the server
// assigns one; Status exists only on this side of the wire.
type Message struct {
	ID        string      `json:"id"`
	Body      string      `json:"message"`
	CreatedAt time.Time   `json:"createdAt"`
	SentBy    ChatUser    `json:"sentBy"`
	Kind      MessageKind `json:"type"`
	ReadBy    []ReadBy    `json:"readBy"`

	Status DeliveryStatus `json:"-"`
}

// ReadBy records that a participant has read a message.
type ReadBy struct {
	Participant ChatUser  `json:"participant"`
	ReadAt      time.Time `json:"readAt"`
}

// IsReadBy reports whether the given user already appears in the read set.
func (m *Message) IsReadBy(userID int64) bool {
	for _, r := range m.ReadBy {
		if r.Participant.ID == userID {
			return true
		}
	}
	return false
}

// MarkReadBy appends the reader to the read set. The read set is append-only
// and duplicate readers are ignored, so applying the same receipt twice is a
// no-op.
func (m *Message) MarkReadBy(reader ReadBy) {
	if m.IsReadBy(reader.Participant.ID) {
		return
	}
	m.ReadBy = append(m.ReadBy, reader)
}
