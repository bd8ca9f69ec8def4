package domain

type MessageKind string

const (
	MessageKindText   MessageKind = "TEXT"
	MessageKindImage  MessageKind = "IMAGE"
	MessageKindVoice  MessageKind = "VOICE"
	MessageKindVideo  MessageKind = "VIDEO"
	MessageKindCustom MessageKind = "CUSTOM"
)

type RoomType string

const (
	RoomTypePrivate RoomType = "PRIVATE"
	RoomTypeGroup   RoomType = "GROUP"
)

// DeliveryStatus is a client-only annotation; it is never sent to the server.
// Delivered and Undelivered are terminal, Undelivered is reachable only from
// Sending.
type DeliveryStatus string

const (
	DeliveryStatusSending     DeliveryStatus = "SENDING"
	DeliveryStatusDelivered   DeliveryStatus = "DELIVERED"
	DeliveryStatusUndelivered DeliveryStatus = "UNDELIVERED"
)
