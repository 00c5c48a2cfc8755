package domain

// Stream names
const (
	StreamDispatchChanges = "stream:dispatch:changes"
)

// Consumer groups of the change stream
const (
	GroupBoardProjection = "board-projection"
)

// StreamMessage - сообщение из Redis Stream
type StreamMessage struct {
	ID   string
	Data string
}
