package replica

import (
	"context"

	"github.com/dispatch-board/internal/domain"
)

// Authority is the server side of the board as a replica sees it.
type Authority interface {
	// GetDay fetches the authoritative copy of a day.
	GetDay(ctx context.Context, date domain.Date) (*domain.BoardDay, error)
	// Mutate issues one mutation and returns the change events it committed.
	Mutate(ctx context.Context, req MutationRequest) ([]domain.ChangeEvent, error)
}

// Subscriber delivers pushed change events.
type Subscriber interface {
	// Subscribe connects and streams events for dates. The channel closes
	// when ctx ends or the connection drops.
	Subscribe(ctx context.Context, dates []domain.Date) (<-chan domain.ChangeEvent, error)
	// UpdateWatch replaces the dates of the live connection.
	UpdateWatch(dates []domain.Date) error
}

// MutationRequest is one call against the board API.
type MutationRequest struct {
	Method        string
	Path          string
	Body          interface{}
	CorrelationID string
}
