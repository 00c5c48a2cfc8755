package repository

import (
	"context"

	"github.com/dispatch-board/internal/domain"
)

// UnitOfWork commits a change set atomically.
//
// Every transport and slot in the set carries the version it was read at. If
// any stored version differs, nothing is written and the error matches
// errors.ErrConcurrentModification. On success the versions in the set are
// bumped in place.
type UnitOfWork interface {
	Apply(ctx context.Context, cs *domain.ChangeSet) error
}
