package usecase

import (
	"context"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
)

// BoardUseCase serves the per-date read model.
type BoardUseCase struct {
	e *Engine
}

func NewBoardUseCase(e *Engine) *BoardUseCase {
	return &BoardUseCase{e: e}
}

// GetDay returns the slots, transports and unassigned pool of date together
// with the sequence numbers it reflects. A view that applies pushes with a
// higher sequence on top of it converges with the board.
func (uc *BoardUseCase) GetDay(ctx context.Context, date domain.Date) (*domain.BoardDay, error) {
	if err := requireDate(date); err != nil {
		return nil, err
	}
	var day *domain.BoardDay
	err := uc.e.view(ctx, staticKeys(board.DateKey(date)), func(ctx context.Context, x *tx) error {
		if err := x.ensureDate(ctx, date); err != nil {
			return err
		}
		seq := uc.e.feed.LastSeq(date)
		globalSeq := uc.e.feed.LastSeq("")
		day = uc.e.board.Day(date)
		day.Seq = seq
		day.GlobalSeq = globalSeq
		return nil
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}

// Unassigned lists the schedulable transports planned on date without a slot
// there.
func (uc *BoardUseCase) Unassigned(ctx context.Context, date domain.Date) ([]*domain.Transport, error) {
	if err := requireDate(date); err != nil {
		return nil, err
	}
	var out []*domain.Transport
	err := uc.e.view(ctx, staticKeys(board.DateKey(date)), func(ctx context.Context, x *tx) error {
		if err := x.ensureDate(ctx, date); err != nil {
			return err
		}
		out = uc.e.board.UnassignedPool(date)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*domain.Transport{}
	}
	return out, nil
}

// Transports lists every open transport on the board.
func (uc *BoardUseCase) Transports() []*domain.Transport {
	return uc.e.board.Transports()
}
