package usecase

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

type BoardSuite struct{ engineSuite }

func TestBoardSuite(t *testing.T) {
	suite.Run(t, new(BoardSuite))
}

func (s *BoardSuite) TestGetDay() {
	a := s.transport(nil, day1)
	b := s.transport(nil, day1)
	c := s.transport(nil, day2)
	sl := s.slot(day1, nil, nil, a)
	s.load()

	day, err := s.days.GetDay(s.ctx, day1)
	s.Require().NoError(err)
	s.Equal(day1, day.Date)
	s.Zero(day.Seq)
	s.Require().Len(day.Slots, 1)
	s.Equal([]int64{b}, day.Unassigned)
	s.NotNil(day.Transport(a))
	s.NotNil(day.Transport(b))
	s.Nil(day.Transport(c))

	_, err = s.assign.Assign(s.ctx, b, ptr(sl), day1, Acknowledgements{})
	s.Require().NoError(err)

	day, err = s.days.GetDay(s.ctx, day1)
	s.Require().NoError(err)
	s.Equal(uint64(1), day.Seq)
	s.Empty(day.Unassigned)
	s.Equal([]int64{a, b}, day.Slots[0].TransportIDs())

	other, err := s.days.GetDay(s.ctx, day2)
	s.Require().NoError(err)
	s.Zero(other.Seq, "sequences are per date")
}

func (s *BoardSuite) TestGetDayOutsidePreload() {
	s.load()
	far := day1.AddDays(30)
	s.slot(far, nil, nil)
	s.False(s.board.DateLoaded(far))

	day, err := s.days.GetDay(s.ctx, far)
	s.Require().NoError(err)
	s.Len(day.Slots, 1)
	s.True(s.board.DateLoaded(far))

	_, err = s.days.GetDay(s.ctx, domain.Date("2024-13-40"))
	s.requireErr(err, errors.KindInvalidInput, errors.ErrInvalidDate.Code)
}

func (s *BoardSuite) TestUnassigned() {
	c := s.transport(nil, day2)
	s.transport(func(t *domain.Transport) { t.Lifecycle = cutLifecycle(domain.CutContainer, day2) }, day2)
	s.load()

	pool, err := s.days.Unassigned(s.ctx, day2)
	s.Require().NoError(err)
	s.Require().Len(pool, 1)
	s.Equal(c, pool[0].ID)

	pool, err = s.days.Unassigned(s.ctx, day4)
	s.Require().NoError(err)
	s.NotNil(pool)
	s.Empty(pool)
}
