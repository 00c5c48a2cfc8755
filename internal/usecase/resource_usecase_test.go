package usecase

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
)

type ResourceSuite struct{ engineSuite }

func TestResourceSuite(t *testing.T) {
	suite.Run(t, new(ResourceSuite))
}

func (s *ResourceSuite) TestDriverRegistry() {
	sl := s.slot(day2, nil, nil)
	s.load()
	sub := s.feed.Subscribe(8)
	defer sub.Close()

	d, err := s.resources.CreateDriver(s.ctx, &domain.Driver{Name: "Jo"})
	s.Require().NoError(err)
	s.NotZero(d.ID)

	ev := <-sub.Events()
	s.Equal(domain.EntityDriver, ev.Entity)
	s.Equal(domain.UpdateResource, ev.Type)
	s.Nil(ev.Date)

	_, err = s.resources.UpdateDriver(s.ctx, &domain.Driver{ID: d.ID, Name: "Jo", ADR: true})
	s.Require().NoError(err)
	got, err := s.resources.GetDriver(d.ID)
	s.Require().NoError(err)
	s.True(got.ADR)

	_, err = s.assign.BindDriver(s.ctx, sl, ptr(d.ID), Acknowledgements{})
	s.Require().NoError(err)

	err = s.resources.DeleteDriver(s.ctx, d.ID)
	s.requireErr(err, errors.KindConflict, errors.CodeResourceInUse)

	_, err = s.assign.BindDriver(s.ctx, sl, nil, Acknowledgements{})
	s.Require().NoError(err)
	s.Require().NoError(s.resources.DeleteDriver(s.ctx, d.ID))

	_, err = s.resources.GetDriver(d.ID)
	s.requireErr(err, errors.KindNotFound, errors.CodeDriverNotFound)
	err = s.resources.DeleteDriver(s.ctx, d.ID)
	s.requireErr(err, errors.KindNotFound, errors.CodeDriverNotFound)
}

func (s *ResourceSuite) TestNameRequired() {
	s.load()
	_, err := s.resources.CreateDriver(s.ctx, &domain.Driver{Name: " "})
	s.requireErr(err, errors.KindInvalidInput, errors.CodeInvalidInput)
	_, err = s.resources.CreateTruck(s.ctx, &domain.Truck{})
	s.requireErr(err, errors.KindInvalidInput, errors.CodeInvalidInput)
	_, err = s.resources.CreateTrailer(s.ctx, &domain.Trailer{})
	s.requireErr(err, errors.KindInvalidInput, errors.CodeInvalidInput)
	s.Empty(s.resources.ListDrivers())
}

func (s *ResourceSuite) TestTruckUpdateAndDelete() {
	tk := s.truck("Volvo", false)
	sl := s.slot(day1, nil, ptr(tk))
	s.load()

	_, err := s.resources.UpdateTruck(s.ctx, &domain.Truck{ID: 999, Name: "ghost"})
	s.requireErr(err, errors.KindNotFound, errors.CodeTruckNotFound)

	updated, err := s.resources.UpdateTruck(s.ctx, &domain.Truck{ID: tk, Name: "Volvo FH", Genset: true})
	s.Require().NoError(err)
	s.True(updated.Genset)

	err = s.resources.DeleteTruck(s.ctx, tk)
	s.requireErr(err, errors.KindConflict, errors.CodeResourceInUse)

	_, err = s.assign.BindTruck(s.ctx, sl, nil, Acknowledgements{})
	s.Require().NoError(err)
	s.Require().NoError(s.resources.DeleteTruck(s.ctx, tk))
	s.Empty(s.resources.ListTrucks())
}

func (s *ResourceSuite) TestTrailerDeleteWhileReferenced() {
	r := s.trailer("R", true)
	tr := s.transport(func(t *domain.Transport) { t.TrailerID = ptr(r) }, day1)
	s.load()

	err := s.resources.DeleteTrailer(s.ctx, r)
	s.requireErr(err, errors.KindConflict, errors.CodeResourceInUse)

	_, err = s.assign.BindTrailer(s.ctx, tr, nil, Acknowledgements{})
	s.Require().NoError(err)
	s.Require().NoError(s.resources.DeleteTrailer(s.ctx, r))
	s.Empty(s.resources.ListTrailers())
}
