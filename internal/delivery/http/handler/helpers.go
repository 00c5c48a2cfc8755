package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
	"github.com/dispatch-board/internal/pkg/utils"
	"github.com/dispatch-board/internal/pkg/validator"
	"github.com/dispatch-board/internal/usecase"
	"github.com/dispatch-board/internal/usecase/dto"
)

// paramID reads a positive integer path parameter.
func paramID(c *fiber.Ctx, name string) (int64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ErrInvalidRequest.WithDetail(name, raw)
	}
	return id, nil
}

func paramDate(c *fiber.Ctx, name string) (domain.Date, error) {
	raw := c.Params(name)
	d, err := domain.ParseDate(raw)
	if err != nil {
		return "", errInvalidDate(raw)
	}
	return d, nil
}

func errInvalidDate(raw string) error {
	return errors.ErrInvalidDate.WithDetail("value", raw)
}

// parseBody decodes and validates the JSON body into req.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errors.ErrInvalidRequest.Wrap(err).WithDetail("body", err.Error())
	}
	return validator.Validate(req)
}

func toAck(a dto.Ack) usecase.Acknowledgements {
	return usecase.Acknowledgements{
		DetachDispatched: a.DetachDispatched,
		Compatibility:    a.Compatibility,
		OngoingChange:    a.OngoingChange,
	}
}

// sendMutation answers with everything the mutation committed, including the
// stamped change events the caller reconciles against.
func sendMutation(c *fiber.Ctx, res *usecase.Result) error {
	resp := dto.MutationResponse{
		Transports:   res.Transports,
		Slots:        res.Slots,
		DeletedSlots: res.DeletedSlots,
		Changes:      res.Events,
	}
	if resp.Transports == nil {
		resp.Transports = []*domain.Transport{}
	}
	if resp.Slots == nil {
		resp.Slots = []*domain.Slot{}
	}
	if resp.DeletedSlots == nil {
		resp.DeletedSlots = []int64{}
	}
	if resp.Changes == nil {
		resp.Changes = []domain.ChangeEvent{}
	}
	return utils.SendSuccess(c, resp, nil)
}
