package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/utils"
	"github.com/dispatch-board/internal/usecase"
	"github.com/dispatch-board/internal/usecase/dto"
)

// LifecycleHandler - переходы жизненного цикла задания, включая отцепку
type LifecycleHandler struct {
	lifecycleUC *usecase.LifecycleUseCase
	cutUC       *usecase.CutUseCase
	logger      *zap.Logger
}

// NewLifecycleHandler - создание нового LifecycleHandler
func NewLifecycleHandler(lifecycleUC *usecase.LifecycleUseCase, cutUC *usecase.CutUseCase, logger *zap.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		lifecycleUC: lifecycleUC,
		cutUC:       cutUC,
		logger:      logger,
	}
}

type transition func(ctx context.Context, id int64) (*usecase.Result, error)

func (h *LifecycleHandler) simple(c *fiber.Ctx, fn transition) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	res, err := fn(c.UserContext(), id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// SendToDriver godoc
// @Summary Отправить задание водителю
// @Description PLANNED -> ONGOING. Задание должно стоять в слоте с водителем и тягачом.
// @Tags Lifecycle
// @Produce json
// @Param id path int true "ID задания"
// @Success 200 {object} utils.SuccessResponse{data=dto.MutationResponse}
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/transports/{id}/send [post]
func (h *LifecycleHandler) SendToDriver(c *fiber.Ctx) error {
	return h.simple(c, h.lifecycleUC.SendToDriver)
}

func (h *LifecycleHandler) Complete(c *fiber.Ctx) error {
	return h.simple(c, h.lifecycleUC.Complete)
}

func (h *LifecycleHandler) Reopen(c *fiber.Ctx) error {
	return h.simple(c, h.lifecycleUC.Reopen)
}

// Hold godoc
// @Summary Поставить задание на паузу
// @Description Снимает назначения; отправленные водителю задания требуют ack.detach_dispatched.
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path int true "ID задания"
// @Param request body dto.AckRequest false "Подтверждения"
// @Success 200 {object} utils.SuccessResponse{data=dto.MutationResponse}
// @Failure 428 {object} utils.ErrorResponse
// @Router /api/v1/transports/{id}/hold [post]
func (h *LifecycleHandler) Hold(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	req, err := optionalAck(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.lifecycleUC.Hold(c.UserContext(), id, toAck(req.Ack))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

func (h *LifecycleHandler) Reactivate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.DatePlanRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.lifecycleUC.Reactivate(c.UserContext(), id, req.ToDomain())
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

func (h *LifecycleHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	req, err := optionalAck(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.lifecycleUC.Delete(c.UserContext(), id, toAck(req.Ack))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// PreviewCut lists the future assignments that block a cut on the date.
func (h *LifecycleHandler) PreviewCut(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	date, err := domain.ParseDate(c.Query("date"))
	if err != nil {
		return utils.SendError(c, errInvalidDate(c.Query("date")))
	}
	preview, err := h.cutUC.PreviewCut(c.UserContext(), id, date)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, preview, &utils.Meta{Total: len(preview.FutureSlots)})
}

// Cut godoc
// @Summary Отцепка прицепа и/или контейнера
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path int true "ID задания"
// @Param request body dto.CutRequest true "Отцепка"
// @Success 200 {object} utils.SuccessResponse{data=dto.MutationResponse}
// @Failure 422 {object} utils.ErrorResponse
// @Failure 428 {object} utils.ErrorResponse
// @Router /api/v1/transports/{id}/cut [post]
func (h *LifecycleHandler) Cut(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.CutRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.cutUC.Cut(c.UserContext(), id, usecase.CutRequest{
		Type:         domain.CutType(req.Type),
		CutDate:      domain.Date(req.CutDate),
		LocationID:   req.LocationID,
		LocationText: req.LocationText,
		Notes:        req.Notes,
	}, toAck(req.Ack))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

func (h *LifecycleHandler) Restore(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.RestoreRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.cutUC.Restore(c.UserContext(), id, domain.Date(req.EndDate))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// optionalAck parses an AckRequest; an empty body acknowledges nothing.
func optionalAck(c *fiber.Ctx) (dto.AckRequest, error) {
	var req dto.AckRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	return req, parseBody(c, &req)
}
