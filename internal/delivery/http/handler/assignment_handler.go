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

// AssignmentHandler - назначения заданий в слоты и привязка ресурсов
type AssignmentHandler struct {
	assignmentUC *usecase.AssignmentUseCase
	logger       *zap.Logger
}

// NewAssignmentHandler - создание нового AssignmentHandler
func NewAssignmentHandler(assignmentUC *usecase.AssignmentUseCase, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentUC: assignmentUC,
		logger:       logger,
	}
}

// Assign godoc
// @Summary Назначить задание в слот
// @Description Ставит задание в конец слота на дату; slot_id = null возвращает задание в пул. Конфликты ресурсов и несовместимость возвращаются с кодом правила.
// @Tags Assignment
// @Accept json
// @Produce json
// @Param id path int true "ID задания"
// @Param X-Correlation-ID header string false "Идентификатор мутации клиента"
// @Param request body dto.AssignRequest true "Назначение"
// @Success 200 {object} utils.SuccessResponse{data=dto.MutationResponse}
// @Failure 404 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Failure 428 {object} utils.ErrorResponse
// @Router /api/v1/transports/{id}/assignment [put]
func (h *AssignmentHandler) Assign(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.AssignRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.assignmentUC.Assign(c.UserContext(), id, req.SlotID, domain.Date(req.Date), toAck(req.Ack))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// Move - сдвиг задания вверх/вниз внутри слота
func (h *AssignmentHandler) Move(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.MoveRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.assignmentUC.Move(c.UserContext(), id, domain.Date(req.Date), domain.Direction(req.Direction))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// ReorderSlots godoc
// @Summary Переставить слоты даты
// @Tags Assignment
// @Accept json
// @Produce json
// @Param request body dto.ReorderSlotsRequest true "Индексы"
// @Success 200 {object} utils.SuccessResponse{data=dto.MutationResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/slots/reorder [post]
func (h *AssignmentHandler) ReorderSlots(c *fiber.Ctx) error {
	var req dto.ReorderSlotsRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.assignmentUC.ReorderSlots(c.UserContext(), domain.Date(req.Date), req.OldIndex, req.NewIndex)
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

type bindFunc func(ctx context.Context, id int64, resourceID *int64, ack usecase.Acknowledgements) (*usecase.Result, error)

func (h *AssignmentHandler) bind(c *fiber.Ctx, param string, fn bindFunc) error {
	id, err := paramID(c, param)
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.BindRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := fn(c.UserContext(), id, req.ResourceID, toAck(req.Ack))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// BindDriver - водитель слота (null отвязывает)
func (h *AssignmentHandler) BindDriver(c *fiber.Ctx) error {
	return h.bind(c, "id", h.assignmentUC.BindDriver)
}

func (h *AssignmentHandler) BindTruck(c *fiber.Ctx) error {
	return h.bind(c, "id", h.assignmentUC.BindTruck)
}

// BindTrailer - прицеп задания
func (h *AssignmentHandler) BindTrailer(c *fiber.Ctx) error {
	return h.bind(c, "id", h.assignmentUC.BindTrailer)
}
