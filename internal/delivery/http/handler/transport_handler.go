package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/pkg/utils"
	"github.com/dispatch-board/internal/usecase"
	"github.com/dispatch-board/internal/usecase/dto"
)

// TransportHandler - обработчик запросов по транспортным заданиям
type TransportHandler struct {
	transportUC *usecase.TransportUseCase
	boardUC     *usecase.BoardUseCase
	logger      *zap.Logger
}

// NewTransportHandler - создание нового TransportHandler
func NewTransportHandler(transportUC *usecase.TransportUseCase, boardUC *usecase.BoardUseCase, logger *zap.Logger) *TransportHandler {
	return &TransportHandler{
		transportUC: transportUC,
		boardUC:     boardUC,
		logger:      logger,
	}
}

// Create godoc
// @Summary Создать транспортное задание
// @Tags Transports
// @Accept json
// @Produce json
// @Param X-Correlation-ID header string false "Идентификатор мутации клиента"
// @Param request body dto.CreateTransportRequest true "Задание"
// @Success 200 {object} utils.SuccessResponse{data=dto.MutationResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/transports [post]
func (h *TransportHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTransportRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.transportUC.Create(c.UserContext(), req.ToDomain())
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// List - все незакрытые задания
func (h *TransportHandler) List(c *fiber.Ctx) error {
	transports := h.boardUC.Transports()
	return utils.SendSuccess(c, transports, &utils.Meta{Total: len(transports)})
}

func (h *TransportHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	t, err := h.transportUC.Get(c.UserContext(), id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, t, nil)
}

// Replan godoc
// @Summary Перепланировать даты задания
// @Tags Transports
// @Accept json
// @Produce json
// @Param id path int true "ID задания"
// @Param request body dto.DatePlanRequest true "Новый план"
// @Success 200 {object} utils.SuccessResponse{data=dto.MutationResponse}
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/transports/{id}/plan [put]
func (h *TransportHandler) Replan(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.DatePlanRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.transportUC.Replan(c.UserContext(), id, req.ToDomain())
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

func (h *TransportHandler) SetETA(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.SetETARequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.transportUC.SetETA(c.UserContext(), id, req.Order, req.ETA)
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

func (h *TransportHandler) UpdateNotes(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.UpdateNotesRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.transportUC.UpdateNotes(c.UserContext(), id, req.Notes)
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}
