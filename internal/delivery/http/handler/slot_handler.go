package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/utils"
	"github.com/dispatch-board/internal/usecase"
	"github.com/dispatch-board/internal/usecase/dto"
)

// SlotHandler - слоты дат
type SlotHandler struct {
	slotUC *usecase.SlotUseCase
	logger *zap.Logger
}

func NewSlotHandler(slotUC *usecase.SlotUseCase, logger *zap.Logger) *SlotHandler {
	return &SlotHandler{slotUC: slotUC, logger: logger}
}

func (h *SlotHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateSlotRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.slotUC.CreateSlot(c.UserContext(), domain.Date(req.Date), req.DriverStartNote)
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

func (h *SlotHandler) UpdateStartNote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.UpdateNotesRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	res, err := h.slotUC.UpdateStartNote(c.UserContext(), id, req.Notes)
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}

// Delete - удаление слота; без force непустой слот не удаляется
func (h *SlotHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.DeleteSlotRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return utils.SendError(c, err)
		}
	}
	if c.QueryBool("force") {
		req.Force = true
	}
	res, err := h.slotUC.DeleteSlot(c.UserContext(), id, req.Force, toAck(req.Ack))
	if err != nil {
		return utils.SendError(c, err)
	}
	return sendMutation(c, res)
}
