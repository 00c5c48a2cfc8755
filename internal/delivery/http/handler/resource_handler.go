package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/utils"
	"github.com/dispatch-board/internal/usecase"
	"github.com/dispatch-board/internal/usecase/dto"
)

// ResourceHandler - справочник водителей, тягачей и прицепов
type ResourceHandler struct {
	resourceUC *usecase.ResourceUseCase
	logger     *zap.Logger
}

// NewResourceHandler - создание нового ResourceHandler
func NewResourceHandler(resourceUC *usecase.ResourceUseCase, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{resourceUC: resourceUC, logger: logger}
}

// ---- drivers ----

// ListDrivers godoc
// @Summary Список водителей
// @Tags Resources
// @Produce json
// @Success 200 {object} utils.SuccessResponse{data=[]domain.Driver}
// @Router /api/v1/drivers [get]
func (h *ResourceHandler) ListDrivers(c *fiber.Ctx) error {
	drivers := h.resourceUC.ListDrivers()
	return utils.SendSuccess(c, drivers, &utils.Meta{Total: len(drivers)})
}

func (h *ResourceHandler) GetDriver(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	d, err := h.resourceUC.GetDriver(id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, d, nil)
}

func (h *ResourceHandler) CreateDriver(c *fiber.Ctx) error {
	var req dto.DriverRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	d, err := h.resourceUC.CreateDriver(c.UserContext(), &domain.Driver{Name: req.Name, ADR: req.ADR})
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendCreated(c, d)
}

// UpdateDriver - снятие ADR с водителя проверяется против его назначений
func (h *ResourceHandler) UpdateDriver(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.DriverRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	d, err := h.resourceUC.UpdateDriver(c.UserContext(), &domain.Driver{ID: id, Name: req.Name, ADR: req.ADR})
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, d, nil)
}

func (h *ResourceHandler) DeleteDriver(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.resourceUC.DeleteDriver(c.UserContext(), id); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---- trucks ----

func (h *ResourceHandler) ListTrucks(c *fiber.Ctx) error {
	trucks := h.resourceUC.ListTrucks()
	return utils.SendSuccess(c, trucks, &utils.Meta{Total: len(trucks)})
}

func (h *ResourceHandler) GetTruck(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	t, err := h.resourceUC.GetTruck(id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, t, nil)
}

func (h *ResourceHandler) CreateTruck(c *fiber.Ctx) error {
	var req dto.VehicleRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	t, err := h.resourceUC.CreateTruck(c.UserContext(), &domain.Truck{Name: req.Name, Plate: req.Plate, Genset: req.Genset})
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendCreated(c, t)
}

func (h *ResourceHandler) UpdateTruck(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.VehicleRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	t, err := h.resourceUC.UpdateTruck(c.UserContext(), &domain.Truck{ID: id, Name: req.Name, Plate: req.Plate, Genset: req.Genset})
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, t, nil)
}

func (h *ResourceHandler) DeleteTruck(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.resourceUC.DeleteTruck(c.UserContext(), id); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ---- trailers ----

func (h *ResourceHandler) ListTrailers(c *fiber.Ctx) error {
	trailers := h.resourceUC.ListTrailers()
	return utils.SendSuccess(c, trailers, &utils.Meta{Total: len(trailers)})
}

func (h *ResourceHandler) GetTrailer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	t, err := h.resourceUC.GetTrailer(id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, t, nil)
}

func (h *ResourceHandler) CreateTrailer(c *fiber.Ctx) error {
	var req dto.VehicleRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	t, err := h.resourceUC.CreateTrailer(c.UserContext(), &domain.Trailer{Name: req.Name, Plate: req.Plate, Genset: req.Genset})
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendCreated(c, t)
}

func (h *ResourceHandler) UpdateTrailer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	var req dto.VehicleRequest
	if err := parseBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	t, err := h.resourceUC.UpdateTrailer(c.UserContext(), &domain.Trailer{ID: id, Name: req.Name, Plate: req.Plate, Genset: req.Genset})
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, t, nil)
}

func (h *ResourceHandler) DeleteTrailer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.SendError(c, err)
	}
	if err := h.resourceUC.DeleteTrailer(c.UserContext(), id); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
