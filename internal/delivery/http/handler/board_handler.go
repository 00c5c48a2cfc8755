package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain/repository"
	"github.com/dispatch-board/internal/pkg/errors"
	"github.com/dispatch-board/internal/pkg/utils"
	"github.com/dispatch-board/internal/usecase"
	"github.com/dispatch-board/internal/usecase/dto"
)

// BoardHandler - чтение доски по датам
type BoardHandler struct {
	boardUC   *usecase.BoardUseCase
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
}

// NewBoardHandler - создание нового BoardHandler. cacheRepo may be nil when
// no projection worker runs.
func NewBoardHandler(boardUC *usecase.BoardUseCase, cacheRepo repository.CacheRepository, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		boardUC:   boardUC,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// GetDay godoc
// @Summary Доска на дату
// @Description Слоты, задания и пул неназначенных заданий даты вместе с номерами последовательностей, которые они отражают.
// @Tags Board
// @Produce json
// @Param date path string true "Дата (YYYY-MM-DD)"
// @Success 200 {object} utils.SuccessResponse{data=domain.BoardDay}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/board/{date} [get]
func (h *BoardHandler) GetDay(c *fiber.Ctx) error {
	date, err := paramDate(c, "date")
	if err != nil {
		return utils.SendError(c, err)
	}
	day, err := h.boardUC.GetDay(c.UserContext(), date)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, day, &utils.Meta{Total: len(day.Slots)})
}

// Unassigned godoc
// @Summary Пул неназначенных заданий
// @Tags Board
// @Produce json
// @Param date path string true "Дата (YYYY-MM-DD)"
// @Success 200 {object} utils.SuccessResponse{data=dto.UnassignedResponse}
// @Router /api/v1/board/{date}/unassigned [get]
func (h *BoardHandler) Unassigned(c *fiber.Ctx) error {
	date, err := paramDate(c, "date")
	if err != nil {
		return utils.SendError(c, err)
	}
	transports, err := h.boardUC.Unassigned(c.UserContext(), date)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, dto.UnassignedResponse{
		Date:       date,
		Transports: transports,
		Total:      len(transports),
	}, &utils.Meta{Total: len(transports)})
}

// Projection returns the day as last written by the projection worker. It
// may lag the live board.
func (h *BoardHandler) Projection(c *fiber.Ctx) error {
	date, err := paramDate(c, "date")
	if err != nil {
		return utils.SendError(c, err)
	}
	if h.cacheRepo == nil {
		return utils.SendError(c, errors.ErrCacheError.WithDetail("reason", "projection cache disabled"))
	}
	day, err := h.cacheRepo.GetBoard(c.UserContext(), date)
	if err != nil {
		h.logger.Error("Failed to read projection", zap.String("date", date.String()), zap.Error(err))
		return utils.SendError(c, errors.ErrCacheError.Wrap(err))
	}
	if day == nil {
		return utils.SendError(c, errors.NotFound("PROJECTION_NOT_FOUND", "no projection for %s", date))
	}
	return utils.SendSuccess(c, day, nil)
}
