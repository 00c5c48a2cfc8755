package utils

import (
	stderrors "errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/dispatch-board/internal/pkg/errors"
)

type SuccessResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Error *errors.AppError `json:"error"`
}

type Meta struct {
	Total    int     `json:"total,omitempty"`
	Page     int     `json:"page,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	TimeMSec float64 `json:"time_ms,omitempty"`
}

func SendSuccess(c *fiber.Ctx, data interface{}, meta *Meta) error {
	return c.JSON(SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

// SendCreated - ответ 201 с телом в стандартной обёртке
func SendCreated(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(SuccessResponse{Data: data})
}

// SendError renders err in the error envelope. The status follows the error
// kind; overridable rejections answer 428 so the caller can retry with an
// acknowledgment.
func SendError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		return sendAppError(c, validationError(verrs))
	}

	if appErr, ok := errors.As(err); ok {
		return sendAppError(c, appErr)
	}

	// Unknown error - return 500
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: errors.ErrInternalServer,
	})
}

func sendAppError(c *fiber.Ctx, appErr *errors.AppError) error {
	status := appErr.StatusCode
	if status == 0 {
		status = statusForKind(appErr.Kind)
	}
	return c.Status(status).JSON(ErrorResponse{Error: appErr})
}

func statusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound:
		return fiber.StatusNotFound
	case errors.KindConflict:
		return fiber.StatusConflict
	case errors.KindCompatibilityWarning, errors.KindConfirmationRequired:
		return fiber.StatusPreconditionRequired
	case errors.KindInvalidState, errors.KindSequenceViolation:
		return fiber.StatusUnprocessableEntity
	case errors.KindInvalidInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func validationError(verrs validator.ValidationErrors) *errors.AppError {
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return errors.InvalidInput(errors.CodeInvalidInput, "request validation failed").
		WithDetail("fields", fields)
}
