package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"writeup-rag-be/internal/entity"
)

// ErrorHandlerMiddleware maps errors escaping the controllers onto HTTP
// status codes. Sentinel errors from the domain get their own codes,
// everything else is a 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		switch {
		case errors.Is(err, entity.ErrSourceNotFound):
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(err.Error()))
		case errors.Is(err, entity.ErrDuplicateKey):
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(err.Error()))
		case errors.Is(err, entity.ErrInvalidTransition):
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(err.Error()))
		default:
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(err.Error()))
		}
	}
}
