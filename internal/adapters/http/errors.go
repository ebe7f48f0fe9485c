package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/supportyourlocal/mapdir/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error. The cause is logged, not returned.
func errInternal(c *fiber.Ctx, err error) error {
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return newError(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
}

// errFromDomain maps core sentinel errors onto HTTP statuses.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidBounds),
		errors.Is(err, domain.ErrInvalidPage),
		errors.Is(err, domain.ErrInvalidFilter):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	default:
		return errInternal(c, err)
	}
}
