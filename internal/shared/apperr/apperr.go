// Package apperr defines the typed errors services raise and the mapping
// of each kind to an HTTP status at the fiber boundary.
package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Kind int

const (
	KindValidation Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) *Error   { return New(KindValidation, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }

// NotOwner is the insufficient-ownership case of Forbidden.
func NotOwner() *Error { return Forbidden("not the quest owner") }

// InvalidOrExpiredToken collapses missing and expired tokens into one
// response so callers cannot distinguish the two cases.
func InvalidOrExpiredToken() *Error { return NotFound("share token invalid or expired") }

func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// NewErrorHandler maps typed errors to JSON {message} responses and logs
// every error before responding. Route params carry the quest, mapping,
// and share ids involved; "user_id" is whatever the auth middleware put in
// locals. Unknown errors become opaque 500s so internals never leak to
// clients; the cause still lands in the log.
func NewErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		}
		for name, value := range c.AllParams() {
			fields = append(fields, zap.String(name, value))
		}
		if userID, _ := c.Locals("user_id").(string); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		var appErr *Error
		if errors.As(err, &appErr) {
			log.Warn("request rejected", fields...)
			return c.Status(appErr.Status()).JSON(fiber.Map{"message": appErr.Message})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			log.Warn("request rejected", fields...)
			return c.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
		}

		log.Error("unhandled error", fields...)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal server error"})
	}
}

// ErrorHandler is the mapping without a logger, for tests that only care
// about status codes.
var ErrorHandler = NewErrorHandler(nil)
