package appers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

var (
	// ErrStaleAttempt means an outbox CAS update matched no row: another
	// worker already applied a result for this attempt, or the event is
	// terminal. The caller must drop its result.
	ErrStaleAttempt = errors.New("stale outbox attempt")

	// ErrAuditIncomplete guards the append-only contract: workspace and
	// action are mandatory on every audit row.
	ErrAuditIncomplete = errors.New("audit entry requires workspace and action")
)

type ErrorResp struct {
	StatusCode int    `json:"statusCode,omitempty"`
	StatusDesc string `json:"statusDesc,omitempty"`
}

func (e ErrorResp) Error() string {
	return e.StatusDesc
}

var (
	ErrAppNotFound = ErrorResp{
		http.StatusNotFound,
		"app not found",
	}
	ErrOutboxNotFound = ErrorResp{
		http.StatusNotFound,
		"outbox event not found",
	}
	ErrNotificationNotFound = ErrorResp{
		http.StatusNotFound,
		"notification not found",
	}
	ErrUserNotFound = ErrorResp{
		http.StatusNotFound,
		"user not found",
	}
	ErrBadEventType = ErrorResp{
		StatusCode: http.StatusBadRequest,
		StatusDesc: "event type must be slash_command or webhook",
	}
	ErrNoManifest = ErrorResp{
		StatusCode: http.StatusUnprocessableEntity,
		StatusDesc: "app has no manifest url",
	}
)

func SanitizeError(c *fiber.Ctx, err error) error {
	var errResp ErrorResp

	if ok := errors.As(err, &errResp); ok {
		return c.Status(errResp.StatusCode).JSON(fiber.Map{
			"message": errResp.StatusDesc,
		})
	}
	return NewErr(c, http.StatusInternalServerError, err)
}

func NewErr(ctx *fiber.Ctx, status int, err error) error {
	return ctx.Status(status).JSON(fiber.Map{
		"message": err.Error(),
	})
}
