package middleware

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/aerioncore/mailcore/pkg/apperr"
	"github.com/aerioncore/mailcore/pkg/logger"
	"github.com/aerioncore/mailcore/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrorResponse is the standard error response envelope.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler is the centralized Fiber error handler.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		response := ErrorResponse{
			Success:   false,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		var status int

		switch e := err.(type) {
		case *apperr.AppError:
			status = e.Status
			response.Error = ErrorDetail{Code: e.Code, Message: e.Message, Details: e.Details}

			log := logger.WithField("request_id", requestID).
				WithField("error_code", e.Code).
				WithError(e.Err)
			if status >= 500 {
				log.Error("internal error: %s", e.Message)
			} else {
				log.Warn("client error: %s", e.Message)
			}

		case *fiber.Error:
			status = e.Code
			response.Error = ErrorDetail{Code: mapHTTPStatusToCode(e.Code), Message: e.Message}

		default:
			status = fiber.StatusInternalServerError
			response.Error = ErrorDetail{Code: apperr.CodeInternalError, Message: "an unexpected error occurred"}

			logger.WithField("request_id", requestID).
				WithError(err).
				WithField("stack", string(debug.Stack())).
				Error("unexpected error: %s", err.Error())
		}

		return c.Status(status).JSON(response)
	}
}

// RequestID assigns (or propagates) a unique ID for each request.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// RequestLogger logs each request's method, path, status, and duration,
// and records the duration into registry keyed by route for /ready.
func RequestLogger(registry *metrics.LatencyRegistry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID, _ := c.Locals("request_id").(string)

		err := c.Next()
		duration := time.Since(start)

		if registry != nil {
			route := c.Route().Path
			if route == "" {
				route = c.Path()
			}
			registry.Record(route, duration)
		}

		log := logger.WithFields(map[string]any{
			"request_id":  requestID,
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
			"ip":          c.IP(),
			"user_agent":  c.Get("User-Agent"),
		})
		if sessionID, ok := c.Locals("session_id").(string); ok && sessionID != "" {
			log = log.WithField("session_id", sessionID)
		}

		status := c.Response().StatusCode()
		switch {
		case status >= 500:
			log.Error("request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}

		return err
	}
}

// Recover turns a panic into a 500 response instead of killing the process.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)
				stack := string(debug.Stack())

				fmt.Fprintf(os.Stderr, "\n=== PANIC RECOVERED ===\nRequest ID: %s\nPath: %s %s\nPanic: %v\nStack:\n%s\n=== END PANIC ===\n\n",
					requestID, c.Method(), c.Path(), r, stack)

				logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
				}).Error("panic recovered")

				c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
					Success:   false,
					RequestID: requestID,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Error:     ErrorDetail{Code: apperr.CodeInternalError, Message: "an unexpected error occurred"},
				})
			}
		}()
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case 400:
		return apperr.CodeValidationFailed
	case 401:
		return apperr.CodeUnauthorized
	case 403:
		return apperr.CodeForbidden
	case 404:
		return apperr.CodeNotFound
	case 409:
		return apperr.CodeConflict
	case 429:
		return "RATE_LIMITED"
	case 500:
		return apperr.CodeInternalError
	case 502, 503, 504:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
