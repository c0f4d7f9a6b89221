// Package http adapts the core use-case services onto a fiber HTTP API.
package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aerioncore/mailcore/pkg/apperr"
	"github.com/aerioncore/mailcore/pkg/logger"
)

// ErrUnauthorized is returned when a request carries no usable session.
var ErrUnauthorized = errors.New("unauthorized")

// SessionID extracts the caller's session identifier, set by the session
// middleware from a cookie or bearer token.
func SessionID(c *fiber.Ctx) string {
	if sid, ok := c.Locals("session_id").(string); ok && sid != "" {
		return sid
	}
	return c.Get("X-Session-ID")
}

// APIResponse is the standard response envelope for every endpoint.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// APIError is the error body of an APIResponse.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func ErrorResponse(c *fiber.Ctx, status int, message string) error {
	return ErrorResponseWithCode(c, status, mapStatusToCode(status), message)
}

func ErrorResponseWithCode(c *fiber.Ctx, status int, code, message string) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// AppErrorResponse renders an apperr.AppError with its carried HTTP status.
func AppErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(appErr.Status).JSON(APIResponse{
		Success:   false,
		Error:     &APIError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// InternalErrorResponse logs err with operation context and returns a
// generic 500 so internals never leak to the client.
func InternalErrorResponse(c *fiber.Ctx, err error, operation string) error {
	logger.WithError(err).WithField("operation", operation).Error("internal error")
	return ErrorResponseWithCode(c, 500, apperr.CodeInternalError, operation+" failed")
}

func SuccessResponse(c *fiber.Ctx, data any) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.JSON(APIResponse{Success: true, Data: data, RequestID: requestID, Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

func mapStatusToCode(status int) string {
	switch status {
	case 400:
		return apperr.CodeBadRequest
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
	default:
		return "UNKNOWN_ERROR"
	}
}

// PaginationParams holds common pagination query parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func GetPaginationParams(c *fiber.Ctx, defaultLimit int) PaginationParams {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 200 {
		limit = 200
	}
	return PaginationParams{Limit: limit, Offset: c.QueryInt("offset", 0)}
}
