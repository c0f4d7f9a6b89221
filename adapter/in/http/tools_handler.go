package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aerioncore/mailcore/core/service/tools"
)

// ToolsHandler exposes the shared tools.Registry over HTTP, for callers
// that want request/response semantics instead of the stdio JSON-RPC
// surface adapter/in/jsonrpc provides.
type ToolsHandler struct {
	registry *tools.Registry
}

func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

func (h *ToolsHandler) Register(router fiber.Router) {
	g := router.Group("/tools")
	g.Get("/", h.List)
	g.Post("/execute", h.Execute)
}

func (h *ToolsHandler) List(c *fiber.Ctx) error {
	return SuccessResponse(c, h.registry.Definitions())
}

type executeToolBody struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func (h *ToolsHandler) Execute(c *fiber.Ctx) error {
	var body executeToolBody
	if err := c.BodyParser(&body); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if body.Name == "" {
		return ErrorResponse(c, 400, "name is required")
	}
	result, err := h.registry.Execute(c.Context(), SessionID(c), body.Name, body.Args)
	if err != nil {
		return ErrorResponseWithCode(c, 404, "UNKNOWN_TOOL", err.Error())
	}
	return SuccessResponse(c, result)
}
