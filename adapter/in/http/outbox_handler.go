package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	in "github.com/aerioncore/mailcore/core/port/in"
)

// OutboxHandler exposes in.OutboxService over HTTP.
type OutboxHandler struct {
	outbox in.OutboxService
}

func NewOutboxHandler(outbox in.OutboxService) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

func (h *OutboxHandler) Register(router fiber.Router) {
	g := router.Group("/outbox")
	g.Post("/", h.Enqueue)
	g.Get("/:id", h.Get)
	g.Get("/account/:account_id", h.ListByAccount)
}

type sendBody struct {
	AccountID string   `json:"account_id"`
	To        []string `json:"to"`
	CC        []string `json:"cc"`
	BCC       []string `json:"bcc"`
	Subject   string   `json:"subject"`
	BodyText  string   `json:"body_text"`
	BodyHTML  string   `json:"body_html"`
}

func (h *OutboxHandler) Enqueue(c *fiber.Ctx) error {
	var body sendBody
	if err := c.BodyParser(&body); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	acctID, err := uuid.Parse(body.AccountID)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account_id")
	}
	if len(body.To) == 0 {
		return ErrorResponse(c, 400, "to is required")
	}

	entry, err := h.outbox.Enqueue(c.Context(), in.SendRequest{
		AccountID: acctID, To: body.To, CC: body.CC, BCC: body.BCC,
		Subject: body.Subject, BodyText: body.BodyText, BodyHTML: body.BodyHTML,
	})
	if err != nil {
		return InternalErrorResponse(c, err, "enqueue message")
	}
	return c.Status(202).JSON(APIResponse{Success: true, Data: entry, Timestamp: nowRFC3339()})
}

func (h *OutboxHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return ErrorResponse(c, 400, "invalid outbox id")
	}
	entry, err := h.outbox.Get(c.Context(), id)
	if err != nil {
		return ErrorResponse(c, 404, "outbox entry not found")
	}
	return SuccessResponse(c, entry)
}

func (h *OutboxHandler) ListByAccount(c *fiber.Ctx) error {
	acctID, err := uuid.Parse(c.Params("account_id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	p := GetPaginationParams(c, 50)
	entries, err := h.outbox.ListByAccount(c.Context(), acctID, p.Limit, p.Offset)
	if err != nil {
		return InternalErrorResponse(c, err, "list outbox entries")
	}
	return SuccessResponse(c, entries)
}
