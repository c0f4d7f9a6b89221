package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
)

// AccountHandler exposes in.AccountService over HTTP.
type AccountHandler struct {
	accounts in.AccountService
}

func NewAccountHandler(accounts in.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) Register(router fiber.Router) {
	g := router.Group("/accounts")
	g.Get("/", h.List)
	g.Get("/:id", h.Get)
	g.Post("/", h.Add)
	g.Post("/:id/default", h.SetDefault)
	g.Post("/:id/test", h.TestConnection)
	g.Delete("/:id", h.Delete)
}

func (h *AccountHandler) List(c *fiber.Ctx) error {
	accts, err := h.accounts.ListAccounts(c.Context())
	if err != nil {
		return InternalErrorResponse(c, err, "list accounts")
	}
	return SuccessResponse(c, accts)
}

func (h *AccountHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	acct, err := h.accounts.GetAccount(c.Context(), id)
	if err != nil {
		return ErrorResponse(c, 404, "account not found")
	}
	return SuccessResponse(c, acct)
}

type addAccountBody struct {
	EmailAddr       string                   `json:"email_address"`
	DisplayName     string                   `json:"display_name"`
	IMAPHost        string                   `json:"imap_host"`
	IMAPPort        int                      `json:"imap_port"`
	IMAPUser        string                   `json:"imap_user"`
	IMAPPass        string                   `json:"imap_pass"`
	IMAPUseTLS      bool                     `json:"imap_use_tls"`
	SMTPHost        string                   `json:"smtp_host"`
	SMTPPort        int                      `json:"smtp_port"`
	SMTPUser        string                   `json:"smtp_user"`
	SMTPPass        string                   `json:"smtp_pass"`
	SMTPUseTLS      bool                     `json:"smtp_use_tls"`
	SMTPUseStartTLS bool                     `json:"smtp_use_starttls"`
	OAuthProvider   domain.OAuthProviderKind `json:"oauth_provider"`
}

func (h *AccountHandler) Add(c *fiber.Ctx) error {
	var body addAccountBody
	if err := c.BodyParser(&body); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if body.EmailAddr == "" {
		return ErrorResponse(c, 400, "email_address is required")
	}

	acct, err := h.accounts.AddAccount(c.Context(), in.AddAccountRequest{
		EmailAddr: body.EmailAddr, DisplayName: body.DisplayName,
		IMAPHost: body.IMAPHost, IMAPPort: body.IMAPPort, IMAPUser: body.IMAPUser, IMAPPass: body.IMAPPass, IMAPUseTLS: body.IMAPUseTLS,
		SMTPHost: body.SMTPHost, SMTPPort: body.SMTPPort, SMTPUser: body.SMTPUser, SMTPPass: body.SMTPPass, SMTPUseTLS: body.SMTPUseTLS, SMTPUseStartTLS: body.SMTPUseStartTLS,
		OAuthProvider: body.OAuthProvider,
	})
	if err != nil {
		return InternalErrorResponse(c, err, "add account")
	}
	return c.Status(201).JSON(APIResponse{Success: true, Data: acct, Timestamp: nowRFC3339()})
}

func (h *AccountHandler) SetDefault(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	if err := h.accounts.SetDefault(c.Context(), id); err != nil {
		return InternalErrorResponse(c, err, "set default account")
	}
	return SuccessResponse(c, fiber.Map{"id": id})
}

func (h *AccountHandler) TestConnection(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	if err := h.accounts.TestConnection(c.Context(), id); err != nil {
		return ErrorResponseWithCode(c, 502, "CONNECTION_FAILED", err.Error())
	}
	return SuccessResponse(c, fiber.Map{"connected": true})
}

func (h *AccountHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	if err := h.accounts.DeleteAccount(c.Context(), id); err != nil {
		return InternalErrorResponse(c, err, "delete account")
	}
	return c.SendStatus(204)
}
