package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
)

// OAuthHandler drives the browser-redirect leg of the PKCE flow.
type OAuthHandler struct {
	oauth in.OAuthService
}

func NewOAuthHandler(oauth in.OAuthService) *OAuthHandler {
	return &OAuthHandler{oauth: oauth}
}

func (h *OAuthHandler) Register(router fiber.Router) {
	g := router.Group("/oauth")
	g.Get("/:provider/start", h.Start)
	g.Get("/:provider/callback", h.Callback)
}

func (h *OAuthHandler) Start(c *fiber.Ctx) error {
	provider := domain.OAuthProviderKind(c.Params("provider"))
	url, err := h.oauth.BeginAuth(c.Context(), provider, SessionID(c), c.Query("account_hint"))
	if err != nil {
		return InternalErrorResponse(c, err, "begin oauth flow")
	}
	return SuccessResponse(c, fiber.Map{"auth_url": url})
}

func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	provider := domain.OAuthProviderKind(c.Params("provider"))
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		return ErrorResponse(c, 400, "state and code are required")
	}
	acct, err := h.oauth.CompleteAuth(c.Context(), provider, state, code)
	if err != nil {
		return ErrorResponseWithCode(c, 400, "OAUTH_FAILED", err.Error())
	}
	return SuccessResponse(c, acct)
}
