package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/core/service/tools"
	"github.com/aerioncore/mailcore/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Services bundles every use-case service the HTTP adapter depends on.
type Services struct {
	Accounts in.AccountService
	Folders  in.FolderService
	Mail     in.MailService
	OAuth    in.OAuthService
	Outbox   in.OutboxService
	Sessions in.SessionService
	Realtime out.RealtimePort
	Tools    *tools.Registry

	DB        *pgxpool.Pool
	Redis     *redis.Client
	Log       zerolog.Logger
	Metrics   *metrics.LatencyRegistry
	JWTSecret string
}

// Mount registers every route group on app under apiPrefix (e.g. "/api/v1").
func Mount(app *fiber.App, apiPrefix string, svc Services) {
	NewHealthHandler(svc.DB, svc.Redis, svc.Metrics).Register(app)

	api := app.Group(apiPrefix)
	api.Use(sessionAuth(svc.JWTSecret))

	NewAccountHandler(svc.Accounts).Register(api)
	NewFolderHandler(svc.Folders).Register(api)
	NewMailHandler(svc.Mail).Register(api)
	NewOAuthHandler(svc.OAuth).Register(api)
	NewOutboxHandler(svc.Outbox).Register(api)
	NewSSEHandler(svc.Realtime, svc.Log).Register(api)
	if svc.Tools != nil {
		NewToolsHandler(svc.Tools).Register(api)
	}
}

const sessionCookieName = "mailcore_session"
const sessionTokenTTL = 30 * 24 * time.Hour

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// sessionAuth assigns a stable session ID, carried in a cookie, so
// SessionID(c) always resolves to something. With a JWT secret configured
// the cookie holds an HS256-signed token instead of a bare UUID, so a
// client can't hijack another session by guessing or copying its ID.
func sessionAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(sessionCookieName)

		if secret == "" {
			sid := raw
			if sid == "" {
				sid = uuid.NewString()
				c.Cookie(&fiber.Cookie{Name: sessionCookieName, Value: sid, HTTPOnly: true, SameSite: "Lax"})
			}
			c.Locals("session_id", sid)
			return c.Next()
		}

		sid := verifySessionToken(raw, secret)
		if sid == "" {
			sid = uuid.NewString()
			token, err := signSessionToken(sid, secret)
			if err != nil {
				return err
			}
			c.Cookie(&fiber.Cookie{Name: sessionCookieName, Value: token, HTTPOnly: true, SameSite: "Lax"})
		}
		c.Locals("session_id", sid)
		return c.Next()
	}
}

// signSessionToken mints an HS256 JWT binding a session cookie to a
// session ID, so the ID can't be forged or swapped client-side.
func signSessionToken(sessionID, secret string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"iat": now.Unix(),
		"exp": now.Add(sessionTokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// verifySessionToken returns the session ID embedded in raw if it is a
// validly signed, unexpired token; empty otherwise.
func verifySessionToken(raw, secret string) string {
	if raw == "" {
		return ""
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnexpectedSigningMethod
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sid, _ := claims["sid"].(string)
	return sid
}
