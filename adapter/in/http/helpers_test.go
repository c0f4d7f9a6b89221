package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/aerioncore/mailcore/pkg/apperr"
)

func TestSessionIDPrefersLocalsOverHeader(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error {
		c.Locals("session_id", "from-locals")
		return c.SendString(SessionID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Session-ID", "from-header")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body := readBody(t, resp)
	if body != "from-locals" {
		t.Errorf("SessionID = %q, want locals value to win", body)
	}
}

func TestSessionIDFallsBackToHeader(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error { return c.SendString(SessionID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Session-ID", "from-header")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if body := readBody(t, resp); body != "from-header" {
		t.Errorf("SessionID = %q, want the header value when locals is unset", body)
	}
}

func TestErrorResponseMapsStatusToCode(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error { return ErrorResponse(c, 404, "not found") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var out APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Success {
		t.Error("expected success = false")
	}
	if out.Error.Code != apperr.CodeNotFound {
		t.Errorf("Error.Code = %q, want %q", out.Error.Code, apperr.CodeNotFound)
	}
}

func TestAppErrorResponseUsesCarriedStatus(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error {
		return AppErrorResponse(c, apperr.New(apperr.CodeConflict, "already exists", http.StatusConflict))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSuccessResponseWrapsDataAndEchoesRequestID(t *testing.T) {
	app := fiber.New()
	app.Get("/x", func(c *fiber.Ctx) error {
		c.Locals("request_id", "req-1")
		return SuccessResponse(c, fiber.Map{"ok": true})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var out APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.RequestID != "req-1" {
		t.Errorf("got %+v, want success=true request_id=req-1", out)
	}
}

func TestGetPaginationParamsAppliesDefaultAndCap(t *testing.T) {
	app := fiber.New()
	var got PaginationParams
	app.Get("/x", func(c *fiber.Ctx) error {
		got = GetPaginationParams(c, 25)
		return c.SendStatus(200)
	})

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got.Limit != 25 {
		t.Errorf("Limit = %d, want the default 25 when unspecified", got.Limit)
	}

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/x?limit=10000", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got.Limit != 200 {
		t.Errorf("Limit = %d, want capped at 200", got.Limit)
	}

	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/x?limit=0&offset=40", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got.Limit != 25 || got.Offset != 40 {
		t.Errorf("got %+v, want limit reset to default 25 for a non-positive value and offset=40 carried through", got)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}
