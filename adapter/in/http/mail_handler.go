package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	in "github.com/aerioncore/mailcore/core/port/in"
)

// MailHandler exposes in.MailService over HTTP.
type MailHandler struct {
	mail in.MailService
}

func NewMailHandler(mail in.MailService) *MailHandler {
	return &MailHandler{mail: mail}
}

func (h *MailHandler) Register(router fiber.Router) {
	folders := router.Group("/accounts/:account_id/folders/:folder_name/messages")
	folders.Get("/", h.ListCached)
	folders.Get("/count", h.Count)
	folders.Get("/search", h.SearchRemote)
	folders.Get("/uid/:uid", h.GetByUID)
	folders.Get("/index/:index", h.GetByIndex)
	folders.Post("/fetch", h.FetchWithMIME)
	folders.Post("/move", h.Move)
	folders.Post("/delete", h.Delete)
	folders.Post("/undelete", h.Undelete)
	folders.Post("/expunge", h.Expunge)

	router.Get("/messages/search", h.SearchCached)
}

func (h *MailHandler) accountID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("account_id"))
}

func (h *MailHandler) folderID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Query("folder_id"), 10, 64)
}

func (h *MailHandler) ListCached(c *fiber.Ctx) error {
	folderID, err := h.folderID(c)
	if err != nil {
		return ErrorResponse(c, 400, "folder_id query param required")
	}
	p := GetPaginationParams(c, 50)
	msgs, err := h.mail.ListCached(c.Context(), folderID, p.Limit, p.Offset)
	if err != nil {
		return InternalErrorResponse(c, err, "list cached messages")
	}
	return SuccessResponse(c, msgs)
}

func (h *MailHandler) Count(c *fiber.Ctx) error {
	folderID, err := h.folderID(c)
	if err != nil {
		return ErrorResponse(c, 400, "folder_id query param required")
	}
	n, err := h.mail.CountInFolder(c.Context(), folderID)
	if err != nil {
		return InternalErrorResponse(c, err, "count messages")
	}
	return SuccessResponse(c, fiber.Map{"count": n})
}

func (h *MailHandler) SearchCached(c *fiber.Ctx) error {
	p := GetPaginationParams(c, 50)
	msgs, err := h.mail.SearchCached(c.Context(), c.Query("q"), p.Limit, p.Offset)
	if err != nil {
		return InternalErrorResponse(c, err, "search cached messages")
	}
	return SuccessResponse(c, msgs)
}

func (h *MailHandler) SearchRemote(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	folder := c.Params("folder_name")
	msgs, err := h.mail.SearchRemote(c.Context(), acctID, folder, c.Query("q"))
	if err != nil {
		return InternalErrorResponse(c, err, "search remote")
	}
	return SuccessResponse(c, msgs)
}

func (h *MailHandler) GetByUID(c *fiber.Ctx) error {
	folderID, err := h.folderID(c)
	if err != nil {
		return ErrorResponse(c, 400, "folder_id query param required")
	}
	uid, err := strconv.ParseUint(c.Params("uid"), 10, 32)
	if err != nil {
		return ErrorResponse(c, 400, "invalid uid")
	}
	msg, err := h.mail.GetByUID(c.Context(), folderID, uint32(uid))
	if err != nil {
		return ErrorResponse(c, 404, "message not found")
	}
	return SuccessResponse(c, msg)
}

func (h *MailHandler) GetByIndex(c *fiber.Ctx) error {
	folderID, err := h.folderID(c)
	if err != nil {
		return ErrorResponse(c, 400, "folder_id query param required")
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return ErrorResponse(c, 400, "invalid index")
	}
	msg, err := h.mail.GetByIndex(c.Context(), folderID, index)
	if err != nil {
		return ErrorResponse(c, 404, "message not found")
	}
	return SuccessResponse(c, msg)
}

type uidsBody struct {
	UIDs []uint32 `json:"uids"`
}

func (h *MailHandler) FetchWithMIME(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	var body uidsBody
	if err := c.BodyParser(&body); err != nil || len(body.UIDs) == 0 {
		return ErrorResponse(c, 400, "uids is required")
	}
	msgs, err := h.mail.FetchWithMIME(c.Context(), acctID, c.Params("folder_name"), body.UIDs)
	if err != nil {
		return InternalErrorResponse(c, err, "fetch with mime")
	}
	return SuccessResponse(c, msgs)
}

type moveBody struct {
	DestFolder string   `json:"dest_folder"`
	UIDs       []uint32 `json:"uids"`
}

func (h *MailHandler) Move(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	var body moveBody
	if err := c.BodyParser(&body); err != nil || body.DestFolder == "" || len(body.UIDs) == 0 {
		return ErrorResponse(c, 400, "dest_folder and uids are required")
	}
	src := c.Params("folder_name")
	if len(body.UIDs) == 1 {
		if err := h.mail.AtomicMove(c.Context(), acctID, src, body.DestFolder, body.UIDs[0]); err != nil {
			return InternalErrorResponse(c, err, "move message")
		}
		return SuccessResponse(c, fiber.Map{"moved": 1})
	}
	if err := h.mail.AtomicBatchMove(c.Context(), acctID, src, body.DestFolder, body.UIDs); err != nil {
		return InternalErrorResponse(c, err, "batch move messages")
	}
	return SuccessResponse(c, fiber.Map{"moved": len(body.UIDs)})
}

func (h *MailHandler) Delete(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	var body uidsBody
	if err := c.BodyParser(&body); err != nil || len(body.UIDs) == 0 {
		return ErrorResponse(c, 400, "uids is required")
	}
	if err := h.mail.DeleteMessages(c.Context(), acctID, c.Params("folder_name"), body.UIDs); err != nil {
		return InternalErrorResponse(c, err, "delete messages")
	}
	return SuccessResponse(c, fiber.Map{"deleted": len(body.UIDs)})
}

func (h *MailHandler) Undelete(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	var body uidsBody
	if err := c.BodyParser(&body); err != nil || len(body.UIDs) == 0 {
		return ErrorResponse(c, 400, "uids is required")
	}
	if err := h.mail.UndeleteMessages(c.Context(), acctID, c.Params("folder_name"), body.UIDs); err != nil {
		return InternalErrorResponse(c, err, "undelete messages")
	}
	return SuccessResponse(c, fiber.Map{"undeleted": len(body.UIDs)})
}

func (h *MailHandler) Expunge(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	if err := h.mail.Expunge(c.Context(), acctID, c.Params("folder_name")); err != nil {
		return InternalErrorResponse(c, err, "expunge folder")
	}
	return SuccessResponse(c, fiber.Map{"expunged": true})
}
