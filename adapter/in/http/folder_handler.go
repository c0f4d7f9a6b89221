package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	in "github.com/aerioncore/mailcore/core/port/in"
)

// FolderHandler exposes in.FolderService over HTTP.
type FolderHandler struct {
	folders in.FolderService
}

func NewFolderHandler(folders in.FolderService) *FolderHandler {
	return &FolderHandler{folders: folders}
}

func (h *FolderHandler) Register(router fiber.Router) {
	g := router.Group("/accounts/:account_id/folders")
	g.Get("/", h.List)
	g.Get("/tree", h.Tree)
	g.Get("/:folder_id/stats", h.Stats)
}

func (h *FolderHandler) accountID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("account_id"))
}

func (h *FolderHandler) List(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	folders, err := h.folders.ListFolders(c.Context(), acctID)
	if err != nil {
		return InternalErrorResponse(c, err, "list folders")
	}
	return SuccessResponse(c, folders)
}

func (h *FolderHandler) Tree(c *fiber.Ctx) error {
	acctID, err := h.accountID(c)
	if err != nil {
		return ErrorResponse(c, 400, "invalid account id")
	}
	tree, err := h.folders.ListFoldersHierarchical(c.Context(), acctID)
	if err != nil {
		return InternalErrorResponse(c, err, "list folders hierarchical")
	}
	return SuccessResponse(c, tree)
}

func (h *FolderHandler) Stats(c *fiber.Ctx) error {
	folderID, err := strconv.ParseInt(c.Params("folder_id"), 10, 64)
	if err != nil {
		return ErrorResponse(c, 400, "invalid folder id")
	}
	stats, err := h.folders.GetFolderStats(c.Context(), folderID)
	if err != nil {
		return ErrorResponse(c, 404, "folder stats not found")
	}
	return SuccessResponse(c, stats)
}
