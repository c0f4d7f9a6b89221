package tools

import (
	"context"

	"github.com/google/uuid"

	in "github.com/aerioncore/mailcore/core/port/in"
)

// defaultAccountID looks up the caller's default account, ignoring a
// lookup failure (resolveAccountID will surface "no account selected" if
// nothing else resolves either).
func defaultAccountID(ctx context.Context, accounts in.AccountService) *uuid.UUID {
	acct, err := accounts.GetDefaultAccount(ctx)
	if err != nil {
		return nil
	}
	return &acct.ID
}

type listFoldersTool struct {
	folders  in.FolderService
	sessions in.SessionService
	accounts in.AccountService
}

func NewListFoldersTool(folders in.FolderService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &listFoldersTool{folders, sessions, accounts}
}

func (t *listFoldersTool) Name() string       { return "list_folders" }
func (t *listFoldersTool) Category() Category { return CategoryFolder }
func (t *listFoldersTool) Description() string {
	return "List the cached folder tree (flat) for an account."
}
func (t *listFoldersTool) Parameters() []ParameterSpec {
	return []ParameterSpec{{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"}}
}

func (t *listFoldersTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	sess := t.sessions.GetOrCreate(ctx, sessionID)
	acctID, err := resolveAccountID(args, sess, defaultAccountID(ctx, t.accounts))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	folders, err := t.folders.ListFolders(ctx, acctID)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: folders}, nil
}

type listFoldersHierarchicalTool struct {
	folders  in.FolderService
	sessions in.SessionService
	accounts in.AccountService
}

func NewListFoldersHierarchicalTool(folders in.FolderService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &listFoldersHierarchicalTool{folders, sessions, accounts}
}

func (t *listFoldersHierarchicalTool) Name() string       { return "list_folders_hierarchical" }
func (t *listFoldersHierarchicalTool) Category() Category { return CategoryFolder }
func (t *listFoldersHierarchicalTool) Description() string {
	return "List folders as a nested tree using each folder's IMAP delimiter."
}
func (t *listFoldersHierarchicalTool) Parameters() []ParameterSpec {
	return []ParameterSpec{{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"}}
}

func (t *listFoldersHierarchicalTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	sess := t.sessions.GetOrCreate(ctx, sessionID)
	acctID, err := resolveAccountID(args, sess, defaultAccountID(ctx, t.accounts))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	tree, err := t.folders.ListFoldersHierarchical(ctx, acctID)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: tree}, nil
}

type getFolderStatsTool struct {
	folders in.FolderService
}

func NewGetFolderStatsTool(folders in.FolderService) Tool { return &getFolderStatsTool{folders} }

func (t *getFolderStatsTool) Name() string       { return "get_folder_stats" }
func (t *getFolderStatsTool) Category() Category { return CategoryFolder }
func (t *getFolderStatsTool) Description() string {
	return "Get the sync checkpoint/status for a folder."
}
func (t *getFolderStatsTool) Parameters() []ParameterSpec {
	return []ParameterSpec{{Name: "folder_id", Type: "number", Description: "Folder ID", Required: true}}
}

func (t *getFolderStatsTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	folderID, err := argUint32(args, "folder_id")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	stats, err := t.folders.GetFolderStats(ctx, int64(folderID))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: stats}, nil
}
