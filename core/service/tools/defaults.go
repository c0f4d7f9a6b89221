package tools

import in "github.com/aerioncore/mailcore/core/port/in"

// RegisterDefaults builds a Registry carrying every tool the spec names.
func RegisterDefaults(accounts in.AccountService, folders in.FolderService, mail in.MailService, sessions in.SessionService) *Registry {
	r := NewRegistry()
	r.RegisterAll(
		NewListAccountsTool(accounts),
		NewSetCurrentAccountTool(sessions, accounts),
		NewListFoldersTool(folders, sessions, accounts),
		NewListFoldersHierarchicalTool(folders, sessions, accounts),
		NewGetFolderStatsTool(folders),
		NewSearchEmailsTool(mail, sessions, accounts),
		NewSearchCachedEmailsTool(mail),
		NewFetchEmailsWithMIMETool(mail, sessions, accounts),
		NewGetEmailByUIDTool(mail),
		NewGetEmailByIndexTool(mail),
		NewCountEmailsInFolderTool(mail),
		NewListCachedEmailsTool(mail),
		NewAtomicMoveTool(mail, sessions, accounts),
		NewAtomicBatchMoveTool(mail, sessions, accounts),
		NewMarkAsDeletedTool(mail, sessions, accounts),
		NewDeleteMessagesTool(mail, sessions, accounts),
		NewUndeleteMessagesTool(mail, sessions, accounts),
		NewExpungeTool(mail, sessions, accounts),
	)
	return r
}
