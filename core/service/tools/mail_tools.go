package tools

import (
	"context"

	"github.com/google/uuid"

	in "github.com/aerioncore/mailcore/core/port/in"
)

type getEmailByUIDTool struct{ mail in.MailService }

func NewGetEmailByUIDTool(mail in.MailService) Tool { return &getEmailByUIDTool{mail} }

func (t *getEmailByUIDTool) Name() string       { return "get_email_by_uid" }
func (t *getEmailByUIDTool) Category() Category { return CategoryMail }
func (t *getEmailByUIDTool) Description() string { return "Fetch one cached message by its IMAP UID." }
func (t *getEmailByUIDTool) Parameters() []ParameterSpec {
	return []ParameterSpec{
		{Name: "folder_id", Type: "number", Description: "Folder ID", Required: true},
		{Name: "uid", Type: "number", Description: "IMAP UID", Required: true},
	}
}

func (t *getEmailByUIDTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	folderID, err := argUint32(args, "folder_id")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	uid, err := argUint32(args, "uid")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	msg, err := t.mail.GetByUID(ctx, int64(folderID), uid)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: msg}, nil
}

type getEmailByIndexTool struct{ mail in.MailService }

func NewGetEmailByIndexTool(mail in.MailService) Tool { return &getEmailByIndexTool{mail} }

func (t *getEmailByIndexTool) Name() string       { return "get_email_by_index" }
func (t *getEmailByIndexTool) Category() Category { return CategoryMail }
func (t *getEmailByIndexTool) Description() string {
	return "Fetch the Nth cached message in a folder, ordered by date."
}
func (t *getEmailByIndexTool) Parameters() []ParameterSpec {
	return []ParameterSpec{
		{Name: "folder_id", Type: "number", Description: "Folder ID", Required: true},
		{Name: "index", Type: "number", Description: "Zero-based position", Required: true},
	}
}

func (t *getEmailByIndexTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	folderID, err := argUint32(args, "folder_id")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	index := argInt(args, "index", 0)
	msg, err := t.mail.GetByIndex(ctx, int64(folderID), index)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: msg}, nil
}

type countEmailsInFolderTool struct{ mail in.MailService }

func NewCountEmailsInFolderTool(mail in.MailService) Tool { return &countEmailsInFolderTool{mail} }

func (t *countEmailsInFolderTool) Name() string       { return "count_emails_in_folder" }
func (t *countEmailsInFolderTool) Category() Category { return CategoryMail }
func (t *countEmailsInFolderTool) Description() string { return "Count cached messages in a folder." }
func (t *countEmailsInFolderTool) Parameters() []ParameterSpec {
	return []ParameterSpec{{Name: "folder_id", Type: "number", Description: "Folder ID", Required: true}}
}

func (t *countEmailsInFolderTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	folderID, err := argUint32(args, "folder_id")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	n, err := t.mail.CountInFolder(ctx, int64(folderID))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: map[string]int{"count": n}}, nil
}

type listCachedEmailsTool struct{ mail in.MailService }

func NewListCachedEmailsTool(mail in.MailService) Tool { return &listCachedEmailsTool{mail} }

func (t *listCachedEmailsTool) Name() string       { return "list_cached_emails" }
func (t *listCachedEmailsTool) Category() Category { return CategoryMail }
func (t *listCachedEmailsTool) Description() string { return "Page through cached messages in a folder." }
func (t *listCachedEmailsTool) Parameters() []ParameterSpec {
	return []ParameterSpec{
		{Name: "folder_id", Type: "number", Description: "Folder ID", Required: true},
		{Name: "limit", Type: "number", Description: "Page size, default 50"},
		{Name: "offset", Type: "number", Description: "Page offset, default 0"},
	}
}

func (t *listCachedEmailsTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	folderID, err := argUint32(args, "folder_id")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	limit := argInt(args, "limit", 50)
	offset := argInt(args, "offset", 0)
	msgs, err := t.mail.ListCached(ctx, int64(folderID), limit, offset)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: msgs}, nil
}

type searchCachedEmailsTool struct{ mail in.MailService }

func NewSearchCachedEmailsTool(mail in.MailService) Tool { return &searchCachedEmailsTool{mail} }

func (t *searchCachedEmailsTool) Name() string       { return "search_cached_emails" }
func (t *searchCachedEmailsTool) Category() Category { return CategoryMail }
func (t *searchCachedEmailsTool) Description() string {
	return "Full-text search over cached subject/from/body across all folders."
}
func (t *searchCachedEmailsTool) Parameters() []ParameterSpec {
	return []ParameterSpec{
		{Name: "query", Type: "string", Description: "Search text", Required: true},
		{Name: "limit", Type: "number", Description: "Page size, default 50"},
		{Name: "offset", Type: "number", Description: "Page offset, default 0"},
	}
}

func (t *searchCachedEmailsTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	query, _ := argString(args, "query")
	limit := argInt(args, "limit", 50)
	offset := argInt(args, "offset", 0)
	msgs, err := t.mail.SearchCached(ctx, query, limit, offset)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: msgs}, nil
}

type searchEmailsTool struct {
	mail     in.MailService
	sessions in.SessionService
	accounts in.AccountService
}

func NewSearchEmailsTool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &searchEmailsTool{mail, sessions, accounts}
}

func (t *searchEmailsTool) Name() string       { return "search_emails" }
func (t *searchEmailsTool) Category() Category { return CategoryMail }
func (t *searchEmailsTool) Description() string {
	return "Issue a live IMAP search against the server for one folder."
}
func (t *searchEmailsTool) Parameters() []ParameterSpec {
	return []ParameterSpec{
		{Name: "folder", Type: "string", Description: "Folder name", Required: true},
		{Name: "query", Type: "string", Description: "Search text", Required: true},
		{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
	}
}

func (t *searchEmailsTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	sess := t.sessions.GetOrCreate(ctx, sessionID)
	acctID, err := resolveAccountID(args, sess, defaultAccountID(ctx, t.accounts))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	folder, _ := argString(args, "folder")
	query, _ := argString(args, "query")
	msgs, err := t.mail.SearchRemote(ctx, acctID, folder, query)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: msgs}, nil
}

type fetchEmailsWithMIMETool struct {
	mail     in.MailService
	sessions in.SessionService
	accounts in.AccountService
}

func NewFetchEmailsWithMIMETool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &fetchEmailsWithMIMETool{mail, sessions, accounts}
}

func (t *fetchEmailsWithMIMETool) Name() string       { return "fetch_emails_with_mime" }
func (t *fetchEmailsWithMIMETool) Category() Category { return CategoryMail }
func (t *fetchEmailsWithMIMETool) Description() string {
	return "Fetch full bodies and attachments for the given UIDs, caching the result."
}
func (t *fetchEmailsWithMIMETool) Parameters() []ParameterSpec {
	return []ParameterSpec{
		{Name: "folder", Type: "string", Description: "Folder name", Required: true},
		{Name: "uids", Type: "array", Description: "IMAP UIDs to fetch", Required: true},
		{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
	}
}

func (t *fetchEmailsWithMIMETool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	sess := t.sessions.GetOrCreate(ctx, sessionID)
	acctID, err := resolveAccountID(args, sess, defaultAccountID(ctx, t.accounts))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	folder, _ := argString(args, "folder")
	uids, err := argUint32Slice(args, "uids")
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	msgs, err := t.mail.FetchWithMIME(ctx, acctID, folder, uids)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: msgs}, nil
}

// mutatingMailTool is the shared shape of the move/delete/expunge tools:
// all take (account_id?, folder[, dest_folder], uid(s)).
type mutatingMailTool struct {
	name, description string
	params            []ParameterSpec
	sessions          in.SessionService
	accounts          in.AccountService
	run               func(ctx context.Context, mail in.MailService, acctID uuid.UUID, args map[string]any) error
	mail              in.MailService
}

func (t *mutatingMailTool) Name() string                { return t.name }
func (t *mutatingMailTool) Category() Category          { return CategoryMail }
func (t *mutatingMailTool) Description() string         { return t.description }
func (t *mutatingMailTool) Parameters() []ParameterSpec { return t.params }

func (t *mutatingMailTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	sess := t.sessions.GetOrCreate(ctx, sessionID)
	acctID, err := resolveAccountID(args, sess, defaultAccountID(ctx, t.accounts))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	if err := t.run(ctx, t.mail, acctID, args); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true}, nil
}

// --- concrete mutating tool constructors ---

func NewAtomicMoveTool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &mutatingMailTool{
		name:        "atomic_move_message",
		description: "Move one message between folders, keeping the cache's folder assignment consistent with the server.",
		params: []ParameterSpec{
			{Name: "folder", Type: "string", Description: "Source folder", Required: true},
			{Name: "dest_folder", Type: "string", Description: "Destination folder", Required: true},
			{Name: "uid", Type: "number", Description: "IMAP UID", Required: true},
			{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
		},
		sessions: sessions, accounts: accounts, mail: mail,
		run: func(ctx context.Context, mail in.MailService, acctID uuid.UUID, args map[string]any) error {
			folder, _ := argString(args, "folder")
			dest, _ := argString(args, "dest_folder")
			uid, err := argUint32(args, "uid")
			if err != nil {
				return err
			}
			return mail.AtomicMove(ctx, acctID, folder, dest, uid)
		},
	}
}

func NewAtomicBatchMoveTool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &mutatingMailTool{
		name:        "atomic_batch_move",
		description: "Move several messages between folders in one pass.",
		params: []ParameterSpec{
			{Name: "folder", Type: "string", Description: "Source folder", Required: true},
			{Name: "dest_folder", Type: "string", Description: "Destination folder", Required: true},
			{Name: "uids", Type: "array", Description: "IMAP UIDs", Required: true},
			{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
		},
		sessions: sessions, accounts: accounts, mail: mail,
		run: func(ctx context.Context, mail in.MailService, acctID uuid.UUID, args map[string]any) error {
			folder, _ := argString(args, "folder")
			dest, _ := argString(args, "dest_folder")
			uids, err := argUint32Slice(args, "uids")
			if err != nil {
				return err
			}
			return mail.AtomicBatchMove(ctx, acctID, folder, dest, uids)
		},
	}
}

func NewMarkAsDeletedTool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &mutatingMailTool{
		name:        "mark_as_deleted",
		description: "Set the \\Deleted flag on messages without expunging them.",
		params: []ParameterSpec{
			{Name: "folder", Type: "string", Description: "Folder name", Required: true},
			{Name: "uids", Type: "array", Description: "IMAP UIDs", Required: true},
			{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
		},
		sessions: sessions, accounts: accounts, mail: mail,
		run: func(ctx context.Context, mail in.MailService, acctID uuid.UUID, args map[string]any) error {
			folder, _ := argString(args, "folder")
			uids, err := argUint32Slice(args, "uids")
			if err != nil {
				return err
			}
			return mail.MarkAsDeleted(ctx, acctID, folder, uids)
		},
	}
}

func NewUndeleteMessagesTool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &mutatingMailTool{
		name:        "undelete_messages",
		description: "Clear the \\Deleted flag on messages.",
		params: []ParameterSpec{
			{Name: "folder", Type: "string", Description: "Folder name", Required: true},
			{Name: "uids", Type: "array", Description: "IMAP UIDs", Required: true},
			{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
		},
		sessions: sessions, accounts: accounts, mail: mail,
		run: func(ctx context.Context, mail in.MailService, acctID uuid.UUID, args map[string]any) error {
			folder, _ := argString(args, "folder")
			uids, err := argUint32Slice(args, "uids")
			if err != nil {
				return err
			}
			return mail.UndeleteMessages(ctx, acctID, folder, uids)
		},
	}
}

func NewDeleteMessagesTool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &mutatingMailTool{
		name:        "delete_messages",
		description: "Permanently delete messages (marks \\Deleted then expunges).",
		params: []ParameterSpec{
			{Name: "folder", Type: "string", Description: "Folder name", Required: true},
			{Name: "uids", Type: "array", Description: "IMAP UIDs", Required: true},
			{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
		},
		sessions: sessions, accounts: accounts, mail: mail,
		run: func(ctx context.Context, mail in.MailService, acctID uuid.UUID, args map[string]any) error {
			folder, _ := argString(args, "folder")
			uids, err := argUint32Slice(args, "uids")
			if err != nil {
				return err
			}
			return mail.DeleteMessages(ctx, acctID, folder, uids)
		},
	}
}

func NewExpungeTool(mail in.MailService, sessions in.SessionService, accounts in.AccountService) Tool {
	return &mutatingMailTool{
		name:        "expunge",
		description: "Permanently remove every \\Deleted message in a folder.",
		params: []ParameterSpec{
			{Name: "folder", Type: "string", Description: "Folder name", Required: true},
			{Name: "account_id", Type: "string", Description: "Account UUID (defaults to current/default account)"},
		},
		sessions: sessions, accounts: accounts, mail: mail,
		run: func(ctx context.Context, mail in.MailService, acctID uuid.UUID, args map[string]any) error {
			folder, _ := argString(args, "folder")
			return mail.Expunge(ctx, acctID, folder)
		},
	}
}
