package tools

import (
	"context"

	"github.com/google/uuid"

	in "github.com/aerioncore/mailcore/core/port/in"
)

// listAccountsTool is "list_accounts".
type listAccountsTool struct {
	accounts in.AccountService
}

func NewListAccountsTool(accounts in.AccountService) Tool { return &listAccountsTool{accounts} }

func (t *listAccountsTool) Name() string        { return "list_accounts" }
func (t *listAccountsTool) Category() Category  { return CategoryAccount }
func (t *listAccountsTool) Description() string { return "List every configured mail account." }
func (t *listAccountsTool) Parameters() []ParameterSpec { return nil }

func (t *listAccountsTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	accts, err := t.accounts.ListAccounts(ctx)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: accts}, nil
}

// setCurrentAccountTool is "set_current_account".
type setCurrentAccountTool struct {
	sessions in.SessionService
	accounts in.AccountService
}

func NewSetCurrentAccountTool(sessions in.SessionService, accounts in.AccountService) Tool {
	return &setCurrentAccountTool{sessions, accounts}
}

func (t *setCurrentAccountTool) Name() string { return "set_current_account" }
func (t *setCurrentAccountTool) Category() Category { return CategoryAccount }
func (t *setCurrentAccountTool) Description() string {
	return "Select which account subsequent folder/mail tool calls in this session default to."
}
func (t *setCurrentAccountTool) Parameters() []ParameterSpec {
	return []ParameterSpec{{Name: "account_id", Type: "string", Description: "Account UUID", Required: true}}
}

func (t *setCurrentAccountTool) Execute(ctx context.Context, sessionID string, args map[string]any) (*Result, error) {
	raw, _ := argString(args, "account_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return &Result{Success: false, Error: "invalid account_id: " + err.Error()}, nil
	}
	if _, err := t.accounts.GetAccount(ctx, id); err != nil {
		return &Result{Success: false, Error: "unknown account: " + err.Error()}, nil
	}
	if err := t.sessions.SetCurrentAccount(ctx, sessionID, id); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Data: map[string]string{"account_id": id.String()}}, nil
}
