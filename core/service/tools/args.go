package tools

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/pkg/apperr"
)

func argString(args map[string]any, name string) (string, bool) {
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func argInt(args map[string]any, name string, def int) int {
	v, ok := args[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func argUint32(args map[string]any, name string) (uint32, error) {
	v, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("missing parameter: %s", name)
	}
	switch n := v.(type) {
	case float64:
		return uint32(n), nil
	case int:
		return uint32(n), nil
	case int64:
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number", name)
	}
}

func argUint32Slice(args map[string]any, name string) ([]uint32, error) {
	v, ok := args[name]
	if !ok {
		return nil, fmt.Errorf("missing parameter: %s", name)
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %s must be an array", name)
	}
	out := make([]uint32, 0, len(raw))
	for _, item := range raw {
		switch n := item.(type) {
		case float64:
			out = append(out, uint32(n))
		case int:
			out = append(out, uint32(n))
		default:
			return nil, fmt.Errorf("parameter %s must contain numbers", name)
		}
	}
	return out, nil
}

// resolveAccountID applies the shared account-resolution rule: an explicit
// "account_id" argument wins, else the session's current account, else the
// caller's default account.
func resolveAccountID(args map[string]any, session accountResolver, defaultAccountID *uuid.UUID) (uuid.UUID, error) {
	var explicit *uuid.UUID
	if raw, ok := argString(args, "account_id"); ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid account_id: %w", err)
		}
		explicit = &id
	}
	resolved := session.ResolveAccountID(explicit, defaultAccountID)
	if resolved == uuid.Nil {
		return uuid.Nil, apperr.NoAccountSelected()
	}
	return resolved, nil
}

// accountResolver is the subset of domain.Session used by resolveAccountID.
type accountResolver interface {
	ResolveAccountID(explicit *uuid.UUID, defaultAccountID *uuid.UUID) uuid.UUID
}
