package in

import (
	"context"

	"github.com/google/uuid"
)

// SyncService drives the incremental/full sync engine for a folder or an
// entire account.
type SyncService interface {
	// SyncFolder brings one folder up to date: re-ingests from scratch if
	// UIDVALIDITY changed, otherwise fetches UIDs above the checkpoint.
	SyncFolder(ctx context.Context, accountID uuid.UUID, folderName string) error
	// SyncAccount discovers folders (via LIST) and syncs each in turn.
	SyncAccount(ctx context.Context, accountID uuid.UUID) error
	// WatchAccount runs IDLE against the account's folders until ctx is
	// cancelled, triggering incremental syncs on change notifications.
	WatchAccount(ctx context.Context, accountID uuid.UUID) error
}
