package personnel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/police-records/registry/internal/shared"
)

// AccountCreatedEvent is emitted once, right after a new account row is inserted.
type AccountCreatedEvent struct {
	EventID   uuid.UUID
	AccountID int64
	Role      Role
	At        time.Time
}

// AccountSavedEvent is emitted after every account write, creation included.
// Changes holds profile fields submitted together with the account.
type AccountSavedEvent struct {
	EventID   uuid.UUID
	AccountID int64
	Role      Role
	Created   bool
	Changes   *ProfileChanges
	At        time.Time
}

// ProfileStore is the transactional view handed to event handlers. Every call
// runs inside the transaction that wrote the account.
type ProfileStore interface {
	InsertProfile(ctx context.Context, role Role, accountID int64) (int64, error)
	SaveProfile(ctx context.Context, role Role, accountID int64, changes *ProfileChanges) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// AccountEventHandler receives account lifecycle events. A returned error
// rolls back the account write.
type AccountEventHandler interface {
	HandleAccountCreated(ctx context.Context, store ProfileStore, evt AccountCreatedEvent) error
	HandleAccountSaved(ctx context.Context, store ProfileStore, evt AccountSavedEvent) error
}
