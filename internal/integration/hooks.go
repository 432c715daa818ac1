package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/shared"
)

// ProvisionRecorder counts provisioned profiles.
type ProvisionRecorder interface {
	ProfileProvisioned(role string)
}

// ProfileSync keeps exactly one profile per account. It provisions the profile
// of the account's role on creation and re-saves it on every account write.
type ProfileSync struct {
	metrics ProvisionRecorder
	logger  *slog.Logger
}

// NewProfileSync constructs the handler. metrics may be nil.
func NewProfileSync(metrics ProvisionRecorder, logger *slog.Logger) *ProfileSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileSync{metrics: metrics, logger: logger}
}

var _ personnel.AccountEventHandler = (*ProfileSync)(nil)

// HandleAccountCreated inserts the empty profile matching the account role.
func (h *ProfileSync) HandleAccountCreated(ctx context.Context, store personnel.ProfileStore, evt personnel.AccountCreatedEvent) error {
	if !evt.Role.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInconsistentRole, evt.Role)
	}
	return h.provision(ctx, store, evt.Role, evt.AccountID, evt.EventID.String())
}

// HandleAccountSaved persists profile changes carried with the account write.
// A profile missing on an existing account is provisioned first.
func (h *ProfileSync) HandleAccountSaved(ctx context.Context, store personnel.ProfileStore, evt personnel.AccountSavedEvent) error {
	if !evt.Role.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrInconsistentRole, evt.Role)
	}
	err := store.SaveProfile(ctx, evt.Role, evt.AccountID, evt.Changes)
	if errors.Is(err, shared.ErrNotFound) && !evt.Created {
		h.logger.Warn("profile missing on account update", slog.Int64("account_id", evt.AccountID), slog.String("role", evt.Role.String()))
		if err := h.provision(ctx, store, evt.Role, evt.AccountID, evt.EventID.String()); err != nil {
			return err
		}
		err = store.SaveProfile(ctx, evt.Role, evt.AccountID, evt.Changes)
	}
	if err != nil {
		return fmt.Errorf("integration: save %s profile of account %d: %w", evt.Role, evt.AccountID, err)
	}
	return nil
}

func (h *ProfileSync) provision(ctx context.Context, store personnel.ProfileStore, role personnel.Role, accountID int64, eventID string) error {
	profileID, err := store.InsertProfile(ctx, role, accountID)
	if err != nil {
		return fmt.Errorf("integration: provision %s profile for account %d: %w", role, accountID, err)
	}
	err = store.RecordAudit(ctx, shared.AuditLog{
		Action:   "PROFILE_PROVISIONED",
		Entity:   role.Table(),
		EntityID: strconv.FormatInt(profileID, 10),
		Meta:     map[string]any{"account_id": accountID, "event_id": eventID},
	})
	if err != nil {
		return fmt.Errorf("integration: audit profile %d: %w", profileID, err)
	}
	if h.metrics != nil {
		h.metrics.ProfileProvisioned(role.String())
	}
	return nil
}
