package personnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/police-records/registry/internal/platform/blob"
	"github.com/police-records/registry/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, role *Role) ([]Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	GetProfile(ctx context.Context, role Role, id int64) (Profile, error)
	ProfileByAccount(ctx context.Context, role Role, accountID int64) (Profile, error)
	ListProfiles(ctx context.Context, role Role) ([]Profile, error)
	UpdateProfile(ctx context.Context, role Role, id int64, changes *ProfileChanges) (Profile, error)
	SetOfficerStation(ctx context.Context, officerID int64, stationID *int64) (Profile, error)
	VilleExists(ctx context.Context, id int64) (bool, error)
	StationExists(ctx context.Context, id int64) (bool, error)
}

// Service manages accounts and their profiles.
type Service struct {
	repo     RepositoryPort
	events   AccountEventHandler
	blobs    blob.Store
	logger   *slog.Logger
	now      func() time.Time
	hashCost int
}

// NewService constructs the service. events receives account lifecycle events
// inside the account transaction; blobs may be nil.
func NewService(repo RepositoryPort, events AccountEventHandler, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		events:   events,
		blobs:    blobs,
		logger:   logger,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithPasswordCost sets the bcrypt cost used for new password hashes.
func (s *Service) WithPasswordCost(cost int) *Service {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.hashCost = cost
	}
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// AccountRecord is an account together with its profile.
type AccountRecord struct {
	Account
	Profile *Profile `json:"profile"`
}

// CreateAccountInput describes a new account. Profile fields submitted with
// the account are saved on the provisioned profile.
type CreateAccountInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      RoleInput
	IsActive  *bool
	Profile   *ProfileChanges
}

// UpdateAccountInput carries account changes; nil fields are kept.
type UpdateAccountInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
	IsActive  *bool
	Role      *RoleInput
	Profile   *ProfileChanges
}

// CreateAccount inserts an account and provisions its profile in one transaction.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (AccountRecord, error) {
	role, err := ParseRole(string(input.Role))
	if err != nil {
		return AccountRecord{}, err
	}
	account := Account{
		Username:  input.Username,
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      role,
		IsActive:  true,
	}
	if input.IsActive != nil {
		account.IsActive = *input.IsActive
	}
	if err := validateAccount(&account); err != nil {
		return AccountRecord{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return AccountRecord{}, err
	}
	if err := s.checkChanges(ctx, role, input.Profile); err != nil {
		return AccountRecord{}, err
	}
	if account.PasswordHash, err = s.hash(input.Password); err != nil {
		return AccountRecord{}, err
	}
	if s.events == nil {
		return AccountRecord{}, errors.New("personnel: account event handler not configured")
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertAccount(ctx, account)
		if err != nil {
			return fmt.Errorf("personnel: insert account: %w", err)
		}
		at := s.now()
		if err := s.events.HandleAccountCreated(ctx, tx, AccountCreatedEvent{
			EventID: uuid.New(), AccountID: created.ID, Role: role, At: at,
		}); err != nil {
			return err
		}
		if err := s.events.HandleAccountSaved(ctx, tx, AccountSavedEvent{
			EventID: uuid.New(), AccountID: created.ID, Role: role, Created: true, Changes: input.Profile, At: at,
		}); err != nil {
			return err
		}
		account = created
		return tx.RecordAudit(ctx, shared.AuditLog{
			Action:   "ACCOUNT_CREATED",
			Entity:   "accounts",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"role": role.String(), "username": created.Username},
			At:       at,
		})
	})
	if err != nil {
		return AccountRecord{}, err
	}
	s.logger.Info("account created", slog.Int64("account_id", account.ID), slog.String("role", role.String()))
	return s.withProfile(ctx, account)
}

// UpdateAccount rewrites an account and re-saves its profile. The role of an
// existing account cannot change.
func (s *Service) UpdateAccount(ctx context.Context, id int64, input UpdateAccountInput) (AccountRecord, error) {
	if id <= 0 {
		return AccountRecord{}, shared.Invalid("id", "must be positive")
	}
	if input.Password != nil {
		if err := validatePassword(*input.Password); err != nil {
			return AccountRecord{}, err
		}
	}
	if s.events == nil {
		return AccountRecord{}, errors.New("personnel: account event handler not configured")
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockAccount(ctx, id)
		if err != nil {
			return err
		}
		if input.Role != nil {
			role, err := ParseRole(string(*input.Role))
			if err != nil {
				return err
			}
			if role != current.Role {
				return fmt.Errorf("%w: account %d is %s and cannot become %s", shared.ErrInconsistentRole, id, current.Role, role)
			}
		}
		if err := s.checkChanges(ctx, current.Role, input.Profile); err != nil {
			return err
		}
		applyAccountChanges(&current, input)
		if err := validateAccount(&current); err != nil {
			return err
		}
		if input.Password != nil {
			if current.PasswordHash, err = s.hash(*input.Password); err != nil {
				return err
			}
		}
		updated, err := tx.UpdateAccount(ctx, current)
		if err != nil {
			return fmt.Errorf("personnel: update account %d: %w", id, err)
		}
		if err := s.events.HandleAccountSaved(ctx, tx, AccountSavedEvent{
			EventID: uuid.New(), AccountID: id, Role: current.Role, Changes: input.Profile, At: s.now(),
		}); err != nil {
			return err
		}
		account = updated
		return nil
	})
	if err != nil {
		return AccountRecord{}, err
	}
	return s.withProfile(ctx, account)
}

func applyAccountChanges(a *Account, in UpdateAccountInput) {
	if in.Username != nil {
		a.Username = *in.Username
	}
	if in.Email != nil {
		a.Email = *in.Email
	}
	if in.FirstName != nil {
		a.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		a.LastName = *in.LastName
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
}

// GetAccount returns an account with its profile.
func (s *Service) GetAccount(ctx context.Context, id int64) (AccountRecord, error) {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return AccountRecord{}, err
	}
	return s.withProfile(ctx, account)
}

// ListAccounts returns accounts oldest first, optionally for one role.
func (s *Service) ListAccounts(ctx context.Context, role *Role) ([]Account, error) {
	return s.repo.ListAccounts(ctx, role)
}

// DeleteAccount removes an account together with its profile.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("personnel: delete account %d: %w", id, err)
	}
	s.logger.Info("account deleted", slog.Int64("account_id", id))
	return nil
}

// GetProfile returns one profile of a subtype.
func (s *Service) GetProfile(ctx context.Context, role Role, id int64) (Profile, error) {
	if !role.Valid() {
		return Profile{}, shared.Invalid("role", "unknown role")
	}
	return s.repo.GetProfile(ctx, role, id)
}

// ListProfiles returns every profile of a subtype.
func (s *Service) ListProfiles(ctx context.Context, role Role) ([]Profile, error) {
	if !role.Valid() {
		return nil, shared.Invalid("role", "unknown role")
	}
	return s.repo.ListProfiles(ctx, role)
}

// UpdateProfile validates and persists profile changes. A request that sets
// nothing returns the stored profile without a write.
func (s *Service) UpdateProfile(ctx context.Context, role Role, id int64, changes ProfileChanges) (Profile, error) {
	if !role.Valid() {
		return Profile{}, shared.Invalid("role", "unknown role")
	}
	if changes.Empty() {
		return s.repo.GetProfile(ctx, role, id)
	}
	if err := s.checkChanges(ctx, role, &changes); err != nil {
		return Profile{}, err
	}
	p, err := s.repo.UpdateProfile(ctx, role, id, &changes)
	if err != nil {
		return Profile{}, fmt.Errorf("personnel: update %s profile %d: %w", role, id, err)
	}
	return p, nil
}

// AssignStation attaches an officer to a station; a nil station detaches it.
func (s *Service) AssignStation(ctx context.Context, officerID int64, stationID *int64) (Profile, error) {
	if stationID != nil {
		if err := s.requireStation(ctx, *stationID); err != nil {
			return Profile{}, err
		}
	}
	p, err := s.repo.SetOfficerStation(ctx, officerID, stationID)
	if err != nil {
		return Profile{}, fmt.Errorf("personnel: assign station to officer %d: %w", officerID, err)
	}
	return p, nil
}

// Directory lists every profile grouped by subtype.
func (s *Service) Directory(ctx context.Context) (Directory, error) {
	var dir Directory
	g, ctx := errgroup.WithContext(ctx)
	targets := map[Role]*[]Profile{
		RoleMinistry:     &dir.Ministry,
		RoleCommissioner: &dir.Commissioners,
		RoleOfficer:      &dir.Officers,
	}
	for role, dest := range targets {
		g.Go(func() error {
			profiles, err := s.repo.ListProfiles(ctx, role)
			if err != nil {
				return err
			}
			*dest = profiles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Directory{}, fmt.Errorf("personnel: directory: %w", err)
	}
	return dir, nil
}

func (s *Service) withProfile(ctx context.Context, a Account) (AccountRecord, error) {
	rec := AccountRecord{Account: a}
	p, err := s.repo.ProfileByAccount(ctx, a.Role, a.ID)
	switch {
	case err == nil:
		rec.Profile = &p
	case errors.Is(err, shared.ErrNotFound):
		s.logger.Warn("account without profile", slog.Int64("account_id", a.ID), slog.String("role", a.Role.String()))
	default:
		return AccountRecord{}, err
	}
	return rec, nil
}

// checkChanges validates profile changes and resolves their references.
func (s *Service) checkChanges(ctx context.Context, role Role, c *ProfileChanges) error {
	if c == nil {
		return nil
	}
	if err := validateChanges(role, c, s.now()); err != nil {
		return err
	}
	if c.BirthCityID != nil {
		ok, err := s.repo.VilleExists(ctx, *c.BirthCityID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.MissingReference("birth_city_id")
		}
	}
	if c.StationID != nil {
		if err := s.requireStation(ctx, *c.StationID); err != nil {
			return err
		}
	}
	if c.PhotoKey != nil {
		return blob.Verify(ctx, s.blobs, "photo_key", *c.PhotoKey)
	}
	return nil
}

func (s *Service) requireStation(ctx context.Context, id int64) error {
	ok, err := s.repo.StationExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.MissingReference("station_id")
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("personnel: hash password: %w", err)
	}
	return string(h), nil
}
