// Package personneltest provides an in-memory personnel repository for tests.
package personneltest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/shared"
)

// MemoryRepository implements personnel.RepositoryPort. Transactions snapshot
// the whole state and restore it when the callback fails. Unique columns are
// enforced the way the schema does.
type MemoryRepository struct {
	mu       sync.Mutex
	state    state
	villes   map[int64]bool
	stations map[int64]bool
	clock    time.Time
}

type state struct {
	accounts map[int64]personnel.Account
	profiles map[personnel.Role]map[int64]personnel.Profile
	audits   []shared.AuditLog
	nextID   int64
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state:    newState(),
		villes:   map[int64]bool{},
		stations: map[int64]bool{},
		clock:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func newState() state {
	s := state{accounts: map[int64]personnel.Account{}, profiles: map[personnel.Role]map[int64]personnel.Profile{}}
	for _, r := range personnel.Roles {
		s.profiles[r] = map[int64]personnel.Profile{}
	}
	return s
}

func (s state) clone() state {
	c := newState()
	c.nextID = s.nextID
	c.audits = append([]shared.AuditLog(nil), s.audits...)
	for id, a := range s.accounts {
		c.accounts[id] = a
	}
	for r, m := range s.profiles {
		for id, p := range m {
			c.profiles[r][id] = p
		}
	}
	return c
}

// AddVille registers a ville id that profile birth cities may reference.
func (m *MemoryRepository) AddVille(id int64) { m.villes[id] = true }

// AddStation registers a station id that officers may reference.
func (m *MemoryRepository) AddStation(id int64) { m.stations[id] = true }

// Accounts returns the number of stored accounts.
func (m *MemoryRepository) Accounts() int { return len(m.state.accounts) }

// Profiles returns the stored profiles of a subtype.
func (m *MemoryRepository) Profiles(role personnel.Role) []personnel.Profile {
	out := make([]personnel.Profile, 0, len(m.state.profiles[role]))
	for _, p := range m.state.profiles[role] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Audits returns recorded audit entries in order.
func (m *MemoryRepository) Audits() []shared.AuditLog {
	return append([]shared.AuditLog(nil), m.state.audits...)
}

// DropProfile removes the profile of an account, simulating legacy data.
func (m *MemoryRepository) DropProfile(role personnel.Role, accountID int64) {
	for id, p := range m.state.profiles[role] {
		if p.AccountID == accountID {
			delete(m.state.profiles[role], id)
		}
	}
}

func (m *MemoryRepository) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MemoryRepository) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

// WithTx runs fn against a snapshot that is discarded on error.
func (m *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, personnel.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := m.state.clone()
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.state = saved
		return err
	}
	return nil
}

func (m *MemoryRepository) GetAccount(_ context.Context, id int64) (personnel.Account, error) {
	a, ok := m.state.accounts[id]
	if !ok {
		return personnel.Account{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *MemoryRepository) ListAccounts(_ context.Context, role *personnel.Role) ([]personnel.Account, error) {
	out := []personnel.Account{}
	for _, a := range m.state.accounts {
		if role != nil && a.Role != *role {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) DeleteAccount(_ context.Context, id int64) error {
	a, ok := m.state.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	delete(m.state.accounts, id)
	m.DropProfile(a.Role, id)
	return nil
}

func (m *MemoryRepository) GetProfile(_ context.Context, role personnel.Role, id int64) (personnel.Profile, error) {
	p, ok := m.state.profiles[role][id]
	if !ok {
		return personnel.Profile{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *MemoryRepository) ProfileByAccount(_ context.Context, role personnel.Role, accountID int64) (personnel.Profile, error) {
	for _, p := range m.state.profiles[role] {
		if p.AccountID == accountID {
			return p, nil
		}
	}
	return personnel.Profile{}, shared.ErrNotFound
}

func (m *MemoryRepository) ListProfiles(_ context.Context, role personnel.Role) ([]personnel.Profile, error) {
	return m.Profiles(role), nil
}

func (m *MemoryRepository) UpdateProfile(_ context.Context, role personnel.Role, id int64, changes *personnel.ProfileChanges) (personnel.Profile, error) {
	p, ok := m.state.profiles[role][id]
	if !ok {
		return personnel.Profile{}, shared.ErrNotFound
	}
	return m.save(role, p, changes)
}

func (m *MemoryRepository) SetOfficerStation(_ context.Context, officerID int64, stationID *int64) (personnel.Profile, error) {
	p, ok := m.state.profiles[personnel.RoleOfficer][officerID]
	if !ok {
		return personnel.Profile{}, shared.ErrNotFound
	}
	p.StationID = stationID
	p.UpdatedAt = m.tick()
	m.state.profiles[personnel.RoleOfficer][officerID] = p
	return p, nil
}

func (m *MemoryRepository) VilleExists(_ context.Context, id int64) (bool, error) {
	return m.villes[id], nil
}

func (m *MemoryRepository) StationExists(_ context.Context, id int64) (bool, error) {
	return m.stations[id], nil
}

func (m *MemoryRepository) save(role personnel.Role, p personnel.Profile, changes *personnel.ProfileChanges) (personnel.Profile, error) {
	next := p
	changes.Apply(&next)
	for id, other := range m.state.profiles[role] {
		if id == p.ID {
			continue
		}
		if same(other.NationalID, next.NationalID) {
			return personnel.Profile{}, &shared.UniquenessViolation{Constraint: role.Table() + "_national_id_key"}
		}
		if same(other.BadgeNumber, next.BadgeNumber) {
			return personnel.Profile{}, &shared.UniquenessViolation{Constraint: role.Table() + "_badge_number_key"}
		}
		if other.BirthCityID != nil && next.BirthCityID != nil && *other.BirthCityID == *next.BirthCityID {
			return personnel.Profile{}, &shared.UniquenessViolation{Constraint: role.Table() + "_birth_city_id_key"}
		}
	}
	next.UpdatedAt = m.tick()
	m.state.profiles[role][p.ID] = next
	return next, nil
}

func same(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

type memoryTx struct {
	repo *MemoryRepository
}

func (t *memoryTx) InsertAccount(_ context.Context, a personnel.Account) (personnel.Account, error) {
	for _, other := range t.repo.state.accounts {
		if other.Username == a.Username {
			return personnel.Account{}, &shared.UniquenessViolation{Constraint: "accounts_username_key"}
		}
	}
	a.ID = t.repo.id()
	a.CreatedAt = t.repo.tick()
	a.UpdatedAt = a.CreatedAt
	t.repo.state.accounts[a.ID] = a
	return a, nil
}

func (t *memoryTx) UpdateAccount(_ context.Context, a personnel.Account) (personnel.Account, error) {
	prev, ok := t.repo.state.accounts[a.ID]
	if !ok {
		return personnel.Account{}, shared.ErrNotFound
	}
	a.Role = prev.Role
	a.CreatedAt = prev.CreatedAt
	a.UpdatedAt = t.repo.tick()
	t.repo.state.accounts[a.ID] = a
	return a, nil
}

func (t *memoryTx) LockAccount(ctx context.Context, id int64) (personnel.Account, error) {
	return t.repo.GetAccount(ctx, id)
}

func (t *memoryTx) InsertProfile(_ context.Context, role personnel.Role, accountID int64) (int64, error) {
	if !role.Valid() {
		return 0, shared.ErrInconsistentRole
	}
	if _, ok := t.repo.state.accounts[accountID]; !ok {
		return 0, &shared.ReferenceError{Field: "account_id"}
	}
	for _, p := range t.repo.state.profiles[role] {
		if p.AccountID == accountID {
			return 0, &shared.UniquenessViolation{Constraint: role.Table() + "_account_id_key"}
		}
	}
	now := t.repo.tick()
	p := personnel.Profile{ID: t.repo.id(), AccountID: accountID, Role: role, CreatedAt: now, UpdatedAt: now}
	t.repo.state.profiles[role][p.ID] = p
	return p.ID, nil
}

func (t *memoryTx) SaveProfile(ctx context.Context, role personnel.Role, accountID int64, changes *personnel.ProfileChanges) error {
	p, err := t.repo.ProfileByAccount(ctx, role, accountID)
	if err != nil {
		return err
	}
	_, err = t.repo.save(role, p, changes)
	return err
}

func (t *memoryTx) RecordAudit(_ context.Context, log shared.AuditLog) error {
	t.repo.state.audits = append(t.repo.state.audits, log)
	return nil
}
