package personnel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/police-records/registry/internal/platform/db"
	"github.com/police-records/registry/internal/shared"
)

// Repository provides PostgreSQL backed persistence for accounts and profiles.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{db: pool}}
}

// TxRepository exposes the writes that run inside an account transaction.
type TxRepository interface {
	ProfileStore
	InsertAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, account Account) (Account, error)
	LockAccount(ctx context.Context, id int64) (Account, error)
}

type txRepo struct {
	queries
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{queries: queries{db: tx}})
	})
}

// queries holds the statements shared by the pool and transaction views.
type queries struct {
	db db.DBTX
}

const accountColumns = `id, username, email, first_name, last_name, password_hash, role, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var role string
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, db.MapError(err)
	}
	a.Role = Role(role)
	return a, nil
}

// GetAccount loads one account.
func (q queries) GetAccount(ctx context.Context, id int64) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// LockAccount loads an account and locks its row until the transaction ends.
func (q queries) LockAccount(ctx context.Context, id int64) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// ListAccounts returns accounts oldest first, optionally for one role.
func (q queries) ListAccounts(ctx context.Context, role *Role) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var args []any
	if role != nil {
		query += ` WHERE role = $1`
		args = append(args, string(*role))
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("personnel: list accounts: %w", err)
	}
	defer rows.Close()
	accounts := []Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// InsertAccount writes a new account row.
func (q queries) InsertAccount(ctx context.Context, a Account) (Account, error) {
	err := q.db.QueryRow(ctx, `INSERT INTO accounts (username, email, first_name, last_name, password_hash, role, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`,
		a.Username, a.Email, a.FirstName, a.LastName, a.PasswordHash, string(a.Role), a.IsActive,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, db.MapError(err)
	}
	return a, nil
}

// UpdateAccount rewrites the mutable account columns. The role column is never touched.
func (q queries) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	err := q.db.QueryRow(ctx, `UPDATE accounts
SET username = $2, email = $3, first_name = $4, last_name = $5, password_hash = $6, is_active = $7, updated_at = NOW()
WHERE id = $1
RETURNING created_at, updated_at`,
		a.ID, a.Username, a.Email, a.FirstName, a.LastName, a.PasswordHash, a.IsActive,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, db.MapError(err)
	}
	return a, nil
}

// DeleteAccount removes an account; its profile goes with it.
func (q queries) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func profileColumns(role Role) string {
	badge, station := "NULL::TEXT", "NULL::BIGINT"
	if role.HasBadge() {
		badge = "badge_number"
	}
	if role == RoleOfficer {
		station = "station_id"
	}
	return `id, account_id, sex, birth_date, birth_city_id, national_id, phone, address, photo_key, ` +
		badge + `, ` + station + `, created_at, updated_at`
}

func scanProfile(role Role, row pgx.Row) (Profile, error) {
	p := Profile{Role: role}
	var sex *string
	if err := row.Scan(&p.ID, &p.AccountID, &sex, &p.BirthDate, &p.BirthCityID, &p.NationalID, &p.Phone,
		&p.Address, &p.PhotoKey, &p.BadgeNumber, &p.StationID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, db.MapError(err)
	}
	if sex != nil {
		s := Sex(*sex)
		p.Sex = &s
	}
	return p, nil
}

// GetProfile loads a profile by its own id.
func (q queries) GetProfile(ctx context.Context, role Role, id int64) (Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, profileColumns(role), role.Table())
	return scanProfile(role, q.db.QueryRow(ctx, query, id))
}

// ProfileByAccount loads the profile owned by an account.
func (q queries) ProfileByAccount(ctx context.Context, role Role, accountID int64) (Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE account_id = $1`, profileColumns(role), role.Table())
	return scanProfile(role, q.db.QueryRow(ctx, query, accountID))
}

// ListProfiles returns every profile of a subtype, oldest first.
func (q queries) ListProfiles(ctx context.Context, role Role) ([]Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at ASC, id ASC`, profileColumns(role), role.Table())
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("personnel: list %s profiles: %w", role, err)
	}
	defer rows.Close()
	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(role, rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// InsertProfile provisions an empty profile for an account.
func (q queries) InsertProfile(ctx context.Context, role Role, accountID int64) (int64, error) {
	if !role.Valid() {
		return 0, shared.ErrInconsistentRole
	}
	var id int64
	query := fmt.Sprintf(`INSERT INTO %s (account_id) VALUES ($1) RETURNING id`, role.Table())
	if err := q.db.QueryRow(ctx, query, accountID).Scan(&id); err != nil {
		return 0, db.MapError(err)
	}
	return id, nil
}

// SaveProfile persists changes on the profile owned by accountID and bumps
// updated_at. It returns shared.ErrNotFound when the account has no profile.
func (q queries) SaveProfile(ctx context.Context, role Role, accountID int64, changes *ProfileChanges) error {
	sets, args, err := profileAssignments(role, changes, 2)
	if err != nil {
		return err
	}
	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE account_id = $1`, role.Table(), strings.Join(sets, ", "))
	tag, err := q.db.Exec(ctx, query, append([]any{accountID}, args...)...)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateProfile persists changes on a profile addressed by its own id.
func (q queries) UpdateProfile(ctx context.Context, role Role, id int64, changes *ProfileChanges) (Profile, error) {
	sets, args, err := profileAssignments(role, changes, 2)
	if err != nil {
		return Profile{}, err
	}
	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 RETURNING %s`,
		role.Table(), strings.Join(sets, ", "), profileColumns(role))
	return scanProfile(role, q.db.QueryRow(ctx, query, append([]any{id}, args...)...))
}

// SetOfficerStation attaches an officer to a station, or detaches it when stationID is nil.
func (q queries) SetOfficerStation(ctx context.Context, officerID int64, stationID *int64) (Profile, error) {
	query := `UPDATE officer_profiles SET station_id = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + profileColumns(RoleOfficer)
	return scanProfile(RoleOfficer, q.db.QueryRow(ctx, query, officerID, stationID))
}

// VilleExists reports whether a ville row exists.
func (q queries) VilleExists(ctx context.Context, id int64) (bool, error) {
	return q.exists(ctx, "villes", id)
}

// StationExists reports whether a station row exists.
func (q queries) StationExists(ctx context.Context, id int64) (bool, error) {
	return q.exists(ctx, "stations", id)
}

func (q queries) exists(ctx context.Context, table string, id int64) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// RecordAudit writes an audit entry through the same connection.
func (q queries) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(q.db).Record(ctx, log)
}

func profileAssignments(role Role, c *ProfileChanges, first int) ([]string, []any, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, first+len(args)))
		args = append(args, value)
	}
	if c == nil {
		return sets, args, nil
	}
	if c.Sex != nil {
		add("sex", string(*c.Sex))
	}
	if c.BirthDate != nil {
		add("birth_date", dateOnly(*c.BirthDate))
	}
	if c.BirthCityID != nil {
		add("birth_city_id", *c.BirthCityID)
	}
	if c.NationalID != nil {
		add("national_id", *c.NationalID)
	}
	if c.Phone != nil {
		add("phone", *c.Phone)
	}
	if c.Address != nil {
		add("address", *c.Address)
	}
	if c.PhotoKey != nil {
		add("photo_key", *c.PhotoKey)
	}
	if c.BadgeNumber != nil {
		if !role.HasBadge() {
			return nil, nil, shared.Invalid("badge_number", "only commissioners and officers carry a badge")
		}
		add("badge_number", *c.BadgeNumber)
	}
	if c.StationID != nil {
		if role != RoleOfficer {
			return nil, nil, shared.Invalid("station_id", "only officers are attached to a station")
		}
		add("station_id", *c.StationID)
	}
	return sets, args, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
