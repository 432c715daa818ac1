package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/platform/db"
	"github.com/police-records/registry/internal/shared"
)

// Repository provides PostgreSQL backed persistence for teams, crimes and offenders.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{db: pool}}
}

// TxRepository exposes the writes that need a transaction.
type TxRepository interface {
	InsertTeam(ctx context.Context, team Team) (Team, error)
	InsertMember(ctx context.Context, teamID, officerID int64) error
	LockTeam(ctx context.Context, id int64) (Team, error)
	DeleteMember(ctx context.Context, teamID, officerID int64) error
	LockCrime(ctx context.Context, id int64) (Crime, error)
	UpdateCrime(ctx context.Context, crime Crime) (Crime, error)
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

type queries struct {
	db db.DBTX
}

// Exists reports whether a referenced row exists.
func (q queries) Exists(ctx context.Context, ref Ref, id int64) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+string(ref)+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// Teams

func (q queries) members(ctx context.Context, teamID int64) ([]int64, error) {
	rows, err := q.db.Query(ctx, `SELECT officer_id FROM investigation_team_members WHERE team_id = $1 ORDER BY officer_id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q queries) team(ctx context.Context, query string, id int64) (Team, error) {
	var t Team
	if err := q.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.SupervisorID, &t.FormedAt); err != nil {
		return Team{}, db.MapError(err)
	}
	members, err := q.members(ctx, t.ID)
	if err != nil {
		return Team{}, err
	}
	t.MemberIDs = members
	return t, nil
}

// GetTeam loads a team with its members.
func (q queries) GetTeam(ctx context.Context, id int64) (Team, error) {
	return q.team(ctx, `SELECT id, name, supervisor_id, formed_at FROM investigation_teams WHERE id = $1`, id)
}

// LockTeam loads a team and locks it until the transaction ends.
func (q queries) LockTeam(ctx context.Context, id int64) (Team, error) {
	return q.team(ctx, `SELECT id, name, supervisor_id, formed_at FROM investigation_teams WHERE id = $1 FOR UPDATE`, id)
}

// ListTeams returns teams oldest first, optionally for one supervisor.
func (q queries) ListTeams(ctx context.Context, supervisorID *int64) ([]Team, error) {
	query := `SELECT t.id, t.name, t.supervisor_id, t.formed_at,
       COALESCE(array_agg(m.officer_id ORDER BY m.officer_id) FILTER (WHERE m.officer_id IS NOT NULL), '{}')
FROM investigation_teams t
LEFT JOIN investigation_team_members m ON m.team_id = t.id`
	var args []any
	if supervisorID != nil {
		query += ` WHERE t.supervisor_id = $1`
		args = append(args, *supervisorID)
	}
	query += ` GROUP BY t.id ORDER BY t.formed_at ASC, t.id ASC`
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cases: list teams: %w", err)
	}
	defer rows.Close()
	teams := []Team{}
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.SupervisorID, &t.FormedAt, &t.MemberIDs); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// InsertTeam writes a team row without members.
func (q queries) InsertTeam(ctx context.Context, t Team) (Team, error) {
	err := q.db.QueryRow(ctx, `INSERT INTO investigation_teams (name, supervisor_id) VALUES ($1, $2) RETURNING id, formed_at`,
		t.Name, t.SupervisorID).Scan(&t.ID, &t.FormedAt)
	if err != nil {
		return Team{}, db.MapError(err)
	}
	return t, nil
}

// UpdateTeam rewrites name and supervisor.
func (q queries) UpdateTeam(ctx context.Context, t Team) (Team, error) {
	tag, err := q.db.Exec(ctx, `UPDATE investigation_teams SET name = $2, supervisor_id = $3 WHERE id = $1`, t.ID, t.Name, t.SupervisorID)
	if err != nil {
		return Team{}, db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return Team{}, shared.ErrNotFound
	}
	return q.GetTeam(ctx, t.ID)
}

// DeleteTeam removes a team; its crime goes with it.
func (q queries) DeleteTeam(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "investigation_teams", id)
}

// InsertMember adds an officer to a team.
func (q queries) InsertMember(ctx context.Context, teamID, officerID int64) error {
	_, err := q.db.Exec(ctx, `INSERT INTO investigation_team_members (team_id, officer_id) VALUES ($1, $2)`, teamID, officerID)
	return db.MapError(err)
}

// DeleteMember removes an officer from a team.
func (q queries) DeleteMember(ctx context.Context, teamID, officerID int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM investigation_team_members WHERE team_id = $1 AND officer_id = $2`, teamID, officerID)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Crimes

const crimeColumns = `id, nature, description, quartier_id, team_id, resolved, resolved_at, committed_at, updated_at`

func scanCrime(row pgx.Row) (Crime, error) {
	var c Crime
	var nature string
	if err := row.Scan(&c.ID, &nature, &c.Description, &c.QuartierID, &c.TeamID, &c.Resolved, &c.ResolvedAt, &c.CommittedAt, &c.UpdatedAt); err != nil {
		return Crime{}, db.MapError(err)
	}
	c.Nature = Nature(nature)
	return c, nil
}

// GetCrime loads one crime.
func (q queries) GetCrime(ctx context.Context, id int64) (Crime, error) {
	return scanCrime(q.db.QueryRow(ctx, `SELECT `+crimeColumns+` FROM crimes WHERE id = $1`, id))
}

// LockCrime loads a crime and locks it until the transaction ends.
func (q queries) LockCrime(ctx context.Context, id int64) (Crime, error) {
	return scanCrime(q.db.QueryRow(ctx, `SELECT `+crimeColumns+` FROM crimes WHERE id = $1 FOR UPDATE`, id))
}

// CrimeForTeam returns the crime assigned to a team, if any.
func (q queries) CrimeForTeam(ctx context.Context, teamID int64) (Crime, bool, error) {
	c, err := scanCrime(q.db.QueryRow(ctx, `SELECT `+crimeColumns+` FROM crimes WHERE team_id = $1`, teamID))
	if errors.Is(err, shared.ErrNotFound) {
		return Crime{}, false, nil
	}
	if err != nil {
		return Crime{}, false, err
	}
	return c, true, nil
}

// ListCrimes returns crimes oldest first.
func (q queries) ListCrimes(ctx context.Context, f CrimeFilter) ([]Crime, error) {
	var where []string
	var args []any
	if f.QuartierID != nil {
		args = append(args, *f.QuartierID)
		where = append(where, fmt.Sprintf("quartier_id = $%d", len(args)))
	}
	if f.TeamID != nil {
		args = append(args, *f.TeamID)
		where = append(where, fmt.Sprintf("team_id = $%d", len(args)))
	}
	if f.Resolved != nil {
		args = append(args, *f.Resolved)
		where = append(where, fmt.Sprintf("resolved = $%d", len(args)))
	}
	query := `SELECT ` + crimeColumns + ` FROM crimes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY committed_at ASC, id ASC`
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cases: list crimes: %w", err)
	}
	defer rows.Close()
	crimes := []Crime{}
	for rows.Next() {
		c, err := scanCrime(rows)
		if err != nil {
			return nil, err
		}
		crimes = append(crimes, c)
	}
	return crimes, rows.Err()
}

// InsertCrime writes a crime.
func (q queries) InsertCrime(ctx context.Context, c Crime) (Crime, error) {
	return scanCrime(q.db.QueryRow(ctx, `INSERT INTO crimes (nature, description, quartier_id, team_id, resolved, resolved_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+crimeColumns,
		string(c.Nature), c.Description, c.QuartierID, c.TeamID, c.Resolved, c.ResolvedAt))
}

// UpdateCrime rewrites a crime and bumps updated_at.
func (q queries) UpdateCrime(ctx context.Context, c Crime) (Crime, error) {
	return scanCrime(q.db.QueryRow(ctx, `UPDATE crimes
SET nature = $2, description = $3, quartier_id = $4, team_id = $5, resolved = $6, resolved_at = $7, updated_at = NOW()
WHERE id = $1
RETURNING `+crimeColumns,
		c.ID, string(c.Nature), c.Description, c.QuartierID, c.TeamID, c.Resolved, c.ResolvedAt))
}

// DeleteCrime removes a crime with its offenders.
func (q queries) DeleteCrime(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "crimes", id)
}

// Offenders

const offenderColumns = `id, last_name, first_name, sex, birth_date, birth_city_id, national_id, phone, photo_key, crime_id, created_at, updated_at`

func scanOffender(row pgx.Row) (Offender, error) {
	var o Offender
	var sex string
	if err := row.Scan(&o.ID, &o.LastName, &o.FirstName, &sex, &o.BirthDate, &o.BirthCityID, &o.NationalID,
		&o.Phone, &o.PhotoKey, &o.CrimeID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Offender{}, db.MapError(err)
	}
	o.Sex = personnel.Sex(sex)
	return o, nil
}

// GetOffender loads one offender.
func (q queries) GetOffender(ctx context.Context, id int64) (Offender, error) {
	return scanOffender(q.db.QueryRow(ctx, `SELECT `+offenderColumns+` FROM offenders WHERE id = $1`, id))
}

// ListOffenders returns offenders oldest first, optionally for one crime.
func (q queries) ListOffenders(ctx context.Context, crimeID *int64) ([]Offender, error) {
	query := `SELECT ` + offenderColumns + ` FROM offenders`
	var args []any
	if crimeID != nil {
		query += ` WHERE crime_id = $1`
		args = append(args, *crimeID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cases: list offenders: %w", err)
	}
	defer rows.Close()
	out := []Offender{}
	for rows.Next() {
		o, err := scanOffender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertOffender writes an offender.
func (q queries) InsertOffender(ctx context.Context, o Offender) (Offender, error) {
	return scanOffender(q.db.QueryRow(ctx, `INSERT INTO offenders (last_name, first_name, sex, birth_date, birth_city_id, national_id, phone, photo_key, crime_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+offenderColumns,
		o.LastName, o.FirstName, string(o.Sex), o.BirthDate, o.BirthCityID, o.NationalID, o.Phone, o.PhotoKey, o.CrimeID))
}

// UpdateOffender rewrites an offender and bumps updated_at.
func (q queries) UpdateOffender(ctx context.Context, o Offender) (Offender, error) {
	return scanOffender(q.db.QueryRow(ctx, `UPDATE offenders
SET last_name = $2, first_name = $3, sex = $4, birth_date = $5, birth_city_id = $6, national_id = $7, phone = $8, photo_key = $9, crime_id = $10, updated_at = NOW()
WHERE id = $1
RETURNING `+offenderColumns,
		o.ID, o.LastName, o.FirstName, string(o.Sex), o.BirthDate, o.BirthCityID, o.NationalID, o.Phone, o.PhotoKey, o.CrimeID))
}

// DeleteOffender removes an offender.
func (q queries) DeleteOffender(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "offenders", id)
}

func (q queries) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
