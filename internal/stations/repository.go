package stations

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/police-records/registry/internal/platform/db"
	"github.com/police-records/registry/internal/shared"
)

// Repository provides PostgreSQL backed persistence for stations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const stationColumns = `id, name, ville_id, head_commissioner_id, created_at`

func scanStation(row pgx.Row) (Station, error) {
	var s Station
	if err := row.Scan(&s.ID, &s.Name, &s.VilleID, &s.HeadCommissionerID, &s.CreatedAt); err != nil {
		return Station{}, db.MapError(err)
	}
	return s, nil
}

// List returns stations oldest first, optionally within one ville.
func (r *Repository) List(ctx context.Context, villeID *int64) ([]Station, error) {
	query := `SELECT ` + stationColumns + ` FROM stations`
	var args []any
	if villeID != nil {
		query += ` WHERE ville_id = $1`
		args = append(args, *villeID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stations: list: %w", err)
	}
	defer rows.Close()
	out := []Station{}
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads one station.
func (r *Repository) Get(ctx context.Context, id int64) (Station, error) {
	return scanStation(r.pool.QueryRow(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = $1`, id))
}

// HeadedBy returns the station a commissioner heads, if any.
func (r *Repository) HeadedBy(ctx context.Context, commissionerID int64) (Station, bool, error) {
	s, err := scanStation(r.pool.QueryRow(ctx, `SELECT `+stationColumns+` FROM stations WHERE head_commissioner_id = $1`, commissionerID))
	if errors.Is(err, shared.ErrNotFound) {
		return Station{}, false, nil
	}
	if err != nil {
		return Station{}, false, err
	}
	return s, true, nil
}

// Create inserts a station.
func (r *Repository) Create(ctx context.Context, s Station) (Station, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO stations (name, ville_id, head_commissioner_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
		s.Name, s.VilleID, s.HeadCommissionerID).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return Station{}, db.MapError(err)
	}
	return s, nil
}

// Update rewrites a station.
func (r *Repository) Update(ctx context.Context, s Station) (Station, error) {
	return scanStation(r.pool.QueryRow(ctx, `UPDATE stations SET name = $2, ville_id = $3, head_commissioner_id = $4 WHERE id = $1 RETURNING `+stationColumns,
		s.ID, s.Name, s.VilleID, s.HeadCommissionerID))
}

// SetHead changes the head commissioner of a station.
func (r *Repository) SetHead(ctx context.Context, id, commissionerID int64) (Station, error) {
	return scanStation(r.pool.QueryRow(ctx, `UPDATE stations SET head_commissioner_id = $2 WHERE id = $1 RETURNING `+stationColumns, id, commissionerID))
}

// Delete removes a station; its officers are detached.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stations WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// VilleExists reports whether a ville row exists.
func (r *Repository) VilleExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "villes", id)
}

// CommissionerExists reports whether a commissioner profile exists.
func (r *Repository) CommissionerExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, "commissioner_profiles", id)
}

func (r *Repository) exists(ctx context.Context, table string, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}
