package jurisdiction

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/police-records/registry/internal/platform/db"
	"github.com/police-records/registry/internal/shared"
)

// Repository provides PostgreSQL backed persistence for every tier.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{db: pool}}
}

// TxRepository exposes the statements a guarded delete runs in one transaction.
type TxRepository interface {
	LockSubtree(ctx context.Context, level Level, id int64) error
	CountCrimes(ctx context.Context, level Level, id int64) (int, error)
	Delete(ctx context.Context, level Level, id int64) error
}

type txRepo struct {
	queries
}

// WithTx wraps callback in a read-committed transaction, so statements issued
// after LockSubtree see every crime committed before the locks were granted.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{queries: queries{db: tx}})
	})
}

// queries holds the statements shared by the pool and transaction views.
type queries struct {
	db db.DBTX
}

func selectColumns(level Level) string {
	switch level {
	case LevelDistrict:
		return "id, name, description, NULL::BIGINT, created_at"
	default:
		return "id, name, NULL::TEXT, " + level.ParentField() + ", created_at"
	}
}

func scanNode(level Level, row pgx.Row) (Node, error) {
	n := Node{Level: level}
	if err := row.Scan(&n.ID, &n.Name, &n.Description, &n.ParentID, &n.CreatedAt); err != nil {
		return Node{}, err
	}
	return n, nil
}

// List returns the rows of a tier, optionally restricted to one parent, oldest first.
func (q queries) List(ctx context.Context, level Level, parentID *int64) ([]Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, selectColumns(level), level.table())
	var args []any
	if parentID != nil && level != LevelDistrict {
		query += fmt.Sprintf(` WHERE %s = $1`, level.ParentField())
		args = append(args, *parentID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jurisdiction: list %s: %w", level, err)
	}
	defer rows.Close()

	nodes := []Node{}
	for rows.Next() {
		n, err := scanNode(level, rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Get loads one row.
func (q queries) Get(ctx context.Context, level Level, id int64) (Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns(level), level.table())
	n, err := scanNode(level, q.db.QueryRow(ctx, query, id))
	if err != nil {
		return Node{}, db.MapError(err)
	}
	return n, nil
}

// Exists reports whether a row of the tier has the given id.
func (q queries) Exists(ctx context.Context, level Level, id int64) (bool, error) {
	var ok bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, level.table())
	if err := q.db.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Create inserts a row and returns it with id and timestamp.
func (q queries) Create(ctx context.Context, node Node) (Node, error) {
	var row pgx.Row
	if node.Level == LevelDistrict {
		row = q.db.QueryRow(ctx,
			`INSERT INTO districts (name, description) VALUES ($1, $2) RETURNING id, created_at`,
			node.Name, node.Description)
	} else {
		query := fmt.Sprintf(`INSERT INTO %s (name, %s) VALUES ($1, $2) RETURNING id, created_at`,
			node.Level.table(), node.Level.ParentField())
		row = q.db.QueryRow(ctx, query, node.Name, node.ParentID)
	}
	if err := row.Scan(&node.ID, &node.CreatedAt); err != nil {
		return Node{}, db.MapError(err)
	}
	return node, nil
}

// Update rewrites name/description/parent of an existing row.
func (q queries) Update(ctx context.Context, node Node) (Node, error) {
	var row pgx.Row
	if node.Level == LevelDistrict {
		row = q.db.QueryRow(ctx,
			`UPDATE districts SET name = $1, description = $2 WHERE id = $3 RETURNING created_at`,
			node.Name, node.Description, node.ID)
	} else {
		query := fmt.Sprintf(`UPDATE %s SET name = $1, %s = $2 WHERE id = $3 RETURNING created_at`,
			node.Level.table(), node.Level.ParentField())
		row = q.db.QueryRow(ctx, query, node.Name, node.ParentID, node.ID)
	}
	if err := row.Scan(&node.CreatedAt); err != nil {
		return Node{}, db.MapError(err)
	}
	return node, nil
}

// Delete removes a row; descendants go with it through ON DELETE CASCADE.
func (q queries) Delete(ctx context.Context, level Level, id int64) error {
	tag, err := q.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, level.table()), id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// crimeScope joins crimes up to the tier whose id is bound to $1.
var crimeScope = map[Level]string{
	LevelQuartier: `FROM crimes c WHERE c.quartier_id = $1`,
	LevelSecteur: `FROM crimes c
		JOIN quartiers q ON q.id = c.quartier_id
		WHERE q.secteur_id = $1`,
	LevelVille: `FROM crimes c
		JOIN quartiers q ON q.id = c.quartier_id
		JOIN secteurs s ON s.id = q.secteur_id
		WHERE s.ville_id = $1`,
	LevelRegion: `FROM crimes c
		JOIN quartiers q ON q.id = c.quartier_id
		JOIN secteurs s ON s.id = q.secteur_id
		JOIN villes v ON v.id = s.ville_id
		WHERE v.region_id = $1`,
	LevelDistrict: `FROM crimes c
		JOIN quartiers q ON q.id = c.quartier_id
		JOIN secteurs s ON s.id = q.secteur_id
		JOIN villes v ON v.id = s.ville_id
		JOIN regions r ON r.id = v.region_id
		WHERE r.district_id = $1`,
}

// lockStatements returns one statement per tier, from level down to quartiers,
// each locking the rows of that tier inside the subtree rooted at $1.
func lockStatements(level Level) []string {
	stmts := []string{fmt.Sprintf(`SELECT id FROM %s WHERE id = $1 FOR UPDATE`, level.table())}
	for below := level.Child(); below != ""; below = below.Child() {
		from := fmt.Sprintf(`FROM %s t0`, below.table())
		alias, cur := "t0", below
		for i := 1; cur.Parent() != level; i++ {
			next := fmt.Sprintf("t%d", i)
			from += fmt.Sprintf(` JOIN %s %s ON %s.id = %s.%s`, cur.Parent().table(), next, next, alias, cur.ParentField())
			alias, cur = next, cur.Parent()
		}
		stmts = append(stmts, fmt.Sprintf(`SELECT t0.id %s WHERE %s.%s = $1 FOR UPDATE OF t0`, from, alias, cur.ParentField()))
	}
	return stmts
}

// LockSubtree takes row locks on a row and everything below it. A crime
// insert into a locked quartier waits on its foreign key check until the
// locking transaction ends.
func (q queries) LockSubtree(ctx context.Context, level Level, id int64) error {
	stmts := lockStatements(level)
	var locked int64
	if err := q.db.QueryRow(ctx, stmts[0], id).Scan(&locked); err != nil {
		return db.MapError(err)
	}
	for _, stmt := range stmts[1:] {
		if _, err := q.db.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("jurisdiction: lock %s subtree: %w", level, db.MapError(err))
		}
	}
	return nil
}

// CountCrimes counts crimes recorded in quartiers under the given row.
func (q queries) CountCrimes(ctx context.Context, level Level, id int64) (int, error) {
	var n int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) `+crimeScope[level], id).Scan(&n); err != nil {
		return 0, fmt.Errorf("jurisdiction: count crimes: %w", err)
	}
	return n, nil
}

const subtreeQuery = `
SELECT 'region', r.id, r.name, r.district_id, r.created_at
FROM regions r WHERE r.district_id = $1
UNION ALL
SELECT 'ville', v.id, v.name, v.region_id, v.created_at
FROM villes v JOIN regions r ON r.id = v.region_id
WHERE r.district_id = $1
UNION ALL
SELECT 'secteur', s.id, s.name, s.ville_id, s.created_at
FROM secteurs s JOIN villes v ON v.id = s.ville_id JOIN regions r ON r.id = v.region_id
WHERE r.district_id = $1
UNION ALL
SELECT 'quartier', q.id, q.name, q.secteur_id, q.created_at
FROM quartiers q JOIN secteurs s ON s.id = q.secteur_id JOIN villes v ON v.id = s.ville_id JOIN regions r ON r.id = v.region_id
WHERE r.district_id = $1
ORDER BY 5 ASC, 2 ASC`

// Descendants returns every row below a district in creation order.
func (q queries) Descendants(ctx context.Context, districtID int64) ([]Node, error) {
	rows, err := q.db.Query(ctx, subtreeQuery, districtID)
	if err != nil {
		return nil, fmt.Errorf("jurisdiction: descendants: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var (
			n      Node
			level  string
			parent int64
		)
		if err := rows.Scan(&level, &n.ID, &n.Name, &parent, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Level = Level(level)
		n.ParentID = &parent
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
