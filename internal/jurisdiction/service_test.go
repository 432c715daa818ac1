package jurisdiction

import (
	"context"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/police-records/registry/internal/platform/cache"
	"github.com/police-records/registry/internal/shared"
)

type memoryRepo struct {
	nodes           map[Level]map[int64]Node
	crimes          map[int64]int // quartier id -> crimes
	nextID          int64
	clock           time.Time
	descendantCalls int
	txOps           []string
}

func newMemoryRepo() *memoryRepo {
	m := &memoryRepo{nodes: map[Level]map[int64]Node{}, crimes: map[int64]int{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, l := range Levels {
		m.nodes[l] = map[int64]Node{}
	}
	return m
}

func (m *memoryRepo) List(_ context.Context, level Level, parentID *int64) ([]Node, error) {
	out := []Node{}
	for _, n := range m.nodes[level] {
		if parentID != nil && (n.ParentID == nil || *n.ParentID != *parentID) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, level Level, id int64) (Node, error) {
	n, ok := m.nodes[level][id]
	if !ok {
		return Node{}, shared.ErrNotFound
	}
	return n, nil
}

func (m *memoryRepo) Exists(_ context.Context, level Level, id int64) (bool, error) {
	_, ok := m.nodes[level][id]
	return ok, nil
}

func (m *memoryRepo) Create(_ context.Context, node Node) (Node, error) {
	m.nextID++
	m.clock = m.clock.Add(time.Minute)
	node.ID = m.nextID
	node.CreatedAt = m.clock
	m.nodes[node.Level][node.ID] = node
	return node, nil
}

func (m *memoryRepo) Update(_ context.Context, node Node) (Node, error) {
	old, ok := m.nodes[node.Level][node.ID]
	if !ok {
		return Node{}, shared.ErrNotFound
	}
	node.CreatedAt = old.CreatedAt
	m.nodes[node.Level][node.ID] = node
	return node, nil
}

// Delete mirrors ON DELETE CASCADE, including crimes under removed quartiers.
func (m *memoryRepo) Delete(_ context.Context, level Level, id int64) error {
	if _, ok := m.nodes[level][id]; !ok {
		return shared.ErrNotFound
	}
	m.cascade(level, id)
	return nil
}

func (m *memoryRepo) cascade(level Level, id int64) {
	delete(m.nodes[level], id)
	if level == LevelQuartier {
		delete(m.crimes, id)
		return
	}
	child := level.Child()
	for cid, c := range m.nodes[child] {
		if c.ParentID != nil && *c.ParentID == id {
			m.cascade(child, cid)
		}
	}
}

func (m *memoryRepo) quartiersUnder(level Level, id int64) []int64 {
	if level == LevelQuartier {
		return []int64{id}
	}
	var out []int64
	child := level.Child()
	for cid, c := range m.nodes[child] {
		if c.ParentID != nil && *c.ParentID == id {
			out = append(out, m.quartiersUnder(child, cid)...)
		}
	}
	return out
}

func (m *memoryRepo) CountCrimes(_ context.Context, level Level, id int64) (int, error) {
	total := 0
	for _, q := range m.quartiersUnder(level, id) {
		total += m.crimes[q]
	}
	return total, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.txOps = nil
	return fn(ctx, &memoryTx{repo: m})
}

// memoryTx records the statement order of a guarded delete.
type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) LockSubtree(_ context.Context, level Level, id int64) error {
	t.repo.txOps = append(t.repo.txOps, "lock")
	if _, ok := t.repo.nodes[level][id]; !ok {
		return shared.ErrNotFound
	}
	return nil
}

func (t *memoryTx) CountCrimes(ctx context.Context, level Level, id int64) (int, error) {
	t.repo.txOps = append(t.repo.txOps, "count")
	return t.repo.CountCrimes(ctx, level, id)
}

func (t *memoryTx) Delete(ctx context.Context, level Level, id int64) error {
	t.repo.txOps = append(t.repo.txOps, "delete")
	return t.repo.Delete(ctx, level, id)
}

func (m *memoryRepo) Descendants(_ context.Context, districtID int64) ([]Node, error) {
	m.descendantCalls++
	var out []Node
	var walk func(Level, int64)
	walk = func(level Level, id int64) {
		child := level.Child()
		if child == "" {
			return
		}
		for _, c := range m.nodes[child] {
			if c.ParentID != nil && *c.ParentID == id {
				out = append(out, c)
				walk(child, c.ID)
			}
		}
	}
	walk(LevelDistrict, districtID)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type chain struct {
	district, region, ville, secteur, quartier Node
}

func seedChain(t *testing.T, svc *Service) chain {
	t.Helper()
	ctx := context.Background()
	var c chain
	var err error
	c.district, err = svc.Create(ctx, Node{Level: LevelDistrict, Name: "Centre"})
	require.NoError(t, err)
	c.region, err = svc.Create(ctx, Node{Level: LevelRegion, Name: "Mfoundi", ParentID: &c.district.ID})
	require.NoError(t, err)
	c.ville, err = svc.Create(ctx, Node{Level: LevelVille, Name: "Yaoundé", ParentID: &c.region.ID})
	require.NoError(t, err)
	c.secteur, err = svc.Create(ctx, Node{Level: LevelSecteur, Name: "Yaoundé I", ParentID: &c.ville.ID})
	require.NoError(t, err)
	c.quartier, err = svc.Create(ctx, Node{Level: LevelQuartier, Name: "Bastos", ParentID: &c.secteur.ID})
	require.NoError(t, err)
	return c
}

func TestCreateRejectsMissingParent(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, DeleteCascade, nil)
	missing := int64(99)

	_, err := svc.Create(context.Background(), Node{Level: LevelRegion, Name: "Orphan", ParentID: &missing})

	require.ErrorIs(t, err, shared.ErrReferentialIntegrity)
	assert.Contains(t, err.Error(), "district_id")
}

func TestCreateRequiresParentReference(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, DeleteCascade, nil)
	_, err := svc.Create(context.Background(), Node{Level: LevelVille, Name: "Douala"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateNormalisesName(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, DeleteCascade, nil)
	// "e" followed by a combining acute accent composes to a single rune.
	node, err := svc.Create(context.Background(), Node{Level: LevelDistrict, Name: "  Ye\u0301ka  "})
	require.NoError(t, err)
	assert.Equal(t, "Y\u00e9ka", node.Name)

	_, err = svc.Create(context.Background(), Node{Level: LevelDistrict, Name: "   "})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestListOrdersByCreation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, DeleteCascade, nil)
	ctx := context.Background()
	for _, name := range []string{"Nord", "Sud", "Est"} {
		_, err := svc.Create(ctx, Node{Level: LevelDistrict, Name: name})
		require.NoError(t, err)
	}

	nodes, err := svc.List(ctx, LevelDistrict, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"Nord", "Sud", "Est"}, []string{nodes[0].Name, nodes[1].Name, nodes[2].Name})
}

func TestDeleteDistrictCascades(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, DeleteCascade, nil)
	c := seedChain(t, svc)
	repo.crimes[c.quartier.ID] = 2

	require.NoError(t, svc.Delete(context.Background(), LevelDistrict, c.district.ID))

	for _, l := range Levels {
		assert.Empty(t, repo.nodes[l], "level %s should be empty", l)
	}
	assert.Empty(t, repo.crimes)
}

func TestDeleteRestrictRejectsWhenCrimesExist(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, DeleteRestrict, nil)
	c := seedChain(t, svc)
	repo.crimes[c.quartier.ID] = 1

	err := svc.Delete(context.Background(), LevelDistrict, c.district.ID)

	require.ErrorIs(t, err, shared.ErrReferentialIntegrity)
	assert.Len(t, repo.nodes[LevelQuartier], 1)

	delete(repo.crimes, c.quartier.ID)
	require.NoError(t, svc.Delete(context.Background(), LevelDistrict, c.district.ID))
	assert.Empty(t, repo.nodes[LevelRegion])
}

func TestDeleteRestrictLocksSubtreeBeforeCounting(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, DeleteRestrict, nil)
	c := seedChain(t, svc)
	repo.crimes[c.quartier.ID] = 3

	err := svc.Delete(context.Background(), LevelVille, c.ville.ID)
	require.ErrorIs(t, err, shared.ErrReferentialIntegrity)
	assert.Contains(t, err.Error(), "3 crime(s)")
	assert.Equal(t, []string{"lock", "count"}, repo.txOps)

	delete(repo.crimes, c.quartier.ID)
	require.NoError(t, svc.Delete(context.Background(), LevelVille, c.ville.ID))
	assert.Equal(t, []string{"lock", "count", "delete"}, repo.txOps)
	assert.Empty(t, repo.nodes[LevelQuartier])
	assert.Len(t, repo.nodes[LevelRegion], 1)

	err = svc.Delete(context.Background(), LevelVille, c.ville.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, []string{"lock"}, repo.txOps)
}

func TestLockStatementsCoverEveryTierBelow(t *testing.T) {
	stmts := lockStatements(LevelRegion)
	require.Len(t, stmts, 4)
	assert.Equal(t, `SELECT id FROM regions WHERE id = $1 FOR UPDATE`, stmts[0])
	assert.Equal(t, `SELECT t0.id FROM villes t0 WHERE t0.region_id = $1 FOR UPDATE OF t0`, stmts[1])
	assert.Equal(t,
		`SELECT t0.id FROM quartiers t0 JOIN secteurs t1 ON t1.id = t0.secteur_id JOIN villes t2 ON t2.id = t1.ville_id WHERE t2.region_id = $1 FOR UPDATE OF t0`,
		stmts[3])

	assert.Len(t, lockStatements(LevelQuartier), 1)
	assert.Len(t, lockStatements(LevelDistrict), 5)
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, DeleteCascade, nil)
	assert.ErrorIs(t, svc.Delete(context.Background(), LevelSecteur, 42), shared.ErrNotFound)
}

func TestTreeNestsDescendants(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, DeleteCascade, nil)
	c := seedChain(t, svc)

	tree, err := svc.Tree(context.Background(), c.district.ID)
	require.NoError(t, err)

	require.Len(t, tree.Children, 1)
	region := tree.Children[0]
	assert.Equal(t, c.region.ID, region.ID)
	require.Len(t, region.Children, 1)
	ville := region.Children[0]
	require.Len(t, ville.Children, 1)
	secteur := ville.Children[0]
	require.Len(t, secteur.Children, 1)
	assert.Equal(t, "Bastos", secteur.Children[0].Name)
}

func TestTreeIsCachedUntilWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	svc := NewService(repo, cache.NewCache(client, "jurisdiction", time.Minute), DeleteCascade, nil)
	c := seedChain(t, svc)
	ctx := context.Background()

	_, err := svc.Tree(ctx, c.district.ID)
	require.NoError(t, err)
	_, err = svc.Tree(ctx, c.district.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.descendantCalls)

	_, err = svc.Create(ctx, Node{Level: LevelQuartier, Name: "Etoudi", ParentID: &c.secteur.ID})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx, c.district.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.descendantCalls)
	assert.Len(t, tree.Children[0].Children[0].Children[0].Children, 2)
}

func TestParseDeletePolicy(t *testing.T) {
	p, err := ParseDeletePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DeleteCascade, p)

	p, err = ParseDeletePolicy("restrict")
	require.NoError(t, err)
	assert.Equal(t, DeleteRestrict, p)

	_, err = ParseDeletePolicy("nullify")
	assert.Error(t, err)
}
