package jurisdiction

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/police-records/registry/internal/platform/cache"
	"github.com/police-records/registry/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	List(ctx context.Context, level Level, parentID *int64) ([]Node, error)
	Get(ctx context.Context, level Level, id int64) (Node, error)
	Exists(ctx context.Context, level Level, id int64) (bool, error)
	Create(ctx context.Context, node Node) (Node, error)
	Update(ctx context.Context, node Node) (Node, error)
	Delete(ctx context.Context, level Level, id int64) error
	Descendants(ctx context.Context, districtID int64) ([]Node, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service manages the jurisdiction tree.
type Service struct {
	repo   RepositoryPort
	cache  *cache.Cache
	policy DeletePolicy
	logger *slog.Logger
}

// NewService constructs the service. cache may be nil.
func NewService(repo RepositoryPort, c *cache.Cache, policy DeletePolicy, logger *slog.Logger) *Service {
	if policy == "" {
		policy = DeleteCascade
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: c, policy: policy, logger: logger}
}

// List returns the rows of a tier in creation order.
func (s *Service) List(ctx context.Context, level Level, parentID *int64) ([]Node, error) {
	if !level.Valid() {
		return nil, shared.Invalid("level", "unknown jurisdiction level")
	}
	return s.repo.List(ctx, level, parentID)
}

// Get returns one row.
func (s *Service) Get(ctx context.Context, level Level, id int64) (Node, error) {
	if id <= 0 {
		return Node{}, shared.Invalid("id", "must be positive")
	}
	return s.repo.Get(ctx, level, id)
}

// Create validates the node and its parent reference, then inserts it.
func (s *Service) Create(ctx context.Context, node Node) (Node, error) {
	node, err := s.prepare(ctx, node)
	if err != nil {
		return Node{}, err
	}
	created, err := s.repo.Create(ctx, node)
	if err != nil {
		return Node{}, fmt.Errorf("jurisdiction: create %s: %w", node.Level, err)
	}
	s.invalidate(ctx)
	return created, nil
}

// Update validates and rewrites an existing node.
func (s *Service) Update(ctx context.Context, id int64, node Node) (Node, error) {
	if id <= 0 {
		return Node{}, shared.Invalid("id", "must be positive")
	}
	node.ID = id
	node, err := s.prepare(ctx, node)
	if err != nil {
		return Node{}, err
	}
	updated, err := s.repo.Update(ctx, node)
	if err != nil {
		return Node{}, fmt.Errorf("jurisdiction: update %s %d: %w", node.Level, id, err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a node and, through cascade, its whole subtree. Under the
// restrict policy the delete is refused while crimes reference the subtree.
func (s *Service) Delete(ctx context.Context, level Level, id int64) error {
	if !level.Valid() {
		return shared.Invalid("level", "unknown jurisdiction level")
	}
	if id <= 0 {
		return shared.Invalid("id", "must be positive")
	}
	var err error
	if s.policy == DeleteRestrict {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return restrictDelete(ctx, tx, level, id)
		})
	} else {
		err = s.repo.Delete(ctx, level, id)
	}
	if err != nil {
		return fmt.Errorf("jurisdiction: delete %s %d: %w", level, id, err)
	}
	s.logger.Info("jurisdiction deleted", slog.String("level", level.String()), slog.Int64("id", id), slog.String("policy", string(s.policy)))
	s.invalidate(ctx)
	return nil
}

// restrictDelete locks the subtree before counting so no crime can be recorded
// under it between the count and the delete.
func restrictDelete(ctx context.Context, tx TxRepository, level Level, id int64) error {
	if err := tx.LockSubtree(ctx, level, id); err != nil {
		return err
	}
	n, err := tx.CountCrimes(ctx, level, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return &shared.ReferenceError{
			Field:  level.String(),
			Detail: fmt.Sprintf("%d crime(s) recorded under this %s", n, level),
		}
	}
	return tx.Delete(ctx, level, id)
}

// Tree returns a district with its nested descendants.
func (s *Service) Tree(ctx context.Context, districtID int64) (TreeNode, error) {
	if districtID <= 0 {
		return TreeNode{}, shared.Invalid("id", "must be positive")
	}
	key, err := s.cache.BuildKey(ctx, "tree", strconv.FormatInt(districtID, 10))
	if err != nil {
		s.logger.Warn("jurisdiction cache key", slog.Any("error", err))
		return s.loadTree(ctx, districtID)
	}
	var tree TreeNode
	err = s.cache.FetchJSON(ctx, key, &tree, func(ctx context.Context) (any, error) {
		return s.loadTree(ctx, districtID)
	})
	if err != nil {
		return TreeNode{}, err
	}
	return tree, nil
}

func (s *Service) loadTree(ctx context.Context, districtID int64) (TreeNode, error) {
	root, err := s.repo.Get(ctx, LevelDistrict, districtID)
	if err != nil {
		return TreeNode{}, err
	}
	descendants, err := s.repo.Descendants(ctx, districtID)
	if err != nil {
		return TreeNode{}, err
	}
	return BuildTree(root, descendants), nil
}

// BuildTree nests descendants under root. Input order is kept among siblings.
func BuildTree(root Node, descendants []Node) TreeNode {
	type key struct {
		level Level
		id    int64
	}
	children := make(map[key][]Node)
	for _, n := range descendants {
		if n.ParentID == nil {
			continue
		}
		parent := key{level: n.Level.Parent(), id: *n.ParentID}
		children[parent] = append(children[parent], n)
	}
	var build func(Node) TreeNode
	build = func(n Node) TreeNode {
		t := TreeNode{Node: n}
		for _, c := range children[key{level: n.Level, id: n.ID}] {
			t.Children = append(t.Children, build(c))
		}
		return t
	}
	return build(root)
}

func (s *Service) prepare(ctx context.Context, node Node) (Node, error) {
	if err := validateNode(&node); err != nil {
		return Node{}, err
	}
	if node.Level == LevelDistrict {
		return node, nil
	}
	ok, err := s.repo.Exists(ctx, node.Level.Parent(), *node.ParentID)
	if err != nil {
		return Node{}, err
	}
	if !ok {
		return Node{}, shared.MissingReference(node.Level.ParentField())
	}
	return node, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("jurisdiction cache bump", slog.Any("error", err))
	}
}
