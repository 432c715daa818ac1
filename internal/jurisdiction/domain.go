package jurisdiction

import (
	"fmt"
	"time"
)

// Level names one tier of the District > Region > Ville > Secteur > Quartier tree.
type Level string

const (
	LevelDistrict Level = "district"
	LevelRegion   Level = "region"
	LevelVille    Level = "ville"
	LevelSecteur  Level = "secteur"
	LevelQuartier Level = "quartier"
)

// Levels lists the tiers from root to leaf.
var Levels = []Level{LevelDistrict, LevelRegion, LevelVille, LevelSecteur, LevelQuartier}

type levelSpec struct {
	table        string
	parent       Level
	parentColumn string
}

var specs = map[Level]levelSpec{
	LevelDistrict: {table: "districts"},
	LevelRegion:   {table: "regions", parent: LevelDistrict, parentColumn: "district_id"},
	LevelVille:    {table: "villes", parent: LevelRegion, parentColumn: "region_id"},
	LevelSecteur:  {table: "secteurs", parent: LevelVille, parentColumn: "ville_id"},
	LevelQuartier: {table: "quartiers", parent: LevelSecteur, parentColumn: "secteur_id"},
}

// Valid reports whether l is a known tier.
func (l Level) Valid() bool {
	_, ok := specs[l]
	return ok
}

// Parent returns the tier above l; empty for districts.
func (l Level) Parent() Level { return specs[l].parent }

// Child returns the tier below l; empty for quartiers.
func (l Level) Child() Level {
	for i, lvl := range Levels {
		if lvl == l && i+1 < len(Levels) {
			return Levels[i+1]
		}
	}
	return ""
}

// ParentField is the JSON/column name of the parent reference.
func (l Level) ParentField() string { return specs[l].parentColumn }

func (l Level) table() string { return specs[l].table }

func (l Level) String() string { return string(l) }

// Node is one row of any tier. Districts carry a description and no parent.
type Node struct {
	ID          int64     `json:"id"`
	Level       Level     `json:"level"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TreeNode is a node with its direct children.
type TreeNode struct {
	Node
	Children []TreeNode `json:"children,omitempty"`
}

// DeletePolicy decides what happens to crimes recorded under a deleted subtree.
type DeletePolicy string

const (
	// DeleteCascade removes crimes (and their offenders) with the quartiers they reference.
	DeleteCascade DeletePolicy = "cascade"
	// DeleteRestrict rejects the delete while any crime references the subtree.
	DeleteRestrict DeletePolicy = "restrict"
)

// ParseDeletePolicy validates a configured policy; empty means cascade.
func ParseDeletePolicy(raw string) (DeletePolicy, error) {
	switch DeletePolicy(raw) {
	case "", DeleteCascade:
		return DeleteCascade, nil
	case DeleteRestrict:
		return DeleteRestrict, nil
	default:
		return "", fmt.Errorf("jurisdiction: unknown delete policy %q", raw)
	}
}
