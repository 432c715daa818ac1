package jurisdiction

import (
	"unicode/utf8"

	"github.com/police-records/registry/internal/shared"
)

const (
	maxNameLen        = 60
	maxDescriptionLen = 200
)

func validateNode(n *Node) error {
	if !n.Level.Valid() {
		return shared.Invalid("level", "unknown jurisdiction level")
	}
	n.Name = shared.NormalizeText(n.Name)
	if n.Name == "" {
		return shared.Invalid("name", "is required")
	}
	if utf8.RuneCountInString(n.Name) > maxNameLen {
		return shared.TooLong("name", maxNameLen)
	}
	if n.Level == LevelDistrict {
		n.ParentID = nil
		if n.Description != nil {
			d := shared.NormalizeText(*n.Description)
			if utf8.RuneCountInString(d) > maxDescriptionLen {
				return shared.TooLong("description", maxDescriptionLen)
			}
			n.Description = &d
		}
		return nil
	}
	n.Description = nil
	if n.ParentID == nil || *n.ParentID <= 0 {
		return shared.Invalid(n.Level.ParentField(), "is required")
	}
	return nil
}
