package stations

import (
	"time"
	"unicode/utf8"

	"github.com/police-records/registry/internal/shared"
)

// HeadConstraint is the unique index that keeps one station per commissioner.
const HeadConstraint = "stations_head_commissioner_id_key"

const maxNameLen = 60

// Station is a police station located in a ville and headed by one commissioner.
type Station struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	VilleID            int64     `json:"ville_id"`
	HeadCommissionerID int64     `json:"head_commissioner_id"`
	CreatedAt          time.Time `json:"created_at"`
}

func validateStation(s *Station) error {
	s.Name = shared.NormalizeText(s.Name)
	if s.Name == "" {
		return shared.Invalid("name", "is required")
	}
	if utf8.RuneCountInString(s.Name) > maxNameLen {
		return shared.TooLong("name", maxNameLen)
	}
	if s.VilleID <= 0 {
		return shared.Invalid("ville_id", "is required")
	}
	if s.HeadCommissionerID <= 0 {
		return shared.Invalid("head_commissioner_id", "is required")
	}
	return nil
}
