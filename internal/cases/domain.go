package cases

import (
	"strings"
	"time"

	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/shared"
)

// TeamConstraint is the unique index that gives a team at most one crime.
const TeamConstraint = "crimes_team_id_key"

// Team is an investigation team supervised by a commissioner.
type Team struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	SupervisorID int64     `json:"supervisor_id"`
	FormedAt     time.Time `json:"formed_at"`
	MemberIDs    []int64   `json:"member_ids"`
}

// Nature classifies a crime.
type Nature string

const (
	NatureTheft  Nature = "THEFT"
	NatureRape   Nature = "RAPE"
	NatureMurder Nature = "MURDER"
	NatureOther  Nature = "OTHER"
)

// ParseNature validates a nature; empty means theft.
func ParseNature(raw string) (Nature, error) {
	switch n := Nature(strings.ToUpper(strings.TrimSpace(raw))); n {
	case "":
		return NatureTheft, nil
	case NatureTheft, NatureRape, NatureMurder, NatureOther:
		return n, nil
	}
	return "", shared.Invalid("nature", "must be THEFT, RAPE, MURDER or OTHER")
}

// Crime is a recorded offence investigated by one team.
type Crime struct {
	ID          int64      `json:"id"`
	Nature      Nature     `json:"nature"`
	Description string     `json:"description"`
	QuartierID  int64      `json:"quartier_id"`
	TeamID      int64      `json:"team_id"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CommittedAt time.Time  `json:"committed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CrimeFilter narrows ListCrimes.
type CrimeFilter struct {
	QuartierID *int64
	TeamID     *int64
	Resolved   *bool
}

// Offender is a person linked to a crime.
type Offender struct {
	ID          int64         `json:"id"`
	LastName    string        `json:"last_name"`
	FirstName   string        `json:"first_name"`
	Sex         personnel.Sex `json:"sex"`
	BirthDate   time.Time     `json:"birth_date"`
	BirthCityID *int64        `json:"birth_city_id"`
	NationalID  string        `json:"national_id"`
	Phone       string        `json:"phone"`
	PhotoKey    string        `json:"photo_key"`
	CrimeID     int64         `json:"crime_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Ref names a table referenced by case records.
type Ref string

const (
	RefQuartier     Ref = "quartiers"
	RefVille        Ref = "villes"
	RefCommissioner Ref = "commissioner_profiles"
	RefOfficer      Ref = "officer_profiles"
	RefTeam         Ref = "investigation_teams"
	RefCrime        Ref = "crimes"
)

// resolvedAt returns the resolution timestamp after a write that moves the
// resolved flag from wasResolved to resolved. A crime that stays resolved
// keeps its original timestamp.
func resolvedAt(wasResolved bool, prev *time.Time, resolved bool, now time.Time) *time.Time {
	switch {
	case !resolved:
		return nil
	case wasResolved && prev != nil:
		return prev
	default:
		t := now
		return &t
	}
}
