package personnel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/police-records/registry/internal/shared"
)

// Role selects which profile subtype an account owns.
type Role string

const (
	RoleMinistry     Role = "MINISTRY"
	RoleCommissioner Role = "COMMISSIONER"
	RoleOfficer      Role = "OFFICER"
)

// Roles lists every role in code order.
var Roles = []Role{RoleMinistry, RoleCommissioner, RoleOfficer}

var roleCodes = map[string]Role{
	"1": RoleMinistry,
	"2": RoleCommissioner,
	"3": RoleOfficer,
}

var roleTables = map[Role]string{
	RoleMinistry:     "ministry_profiles",
	RoleCommissioner: "commissioner_profiles",
	RoleOfficer:      "officer_profiles",
}

// ParseRole accepts the numeric codes 1, 2 and 3 or a role name in any case.
func ParseRole(raw string) (Role, error) {
	raw = strings.TrimSpace(raw)
	if r, ok := roleCodes[raw]; ok {
		return r, nil
	}
	r := Role(strings.ToUpper(raw))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", shared.ErrInconsistentRole, raw)
	}
	return r, nil
}

// Valid reports whether r maps to a profile subtype.
func (r Role) Valid() bool {
	_, ok := roleTables[r]
	return ok
}

// HasBadge reports whether profiles of r carry a badge number.
func (r Role) HasBadge() bool { return r == RoleCommissioner || r == RoleOfficer }

// Table is the profile table of r.
func (r Role) Table() string { return roleTables[r] }

func (r Role) String() string { return string(r) }

// RoleInput holds a role as supplied by a client: a JSON number (1, 2, 3) or a
// string (code or name). It is resolved with ParseRole.
type RoleInput string

// UnmarshalJSON keeps the raw token text so an unknown role reaches ParseRole.
func (r *RoleInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RoleInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RoleInput(n.String())
	return nil
}

// Account is an authenticated user of the back office.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sex of a person on record.
type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)

// ParseSex accepts MALE/FEMALE or M/F in any case.
func ParseSex(raw string) (Sex, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M", "MALE":
		return SexMale, nil
	case "F", "FEMALE":
		return SexFemale, nil
	}
	return "", shared.Invalid("sex", "must be MALE or FEMALE")
}

// Profile is the personal record attached to an account. Which optional fields
// apply depends on Role: badge numbers for commissioners and officers, station
// for officers only.
type Profile struct {
	ID          int64      `json:"id"`
	AccountID   int64      `json:"account_id"`
	Role        Role       `json:"role"`
	Sex         *Sex       `json:"sex"`
	BirthDate   *time.Time `json:"birth_date"`
	BirthCityID *int64     `json:"birth_city_id"`
	NationalID  *string    `json:"national_id"`
	Phone       *string    `json:"phone"`
	Address     *string    `json:"address"`
	PhotoKey    *string    `json:"photo_key"`
	BadgeNumber *string    `json:"badge_number,omitempty"`
	StationID   *int64     `json:"station_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProfileChanges carries profile fields to persist. Nil fields are left as is.
type ProfileChanges struct {
	Sex         *Sex       `json:"sex,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	BirthCityID *int64     `json:"birth_city_id,omitempty"`
	NationalID  *string    `json:"national_id,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Address     *string    `json:"address,omitempty"`
	PhotoKey    *string    `json:"photo_key,omitempty"`
	BadgeNumber *string    `json:"badge_number,omitempty"`
	StationID   *int64     `json:"station_id,omitempty"`
}

// Empty reports whether c changes nothing.
func (c *ProfileChanges) Empty() bool {
	return c == nil || *c == ProfileChanges{}
}

// Apply copies the set fields of c onto p.
func (c *ProfileChanges) Apply(p *Profile) {
	if c == nil {
		return
	}
	if c.Sex != nil {
		p.Sex = c.Sex
	}
	if c.BirthDate != nil {
		p.BirthDate = c.BirthDate
	}
	if c.BirthCityID != nil {
		p.BirthCityID = c.BirthCityID
	}
	if c.NationalID != nil {
		p.NationalID = c.NationalID
	}
	if c.Phone != nil {
		p.Phone = c.Phone
	}
	if c.Address != nil {
		p.Address = c.Address
	}
	if c.PhotoKey != nil {
		p.PhotoKey = c.PhotoKey
	}
	if c.BadgeNumber != nil {
		p.BadgeNumber = c.BadgeNumber
	}
	if c.StationID != nil {
		p.StationID = c.StationID
	}
}

// Directory groups every profile by subtype.
type Directory struct {
	Ministry      []Profile `json:"ministry"`
	Commissioners []Profile `json:"commissioners"`
	Officers      []Profile `json:"officers"`
}
