package cases

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/shared"
)

const (
	maxTeamNameLen   = 60
	maxLastNameLen   = 60
	maxFirstNameLen  = 90
	maxNationalIDLen = 11
)

func validateTeam(t *Team) error {
	t.Name = shared.NormalizeText(t.Name)
	if t.Name == "" {
		return shared.Invalid("name", "is required")
	}
	if utf8.RuneCountInString(t.Name) > maxTeamNameLen {
		return shared.TooLong("name", maxTeamNameLen)
	}
	if t.SupervisorID <= 0 {
		return shared.Invalid("supervisor_id", "is required")
	}
	return nil
}

func buildOffender(in OffenderInput, now time.Time) (Offender, error) {
	o := Offender{
		LastName:    shared.NormalizeText(in.LastName),
		FirstName:   shared.NormalizeText(in.FirstName),
		BirthDate:   in.BirthDate,
		BirthCityID: in.BirthCityID,
		NationalID:  strings.TrimSpace(in.NationalID),
		Phone:       strings.TrimSpace(in.Phone),
		PhotoKey:    strings.TrimSpace(in.PhotoKey),
		CrimeID:     in.CrimeID,
	}
	switch {
	case o.LastName == "":
		return Offender{}, shared.Invalid("last_name", "is required")
	case utf8.RuneCountInString(o.LastName) > maxLastNameLen:
		return Offender{}, shared.TooLong("last_name", maxLastNameLen)
	case o.FirstName == "":
		return Offender{}, shared.Invalid("first_name", "is required")
	case utf8.RuneCountInString(o.FirstName) > maxFirstNameLen:
		return Offender{}, shared.TooLong("first_name", maxFirstNameLen)
	}
	sex, err := personnel.ParseSex(in.Sex)
	if err != nil {
		return Offender{}, err
	}
	o.Sex = sex
	if o.BirthDate.IsZero() {
		return Offender{}, shared.Invalid("birth_date", "is required")
	}
	if o.BirthDate.After(now) {
		return Offender{}, shared.Invalid("birth_date", "must not be in the future")
	}
	if utf8.RuneCountInString(o.NationalID) > maxNationalIDLen {
		return Offender{}, shared.TooLong("national_id", maxNationalIDLen)
	}
	if o.Phone != "" && !shared.PhonePattern.MatchString(o.Phone) {
		return Offender{}, shared.Invalid("phone", "must contain 10 to 15 digits")
	}
	if o.CrimeID <= 0 {
		return Offender{}, shared.Invalid("crime_id", "is required")
	}
	if o.BirthCityID != nil && *o.BirthCityID <= 0 {
		return Offender{}, shared.Invalid("birth_city_id", "must be positive")
	}
	return o, nil
}
