package personnel

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/police-records/registry/internal/shared"
)

const (
	maxNationalIDLen = 11
	maxBadgeLen      = 11
	maxUsernameLen   = 150
	minPasswordLen   = 8
	maxPasswordBytes = 72
)

// validateChanges normalises and checks profile changes for a subtype.
func validateChanges(role Role, c *ProfileChanges, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Sex != nil {
		sex, err := ParseSex(string(*c.Sex))
		if err != nil {
			return err
		}
		c.Sex = &sex
	}
	if c.BirthDate != nil {
		if c.BirthDate.After(now) {
			return shared.Invalid("birth_date", "must not be in the future")
		}
	}
	if c.BirthCityID != nil && *c.BirthCityID <= 0 {
		return shared.Invalid("birth_city_id", "must be positive")
	}
	if c.NationalID != nil {
		v := strings.TrimSpace(*c.NationalID)
		if v == "" {
			return shared.Invalid("national_id", "must not be blank")
		}
		if utf8.RuneCountInString(v) > maxNationalIDLen {
			return shared.TooLong("national_id", maxNationalIDLen)
		}
		c.NationalID = &v
	}
	if c.Phone != nil {
		v := strings.TrimSpace(*c.Phone)
		if !shared.PhonePattern.MatchString(v) {
			return shared.Invalid("phone", "must contain 10 to 15 digits")
		}
		c.Phone = &v
	}
	if c.Address != nil {
		v := strings.TrimSpace(*c.Address)
		c.Address = &v
	}
	if c.PhotoKey != nil {
		v := strings.TrimSpace(*c.PhotoKey)
		if v == "" {
			return shared.Invalid("photo_key", "must not be blank")
		}
		c.PhotoKey = &v
	}
	if c.BadgeNumber != nil {
		if !role.HasBadge() {
			return shared.Invalid("badge_number", "only commissioners and officers carry a badge")
		}
		v := strings.TrimSpace(*c.BadgeNumber)
		if v == "" || utf8.RuneCountInString(v) > maxBadgeLen {
			return shared.Invalid("badge_number", "must be 1 to 11 characters")
		}
		c.BadgeNumber = &v
	}
	if c.StationID != nil {
		if role != RoleOfficer {
			return shared.Invalid("station_id", "only officers are attached to a station")
		}
		if *c.StationID <= 0 {
			return shared.Invalid("station_id", "must be positive")
		}
	}
	return nil
}

func validateAccount(a *Account) error {
	a.Username = strings.TrimSpace(a.Username)
	a.Email = strings.TrimSpace(a.Email)
	a.FirstName = shared.NormalizeText(a.FirstName)
	a.LastName = shared.NormalizeText(a.LastName)
	if a.Username == "" {
		return shared.Invalid("username", "is required")
	}
	if utf8.RuneCountInString(a.Username) > maxUsernameLen {
		return shared.TooLong("username", maxUsernameLen)
	}
	return nil
}

func validatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPasswordLen {
		return shared.Invalid("password", "must be at least 8 characters")
	}
	if len(pw) > maxPasswordBytes {
		return shared.Invalid("password", "must be at most 72 bytes")
	}
	return nil
}
