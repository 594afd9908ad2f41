package models

import (
	"strings"
	"time"
)

// Identity is the registry's name record for a member, mirrored verbatim on every sync.
type Identity struct {
	FederationNumber int       `json:"federation_number" db:"federation_number"`
	FirstName        *string   `json:"first_name" db:"first_name"`
	LastName         *string   `json:"last_name" db:"last_name"`
	LastModified     time.Time `json:"last_modified" db:"last_modified"`
	Consent          bool      `json:"consent" db:"consent"`
	ClubID           int       `json:"club_id" db:"club_id"`
}

// WellFormed reports whether the record has a federation number, a modification
// time and both name fields.
func (i Identity) WellFormed() bool {
	return i.FederationNumber > 0 && !i.LastModified.IsZero() &&
		i.FirstName != nil && i.LastName != nil
}

// Trimmed returns a copy with surrounding whitespace removed from the names.
func (i Identity) Trimmed() Identity {
	if i.FirstName != nil {
		v := strings.TrimSpace(*i.FirstName)
		i.FirstName = &v
	}
	if i.LastName != nil {
		v := strings.TrimSpace(*i.LastName)
		i.LastName = &v
	}
	return i
}

// Names returns the name fields, empty when missing.
func (i Identity) Names() (string, string) {
	var first, last string
	if i.FirstName != nil {
		first = *i.FirstName
	}
	if i.LastName != nil {
		last = *i.LastName
	}
	return first, last
}

// ProfileDetail is the extended registry record for one member. It is fetched on
// demand and never persisted as-is.
type ProfileDetail struct {
	FederationNumber int        `json:"federation_number"`
	Consent          bool       `json:"consent"`
	Paid             bool       `json:"paid"`
	Active           bool       `json:"active"`
	Idle             bool       `json:"idle"`
	Gender           string     `json:"gender"`
	BirthDate        *time.Time `json:"birth_date,omitempty"`
	Email            string     `json:"email"`
	ClubID           int        `json:"club_id"`
}
