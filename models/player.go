package models

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderNA     Gender = "na"
)

// ParseGender maps the registry's loose gender values; anything unknown is GenderNA.
func ParseGender(raw string) Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "male", "man", "herr":
		return GenderMale
	case "f", "w", "female", "woman", "frau":
		return GenderFemale
	default:
		return GenderNA
	}
}

// Player is the local mirror of a registry member.
// EligibleUntil is nil while the player is eligible.
type Player struct {
	ID               int        `json:"id" db:"id"`
	FederationNumber int        `json:"federation_number" db:"federation_number"`
	FirstName        string     `json:"first_name" db:"first_name"`
	LastName         string     `json:"last_name" db:"last_name"`
	Gender           Gender     `json:"gender" db:"gender"`
	BirthDate        *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Email            string     `json:"-" db:"email"`
	ClubID           int        `json:"club_id" db:"club_id"`
	Paid             bool       `json:"paid" db:"paid"`
	EligibleUntil    *time.Time `json:"eligible_until,omitempty" db:"eligible_until"`
	LastModified     time.Time  `json:"last_modified" db:"last_modified"`
}

func (p *Player) IsEligible() bool {
	return p.EligibleUntil == nil
}

func (p *Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
