package models

import (
	"fmt"
	"time"
)

type DivisionType string

const (
	DivisionOpen  DivisionType = "open"
	DivisionWomen DivisionType = "women"
	DivisionMixed DivisionType = "mixed"
)

func (d DivisionType) Valid() bool {
	switch d {
	case DivisionOpen, DivisionWomen, DivisionMixed:
		return true
	}
	return false
}

// DivisionAge is an age bracket. Threshold is compared against a player's age in
// the season year: brackets with HasToBeOlder require age >= Threshold, the youth
// brackets require age <= Threshold. REGULAR has no age rule.
type DivisionAge string

const (
	AgeU14               DivisionAge = "U14"
	AgeU17               DivisionAge = "U17"
	AgeU20               DivisionAge = "U20"
	AgeU23               DivisionAge = "U23"
	AgeRegular           DivisionAge = "REGULAR"
	AgeMasters           DivisionAge = "MASTERS"
	AgeGrandmasters      DivisionAge = "GRANDMASTERS"
	AgeGreatGrandmasters DivisionAge = "GREATGRANDMASTERS"
)

type ageRule struct {
	threshold    int
	hasToBeOlder bool
}

var ageRules = map[DivisionAge]ageRule{
	AgeU14:               {threshold: 14},
	AgeU17:               {threshold: 17},
	AgeU20:               {threshold: 20},
	AgeU23:               {threshold: 23},
	AgeRegular:           {threshold: 0, hasToBeOlder: true},
	AgeMasters:           {threshold: 33, hasToBeOlder: true},
	AgeGrandmasters:      {threshold: 40, hasToBeOlder: true},
	AgeGreatGrandmasters: {threshold: 48, hasToBeOlder: true},
}

func (a DivisionAge) Valid() bool {
	_, ok := ageRules[a]
	return ok
}

func (a DivisionAge) Threshold() int {
	return ageRules[a].threshold
}

func (a DivisionAge) HasToBeOlder() bool {
	return ageRules[a].hasToBeOlder
}

// Admits reports whether an (already adjusted) age satisfies the bracket.
func (a DivisionAge) Admits(age int) bool {
	if a == AgeRegular {
		return true
	}
	r := ageRules[a]
	if r.hasToBeOlder {
		return age >= r.threshold
	}
	return age <= r.threshold
}

// Roster is a team's squad for one season and division.
// Version is the optimistic concurrency token: 1 on creation, +1 per update.
type Roster struct {
	ID           int          `json:"id" db:"id"`
	TeamID       int          `json:"team_id" db:"team_id"`
	SeasonID     int          `json:"season_id" db:"season_id"`
	DivisionType DivisionType `json:"division_type" db:"division_type"`
	DivisionAge  DivisionAge  `json:"division_age" db:"division_age"`
	NameAddition string       `json:"name_addition,omitempty" db:"name_addition"`
	ContextID    *int         `json:"context_id,omitempty" db:"context_id"`
	Version      int          `json:"version" db:"version"`

	Team    *Team          `json:"team,omitempty" db:"-"`
	Season  *Season        `json:"season,omitempty" db:"-"`
	Context *Context       `json:"context,omitempty" db:"-"`
	Players []RosterPlayer `json:"players,omitempty" db:"-"`
}

// Label is a human readable description used in notifications and logs.
func (r *Roster) Label() string {
	label := ""
	if r.Team != nil {
		label = r.Team.Name
	}
	if r.NameAddition != "" {
		label += " " + r.NameAddition
	}
	if r.Season != nil {
		label += fmt.Sprintf(" %d", r.Season.Year)
	}
	label += " " + string(r.DivisionType)
	if r.DivisionAge != AgeRegular {
		label += " " + string(r.DivisionAge)
	}
	if r.Season != nil && r.Season.Surface != "" {
		label += " " + r.Season.Surface
	}
	return label
}

// FindPlayer returns the roster entry for playerID, or nil.
func (r *Roster) FindPlayer(playerID int) *RosterPlayer {
	for i := range r.Players {
		if r.Players[i].PlayerID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

// RosterPlayer is a player's membership on a roster. DateAdded never changes.
type RosterPlayer struct {
	RosterID  int       `json:"roster_id" db:"roster_id"`
	PlayerID  int       `json:"player_id" db:"player_id"`
	DateAdded time.Time `json:"date_added" db:"date_added"`

	Player *Player `json:"player,omitempty" db:"-"`
}

// TeamRegistration is a roster's registration for an event division.
type TeamRegistration struct {
	ID              int       `json:"id" db:"id"`
	EventDivisionID int       `json:"event_division_id" db:"event_division_id"`
	RosterID        int       `json:"roster_id" db:"roster_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
