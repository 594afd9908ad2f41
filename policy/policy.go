// Package policy classifies registry profiles into eligibility states and decides
// whether a player may join a roster under a governing ruleset.
package policy

import (
	"strings"
	"sync"

	"github.com/Dosada05/roster-system/models"
)

// ID names a ruleset, usually the acronym of a roster's governing context.
type ID string

const (
	DFV  ID = "DFV"
	DM   ID = "DM"
	Open ID = "OPEN"
)

type Eligibility int

const (
	Eligible Eligibility = iota
	NotPaid
	NoDSE
	NotActive
	Idle
)

func (e Eligibility) String() string {
	switch e {
	case Eligible:
		return "ELIGIBLE"
	case NotPaid:
		return "NOT_PAID"
	case NoDSE:
		return "NO_DSE"
	case NotActive:
		return "NOT_ACTIVE"
	case Idle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// Rules is the data-driven part of a ruleset. Active and Idle read the registry
// profile; ExclusiveRosters forbids a player on two rosters of the same season,
// division and context.
type Rules struct {
	ID               ID
	Active           func(models.ProfileDetail) bool
	Idle             func(models.ProfileDetail) bool
	ExclusiveRosters bool
}

var (
	mu       sync.RWMutex
	registry = map[ID]Rules{
		DFV: {
			ID:               DFV,
			Active:           func(p models.ProfileDetail) bool { return p.Active },
			Idle:             func(p models.ProfileDetail) bool { return p.Idle },
			ExclusiveRosters: true,
		},
		DM: {
			ID:               DM,
			Active:           func(p models.ProfileDetail) bool { return p.Active },
			Idle:             func(p models.ProfileDetail) bool { return p.Idle },
			ExclusiveRosters: true,
		},
		Open: {
			ID:     Open,
			Active: func(models.ProfileDetail) bool { return true },
			Idle:   func(models.ProfileDetail) bool { return false },
		},
	}
	defaultID = DFV
)

// Register adds or replaces a ruleset. Nil predicates default to "active" and "not idle".
func Register(r Rules) {
	if r.Active == nil {
		r.Active = func(models.ProfileDetail) bool { return true }
	}
	if r.Idle == nil {
		r.Idle = func(models.ProfileDetail) bool { return false }
	}
	r.ID = normalize(r.ID)
	mu.Lock()
	registry[r.ID] = r
	mu.Unlock()
}

// SetDefault selects the ruleset used when a lookup has no or an unknown id.
func SetDefault(id ID) {
	mu.Lock()
	defaultID = normalize(id)
	mu.Unlock()
}

// Lookup returns the ruleset for id, falling back to the default ruleset.
func Lookup(id ID) Rules {
	mu.RLock()
	defer mu.RUnlock()
	if r, ok := registry[normalize(id)]; ok {
		return r
	}
	return registry[defaultID]
}

// ForContext returns the ruleset governing a roster context; nil means the default.
func ForContext(c *models.Context) Rules {
	if c == nil {
		return Lookup("")
	}
	return Lookup(ID(c.Acronym))
}

// Classify derives eligibility from a profile. The first failing check wins:
// consent, payment, activity, idleness.
func Classify(profile models.ProfileDetail, id ID) Eligibility {
	return Lookup(id).Classify(profile)
}

func (r Rules) Classify(profile models.ProfileDetail) Eligibility {
	switch {
	case !profile.Consent:
		return NoDSE
	case !profile.Paid:
		return NotPaid
	case !r.Active(profile):
		return NotActive
	case r.Idle(profile):
		return Idle
	default:
		return Eligible
	}
}

func normalize(id ID) ID {
	return ID(strings.ToUpper(strings.TrimSpace(string(id))))
}
