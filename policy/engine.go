package policy

import (
	"context"
	"fmt"

	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/repositories"
)

// RosterLookup finds a roster other than roster that holds the player in the same
// season, division type, division age and context.
type RosterLookup interface {
	FindConflictingRoster(ctx context.Context, exec repositories.SQLExecutor, playerID int, roster *models.Roster) (*models.Roster, error)
}

type Outcome int

const (
	OK Outcome = iota
	AlreadyInDifferentRoster
)

type Decision struct {
	Outcome  Outcome
	TeamName string
}

// Engine answers roster-join questions against the store. It never writes.
type Engine struct {
	rosters RosterLookup
}

func NewEngine(rosters RosterLookup) *Engine {
	return &Engine{rosters: rosters}
}

// CanJoinRoster checks the cross-roster rule of the roster's context. Rosters
// without a context are not checked. The lookup runs on exec so that it sees and
// is serialized with the caller's transaction.
func (e *Engine) CanJoinRoster(ctx context.Context, exec repositories.SQLExecutor, player *models.Player, roster *models.Roster) (Decision, error) {
	if roster.ContextID == nil {
		return Decision{Outcome: OK}, nil
	}
	if !ForContext(roster.Context).ExclusiveRosters {
		return Decision{Outcome: OK}, nil
	}

	other, err := e.rosters.FindConflictingRoster(ctx, exec, player.ID, roster)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check rosters of player %d: %w", player.ID, err)
	}
	if other == nil {
		return Decision{Outcome: OK}, nil
	}

	teamName := ""
	if other.Team != nil {
		teamName = other.Team.Name
	}
	return Decision{Outcome: AlreadyInDifferentRoster, TeamName: teamName}, nil
}
