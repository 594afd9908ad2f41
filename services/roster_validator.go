package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/policy"
	"github.com/Dosada05/roster-system/repositories"
)

// RequireTeamAdmin проверяет, что actorID администрирует команду teamID.
// Вызывается первой во всех изменяющих операциях; при отказе остальные проверки не выполняются.
func RequireTeamAdmin(ctx context.Context, exec repositories.SQLExecutor, teams repositories.TeamRepository, teamID, actorID int) error {
	ok, err := teams.IsAdmin(ctx, exec, teamID, actorID)
	if err != nil {
		return fmt.Errorf("failed to check team admin: %w", err)
	}
	if !ok {
		return newRuleError(ErrUnauthorized, CodeNotTeamAdmin, "only an admin of the team may change its rosters")
	}
	return nil
}

type RosterValidator struct {
	teams   repositories.TeamRepository
	rosters repositories.RosterRepository
	engine  *policy.Engine
}

func NewRosterValidator(teams repositories.TeamRepository, rosters repositories.RosterRepository, engine *policy.Engine) *RosterValidator {
	return &RosterValidator{teams: teams, rosters: rosters, engine: engine}
}

// ValidateForSave runs the authorization and uniqueness gates for a roster about
// to be created or updated. The team row stays locked until exec's transaction ends,
// so a concurrent save of the same team waits and then sees this one.
func (v *RosterValidator) ValidateForSave(ctx context.Context, exec repositories.SQLExecutor, roster *models.Roster, actorID int) error {
	if err := RequireTeamAdmin(ctx, exec, v.teams, roster.TeamID, actorID); err != nil {
		return err
	}
	if err := v.teams.LockForUpdate(ctx, exec, roster.TeamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return notFound("team")
		}
		return err
	}

	existing, err := v.rosters.FindForTeamSeasonDivision(ctx, exec, roster.TeamID, roster.SeasonID, roster.DivisionType, roster.DivisionAge)
	if err != nil && !errors.Is(err, repositories.ErrRosterNotFound) {
		return fmt.Errorf("failed to look up existing roster: %w", err)
	}
	if existing != nil && existing.ID != roster.ID {
		return conflict(CodeRosterExists, "a roster for this team, season and division already exists")
	}
	return nil
}

// CheckCrossRoster rejects a player who already plays for another roster of the
// same season, division and context.
func (v *RosterValidator) CheckCrossRoster(ctx context.Context, exec repositories.SQLExecutor, player *models.Player, roster *models.Roster) error {
	decision, err := v.engine.CanJoinRoster(ctx, exec, player, roster)
	if err != nil {
		return err
	}
	if decision.Outcome == policy.AlreadyInDifferentRoster {
		return conflict(CodeInDifferentRoster, "player is already in a different roster of this season and division").
			with("team_name", decision.TeamName)
	}
	return nil
}

// AdjustedAge is the player's age in the season year with the women's allowances
// applied: +3 for masters, -1 for U17.
func AdjustedAge(seasonYear int, birthDate time.Time, gender models.Gender, age models.DivisionAge) int {
	years := seasonYear - birthDate.Year()
	if gender == models.GenderFemale {
		switch age {
		case models.AgeMasters:
			years += 3
		case models.AgeU17:
			years--
		}
	}
	return years
}

// CheckPlayerFit checks the gender and age rules of the roster's division.
// Women's divisions reject every player not classified female; open and mixed
// divisions accept any gender.
func CheckPlayerFit(roster *models.Roster, player *models.Player) error {
	if roster.DivisionType == models.DivisionWomen && player.Gender != models.GenderFemale {
		return conflict(CodeWrongGender, "player has wrong gender for this division")
	}

	if roster.DivisionAge == models.AgeRegular {
		return nil
	}
	if player.BirthDate == nil {
		return newRuleError(ErrDataIntegrity, CodeMissingBirthDate, "player has no birth date registered, age cannot be checked")
	}
	if roster.Season == nil {
		return fmt.Errorf("roster %d loaded without season", roster.ID)
	}

	age := AdjustedAge(roster.Season.Year, *player.BirthDate, player.Gender, roster.DivisionAge)
	if !roster.DivisionAge.Admits(age) {
		direction := "at most"
		if roster.DivisionAge.HasToBeOlder() {
			direction = "at least"
		}
		return conflict(CodeWrongAge, fmt.Sprintf("player's age does not match division regulations: %s requires %s %d, player counts as %d",
			roster.DivisionAge, direction, roster.DivisionAge.Threshold(), age)).
			with("division_age", string(roster.DivisionAge)).
			with("age", strconv.Itoa(age))
	}
	return nil
}

// CheckRemovalAllowed blocks the removal once an official competition the roster
// is registered for has started after the player joined: some blocking date B
// with dateAdded < B <= today. Only calendar dates are compared.
func CheckRemovalAllowed(rp *models.RosterPlayer, blockingDates []time.Time, today time.Time) error {
	added := dayNumber(rp.DateAdded)
	now := dayNumber(today)
	for _, b := range blockingDates {
		d := dayNumber(b)
		if d > added && d <= now {
			return conflict(CodeRemovalBlocked, "player cannot be removed, an official tournament with this roster has already started").
				with("blocking_date", b.Format("2006-01-02"))
		}
	}
	return nil
}

func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// eligibilityRejection maps a fresh classification to its rejection.
func eligibilityRejection(e policy.Eligibility) *RuleError {
	switch e {
	case policy.NotPaid:
		return conflict(CodeNotPaid, "player is not eligible, the yearly fees have not been paid by the club")
	case policy.NoDSE:
		return conflict(CodeNoConsent, "player is not eligible, the data-sharing agreement is not signed")
	case policy.NotActive:
		return conflict(CodeNotActive, "player is not eligible, registered as a passive member")
	case policy.Idle:
		return conflict(CodeIdle, "player is not eligible, registered as an idle member")
	default:
		return conflict(CodeNotEligible, "player is not eligible to participate in tournaments")
	}
}
