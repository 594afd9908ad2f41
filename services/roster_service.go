package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/roster-system/events"
	"github.com/Dosada05/roster-system/metrics"
	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/policy"
	"github.com/Dosada05/roster-system/registry"
	"github.com/Dosada05/roster-system/repositories"
)

type RosterServiceDeps struct {
	Tx              Transactor
	Rosters         repositories.RosterRepository
	Players         repositories.PlayerRepository
	Identities      repositories.IdentityRepository
	Teams           repositories.TeamRepository
	Registry        registry.Client
	Validator       *RosterValidator
	Events          EventPublisher
	Clock           models.Clock
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	RegistryTimeout time.Duration
}

type RosterService struct {
	tx              Transactor
	rosters         repositories.RosterRepository
	players         repositories.PlayerRepository
	identities      repositories.IdentityRepository
	teams           repositories.TeamRepository
	registry        registry.Client
	validator       *RosterValidator
	events          EventPublisher
	clock           models.Clock
	metrics         *metrics.Metrics
	logger          *slog.Logger
	registryTimeout time.Duration
}

func NewRosterService(d RosterServiceDeps) *RosterService {
	if d.Clock == nil {
		d.Clock = models.SystemClock{}
	}
	if d.RegistryTimeout <= 0 {
		d.RegistryTimeout = 10 * time.Second
	}
	return &RosterService{
		tx:              d.Tx,
		rosters:         d.Rosters,
		players:         d.Players,
		identities:      d.Identities,
		teams:           d.Teams,
		registry:        d.Registry,
		validator:       d.Validator,
		events:          d.Events,
		clock:           d.Clock,
		metrics:         d.Metrics,
		logger:          d.Logger,
		registryTimeout: d.RegistryTimeout,
	}
}

// reject counts gate rejections before handing the error back.
func (s *RosterService) reject(err error) error {
	if code := RuleCode(err); code != "" {
		s.metrics.IncrementGateRejection(code)
	}
	return err
}

func (s *RosterService) publish(teamID int, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	room := events.TeamRoom(teamID)
	s.events.BroadcastToRoom(room, events.Message{Type: eventType, Payload: payload, RoomID: room})
}

func validateRosterInput(r *models.Roster) error {
	if r == nil {
		return fmt.Errorf("%w: roster is required", ErrValidationFailed)
	}
	if r.TeamID <= 0 || r.SeasonID <= 0 {
		return fmt.Errorf("%w: team and season are required", ErrValidationFailed)
	}
	if !r.DivisionType.Valid() {
		return fmt.Errorf("%w: unknown division type %q", ErrValidationFailed, r.DivisionType)
	}
	if !r.DivisionAge.Valid() {
		return fmt.Errorf("%w: unknown division age %q", ErrValidationFailed, r.DivisionAge)
	}
	return nil
}

func mapRosterRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrRosterNotFound):
		return notFound("roster")
	case errors.Is(err, repositories.ErrRosterConflict):
		return conflict(CodeRosterExists, "a roster for this team, season and division already exists")
	case errors.Is(err, repositories.ErrRosterVersionConflict):
		return conflict(CodeStaleVersion, "roster was changed by someone else, reload and try again")
	case errors.Is(err, repositories.ErrRosterTeamInvalid):
		return notFound("team, season or context")
	case errors.Is(err, repositories.ErrRosterPlayerNotFound):
		return notFound("roster player")
	case errors.Is(err, repositories.ErrRosterPlayerConflict):
		return conflict(CodeAlreadyOnRoster, "player is already on this roster")
	}
	return err
}

// CreateRoster сохраняет новый ростер; версия нового ростера всегда 1.
func (s *RosterService) CreateRoster(ctx context.Context, actorID int, input *models.Roster) (*models.Roster, error) {
	if err := validateRosterInput(input); err != nil {
		return nil, err
	}
	roster := *input
	roster.ID = 0
	roster.Players = nil

	var created *models.Roster
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.validator.ValidateForSave(ctx, exec, &roster, actorID); err != nil {
			return err
		}
		if err := s.rosters.Create(ctx, exec, &roster); err != nil {
			return mapRosterRepoError(err)
		}
		var err error
		created, err = s.rosters.GetByID(ctx, exec, roster.ID)
		return mapRosterRepoError(err)
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.logger.InfoContext(ctx, "Roster created", slog.Int("roster_id", created.ID), slog.Int("team_id", created.TeamID), slog.Int("actor_id", actorID))
	s.publish(created.TeamID, events.TypeRosterUpdated, created)
	return created, nil
}

// UpdateRoster сохраняет изменения, если input.Version совпадает с текущей версией.
// Возвращает ростер с увеличенной версией.
func (s *RosterService) UpdateRoster(ctx context.Context, actorID int, input *models.Roster) (*models.Roster, error) {
	if err := validateRosterInput(input); err != nil {
		return nil, err
	}
	roster := *input

	var updated *models.Roster
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current, err := s.rosters.GetByID(ctx, exec, roster.ID)
		if err != nil {
			return mapRosterRepoError(err)
		}
		if current.TeamID != roster.TeamID {
			if err := RequireTeamAdmin(ctx, exec, s.teams, current.TeamID, actorID); err != nil {
				return err
			}
		}
		if err := s.validator.ValidateForSave(ctx, exec, &roster, actorID); err != nil {
			return err
		}
		if err := s.rosters.Update(ctx, exec, &roster); err != nil {
			return mapRosterRepoError(err)
		}
		updated, err = s.rosters.GetByID(ctx, exec, roster.ID)
		return mapRosterRepoError(err)
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.logger.InfoContext(ctx, "Roster updated", slog.Int("roster_id", updated.ID), slog.Int("version", updated.Version), slog.Int("actor_id", actorID))
	s.publish(updated.TeamID, events.TypeRosterUpdated, updated)
	return updated, nil
}

// DeleteRoster удаляет ростер, если он не заявлен ни на один турнир.
func (s *RosterService) DeleteRoster(ctx context.Context, actorID, rosterID int) error {
	var teamID int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		roster, err := s.rosters.GetByID(ctx, exec, rosterID)
		if err != nil {
			return mapRosterRepoError(err)
		}
		teamID = roster.TeamID
		if err := RequireTeamAdmin(ctx, exec, s.teams, roster.TeamID, actorID); err != nil {
			return err
		}
		regs, err := s.rosters.ListRegistrations(ctx, exec, []int{rosterID})
		if err != nil {
			return err
		}
		if len(regs) > 0 {
			return conflict(CodeRosterRegistered, "roster is registered for a tournament and cannot be deleted")
		}
		return mapRosterRepoError(s.rosters.Delete(ctx, exec, rosterID))
	})
	if err != nil {
		return s.reject(err)
	}

	s.logger.InfoContext(ctx, "Roster deleted", slog.Int("roster_id", rosterID), slog.Int("actor_id", actorID))
	s.publish(teamID, events.TypeRosterUpdated, map[string]interface{}{"roster_id": rosterID, "deleted": true})
	return nil
}

func (s *RosterService) GetRoster(ctx context.Context, rosterID int) (*models.Roster, error) {
	roster, err := s.rosters.GetByID(ctx, nil, rosterID)
	if err != nil {
		return nil, mapRosterRepoError(err)
	}
	return roster, nil
}

// AddPlayer adds the registry member federationNumber to the roster. A member
// without a local mirror is fetched from the registry and mirrored first; if the
// registry cannot be reached nothing is persisted.
func (s *RosterService) AddPlayer(ctx context.Context, actorID, rosterID, federationNumber int) (*models.Player, error) {
	var added *models.Player
	var teamID int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		roster, err := s.rosters.GetByID(ctx, exec, rosterID)
		if err != nil {
			return mapRosterRepoError(err)
		}
		teamID = roster.TeamID
		if err := RequireTeamAdmin(ctx, exec, s.teams, roster.TeamID, actorID); err != nil {
			return err
		}

		identity, err := s.identities.GetByFederationNumber(ctx, exec, federationNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrIdentityNotFound) {
				return notFound("registry member")
			}
			return err
		}
		if !identity.Consent {
			return eligibilityRejection(policy.NoDSE)
		}

		player, fresh, err := s.findOrMirrorPlayer(ctx, exec, identity, roster)
		if err != nil {
			return err
		}
		if !player.IsEligible() {
			if fresh != nil {
				return eligibilityRejection(*fresh)
			}
			return conflict(CodeNotEligible, "player is not eligible to participate in tournaments: passive member, data-sharing agreement not signed or yearly fees not paid")
		}
		if roster.FindPlayer(player.ID) != nil {
			return conflict(CodeAlreadyOnRoster, "player is already on this roster")
		}
		if err := CheckPlayerFit(roster, player); err != nil {
			return err
		}
		if err := s.validator.CheckCrossRoster(ctx, exec, player, roster); err != nil {
			return err
		}

		rp := &models.RosterPlayer{RosterID: roster.ID, PlayerID: player.ID, DateAdded: models.DateOf(s.clock.Now())}
		if err := s.rosters.AddPlayer(ctx, exec, rp); err != nil {
			return mapRosterRepoError(err)
		}
		added = player
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.logger.InfoContext(ctx, "Player added to roster",
		slog.Int("roster_id", rosterID), slog.Int("player_id", added.ID),
		slog.Int("federation_number", federationNumber), slog.Int("actor_id", actorID))
	s.publish(teamID, events.TypeRosterUpdated, map[string]interface{}{"roster_id": rosterID, "added_player_id": added.ID})
	return added, nil
}

// findOrMirrorPlayer returns the locked local mirror of identity, creating it from
// the registry profile when missing. fresh is the classification when the
// mirror was just created, nil otherwise.
func (s *RosterService) findOrMirrorPlayer(ctx context.Context, exec repositories.SQLExecutor, identity *models.Identity, roster *models.Roster) (*models.Player, *policy.Eligibility, error) {
	player, err := s.players.GetByFederationNumber(ctx, exec, identity.FederationNumber)
	if err == nil {
		if err := s.players.LockForUpdate(ctx, exec, player.ID); err != nil {
			return nil, nil, err
		}
		return player, nil, nil
	}
	if !errors.Is(err, repositories.ErrPlayerNotFound) {
		return nil, nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.registryTimeout)
	defer cancel()
	profile, err := s.registry.FetchProfile(fetchCtx, identity.FederationNumber)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, nil, notFound("registry profile")
		}
		s.logger.WarnContext(ctx, "Registry profile fetch failed",
			slog.Int("federation_number", identity.FederationNumber), slog.Any("error", err))
		return nil, nil, unavailable("registry is not reachable, try again later", err)
	}

	eligibility := policy.ForContext(roster.Context).Classify(*profile)
	player = &models.Player{FederationNumber: identity.FederationNumber}
	applyProfile(player, identity, profile, eligibility)

	if err := s.players.Create(ctx, exec, player); err != nil {
		if errors.Is(err, repositories.ErrPlayerConflict) {
			return nil, nil, unavailable("player is being created by another request, try again", err)
		}
		return nil, nil, err
	}
	return player, &eligibility, nil
}

// applyProfile copies identity and profile fields onto the mirror and sets
// EligibleUntil from the classification.
func applyProfile(p *models.Player, identity *models.Identity, profile *models.ProfileDetail, eligibility policy.Eligibility) {
	p.FirstName, p.LastName = identity.Names()
	p.LastModified = identity.LastModified
	p.Paid = profile.Paid
	p.Gender = models.ParseGender(profile.Gender)
	p.BirthDate = profile.BirthDate
	p.Email = profile.Email
	p.ClubID = identity.ClubID
	if eligibility == policy.Eligible {
		p.EligibleUntil = nil
	} else {
		until := identity.LastModified
		p.EligibleUntil = &until
	}
}

// RemovePlayer removes a player unless the lock-out forbids it.
func (s *RosterService) RemovePlayer(ctx context.Context, actorID, rosterID, playerID int) error {
	var teamID int
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		roster, err := s.rosters.GetByID(ctx, exec, rosterID)
		if err != nil {
			return mapRosterRepoError(err)
		}
		teamID = roster.TeamID
		if err := RequireTeamAdmin(ctx, exec, s.teams, roster.TeamID, actorID); err != nil {
			return err
		}
		rp, err := s.rosters.GetRosterPlayer(ctx, exec, rosterID, playerID)
		if err != nil {
			return mapRosterRepoError(err)
		}
		dates, err := s.rosters.BlockingDates(ctx, exec, rosterID)
		if err != nil {
			return err
		}
		if err := CheckRemovalAllowed(rp, dates, s.clock.Now()); err != nil {
			return err
		}
		return mapRosterRepoError(s.rosters.RemovePlayer(ctx, exec, rosterID, playerID))
	})
	if err != nil {
		return s.reject(err)
	}

	s.logger.InfoContext(ctx, "Player removed from roster", slog.Int("roster_id", rosterID), slog.Int("player_id", playerID), slog.Int("actor_id", actorID))
	s.publish(teamID, events.TypeRosterPlayerRemoved, map[string]int{"roster_id": rosterID, "player_id": playerID})
	return nil
}

// BlockingDates returns the start dates of the official tournaments the roster is
// registered for.
func (s *RosterService) BlockingDates(ctx context.Context, actorID, rosterID int) ([]time.Time, error) {
	roster, err := s.rosters.GetByID(ctx, nil, rosterID)
	if err != nil {
		return nil, mapRosterRepoError(err)
	}
	if err := RequireTeamAdmin(ctx, nil, s.teams, roster.TeamID, actorID); err != nil {
		return nil, s.reject(err)
	}
	return s.rosters.BlockingDates(ctx, nil, rosterID)
}

// AuthorizeTeam fails with e100 unless actorID administers teamID.
func (s *RosterService) AuthorizeTeam(ctx context.Context, actorID, teamID int) error {
	if err := RequireTeamAdmin(ctx, nil, s.teams, teamID, actorID); err != nil {
		return s.reject(err)
	}
	return nil
}
