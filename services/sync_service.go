package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/roster-system/events"
	"github.com/Dosada05/roster-system/metrics"
	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/policy"
	"github.com/Dosada05/roster-system/registry"
	"github.com/Dosada05/roster-system/repositories"
	"github.com/Dosada05/roster-system/storage"
)

const syncLockName = "registry-sync"

// deactivationBackdate is subtracted from the run start when a player is
// deactivated for a missing profile, so that a reactivation synced right after
// still counts as newer.
const deactivationBackdate = time.Hour

// SyncReport summarizes one run of the registry synchronization.
type SyncReport struct {
	RunID        string    `json:"run_id,omitempty"`
	Ran          bool      `json:"ran"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	Received     int       `json:"received"`
	Malformed    []int     `json:"malformed,omitempty"`
	Candidates   int       `json:"candidates"`
	Updated      int       `json:"updated"`
	Deactivated  int       `json:"deactivated"`
	Notified     int       `json:"notified"`
	NotifyFailed int       `json:"notify_failed"`
	Removed      int       `json:"removed"`
	Failed       []int     `json:"failed,omitempty"`
	ArchiveURL   string    `json:"archive_url,omitempty"`
}

type SyncServiceDeps struct {
	Enabled     bool
	Tx          Transactor
	Registry    registry.Client
	Identities  repositories.IdentityRepository
	Players     repositories.PlayerRepository
	Rosters     repositories.RosterRepository
	Teams       repositories.TeamRepository
	Notifier    Notifier
	Events      EventPublisher
	Archive     storage.ReportArchiver
	Locker      Locker
	LockTTL     time.Duration
	Concurrency int
	Policy      policy.ID
	Clock       models.Clock
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

type SyncService struct {
	enabled     bool
	tx          Transactor
	registry    registry.Client
	identities  repositories.IdentityRepository
	players     repositories.PlayerRepository
	rosters     repositories.RosterRepository
	teams       repositories.TeamRepository
	notifier    Notifier
	events      EventPublisher
	archive     storage.ReportArchiver
	locker      Locker
	lockTTL     time.Duration
	concurrency int
	policyID    policy.ID
	clock       models.Clock
	metrics     *metrics.Metrics
	logger      *slog.Logger

	running atomic.Bool
}

func NewSyncService(d SyncServiceDeps) *SyncService {
	if d.Clock == nil {
		d.Clock = models.SystemClock{}
	}
	if d.Concurrency < 1 {
		d.Concurrency = 1
	}
	if d.LockTTL <= 0 {
		d.LockTTL = 30 * time.Minute
	}
	if d.Policy == "" {
		d.Policy = policy.DFV
	}
	return &SyncService{
		enabled:     d.Enabled,
		tx:          d.Tx,
		registry:    d.Registry,
		identities:  d.Identities,
		players:     d.Players,
		rosters:     d.Rosters,
		teams:       d.Teams,
		notifier:    d.Notifier,
		events:      d.Events,
		archive:     d.Archive,
		locker:      d.Locker,
		lockTTL:     d.LockTTL,
		concurrency: d.Concurrency,
		policyID:    d.Policy,
		clock:       d.Clock,
		metrics:     d.Metrics,
		logger:      d.Logger,
	}
}

// pendingNotification is sent only after the run's transaction committed.
type pendingNotification struct {
	federationNumber int
	rosterID         int
	message          Message
	recipient        Recipient
}

type pendingEvent struct {
	teamID    int
	eventType string
	payload   interface{}
}

// playerOutcome collects the effects of one player's update; it is merged into
// the run only when the player's savepoint was released.
type playerOutcome struct {
	updated       bool
	deactivated   bool
	removed       int
	notifications []pendingNotification
	events        []pendingEvent
}

type profileResult struct {
	profile *models.ProfileDetail
	err     error
}

// Run performs one synchronization with the registry. Ran is false when sync is
// disabled or another run is in progress. Per-player failures are reported in
// SyncReport.Failed and never fail the run.
func (s *SyncService) Run(ctx context.Context) (*SyncReport, error) {
	if !s.enabled {
		s.metrics.IncrementSyncRun("disabled")
		return &SyncReport{Ran: false}, nil
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.InfoContext(ctx, "Registry sync already running, skipping trigger")
		s.metrics.IncrementSyncRun("skipped")
		return &SyncReport{Ran: false}, nil
	}
	defer s.running.Store(false)

	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, syncLockName, s.lockTTL)
		if err != nil {
			s.metrics.IncrementSyncRun("failed")
			return nil, unavailable("sync lock is not reachable", err)
		}
		if !ok {
			s.logger.InfoContext(ctx, "Registry sync running on another instance, skipping trigger")
			s.metrics.IncrementSyncRun("skipped")
			return &SyncReport{Ran: false}, nil
		}
		defer func() {
			// Освобождаем блокировку даже при отменённом ctx запуска.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := s.locker.Release(releaseCtx, syncLockName, token); err != nil {
				s.logger.Warn("Failed to release sync lock", slog.Any("error", err))
			}
		}()
	}

	start := s.clock.Now()
	report := &SyncReport{RunID: uuid.NewString(), Ran: true, StartedAt: start}
	logger := s.logger.With(slog.String("run_id", report.RunID))
	logger.InfoContext(ctx, "Registry sync started")

	notifications, evts, err := s.reconcile(ctx, logger, report, start)
	if err != nil {
		report.FinishedAt = s.clock.Now()
		s.metrics.IncrementSyncRun("failed")
		logger.ErrorContext(ctx, "Registry sync failed", slog.Any("error", err))
		if errors.Is(err, registry.ErrUnavailable) || errors.Is(err, registry.ErrNotConfigured) {
			return report, unavailable("registry is not reachable", err)
		}
		return report, fmt.Errorf("registry sync failed: %w", err)
	}

	s.dispatch(ctx, logger, report, notifications, evts)

	report.FinishedAt = s.clock.Now()
	s.metrics.IncrementSyncRun("completed")
	s.metrics.AddSyncPlayers("updated", report.Updated)
	s.metrics.AddSyncPlayers("deactivated", report.Deactivated)
	s.metrics.AddSyncPlayers("failed", len(report.Failed))
	s.metrics.AddSyncRemovals(report.Removed)
	s.metrics.AddSyncNotifications("sent", report.Notified)
	s.metrics.AddSyncNotifications("failed", report.NotifyFailed)
	s.metrics.ObserveSyncDuration(report.FinishedAt.Sub(start))

	s.archiveReport(ctx, logger, report)

	logger.InfoContext(ctx, "Registry sync finished",
		slog.Int("received", report.Received),
		slog.Int("malformed", len(report.Malformed)),
		slog.Int("candidates", report.Candidates),
		slog.Int("updated", report.Updated),
		slog.Int("deactivated", report.Deactivated),
		slog.Int("removed", report.Removed),
		slog.Int("notified", report.Notified),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

// partitionIdentities splits the registry list into trimmed well-formed
// identities and the sorted registry keys of malformed ones.
func partitionIdentities(all []models.Identity) ([]models.Identity, []int) {
	wellFormed := make([]models.Identity, 0, len(all))
	var malformed []int
	for _, id := range all {
		if !id.WellFormed() {
			malformed = append(malformed, id.FederationNumber)
			continue
		}
		wellFormed = append(wellFormed, id.Trimmed())
	}
	sort.Ints(malformed)
	return wellFormed, malformed
}

func joinKeys(keys []int) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Itoa(k)
	}
	return strings.Join(parts, ", ")
}

// reconcile runs the transactional part of a sync and returns the side effects
// to dispatch after commit.
func (s *SyncService) reconcile(ctx context.Context, logger *slog.Logger, report *SyncReport, start time.Time) ([]pendingNotification, []pendingEvent, error) {
	names, err := s.registry.FetchAllNames(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch registry names: %w", err)
	}
	report.Received = len(names)
	if len(names) == 0 {
		logger.InfoContext(ctx, "Registry returned no names, nothing to do")
		return nil, nil, nil
	}

	wellFormed, malformed := partitionIdentities(names)
	if len(malformed) > 0 {
		report.Malformed = malformed
		logger.WarnContext(ctx, "Found malformed registry entries", slog.String("federation_numbers", joinKeys(malformed)))
	}
	byNumber := make(map[int]*models.Identity, len(wellFormed))
	for i := range wellFormed {
		byNumber[wellFormed[i].FederationNumber] = &wellFormed[i]
	}

	var notifications []pendingNotification
	var evts []pendingEvent

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.identities.Refresh(ctx, exec, wellFormed); err != nil {
			return err
		}
		candidates, err := s.players.ListNeedingUpdate(ctx, exec)
		if err != nil {
			return err
		}
		report.Candidates = len(candidates)
		if len(candidates) == 0 {
			return nil
		}
		logger.InfoContext(ctx, "Updating players", slog.String("federation_numbers", joinPlayerKeys(candidates)))

		profiles := s.prefetchProfiles(ctx, candidates)

		for _, player := range candidates {
			var outcome playerOutcome
			savepoint := fmt.Sprintf("sync_player_%d", player.ID)
			err := s.tx.WithinSavepoint(ctx, exec, savepoint, func() error {
				identity, err := s.identityFor(ctx, exec, byNumber, player.FederationNumber)
				if err != nil {
					return err
				}
				outcome, err = s.applyPlayer(ctx, exec, logger, player, identity, profiles[player.ID], start)
				return err
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.WarnContext(ctx, "Skipping player, update failed",
					slog.Int("federation_number", player.FederationNumber),
					slog.Int("player_id", player.ID),
					slog.Any("error", err))
				report.Failed = append(report.Failed, player.FederationNumber)
				continue
			}
			if outcome.updated {
				report.Updated++
			}
			if outcome.deactivated {
				report.Deactivated++
			}
			report.Removed += outcome.removed
			notifications = append(notifications, outcome.notifications...)
			evts = append(evts, outcome.events...)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return notifications, evts, nil
}

func joinPlayerKeys(players []*models.Player) string {
	keys := make([]int, len(players))
	for i, p := range players {
		keys[i] = p.FederationNumber
	}
	sort.Ints(keys)
	return joinKeys(keys)
}

// prefetchProfiles fetches all candidate profiles with bounded concurrency.
// Errors are kept per player and never cancel the other fetches.
func (s *SyncService) prefetchProfiles(ctx context.Context, players []*models.Player) map[int]profileResult {
	results := make(map[int]profileResult, len(players))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range players {
		g.Go(func() error {
			profile, err := s.registry.FetchProfile(gctx, p.FederationNumber)
			mu.Lock()
			results[p.ID] = profileResult{profile: profile, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// identityFor returns the name record of this run, or the stored one when the
// entry is missing or malformed in this run's list. Nil when neither exists.
func (s *SyncService) identityFor(ctx context.Context, exec repositories.SQLExecutor, byNumber map[int]*models.Identity, federationNumber int) (*models.Identity, error) {
	if identity, ok := byNumber[federationNumber]; ok {
		return identity, nil
	}
	identity, err := s.identities.GetByFederationNumber(ctx, exec, federationNumber)
	if errors.Is(err, repositories.ErrIdentityNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stored identity: %w", err)
	}
	return identity, nil
}

// applyPlayer updates one mirror from its registry data and cascades a loss of
// eligibility to the player's rosters.
func (s *SyncService) applyPlayer(ctx context.Context, exec repositories.SQLExecutor, logger *slog.Logger, player *models.Player, identity *models.Identity, fetched profileResult, start time.Time) (playerOutcome, error) {
	var outcome playerOutcome

	if fetched.err != nil && !errors.Is(fetched.err, registry.ErrNotFound) {
		return outcome, fmt.Errorf("failed to fetch registry profile: %w", fetched.err)
	}

	switch {
	case fetched.profile != nil:
		if identity == nil {
			identity = mirrorIdentity(player, fetched.profile)
		}
		eligibility := policy.Lookup(s.policyID).Classify(*fetched.profile)
		applyProfile(player, identity, fetched.profile, eligibility)
		outcome.updated = true
		logger.InfoContext(ctx, "Updated player from registry",
			slog.Int("player_id", player.ID),
			slog.Int("federation_number", player.FederationNumber),
			slog.String("eligibility", eligibility.String()),
			slog.Int("club_id", player.ClubID))

	case player.IsEligible():
		until := start
		if identity != nil {
			until = identity.LastModified
		}
		player.EligibleUntil = &until
		player.LastModified = start.Add(-deactivationBackdate)
		outcome.deactivated = true
		logger.InfoContext(ctx, "Deactivated player missing from registry",
			slog.Int("player_id", player.ID),
			slog.Int("federation_number", player.FederationNumber))

	default:
		// Профиля нет, игрок уже неактивен: менять нечего.
		return outcome, nil
	}

	if err := s.players.Update(ctx, exec, player); err != nil {
		return outcome, err
	}

	if player.IsEligible() {
		return outcome, nil
	}
	if err := s.cascadeIneligible(ctx, exec, logger, player, start.Year(), &outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// mirrorIdentity stands in for a missing name record with the mirror's own data.
func mirrorIdentity(p *models.Player, profile *models.ProfileDetail) *models.Identity {
	first, last := p.FirstName, p.LastName
	return &models.Identity{
		FederationNumber: p.FederationNumber,
		FirstName:        &first,
		LastName:         &last,
		LastModified:     p.LastModified,
		Consent:          profile.Consent,
		ClubID:           p.ClubID,
	}
}

// cascadeIneligible notifies the admins of current-season rosters and removes the
// player from future-season rosters. Past seasons are left untouched.
func (s *SyncService) cascadeIneligible(ctx context.Context, exec repositories.SQLExecutor, logger *slog.Logger, player *models.Player, currentYear int, outcome *playerOutcome) error {
	rosters, err := s.rosters.ListByPlayer(ctx, exec, player.ID)
	if err != nil {
		return err
	}

	for _, roster := range rosters {
		if roster.Season == nil {
			continue
		}
		switch {
		case roster.Season.Year == currentYear:
			admins, err := s.teams.ListAdmins(ctx, exec, roster.TeamID)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "Ineligible player listed on current roster",
				slog.Int("player_id", player.ID),
				slog.Int("federation_number", player.FederationNumber),
				slog.Int("roster_id", roster.ID),
				slog.String("roster", roster.Label()))
			msg := IneligiblePlayerMessage(player, roster)
			for _, admin := range admins {
				outcome.notifications = append(outcome.notifications, pendingNotification{
					federationNumber: player.FederationNumber,
					rosterID:         roster.ID,
					message:          msg,
					recipient:        recipientFor(admin),
				})
			}
			outcome.events = append(outcome.events, pendingEvent{
				teamID:    roster.TeamID,
				eventType: events.TypePlayerIneligible,
				payload:   map[string]int{"roster_id": roster.ID, "player_id": player.ID},
			})

		case roster.Season.Year > currentYear:
			if err := s.rosters.RemovePlayer(ctx, exec, roster.ID, player.ID); err != nil {
				return err
			}
			outcome.removed++
			logger.InfoContext(ctx, "Removed ineligible player from future roster",
				slog.Int("player_id", player.ID),
				slog.Int("federation_number", player.FederationNumber),
				slog.Int("roster_id", roster.ID))
			outcome.events = append(outcome.events, pendingEvent{
				teamID:    roster.TeamID,
				eventType: events.TypeRosterPlayerRemoved,
				payload:   map[string]int{"roster_id": roster.ID, "player_id": player.ID},
			})
		}
	}
	return nil
}

// dispatch sends notifications and events of a committed run. Failures are
// logged and counted only.
func (s *SyncService) dispatch(ctx context.Context, logger *slog.Logger, report *SyncReport, notifications []pendingNotification, evts []pendingEvent) {
	for _, n := range notifications {
		if s.notifier == nil {
			report.NotifyFailed++
			continue
		}
		if err := s.notifier.Send(ctx, n.message, []Recipient{n.recipient}); err != nil {
			report.NotifyFailed++
			logger.WarnContext(ctx, "Failed to notify team admin",
				slog.String("to", n.recipient.Email),
				slog.Int("federation_number", n.federationNumber),
				slog.Int("roster_id", n.rosterID),
				slog.Any("error", err))
			continue
		}
		report.Notified++
		logger.InfoContext(ctx, "Notified team admin about ineligible player",
			slog.String("to", n.recipient.Email),
			slog.Int("federation_number", n.federationNumber),
			slog.Int("roster_id", n.rosterID))
	}

	if s.events == nil {
		return
	}
	for _, e := range evts {
		room := events.TeamRoom(e.teamID)
		s.events.BroadcastToRoom(room, events.Message{Type: e.eventType, Payload: e.payload, RoomID: room})
	}
}

func archiveKey(report *SyncReport) string {
	return fmt.Sprintf("sync-reports/%s/%s.json", report.StartedAt.UTC().Format("2006/01/02"), report.RunID)
}

func (s *SyncService) archiveReport(ctx context.Context, logger *slog.Logger, report *SyncReport) {
	if s.archive == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		logger.WarnContext(ctx, "Failed to encode sync report", slog.Any("error", err))
		return
	}
	res, err := s.archive.Upload(ctx, archiveKey(report), "application/json", bytes.NewReader(data))
	if err != nil {
		logger.WarnContext(ctx, "Failed to archive sync report", slog.Any("error", err))
		return
	}
	report.ArchiveURL = res.Location
}
