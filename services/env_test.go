package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/roster-system/metrics"
	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/policy"
)

const (
	adminOne = 1
	adminTwo = 2
	stranger = 3

	teamOne = 1
	teamTwo = 2

	season2024 = 1
	season2025 = 2
	season2023 = 3

	contextDFV = 1
)

var (
	annaAdmin = models.User{ID: adminOne, Email: "anna@example.org", FirstName: "Anna", LastName: "Berg"}
	benAdmin  = models.User{ID: adminTwo, Email: "ben@example.org", FirstName: "Ben"}
)

type testEnv struct {
	store    *memStore
	tx       *fakeTx
	registry *fakeRegistry
	events   *fakePublisher
	notifier *fakeNotifier
	clock    fixedClock
	metrics  *metrics.Metrics
	logger   *slog.Logger

	validator *RosterValidator
	rosters   *RosterService
}

func newTestEnv() *testEnv {
	store := newMemStore()
	store.addTeam(teamOne, "Flying Discs", annaAdmin)
	store.addTeam(teamTwo, "Hammers", benAdmin)
	store.addSeason(season2024, 2024)
	store.addSeason(season2025, 2025)
	store.addSeason(season2023, 2023)
	store.addContext(contextDFV, "DFV")

	env := &testEnv{
		store:    store,
		tx:       &fakeTx{store: store},
		registry: newFakeRegistry(),
		events:   &fakePublisher{},
		notifier: &fakeNotifier{fail: map[string]bool{}},
		clock:    fixedClock{now: time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)},
		metrics:  metrics.NewWithRegisterer(prometheus.NewRegistry()),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	env.validator = NewRosterValidator(memTeams{store}, memRosters{store}, policy.NewEngine(memRosters{store}))
	env.rosters = NewRosterService(RosterServiceDeps{
		Tx:              env.tx,
		Rosters:         memRosters{store},
		Players:         memPlayers{store},
		Identities:      memIdentities{store},
		Teams:           memTeams{store},
		Registry:        env.registry,
		Validator:       env.validator,
		Events:          env.events,
		Clock:           env.clock,
		Metrics:         env.metrics,
		Logger:          env.logger,
		RegistryTimeout: time.Second,
	})
	return env
}

func (e *testEnv) syncService(enabled bool, opts ...func(*SyncServiceDeps)) *SyncService {
	deps := SyncServiceDeps{
		Enabled:     enabled,
		Tx:          e.tx,
		Registry:    e.registry,
		Identities:  memIdentities{e.store},
		Players:     memPlayers{e.store},
		Rosters:     memRosters{e.store},
		Teams:       memTeams{e.store},
		Notifier:    e.notifier,
		Events:      e.events,
		Concurrency: 2,
		Policy:      policy.DFV,
		Clock:       e.clock,
		Metrics:     e.metrics,
		Logger:      e.logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewSyncService(deps)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func eligibleProfile(n int, gender string, born time.Time) models.ProfileDetail {
	return models.ProfileDetail{
		FederationNumber: n,
		Consent:          true,
		Paid:             true,
		Active:           true,
		Gender:           gender,
		BirthDate:        &born,
		Email:            "player@example.org",
		ClubID:           7,
	}
}

// member registers a consenting registry member with an eligible profile.
func (e *testEnv) member(n int, first, last, gender string, born time.Time) models.Identity {
	identity := models.Identity{
		FederationNumber: n,
		FirstName:        ptr(first),
		LastName:         ptr(last),
		LastModified:     date(2024, time.January, 1),
		Consent:          true,
		ClubID:           7,
	}
	e.store.putIdentity(identity)
	e.registry.profiles[n] = eligibleProfile(n, gender, born)
	return identity
}

// mirror registers a member and its eligible local player, in sync with the registry.
func (e *testEnv) mirror(n int, first, last string, gender models.Gender, born time.Time) int {
	identity := e.member(n, first, last, string(gender), born)
	return e.store.putPlayer(models.Player{
		FederationNumber: n,
		FirstName:        first,
		LastName:         last,
		Gender:           gender,
		BirthDate:        &born,
		ClubID:           7,
		Paid:             true,
		LastModified:     identity.LastModified,
	})
}

func (e *testEnv) roster(teamID, seasonID int, dt models.DivisionType, age models.DivisionAge, contextID *int) int {
	return e.store.putRoster(models.Roster{
		TeamID:       teamID,
		SeasonID:     seasonID,
		DivisionType: dt,
		DivisionAge:  age,
		ContextID:    contextID,
	})
}

func requireRule(t *testing.T, err error, kind error, code string) *RuleError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var re *RuleError
	require.ErrorAs(t, err, &re)
	require.Equal(t, code, re.Code, "unexpected rejection: %v", err)
	return re
}
