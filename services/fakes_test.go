package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/roster-system/models"
	"github.com/Dosada05/roster-system/registry"
	"github.com/Dosada05/roster-system/repositories"
)

// memStore is an in-memory stand-in for the postgres repositories. Reads return
// copies so that a rolled back transaction leaves no trace in callers' objects.
type memStore struct {
	mu sync.Mutex

	identities    map[int]models.Identity
	players       map[int]models.Player
	nextPlayerID  int
	teams         map[int]models.Team
	admins        map[int][]models.User
	seasons       map[int]models.Season
	contexts      map[int]models.Context
	rosters       map[int]models.Roster
	nextRosterID  int
	members       map[int]map[int]time.Time
	blocking      map[int][]time.Time
	registrations map[int][]models.TeamRegistration

	// ошибки для отдельных операций, по id игрока
	failUpdate      map[int]error
	failListRosters map[int]error
}

func newMemStore() *memStore {
	return &memStore{
		identities:      map[int]models.Identity{},
		players:         map[int]models.Player{},
		nextPlayerID:    1,
		teams:           map[int]models.Team{},
		admins:          map[int][]models.User{},
		seasons:         map[int]models.Season{},
		contexts:        map[int]models.Context{},
		rosters:         map[int]models.Roster{},
		nextRosterID:    1,
		members:         map[int]map[int]time.Time{},
		blocking:        map[int][]time.Time{},
		registrations:   map[int][]models.TeamRegistration{},
		failUpdate:      map[int]error{},
		failListRosters: map[int]error{},
	}
}

type memSnapshot struct {
	identities   map[int]models.Identity
	players      map[int]models.Player
	nextPlayerID int
	rosters      map[int]models.Roster
	nextRosterID int
	members      map[int]map[int]time.Time
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make(map[int]map[int]time.Time, len(s.members))
	for id, m := range s.members {
		members[id] = copyMap(m)
	}
	return memSnapshot{
		identities:   copyMap(s.identities),
		players:      copyMap(s.players),
		nextPlayerID: s.nextPlayerID,
		rosters:      copyMap(s.rosters),
		nextRosterID: s.nextRosterID,
		members:      members,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = snap.identities
	s.players = snap.players
	s.nextPlayerID = snap.nextPlayerID
	s.rosters = snap.rosters
	s.nextRosterID = snap.nextRosterID
	s.members = snap.members
}

// fixture helpers

func (s *memStore) addTeam(id int, name string, admins ...models.User) {
	s.teams[id] = models.Team{ID: id, Name: name}
	s.admins[id] = admins
}

func (s *memStore) addSeason(id, year int) {
	s.seasons[id] = models.Season{ID: id, Year: year, Surface: "grass"}
}

func (s *memStore) addContext(id int, acronym string) {
	s.contexts[id] = models.Context{ID: id, Acronym: acronym, Name: acronym}
}

func (s *memStore) putIdentity(i models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[i.FederationNumber] = i
}

func (s *memStore) putPlayer(p models.Player) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextPlayerID
	}
	if p.ID >= s.nextPlayerID {
		s.nextPlayerID = p.ID + 1
	}
	s.players[p.ID] = p
	return p.ID
}

func (s *memStore) putRoster(r models.Roster) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextRosterID
	s.nextRosterID++
	if r.Version == 0 {
		r.Version = 1
	}
	s.rosters[r.ID] = r
	return r.ID
}

func (s *memStore) putMember(rosterID, playerID int, added time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[rosterID] == nil {
		s.members[rosterID] = map[int]time.Time{}
	}
	s.members[rosterID][playerID] = added
}

func (s *memStore) player(id int) models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id]
}

func (s *memStore) isMember(rosterID, playerID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[rosterID][playerID]
	return ok
}

func (s *memStore) playerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

func (s *memStore) rosterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rosters)
}

// loadRoster must be called with mu held.
func (s *memStore) loadRoster(id int) (*models.Roster, bool) {
	base, ok := s.rosters[id]
	if !ok {
		return nil, false
	}
	r := base
	if t, ok := s.teams[r.TeamID]; ok {
		r.Team = &t
	}
	if season, ok := s.seasons[r.SeasonID]; ok {
		r.Season = &season
	}
	if r.ContextID != nil {
		if c, ok := s.contexts[*r.ContextID]; ok {
			r.Context = &c
		}
	}
	r.Players = nil
	for playerID, added := range s.members[id] {
		p := s.players[playerID]
		r.Players = append(r.Players, models.RosterPlayer{RosterID: id, PlayerID: playerID, DateAdded: added, Player: &p})
	}
	sort.Slice(r.Players, func(i, j int) bool { return r.Players[i].PlayerID < r.Players[j].PlayerID })
	return &r, true
}

type memIdentities struct{ s *memStore }

func (m memIdentities) Refresh(_ context.Context, _ repositories.SQLExecutor, identities []models.Identity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, i := range identities {
		m.s.identities[i.FederationNumber] = i
	}
	return nil
}

func (m memIdentities) GetByFederationNumber(_ context.Context, _ repositories.SQLExecutor, n int) (*models.Identity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	i, ok := m.s.identities[n]
	if !ok {
		return nil, repositories.ErrIdentityNotFound
	}
	return &i, nil
}

type memPlayers struct{ s *memStore }

func (m memPlayers) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Player, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return &p, nil
}

func (m memPlayers) GetByFederationNumber(_ context.Context, _ repositories.SQLExecutor, n int) (*models.Player, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.players {
		if p.FederationNumber == n {
			return &p, nil
		}
	}
	return nil, repositories.ErrPlayerNotFound
}

func (m memPlayers) LockForUpdate(_ context.Context, _ repositories.SQLExecutor, id int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.players[id]; !ok {
		return repositories.ErrPlayerNotFound
	}
	return nil
}

func (m memPlayers) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Player) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.players {
		if existing.FederationNumber == p.FederationNumber {
			return repositories.ErrPlayerConflict
		}
	}
	p.ID = m.s.nextPlayerID
	m.s.nextPlayerID++
	m.s.players[p.ID] = *p
	return nil
}

func (m memPlayers) Update(_ context.Context, _ repositories.SQLExecutor, p *models.Player) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.failUpdate[p.ID]; err != nil {
		return err
	}
	if _, ok := m.s.players[p.ID]; !ok {
		return repositories.ErrPlayerNotFound
	}
	m.s.players[p.ID] = *p
	return nil
}

func (m memPlayers) ListNeedingUpdate(_ context.Context, _ repositories.SQLExecutor) ([]*models.Player, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Player
	for _, p := range m.s.players {
		i, ok := m.s.identities[p.FederationNumber]
		if ok && i.LastModified.After(p.LastModified) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].FederationNumber < out[b].FederationNumber })
	return out, nil
}

type memTeams struct{ s *memStore }

func (m memTeams) LockForUpdate(_ context.Context, _ repositories.SQLExecutor, id int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	return nil
}

func (m memTeams) IsAdmin(_ context.Context, _ repositories.SQLExecutor, teamID, userID int) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.admins[teamID] {
		if u.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m memTeams) ListAdmins(_ context.Context, _ repositories.SQLExecutor, teamID int) ([]models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]models.User(nil), m.s.admins[teamID]...), nil
}

type memRosters struct{ s *memStore }

func (m memRosters) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Roster, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.loadRoster(id)
	if !ok {
		return nil, repositories.ErrRosterNotFound
	}
	return r, nil
}

func (m memRosters) FindForTeamSeasonDivision(_ context.Context, _ repositories.SQLExecutor, teamID, seasonID int, divisionType models.DivisionType, divisionAge models.DivisionAge) (*models.Roster, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, r := range m.s.rosters {
		if r.TeamID == teamID && r.SeasonID == seasonID && r.DivisionType == divisionType && r.DivisionAge == divisionAge {
			loaded, _ := m.s.loadRoster(id)
			return loaded, nil
		}
	}
	return nil, repositories.ErrRosterNotFound
}

func (m memRosters) Create(_ context.Context, _ repositories.SQLExecutor, roster *models.Roster) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.rosters {
		if r.TeamID == roster.TeamID && r.SeasonID == roster.SeasonID && r.DivisionType == roster.DivisionType && r.DivisionAge == roster.DivisionAge {
			return repositories.ErrRosterConflict
		}
	}
	if _, ok := m.s.teams[roster.TeamID]; !ok {
		return repositories.ErrRosterTeamInvalid
	}
	if _, ok := m.s.seasons[roster.SeasonID]; !ok {
		return repositories.ErrRosterTeamInvalid
	}
	roster.ID = m.s.nextRosterID
	m.s.nextRosterID++
	roster.Version = 1
	base := *roster
	base.Team, base.Season, base.Context, base.Players = nil, nil, nil, nil
	m.s.rosters[roster.ID] = base
	return nil
}

func (m memRosters) Update(_ context.Context, _ repositories.SQLExecutor, roster *models.Roster) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	current, ok := m.s.rosters[roster.ID]
	if !ok {
		return repositories.ErrRosterNotFound
	}
	if current.Version != roster.Version {
		return repositories.ErrRosterVersionConflict
	}
	roster.Version++
	base := *roster
	base.Team, base.Season, base.Context, base.Players = nil, nil, nil, nil
	m.s.rosters[roster.ID] = base
	return nil
}

func (m memRosters) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.rosters[id]; !ok {
		return repositories.ErrRosterNotFound
	}
	delete(m.s.rosters, id)
	delete(m.s.members, id)
	return nil
}

func (m memRosters) GetRosterPlayer(_ context.Context, _ repositories.SQLExecutor, rosterID, playerID int) (*models.RosterPlayer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	added, ok := m.s.members[rosterID][playerID]
	if !ok {
		return nil, repositories.ErrRosterPlayerNotFound
	}
	return &models.RosterPlayer{RosterID: rosterID, PlayerID: playerID, DateAdded: added}, nil
}

func (m memRosters) AddPlayer(_ context.Context, _ repositories.SQLExecutor, rp *models.RosterPlayer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.members[rp.RosterID] == nil {
		m.s.members[rp.RosterID] = map[int]time.Time{}
	}
	if _, ok := m.s.members[rp.RosterID][rp.PlayerID]; ok {
		return repositories.ErrRosterPlayerConflict
	}
	m.s.members[rp.RosterID][rp.PlayerID] = rp.DateAdded
	return nil
}

func (m memRosters) RemovePlayer(_ context.Context, _ repositories.SQLExecutor, rosterID, playerID int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.members[rosterID][playerID]; !ok {
		return repositories.ErrRosterPlayerNotFound
	}
	delete(m.s.members[rosterID], playerID)
	return nil
}

func (m memRosters) ListByPlayer(_ context.Context, _ repositories.SQLExecutor, playerID int) ([]*models.Roster, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.s.failListRosters[playerID]; err != nil {
		return nil, err
	}
	var out []*models.Roster
	for id, members := range m.s.members {
		if _, ok := members[playerID]; ok {
			r, _ := m.s.loadRoster(id)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m memRosters) FindConflictingRoster(_ context.Context, _ repositories.SQLExecutor, playerID int, roster *models.Roster) (*models.Roster, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if roster.ContextID == nil {
		return nil, nil
	}
	for id, r := range m.s.rosters {
		if id == roster.ID || r.ContextID == nil || *r.ContextID != *roster.ContextID {
			continue
		}
		if r.SeasonID != roster.SeasonID || r.DivisionType != roster.DivisionType || r.DivisionAge != roster.DivisionAge {
			continue
		}
		if _, ok := m.s.members[id][playerID]; ok {
			loaded, _ := m.s.loadRoster(id)
			return loaded, nil
		}
	}
	return nil, nil
}

func (m memRosters) BlockingDates(_ context.Context, _ repositories.SQLExecutor, rosterID int) ([]time.Time, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]time.Time(nil), m.s.blocking[rosterID]...), nil
}

func (m memRosters) ListRegistrations(_ context.Context, _ repositories.SQLExecutor, rosterIDs []int) ([]models.TeamRegistration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.TeamRegistration
	for _, id := range rosterIDs {
		out = append(out, m.s.registrations[id]...)
	}
	return out, nil
}

// fakeTx serializes transactions and rolls the store back on error, which is
// enough to model the team row lock and savepoints.
type fakeTx struct {
	store *memStore
	mu    sync.Mutex
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.store.snapshot()
	if err := fn(nil); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

func (f *fakeTx) WithinSavepoint(ctx context.Context, _ repositories.SQLExecutor, _ string, fn func() error) error {
	snap := f.store.snapshot()
	if err := fn(); err != nil {
		f.store.restore(snap)
		return err
	}
	return nil
}

type fakeRegistry struct {
	mu          sync.Mutex
	names       []models.Identity
	namesErr    error
	profiles    map[int]models.ProfileDetail
	profileErrs map[int]error
	nameCalls   int

	// если задан, FetchAllNames сигналит в entered и ждёт release
	entered chan struct{}
	release chan struct{}
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{profiles: map[int]models.ProfileDetail{}, profileErrs: map[int]error{}}
}

func (f *fakeRegistry) FetchAllNames(ctx context.Context) ([]models.Identity, error) {
	f.mu.Lock()
	f.nameCalls++
	entered, release := f.entered, f.release
	names, err := append([]models.Identity(nil), f.names...), f.namesErr
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return names, err
}

func (f *fakeRegistry) FetchProfile(_ context.Context, n int) (*models.ProfileDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.profileErrs[n]; err != nil {
		return nil, err
	}
	p, ok := f.profiles[n]
	if !ok {
		return nil, registry.ErrNotFound
	}
	return &p, nil
}

func (f *fakeRegistry) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nameCalls
}

type sentMessage struct {
	msg Message
	to  Recipient
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[string]bool
}

func (f *fakeNotifier) Send(_ context.Context, msg Message, recipients []Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, r := range recipients {
		if f.fail[r.Email] {
			errs = append(errs, errors.New("mailbox unavailable"))
			continue
		}
		f.sent = append(f.sent, sentMessage{msg: msg, to: r})
	}
	return errors.Join(errs...)
}

type published struct {
	room string
	msg  interface{}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) BroadcastToRoom(roomID string, message interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{room: roomID, msg: message})
}

func (f *fakePublisher) rooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.room
	}
	return out
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func ptr[T any](v T) *T { return &v }
