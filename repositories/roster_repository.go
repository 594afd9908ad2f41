// File: repositories/roster_repository.go
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/roster-system/models"
	"github.com/lib/pq"
)

var (
	ErrRosterNotFound        = errors.New("roster not found")
	ErrRosterConflict        = errors.New("roster for this team, season and division already exists")
	ErrRosterVersionConflict = errors.New("roster was modified concurrently")
	ErrRosterTeamInvalid     = errors.New("roster references a missing team, season or context")
	ErrRosterPlayerNotFound  = errors.New("player is not on this roster")
	ErrRosterPlayerConflict  = errors.New("player is already on this roster")
)

type RosterRepository interface {
	// GetByID загружает ростер с командой, сезоном, контекстом и игроками.
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Roster, error)
	// FindForTeamSeasonDivision возвращает ErrRosterNotFound, если ростера нет.
	FindForTeamSeasonDivision(ctx context.Context, exec SQLExecutor, teamID, seasonID int, divisionType models.DivisionType, divisionAge models.DivisionAge) (*models.Roster, error)
	Create(ctx context.Context, exec SQLExecutor, roster *models.Roster) error
	// Update сохраняет ростер, только если версия в базе совпадает с roster.Version,
	// и увеличивает roster.Version на единицу.
	Update(ctx context.Context, exec SQLExecutor, roster *models.Roster) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error

	GetRosterPlayer(ctx context.Context, exec SQLExecutor, rosterID, playerID int) (*models.RosterPlayer, error)
	AddPlayer(ctx context.Context, exec SQLExecutor, rp *models.RosterPlayer) error
	RemovePlayer(ctx context.Context, exec SQLExecutor, rosterID, playerID int) error
	// ListByPlayer возвращает все ростеры игрока с командой и сезоном.
	ListByPlayer(ctx context.Context, exec SQLExecutor, playerID int) ([]*models.Roster, error)

	// FindConflictingRoster ищет другой ростер с тем же сезоном, дивизионом и
	// контекстом, в котором уже числится игрок. nil, если такого нет.
	FindConflictingRoster(ctx context.Context, exec SQLExecutor, playerID int, roster *models.Roster) (*models.Roster, error)
	// BlockingDates возвращает даты начала официальных турниров, на которые
	// заявлен ростер, по возрастанию.
	BlockingDates(ctx context.Context, exec SQLExecutor, rosterID int) ([]time.Time, error)
	ListRegistrations(ctx context.Context, exec SQLExecutor, rosterIDs []int) ([]models.TeamRegistration, error)
}

type postgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) RosterRepository {
	return &postgresRosterRepository{db: db}
}

const rosterSelect = `
	SELECT r.id, r.team_id, r.season_id, r.division_type, r.division_age, r.name_addition,
	       r.context_id, r.version,
	       t.name, s.year, s.surface,
	       c.acronym, c.name
	FROM rosters r
	JOIN teams t ON t.id = r.team_id
	JOIN seasons s ON s.id = r.season_id
	LEFT JOIN contexts c ON c.id = r.context_id`

func scanRoster(s rowScanner) (*models.Roster, error) {
	var (
		roster         models.Roster
		team           models.Team
		season         models.Season
		contextID      sql.NullInt64
		contextAcronym sql.NullString
		contextName    sql.NullString
	)
	err := s.Scan(
		&roster.ID, &roster.TeamID, &roster.SeasonID, &roster.DivisionType, &roster.DivisionAge, &roster.NameAddition,
		&contextID, &roster.Version,
		&team.Name, &season.Year, &season.Surface,
		&contextAcronym, &contextName,
	)
	if err != nil {
		return nil, err
	}
	team.ID = roster.TeamID
	season.ID = roster.SeasonID
	roster.Team = &team
	roster.Season = &season
	if contextID.Valid {
		id := int(contextID.Int64)
		roster.ContextID = &id
		roster.Context = &models.Context{ID: id, Acronym: contextAcronym.String, Name: contextName.String}
	}
	return &roster, nil
}

func (r *postgresRosterRepository) queryRosters(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Roster, error) {
	rows, err := pick(exec, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rosters: %w", err)
	}
	defer rows.Close()

	rosters := make([]*models.Roster, 0)
	for rows.Next() {
		roster, err := scanRoster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		rosters = append(rosters, roster)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roster rows: %w", err)
	}
	return rosters, nil
}

func (r *postgresRosterRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Roster, error) {
	roster, err := scanRoster(pick(exec, r.db).QueryRowContext(ctx, rosterSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterNotFound
		}
		return nil, fmt.Errorf("failed to get roster %d: %w", id, err)
	}

	players, err := r.listPlayers(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	roster.Players = players
	return roster, nil
}

func (r *postgresRosterRepository) listPlayers(ctx context.Context, exec SQLExecutor, rosterID int) ([]models.RosterPlayer, error) {
	query := `
		SELECT rp.roster_id, rp.player_id, rp.date_added, ` + playerColumns + `
		FROM roster_players rp
		JOIN players p ON p.id = rp.player_id
		WHERE rp.roster_id = $1
		ORDER BY p.last_name, p.first_name`

	rows, err := pick(exec, r.db).QueryContext(ctx, query, rosterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players of roster %d: %w", rosterID, err)
	}
	defer rows.Close()

	entries := make([]models.RosterPlayer, 0)
	for rows.Next() {
		var rp models.RosterPlayer
		var p models.Player
		var birthDate, eligibleUntil sql.NullTime
		if err := rows.Scan(
			&rp.RosterID, &rp.PlayerID, &rp.DateAdded,
			&p.ID, &p.FederationNumber, &p.FirstName, &p.LastName, &p.Gender, &birthDate,
			&p.Email, &p.ClubID, &p.Paid, &eligibleUntil, &p.LastModified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan roster player row: %w", err)
		}
		if birthDate.Valid {
			p.BirthDate = &birthDate.Time
		}
		if eligibleUntil.Valid {
			p.EligibleUntil = &eligibleUntil.Time
		}
		rp.Player = &p
		entries = append(entries, rp)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roster player rows: %w", err)
	}
	return entries, nil
}

func (r *postgresRosterRepository) FindForTeamSeasonDivision(ctx context.Context, exec SQLExecutor, teamID, seasonID int, divisionType models.DivisionType, divisionAge models.DivisionAge) (*models.Roster, error) {
	query := rosterSelect + `
		WHERE r.team_id = $1 AND r.season_id = $2 AND r.division_type = $3 AND r.division_age = $4`

	roster, err := scanRoster(pick(exec, r.db).QueryRowContext(ctx, query, teamID, seasonID, divisionType, divisionAge))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterNotFound
		}
		return nil, fmt.Errorf("failed to find roster for team %d: %w", teamID, err)
	}
	return roster, nil
}

func mapRosterWriteError(err error, action string) error {
	if code, constraint, ok := pqViolation(err); ok {
		switch {
		case code == pqUniqueViolation && constraint == "rosters_team_season_division_key":
			return ErrRosterConflict
		case code == pqForeignKeyViolation:
			return ErrRosterTeamInvalid
		}
	}
	return fmt.Errorf("failed to %s roster: %w", action, err)
}

func (r *postgresRosterRepository) Create(ctx context.Context, exec SQLExecutor, roster *models.Roster) error {
	query := `
		INSERT INTO rosters (team_id, season_id, division_type, division_age, name_addition, context_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		RETURNING id, version`

	err := pick(exec, r.db).QueryRowContext(ctx, query,
		roster.TeamID, roster.SeasonID, roster.DivisionType, roster.DivisionAge, roster.NameAddition, roster.ContextID,
	).Scan(&roster.ID, &roster.Version)
	if err != nil {
		return mapRosterWriteError(err, "create")
	}
	return nil
}

func (r *postgresRosterRepository) Update(ctx context.Context, exec SQLExecutor, roster *models.Roster) error {
	executor := pick(exec, r.db)
	query := `
		UPDATE rosters SET team_id = $1, season_id = $2, division_type = $3, division_age = $4,
			name_addition = $5, context_id = $6, version = version + 1
		WHERE id = $7 AND version = $8
		RETURNING version`

	var newVersion int
	err := executor.QueryRowContext(ctx, query,
		roster.TeamID, roster.SeasonID, roster.DivisionType, roster.DivisionAge, roster.NameAddition, roster.ContextID,
		roster.ID, roster.Version,
	).Scan(&newVersion)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return mapRosterWriteError(err, "update")
		}
		// Строка не обновлена: либо ростера нет, либо версия устарела.
		var exists bool
		if err := executor.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rosters WHERE id = $1)`, roster.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check roster %d existence: %w", roster.ID, err)
		}
		if !exists {
			return ErrRosterNotFound
		}
		return ErrRosterVersionConflict
	}
	roster.Version = newVersion
	return nil
}

func (r *postgresRosterRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := pick(exec, r.db).ExecContext(ctx, `DELETE FROM rosters WHERE id = $1`, id)
	if err != nil {
		if code, _, ok := pqViolation(err); ok && code == pqForeignKeyViolation {
			return fmt.Errorf("roster %d is still referenced: %w", id, err)
		}
		return fmt.Errorf("failed to delete roster %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRosterNotFound)
}

func (r *postgresRosterRepository) GetRosterPlayer(ctx context.Context, exec SQLExecutor, rosterID, playerID int) (*models.RosterPlayer, error) {
	query := `SELECT roster_id, player_id, date_added FROM roster_players WHERE roster_id = $1 AND player_id = $2`
	var rp models.RosterPlayer
	err := pick(exec, r.db).QueryRowContext(ctx, query, rosterID, playerID).Scan(&rp.RosterID, &rp.PlayerID, &rp.DateAdded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player %d of roster %d: %w", playerID, rosterID, err)
	}
	return &rp, nil
}

func (r *postgresRosterRepository) AddPlayer(ctx context.Context, exec SQLExecutor, rp *models.RosterPlayer) error {
	query := `INSERT INTO roster_players (roster_id, player_id, date_added) VALUES ($1, $2, $3)`
	_, err := pick(exec, r.db).ExecContext(ctx, query, rp.RosterID, rp.PlayerID, rp.DateAdded)
	if err != nil {
		if code, _, ok := pqViolation(err); ok {
			switch code {
			case pqUniqueViolation:
				return ErrRosterPlayerConflict
			case pqForeignKeyViolation:
				return ErrRosterNotFound
			}
		}
		return fmt.Errorf("failed to add player %d to roster %d: %w", rp.PlayerID, rp.RosterID, err)
	}
	return nil
}

func (r *postgresRosterRepository) RemovePlayer(ctx context.Context, exec SQLExecutor, rosterID, playerID int) error {
	result, err := pick(exec, r.db).ExecContext(ctx,
		`DELETE FROM roster_players WHERE roster_id = $1 AND player_id = $2`, rosterID, playerID)
	if err != nil {
		return fmt.Errorf("failed to remove player %d from roster %d: %w", playerID, rosterID, err)
	}
	return checkAffectedRows(result, ErrRosterPlayerNotFound)
}

func (r *postgresRosterRepository) ListByPlayer(ctx context.Context, exec SQLExecutor, playerID int) ([]*models.Roster, error) {
	query := rosterSelect + `
		JOIN roster_players rp ON rp.roster_id = r.id
		WHERE rp.player_id = $1
		ORDER BY s.year, r.id`
	return r.queryRosters(ctx, exec, query, playerID)
}

func (r *postgresRosterRepository) FindConflictingRoster(ctx context.Context, exec SQLExecutor, playerID int, roster *models.Roster) (*models.Roster, error) {
	if roster.ContextID == nil {
		return nil, nil
	}
	query := rosterSelect + `
		JOIN roster_players rp ON rp.roster_id = r.id
		WHERE rp.player_id = $1
		  AND r.season_id = $2
		  AND r.division_type = $3
		  AND r.division_age = $4
		  AND r.context_id = $5
		  AND r.id <> $6
		ORDER BY r.id
		LIMIT 1`

	found, err := scanRoster(pick(exec, r.db).QueryRowContext(ctx, query,
		playerID, roster.SeasonID, roster.DivisionType, roster.DivisionAge, *roster.ContextID, roster.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up conflicting roster for player %d: %w", playerID, err)
	}
	return found, nil
}

func (r *postgresRosterRepository) BlockingDates(ctx context.Context, exec SQLExecutor, rosterID int) ([]time.Time, error) {
	query := `
		SELECT DISTINCT e.start_date
		FROM team_registrations tr
		JOIN event_divisions ed ON ed.id = tr.event_division_id
		JOIN events e ON e.id = ed.event_id
		JOIN rosters r ON r.id = tr.roster_id
		WHERE tr.roster_id = $1
		  AND e.official
		  AND ed.division_type = r.division_type
		  AND ed.division_age = r.division_age
		ORDER BY e.start_date`

	rows, err := pick(exec, r.db).QueryContext(ctx, query, rosterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocking dates of roster %d: %w", rosterID, err)
	}
	defer rows.Close()

	dates := make([]time.Time, 0)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan blocking date: %w", err)
		}
		dates = append(dates, models.DateOf(d))
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocking dates: %w", err)
	}
	return dates, nil
}

func (r *postgresRosterRepository) ListRegistrations(ctx context.Context, exec SQLExecutor, rosterIDs []int) ([]models.TeamRegistration, error) {
	regs := make([]models.TeamRegistration, 0)
	if len(rosterIDs) == 0 {
		return regs, nil
	}
	ids := make([]int64, len(rosterIDs))
	for i, id := range rosterIDs {
		ids[i] = int64(id)
	}

	query := `
		SELECT id, event_division_id, roster_id, created_at
		FROM team_registrations
		WHERE roster_id = ANY($1)
		ORDER BY created_at`

	rows, err := pick(exec, r.db).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list team registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reg models.TeamRegistration
		if err := rows.Scan(&reg.ID, &reg.EventDivisionID, &reg.RosterID, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team registration: %w", err)
		}
		regs = append(regs, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team registrations: %w", err)
	}
	return regs, nil
}
