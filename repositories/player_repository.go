package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/roster-system/models"
)

var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPlayerConflict   = errors.New("player with this federation number already exists")
	ErrIdentityNotFound = errors.New("registry identity not found")
)

// IdentityRepository stores the mirror of the registry's name list.
type IdentityRepository interface {
	// Refresh inserts or replaces every identity by federation number.
	Refresh(ctx context.Context, exec SQLExecutor, identities []models.Identity) error
	GetByFederationNumber(ctx context.Context, exec SQLExecutor, federationNumber int) (*models.Identity, error)
}

type PlayerRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error)
	GetByFederationNumber(ctx context.Context, exec SQLExecutor, federationNumber int) (*models.Player, error)
	// LockForUpdate takes a row lock on the player for the rest of exec's transaction.
	LockForUpdate(ctx context.Context, exec SQLExecutor, id int) error
	Create(ctx context.Context, exec SQLExecutor, p *models.Player) error
	Update(ctx context.Context, exec SQLExecutor, p *models.Player) error
	// ListNeedingUpdate returns players whose registry identity changed after
	// the player's own last modification.
	ListNeedingUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Player, error)
}

type postgresIdentityRepository struct {
	db *sql.DB
}

func NewPostgresIdentityRepository(db *sql.DB) IdentityRepository {
	return &postgresIdentityRepository{db: db}
}

func (r *postgresIdentityRepository) Refresh(ctx context.Context, exec SQLExecutor, identities []models.Identity) error {
	if len(identities) == 0 {
		return nil
	}
	executor := pick(exec, r.db)
	query := `
		INSERT INTO registry_identities (federation_number, first_name, last_name, last_modified, consent, club_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (federation_number) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_modified = EXCLUDED.last_modified,
			consent = EXCLUDED.consent,
			club_id = EXCLUDED.club_id`

	for _, id := range identities {
		first, last := id.Names()
		_, err := executor.ExecContext(ctx, query,
			id.FederationNumber, first, last, id.LastModified, id.Consent, id.ClubID)
		if err != nil {
			return fmt.Errorf("failed to upsert registry identity %d: %w", id.FederationNumber, err)
		}
	}
	return nil
}

func (r *postgresIdentityRepository) GetByFederationNumber(ctx context.Context, exec SQLExecutor, federationNumber int) (*models.Identity, error) {
	query := `
		SELECT federation_number, first_name, last_name, last_modified, consent, club_id
		FROM registry_identities WHERE federation_number = $1`

	var id models.Identity
	var first, last string
	err := pick(exec, r.db).QueryRowContext(ctx, query, federationNumber).Scan(
		&id.FederationNumber, &first, &last, &id.LastModified, &id.Consent, &id.ClubID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get registry identity %d: %w", federationNumber, err)
	}
	id.FirstName, id.LastName = &first, &last
	return &id, nil
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

const playerColumns = `p.id, p.federation_number, p.first_name, p.last_name, p.gender, p.birth_date,
	p.email, p.club_id, p.paid, p.eligible_until, p.last_modified`

func scanPlayer(s rowScanner, p *models.Player) error {
	var birthDate, eligibleUntil sql.NullTime
	err := s.Scan(
		&p.ID, &p.FederationNumber, &p.FirstName, &p.LastName, &p.Gender, &birthDate,
		&p.Email, &p.ClubID, &p.Paid, &eligibleUntil, &p.LastModified,
	)
	if err != nil {
		return err
	}
	if birthDate.Valid {
		p.BirthDate = &birthDate.Time
	}
	if eligibleUntil.Valid {
		p.EligibleUntil = &eligibleUntil.Time
	}
	return nil
}

func (r *postgresPlayerRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Player, error) {
	p := &models.Player{}
	err := scanPlayer(pick(exec, r.db).QueryRowContext(ctx, query, args...), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	return p, nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Player, error) {
	return r.findOne(ctx, exec, `SELECT `+playerColumns+` FROM players p WHERE p.id = $1`, id)
}

func (r *postgresPlayerRepository) GetByFederationNumber(ctx context.Context, exec SQLExecutor, federationNumber int) (*models.Player, error) {
	return r.findOne(ctx, exec, `SELECT `+playerColumns+` FROM players p WHERE p.federation_number = $1`, federationNumber)
}

func (r *postgresPlayerRepository) LockForUpdate(ctx context.Context, exec SQLExecutor, id int) error {
	var locked int
	err := pick(exec, r.db).QueryRowContext(ctx, `SELECT id FROM players WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to lock player %d: %w", id, err)
	}
	return nil
}

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Player) error {
	query := `
		INSERT INTO players (federation_number, first_name, last_name, gender, birth_date, email,
			club_id, paid, eligible_until, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := pick(exec, r.db).QueryRowContext(ctx, query,
		p.FederationNumber, p.FirstName, p.LastName, p.Gender, p.BirthDate, p.Email,
		p.ClubID, p.Paid, p.EligibleUntil, p.LastModified,
	).Scan(&p.ID)
	if err != nil {
		if code, constraint, ok := pqViolation(err); ok && code == pqUniqueViolation && constraint == "players_federation_number_key" {
			return ErrPlayerConflict
		}
		return fmt.Errorf("failed to create player %d: %w", p.FederationNumber, err)
	}
	return nil
}

func (r *postgresPlayerRepository) Update(ctx context.Context, exec SQLExecutor, p *models.Player) error {
	query := `
		UPDATE players SET first_name = $1, last_name = $2, gender = $3, birth_date = $4, email = $5,
			club_id = $6, paid = $7, eligible_until = $8, last_modified = $9
		WHERE id = $10`

	result, err := pick(exec, r.db).ExecContext(ctx, query,
		p.FirstName, p.LastName, p.Gender, p.BirthDate, p.Email,
		p.ClubID, p.Paid, p.EligibleUntil, p.LastModified, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player %d: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) ListNeedingUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Player, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM players p
		JOIN registry_identities i ON i.federation_number = p.federation_number
		WHERE i.last_modified > p.last_modified
		ORDER BY p.federation_number`

	rows, err := pick(exec, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list players needing update: %w", err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		var p models.Player
		if err := scanPlayer(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player rows: %w", err)
	}
	return players, nil
}
