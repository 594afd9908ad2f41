package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/roster-system/models"
)

var (
	ErrTeamNotFound = errors.New("team not found")
)

type TeamRepository interface {
	// LockForUpdate берёт блокировку строки команды до конца транзакции exec.
	LockForUpdate(ctx context.Context, exec SQLExecutor, id int) error
	IsAdmin(ctx context.Context, exec SQLExecutor, teamID, userID int) (bool, error)
	ListAdmins(ctx context.Context, exec SQLExecutor, teamID int) ([]models.User, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) LockForUpdate(ctx context.Context, exec SQLExecutor, id int) error {
	var locked int
	err := pick(exec, r.db).QueryRowContext(ctx, `SELECT id FROM teams WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to lock team %d: %w", id, err)
	}
	return nil
}

func (r *postgresTeamRepository) IsAdmin(ctx context.Context, exec SQLExecutor, teamID, userID int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM team_admins WHERE team_id = $1 AND user_id = $2)`
	var ok bool
	if err := pick(exec, r.db).QueryRowContext(ctx, query, teamID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check admin %d of team %d: %w", userID, teamID, err)
	}
	return ok, nil
}

func (r *postgresTeamRepository) ListAdmins(ctx context.Context, exec SQLExecutor, teamID int) ([]models.User, error) {
	query := `
		SELECT u.id, u.email, u.first_name, u.last_name
		FROM team_admins ta
		JOIN users u ON u.id = ta.user_id
		WHERE ta.team_id = $1
		ORDER BY u.id`

	rows, err := pick(exec, r.db).QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins of team %d: %w", teamID, err)
	}
	defer rows.Close()

	admins := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan team admin row: %w", err)
		}
		admins = append(admins, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team admin rows: %w", err)
	}
	return admins, nil
}
