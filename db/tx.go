package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/Dosada05/roster-system/repositories"
)

// TxManager выполняет функции внутри транзакции или точки сохранения.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx открывает транзакцию, передаёт её в fn и фиксирует, если fn вернула nil.
// При ошибке или панике транзакция откатывается.
func (m *TxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) (txErr error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(tx)
	return txErr
}

var savepointName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// WithinSavepoint выполняет fn внутри SAVEPOINT в транзакции exec. Ошибка fn
// откатывает только изменения, сделанные после точки сохранения.
func (m *TxManager) WithinSavepoint(ctx context.Context, exec repositories.SQLExecutor, name string, fn func() error) (spErr error) {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := exec.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_, _ = exec.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
			panic(p)
		} else if spErr != nil {
			if _, rbErr := exec.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
				spErr = fmt.Errorf("%w (rollback to savepoint also failed: %v)", spErr, rbErr)
			}
		} else if _, relErr := exec.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			spErr = fmt.Errorf("failed to release savepoint %s: %w", name, relErr)
		}
	}()

	spErr = fn()
	return spErr
}
