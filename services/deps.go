package services

import (
	"context"
	"time"

	"github.com/Dosada05/roster-system/repositories"
)

// Transactor открывает транзакции и точки сохранения; реализуется db.TxManager.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
	WithinSavepoint(ctx context.Context, exec repositories.SQLExecutor, name string, fn func() error) error
}

// EventPublisher рассылает события в комнаты; реализуется events.Hub.
type EventPublisher interface {
	BroadcastToRoom(roomID string, message interface{})
}

// Locker is a cross-instance lock; implemented by locks.RedisLocker.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}
