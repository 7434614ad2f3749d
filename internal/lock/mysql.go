package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MySQL limits lock names to 64 characters
const maxLockName = 64

var _ Backend = (*MySQL)(nil)

// MySQL holds a named GET_LOCK on a pinned connection of the audit
// database, which serializes processes on different hosts.
type MySQL struct {
	db   *gorm.DB
	name string
}

// NewMySQL creates a named lock for key
func NewMySQL(db *gorm.DB, key string) *MySQL {
	name := "po_notifier:" + key
	if len(name) > maxLockName {
		name = name[:maxLockName]
	}
	return &MySQL{db: db, name: name}
}

// Lock waits on GET_LOCK until ctx's deadline
func (m *MySQL) Lock(ctx context.Context) (func(), error) {
	wait := 0
	if deadline, ok := ctx.Deadline(); ok {
		if wait = int(time.Until(deadline) / time.Second); wait < 0 {
			wait = 0
		}
	}
	unlock, ok, err := m.getLock(ctx, wait)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, context.DeadlineExceeded
	}
	return unlock, nil
}

// TryLock takes the named lock only if it is free
func (m *MySQL) TryLock(ctx context.Context) (func(), bool, error) {
	return m.getLock(ctx, 0)
}

// getLock runs GET_LOCK on a dedicated connection. The lock belongs to that
// connection, so it stays checked out until the lock is released.
func (m *MySQL) getLock(ctx context.Context, wait int) (func(), bool, error) {
	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, false, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reserve lock connection: %w", err)
	}

	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", m.name, wait).Scan(&got); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("GET_LOCK failed: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		conn.Close()
		return nil, false, nil
	}

	return func() {
		if _, err := conn.ExecContext(context.Background(), "DO RELEASE_LOCK(?)", m.name); err != nil {
			logrus.Warnf("Failed to release lock %s: %v", m.name, err)
		}
		conn.Close()
	}, true, nil
}
