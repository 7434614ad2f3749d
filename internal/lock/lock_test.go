package lock

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAcquireTimeout(t *testing.T) {
	d := New(20 * time.Millisecond)

	release, err := d.Acquire(context.Background())
	require.NoError(t, err)

	_, err = d.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)

	_, ok := d.TryAcquire(context.Background())
	assert.False(t, ok)

	release()
	release2, ok := d.TryAcquire(context.Background())
	require.True(t, ok)
	release2()
}

func TestMutualExclusion(t *testing.T) {
	d := New(time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := d.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestFileLockAcrossDocuments(t *testing.T) {
	dir := t.TempDir()
	a := NewShared(50*time.Millisecond, NewFile(dir, "sheet-1"))
	b := NewShared(50*time.Millisecond, NewFile(dir, "sheet-1"))
	other := NewShared(50*time.Millisecond, NewFile(dir, "sheet-2"))

	release, err := a.Acquire(context.Background())
	require.NoError(t, err)

	_, err = b.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	_, ok := b.TryAcquire(context.Background())
	assert.False(t, ok)

	releaseOther, err := other.Acquire(context.Background())
	require.NoError(t, err, "a different spreadsheet uses a different lock")
	releaseOther()

	release()
	releaseB, err := b.Acquire(context.Background())
	require.NoError(t, err)

	// a now waits on the file lock held through b
	_, ok = a.TryAcquire(context.Background())
	assert.False(t, ok)
	releaseB()
}

func TestFileLockSerializesDocuments(t *testing.T) {
	dir := t.TempDir()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		d := NewShared(2*time.Second, NewFile(dir, "sheet"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := d.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			if n := atomic.AddInt32(&inside, 1); n > atomic.LoadInt32(&maxInside) {
				atomic.StoreInt32(&maxInside, n)
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestFileLockPath(t *testing.T) {
	f := NewFile("/var/lock", "1AbC-d_e/../x")
	assert.Equal(t, "/var/lock/po-notifier-1AbC-d_e____x.lock", f.Path())
	assert.True(t, strings.HasPrefix(NewFile("", "k").Path(), os.TempDir()))
}

func TestMySQLLock(t *testing.T) {
	dsn := os.Getenv("PO_NOTIFIER_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("PO_NOTIFIER_TEST_MYSQL_DSN not set")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	key := "test-" + strings.ReplaceAll(t.Name(), "/", "_")
	a := NewShared(time.Second, NewMySQL(db, key))
	b := NewShared(time.Second, NewMySQL(db, key))

	release, err := a.Acquire(context.Background())
	require.NoError(t, err)
	_, ok := b.TryAcquire(context.Background())
	assert.False(t, ok)
	_, err = b.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)

	release()
	releaseB, ok := b.TryAcquire(context.Background())
	require.True(t, ok)
	releaseB()
}

func TestMySQLLockName(t *testing.T) {
	m := NewMySQL(nil, strings.Repeat("x", 100))
	assert.Len(t, m.name, maxLockName)
	assert.True(t, strings.HasPrefix(m.name, "po_notifier:"))
}
