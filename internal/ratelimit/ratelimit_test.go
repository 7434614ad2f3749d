package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
)

func testConfig(perHour, perDay int) config.RateLimitConfig {
	cfg := config.Default().RateLimit
	cfg.PerHour = perHour
	cfg.PerDay = perDay
	return cfg
}

func TestHourlyCapAndRecovery(t *testing.T) {
	ctx := context.Background()
	wb := sheet.NewMemory()
	l := New(wb, testConfig(3, 100))
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.CheckAndConsume(ctx, start.Add(time.Duration(i)*time.Minute)))
	}

	err := l.CheckAndConsume(ctx, start.Add(10*time.Minute))
	var exceeded *ExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, WindowHour, exceeded.Window)
	assert.Equal(t, 3, exceeded.Current)
	assert.Equal(t, 3, exceeded.Limit)
	assert.Len(t, wb.Rows("Rate_Limit_Log"), 4, "a rejected attempt must not be recorded")

	require.NoError(t, l.CheckAndConsume(ctx, start.Add(61*time.Minute)))
}

func TestDailyCap(t *testing.T) {
	ctx := context.Background()
	l := New(sheet.NewMemory(), testConfig(100, 2))
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, l.CheckAndConsume(ctx, start))
	require.NoError(t, l.CheckAndConsume(ctx, start.Add(2*time.Hour)))

	err := l.CheckAndConsume(ctx, start.Add(4*time.Hour))
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, WindowDay, exceeded.Window)
	assert.Equal(t, "Daily email limit exceeded: 2/2", exceeded.Error())

	require.NoError(t, l.CheckAndConsume(ctx, start.Add(25*time.Hour)))
}

func TestLogIsTrimmed(t *testing.T) {
	ctx := context.Background()
	wb := sheet.NewMemory()
	cfg := testConfig(1000, 1000)
	cfg.MaxEntries = 5
	l := New(wb, cfg)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		require.NoError(t, l.CheckAndConsume(ctx, start.Add(time.Duration(i)*time.Second)))
	}
	rows := wb.Rows(cfg.SheetName)
	require.Len(t, rows, 6)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, model.FormatTimestamp(start.Add(3*time.Second)), rows[1][0])
	assert.Equal(t, model.RateEventSent, rows[1][1])
}

func TestScanWindowLimitsCounting(t *testing.T) {
	ctx := context.Background()
	wb := sheet.NewMemory()
	cfg := testConfig(5, 1000)
	cfg.ScanWindow = 2
	l := New(wb, cfg)
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, l.CheckAndConsume(ctx, now))
	}
	s, err := l.Status(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Hourly)
}

func TestStatusAndReset(t *testing.T) {
	ctx := context.Background()
	wb := sheet.NewMemory()
	l := New(wb, testConfig(2, 10))
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	s, err := l.Status(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, s.Hourly)
	assert.False(t, s.Limited)

	require.NoError(t, l.CheckAndConsume(ctx, now))
	require.NoError(t, l.CheckAndConsume(ctx, now))

	s, err = l.Status(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Hourly)
	assert.Equal(t, 2, s.Daily)
	assert.True(t, s.Limited)

	n, err := l.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, l.CheckAndConsume(ctx, now))
}
