package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/bookledger/internal/academicyear/domain"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(Params{
		DB:    dbtest.Open(t),
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Clock: clock.NewFakeClock(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)),
	}).(*Service)
}

func yearRequest(name string) domain.OpenRequest {
	return domain.OpenRequest{
		Name:      name,
		StartDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestCurrentScopeWithoutOpenYear(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CurrentScope(context.Background(), svc.db)
	assert.ErrorIs(t, err, domain.ErrNoOpenPeriod)
}

func TestOpenAdmitsSingleOpenYear(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	year, err := svc.Open(ctx, yearRequest("2025-26"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, year.Status)

	_, err = svc.Open(ctx, yearRequest("2026-27"))
	assert.ErrorIs(t, err, domain.ErrPeriodAlreadyOpen)

	scope, err := svc.CurrentScope(ctx, svc.db)
	require.NoError(t, err)
	assert.Equal(t, year.ID, scope.ID)
}

func TestCloseReleasesSlot(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, err := svc.Open(ctx, yearRequest("2025-26"))
	require.NoError(t, err)

	closed, err := svc.Close(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = svc.Close(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrPeriodClosed)

	_, err = svc.CurrentScope(ctx, svc.db)
	assert.ErrorIs(t, err, domain.ErrNoOpenPeriod)

	second, err := svc.Open(ctx, yearRequest("2026-27"))
	require.NoError(t, err)
	assert.ErrorIs(t, domain.EnsureCurrent(second, first.ID), domain.ErrPeriodClosed)
	assert.NoError(t, domain.EnsureCurrent(second, second.ID))
}

func TestOpenValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Open(ctx, yearRequest("  "))
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	req := yearRequest("2025-26")
	req.EndDate = req.StartDate
	_, err = svc.Open(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}
