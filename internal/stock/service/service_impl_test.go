package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/dbtest"
	"github.com/smallbiznis/bookledger/internal/stock/domain"
	"github.com/smallbiznis/bookledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	yearID     snowflake.ID = 11
	textbookID snowflake.ID = 501
)

func setup(t *testing.T) (*gorm.DB, *Service, *clock.FakeClock) {
	t.Helper()
	conn := dbtest.Open(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Clock: clk,
	}).(*Service)
	return conn, svc, clk
}

func entry(textbook snowflake.ID, event domain.EventType, qty int64, ref snowflake.ID) domain.Entry {
	return domain.Entry{
		AcademicYearID: yearID,
		TextbookID:     textbook,
		QtyChange:      qty,
		EventType:      event,
		ReferenceType:  domain.ReferenceDocument,
		ReferenceID:    ref,
	}
}

func record(t *testing.T, conn *gorm.DB, svc *Service, entries ...domain.Entry) {
	t.Helper()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Record(context.Background(), tx, entries...)
	}))
}

func projection(t *testing.T, conn *gorm.DB, textbook snowflake.ID) int64 {
	t.Helper()
	var balance domain.Balance
	require.NoError(t, conn.Where("academic_year_id = ? AND textbook_id = ?", yearID, textbook).Take(&balance).Error)
	return balance.Quantity
}

func TestAvailableFollowsLedger(t *testing.T) {
	ctx := context.Background()
	conn, svc, _ := setup(t)

	record(t, conn, svc, entry(textbookID, domain.EventPurchase, 50, 1))
	record(t, conn, svc, entry(textbookID, domain.EventIssue, -12, 2))

	available, err := svc.Available(ctx, conn, yearID, textbookID)
	require.NoError(t, err)
	assert.Equal(t, int64(38), available)
	assert.Equal(t, int64(38), projection(t, conn, textbookID))

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.LockAndCheck(ctx, tx, yearID, map[snowflake.ID]int64{textbookID: 40})
	})
	var insufficient *domain.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, textbookID, insufficient.TextbookID)
	assert.Equal(t, int64(38), insufficient.Available)
	assert.Equal(t, int64(40), insufficient.Requested)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.LockAndCheck(ctx, tx, yearID, map[snowflake.ID]int64{textbookID: 38})
	}))
}

func TestLockAndCheckUnknownTextbookHasNoStock(t *testing.T) {
	conn, svc, _ := setup(t)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.LockAndCheck(context.Background(), tx, yearID, map[snowflake.ID]int64{999: 1})
	})
	var insufficient *domain.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(0), insufficient.Available)
}

func TestAvailableBatchFillsMissingTextbooks(t *testing.T) {
	conn, svc, _ := setup(t)
	record(t, conn, svc,
		entry(textbookID, domain.EventPurchase, 10, 1),
		entry(502, domain.EventPurchase, 4, 1),
	)

	got, err := svc.AvailableBatch(context.Background(), conn, yearID, []snowflake.ID{textbookID, 502, 503})
	require.NoError(t, err)
	assert.Equal(t, map[snowflake.ID]int64{textbookID: 10, 502: 4, 503: 0}, got)
}

func TestRecordRejectsWrongSign(t *testing.T) {
	conn, svc, _ := setup(t)

	cases := []domain.Entry{
		entry(textbookID, domain.EventIssue, 5, 1),
		entry(textbookID, domain.EventPurchase, -5, 1),
		entry(textbookID, domain.EventVoidReversal, 0, 1),
		entry(0, domain.EventPurchase, 5, 1),
		entry(textbookID, "ADJUSTMENT", 5, 1),
	}
	for _, e := range cases {
		err := svc.Record(context.Background(), conn, e)
		assert.ErrorIs(t, err, domain.ErrInvalidEntry, "%+v", e)
	}

	var count int64
	require.NoError(t, conn.Model(&domain.Entry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestReconcileAndRebuild(t *testing.T) {
	ctx := context.Background()
	conn, svc, _ := setup(t)
	record(t, conn, svc,
		entry(textbookID, domain.EventPurchase, 50, 1),
		entry(502, domain.EventPurchase, 20, 1),
	)
	record(t, conn, svc, entry(textbookID, domain.EventIssue, -12, 2))

	drift, err := svc.Reconcile(ctx, yearID)
	require.NoError(t, err)
	assert.Empty(t, drift)

	require.NoError(t, conn.Model(&domain.Balance{}).
		Where("academic_year_id = ? AND textbook_id = ?", yearID, textbookID).
		Update("quantity", 99).Error)

	drift, err = svc.Reconcile(ctx, yearID)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, domain.Drift{TextbookID: textbookID, Projected: 99, Ledger: 38}, drift[0])

	written, err := svc.RebuildProjection(ctx, yearID)
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, int64(38), projection(t, conn, textbookID))
	assert.Equal(t, int64(20), projection(t, conn, 502))

	drift, err = svc.Reconcile(ctx, yearID)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestHistoryFirstPage(t *testing.T) {
	ctx := context.Background()
	conn, svc, clk := setup(t)
	for i := 0; i < 3; i++ {
		record(t, conn, svc, entry(textbookID, domain.EventPurchase, int64(i+1), snowflake.ID(i+1)))
		clk.Advance(time.Minute)
	}

	page, err := svc.History(ctx, domain.HistoryRequest{
		Pagination:     pagination.Pagination{PageSize: 2},
		AcademicYearID: yearID,
		TextbookID:     textbookID,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, int64(3), page.Entries[0].QtyChange)
	assert.Equal(t, int64(2), page.Entries[1].QtyChange)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextPageToken)

	_, err = svc.History(ctx, domain.HistoryRequest{
		Pagination:     pagination.Pagination{PageToken: "not-a-token"},
		AcademicYearID: yearID,
		TextbookID:     textbookID,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
