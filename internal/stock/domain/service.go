package domain

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type HistoryRequest struct {
	pagination.Pagination
	AcademicYearID snowflake.ID
	TextbookID     snowflake.ID
}

type HistoryResponse struct {
	pagination.PageInfo
	Entries []Entry `json:"entries"`
}

type Service interface {
	Available(ctx context.Context, db *gorm.DB, yearID, textbookID snowflake.ID) (int64, error)
	// AvailableBatch sums the ledger for all textbookIDs in one grouped query.
	// Textbooks without events map to 0.
	AvailableBatch(ctx context.Context, db *gorm.DB, yearID snowflake.ID, textbookIDs []snowflake.ID) (map[snowflake.ID]int64, error)
	// Record appends entries and moves their projections inside tx.
	Record(ctx context.Context, tx *gorm.DB, entries ...Entry) error
	// LockAndCheck locks the projection rows of requested textbooks in id order,
	// then re-reads the ledger and fails with *InsufficientStockError.
	LockAndCheck(ctx context.Context, tx *gorm.DB, yearID snowflake.ID, requested map[snowflake.ID]int64) error
	Reconcile(ctx context.Context, yearID snowflake.ID) ([]Drift, error)
	RebuildProjection(ctx context.Context, yearID snowflake.ID) (int, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

var (
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrInvalidEntry      = errors.New("invalid_stock_entry")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrRebuildInProgress = errors.New("stock_rebuild_in_progress")
)

// SortedIDs returns the keys of m in ascending order.
func SortedIDs(m map[snowflake.ID]int64) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RebuildLockTTL bounds how long a crashed rebuild can block the next one.
const RebuildLockTTL = 2 * time.Minute
