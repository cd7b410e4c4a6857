package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/lock"
	"github.com/smallbiznis/bookledger/internal/stock/domain"
	"github.com/smallbiznis/bookledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Locker *lock.Locker `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	locker *lock.Locker
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("stock.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		locker: p.Locker,
	}
}

type textbookSum struct {
	TextbookID snowflake.ID
	Quantity   int64
}

func (s *Service) Available(ctx context.Context, db *gorm.DB, yearID, textbookID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Entry{}).
		Select("COALESCE(SUM(qty_change), 0)").
		Where("academic_year_id = ? AND textbook_id = ?", yearID, textbookID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) AvailableBatch(ctx context.Context, db *gorm.DB, yearID snowflake.ID, textbookIDs []snowflake.ID) (map[snowflake.ID]int64, error) {
	out := make(map[snowflake.ID]int64, len(textbookIDs))
	if len(textbookIDs) == 0 {
		return out, nil
	}
	for _, id := range textbookIDs {
		out[id] = 0
	}

	var rows []textbookSum
	err := db.WithContext(ctx).Model(&domain.Entry{}).
		Select("textbook_id, COALESCE(SUM(qty_change), 0) AS quantity").
		Where("academic_year_id = ? AND textbook_id IN ?", yearID, textbookIDs).
		Group("textbook_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TextbookID] = row.Quantity
	}
	return out, nil
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entries ...domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	now := s.clock.Now().UTC()
	type balanceKey struct{ year, textbook snowflake.ID }
	deltas := map[balanceKey]int64{}
	order := make([]balanceKey, 0, len(entries))

	rows := make([]domain.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.AcademicYearID == 0 || entry.TextbookID == 0 || entry.ReferenceID == 0 {
			return domain.ErrInvalidEntry
		}
		if !entry.EventType.ValidChange(entry.QtyChange) {
			return domain.ErrInvalidEntry
		}
		if strings.TrimSpace(entry.ReferenceType) == "" {
			return domain.ErrInvalidEntry
		}
		if entry.ID == 0 {
			entry.ID = s.genID.Generate()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		rows = append(rows, entry)

		key := balanceKey{entry.AcademicYearID, entry.TextbookID}
		if _, ok := deltas[key]; !ok {
			order = append(order, key)
		}
		deltas[key] += entry.QtyChange
	}

	if err := tx.WithContext(ctx).CreateInBatches(&rows, 100).Error; err != nil {
		return err
	}

	for _, key := range order {
		delta := deltas[key]
		balance := domain.Balance{
			AcademicYearID: key.year,
			TextbookID:     key.textbook,
			Quantity:       delta,
			UpdatedAt:      now,
		}
		err := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "academic_year_id"}, {Name: "textbook_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("stock_balances.quantity + ?", delta),
				"updated_at": now,
			}),
		}).Create(&balance).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) LockAndCheck(ctx context.Context, tx *gorm.DB, yearID snowflake.ID, requested map[snowflake.ID]int64) error {
	if len(requested) == 0 {
		return nil
	}
	ids := domain.SortedIDs(requested)
	now := s.clock.Now().UTC()

	// Rows must exist before they can be locked; first use creates them at zero.
	seed := make([]domain.Balance, 0, len(ids))
	for _, id := range ids {
		seed = append(seed, domain.Balance{AcademicYearID: yearID, TextbookID: id, UpdatedAt: now})
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return err
	}

	var locked []domain.Balance
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("academic_year_id = ? AND textbook_id IN ?", yearID, ids).
		Order("textbook_id").
		Find(&locked).Error; err != nil {
		return err
	}

	available, err := s.AvailableBatch(ctx, tx, yearID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		want := requested[id]
		if want <= 0 {
			continue
		}
		if have := available[id]; have < want {
			return &domain.InsufficientStockError{TextbookID: id, Available: have, Requested: want}
		}
	}
	return nil
}

func (s *Service) Reconcile(ctx context.Context, yearID snowflake.ID) ([]domain.Drift, error) {
	var projections []domain.Balance
	if err := s.db.WithContext(ctx).
		Where("academic_year_id = ?", yearID).
		Find(&projections).Error; err != nil {
		return nil, err
	}

	sums, err := s.ledgerSums(ctx, s.db, yearID)
	if err != nil {
		return nil, err
	}

	drift := []domain.Drift{}
	seen := make(map[snowflake.ID]struct{}, len(projections))
	for _, p := range projections {
		seen[p.TextbookID] = struct{}{}
		if ledger := sums[p.TextbookID]; ledger != p.Quantity {
			drift = append(drift, domain.Drift{TextbookID: p.TextbookID, Projected: p.Quantity, Ledger: ledger})
		}
	}
	for id, ledger := range sums {
		if _, ok := seen[id]; ok || ledger == 0 {
			continue
		}
		drift = append(drift, domain.Drift{TextbookID: id, Projected: 0, Ledger: ledger})
	}

	if len(drift) > 0 {
		s.log.Warn("stock projection drift detected",
			zap.String("academic_year_id", yearID.String()),
			zap.Int("textbooks", len(drift)),
		)
	}
	return drift, nil
}

func (s *Service) RebuildProjection(ctx context.Context, yearID snowflake.ID) (int, error) {
	if s.locker != nil {
		key := "bookledger:stock:rebuild:" + yearID.String()
		token, ok, err := s.locker.TryLock(ctx, key, domain.RebuildLockTTL)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, domain.ErrRebuildInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("failed to release rebuild lock", zap.Error(err))
			}
		}()
	}

	var written int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sums, err := s.ledgerSums(ctx, tx, yearID)
		if err != nil {
			return err
		}
		if err := tx.WithContext(ctx).
			Where("academic_year_id = ?", yearID).
			Delete(&domain.Balance{}).Error; err != nil {
			return err
		}
		if len(sums) == 0 {
			return nil
		}

		now := s.clock.Now().UTC()
		rows := make([]domain.Balance, 0, len(sums))
		for _, id := range domain.SortedIDs(sums) {
			rows = append(rows, domain.Balance{
				AcademicYearID: yearID,
				TextbookID:     id,
				Quantity:       sums[id],
				UpdatedAt:      now,
			})
		}
		if err := tx.WithContext(ctx).CreateInBatches(&rows, 200).Error; err != nil {
			return err
		}
		written = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("stock projection rebuilt",
		zap.String("academic_year_id", yearID.String()),
		zap.Int("textbooks", written),
	)
	return written, nil
}

func (s *Service) ledgerSums(ctx context.Context, db *gorm.DB, yearID snowflake.ID) (map[snowflake.ID]int64, error) {
	var rows []textbookSum
	err := db.WithContext(ctx).Model(&domain.Entry{}).
		Select("textbook_id, COALESCE(SUM(qty_change), 0) AS quantity").
		Where("academic_year_id = ?", yearID).
		Group("textbook_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[snowflake.ID]int64, len(rows))
	for _, row := range rows {
		out[row.TextbookID] = row.Quantity
	}
	return out, nil
}

func (s *Service) History(ctx context.Context, req domain.HistoryRequest) (domain.HistoryResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	stmt := s.db.WithContext(ctx).Model(&domain.Entry{}).
		Where("academic_year_id = ? AND textbook_id = ?", req.AcademicYearID, req.TextbookID)

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.HistoryResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return domain.HistoryResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.HistoryResponse{}, domain.ErrInvalidPageToken
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	var items []*domain.Entry
	if err := stmt.Order("created_at desc, id desc").Limit(pageSize + 1).Find(&items).Error; err != nil {
		return domain.HistoryResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(e *domain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *item)
	}
	return domain.HistoryResponse{PageInfo: *pageInfo, Entries: entries}, nil
}
