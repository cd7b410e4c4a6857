package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	"github.com/smallbiznis/bookledger/internal/clock"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	sequencedomain "github.com/smallbiznis/bookledger/internal/sequence/domain"
	stockdomain "github.com/smallbiznis/bookledger/internal/stock/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	SequenceSvc  sequencedomain.Service
	StockSvc     stockdomain.Service
	FlowGroupSvc flowgroupdomain.Service
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	sequenceSvc  sequencedomain.Service
	stockSvc     stockdomain.Service
	flowGroupSvc flowgroupdomain.Service
	auditSvc     auditdomain.Service
}

func NewService(p Params) documentdomain.Service {
	return &Service{
		log:          p.Log.Named("document.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		sequenceSvc:  p.SequenceSvc,
		stockSvc:     p.StockSvc,
		flowGroupSvc: p.FlowGroupSvc,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Create(
	ctx context.Context,
	tx *gorm.DB,
	scope academicyeardomain.AcademicYear,
	group flowgroupdomain.FlowGroup,
	in documentdomain.CreateInput,
) (documentdomain.Document, error) {
	if err := academicyeardomain.EnsureCurrent(scope, group.AcademicYearID); err != nil {
		return documentdomain.Document{}, err
	}
	if !group.IsOpen() {
		return documentdomain.Document{}, flowgroupdomain.ErrFlowGroupSettled
	}
	kind := documentdomain.Kind(strings.ToUpper(strings.TrimSpace(string(in.Kind))))
	if !kind.Valid() {
		return documentdomain.Document{}, documentdomain.ErrInvalidKind
	}
	if !kind.AllowedFor(group.PartnerType) {
		return documentdomain.Document{}, documentdomain.ErrKindNotAllowed
	}

	items, totals, err := documentdomain.PriceItems(kind, in.Items)
	if err != nil {
		return documentdomain.Document{}, err
	}

	// Stock rows are locked before the sequence row; every writer takes them in
	// this order.
	if kind.IssuesStock() {
		if err := s.stockSvc.LockAndCheck(ctx, tx, scope.ID, documentdomain.StockQuantities(items)); err != nil {
			return documentdomain.Document{}, err
		}
	}

	number, err := s.sequenceSvc.Next(ctx, tx, scope.ID, string(kind))
	if err != nil {
		return documentdomain.Document{}, err
	}
	documentNo, err := s.sequenceSvc.Format(string(kind), number)
	if err != nil {
		return documentdomain.Document{}, err
	}

	now := s.clock.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	doc := documentdomain.Document{
		ID:             s.genID.Generate(),
		AcademicYearID: scope.ID,
		FlowGroupID:    group.ID,
		Kind:           kind,
		SequenceNumber: number,
		DocumentNo:     documentNo,
		DocumentDate:   date.UTC(),
		Status:         documentdomain.StatusIssued,
		TotalQuantity:  totals.Quantity,
		GrossAmount:    totals.Gross,
		TotalDiscount:  totals.Discount,
		NetAmount:      totals.Net,
		Notes:          strings.TrimSpace(in.Notes),
		CreatedBy:      in.ActorID,
		CreatedAt:      now,
	}
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(&doc).Error; err != nil {
		return documentdomain.Document{}, err
	}

	for i := range items {
		items[i].ID = s.genID.Generate()
		items[i].DocumentID = doc.ID
	}
	if err := tx.WithContext(ctx).CreateInBatches(&items, 100).Error; err != nil {
		return documentdomain.Document{}, err
	}
	doc.Items = items

	if kind.AffectsStock() {
		if err := s.stockSvc.Record(ctx, tx, s.stockEntries(doc, false)...); err != nil {
			return documentdomain.Document{}, err
		}
	}

	if s.auditSvc != nil {
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "document.created",
			TargetType: "document",
			TargetID:   doc.ID,
			ActorID:    in.ActorID,
			Metadata: map[string]any{
				"kind":          string(doc.Kind),
				"document_no":   doc.DocumentNo,
				"flow_group_id": group.ID.String(),
				"net_amount":    doc.NetAmount.StringFixed(2),
			},
		}); err != nil {
			return documentdomain.Document{}, err
		}
	}

	s.log.Debug("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_no", doc.DocumentNo),
		zap.String("kind", string(doc.Kind)),
	)
	return doc, nil
}

// stockEntries builds one entry per stock-affecting line. reversal produces the
// compensating entries appended when the document is voided.
func (s *Service) stockEntries(doc documentdomain.Document, reversal bool) []stockdomain.Entry {
	entries := make([]stockdomain.Entry, 0, len(doc.Items))
	for _, item := range doc.Items {
		if item.TextbookID == nil {
			continue
		}
		qty := item.Quantity
		eventType := stockdomain.EventPurchase
		if doc.Kind.IssuesStock() {
			qty = -qty
			eventType = stockdomain.EventIssue
		}
		if reversal {
			qty = -qty
			eventType = stockdomain.EventVoidReversal
		}
		entries = append(entries, stockdomain.Entry{
			AcademicYearID: doc.AcademicYearID,
			TextbookID:     *item.TextbookID,
			QtyChange:      qty,
			EventType:      eventType,
			ReferenceType:  stockdomain.ReferenceDocument,
			ReferenceID:    doc.ID,
		})
	}
	return entries
}

func (s *Service) Void(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, in documentdomain.VoidInput) (documentdomain.Document, error) {
	doc, err := s.GetForUpdate(ctx, tx, in.DocumentID)
	if err != nil {
		return documentdomain.Document{}, err
	}
	if doc.IsVoided() {
		return documentdomain.Document{}, documentdomain.ErrAlreadyVoided
	}
	if err := academicyeardomain.EnsureCurrent(scope, doc.AcademicYearID); err != nil {
		return documentdomain.Document{}, err
	}

	group, err := s.flowGroupSvc.Get(ctx, tx, doc.FlowGroupID)
	if err != nil {
		return documentdomain.Document{}, err
	}
	if !group.IsOpen() {
		return documentdomain.Document{}, flowgroupdomain.ErrFlowGroupSettled
	}

	var returns int64
	if err := tx.WithContext(ctx).Table("returns").
		Where("parent_document_id = ?", doc.ID).
		Count(&returns).Error; err != nil {
		return documentdomain.Document{}, err
	}
	if returns > 0 {
		return documentdomain.Document{}, documentdomain.ErrDocumentHasReturns
	}

	if doc.Kind.AffectsStock() {
		// Undoing a purchase takes stock away, so it must still be on hand.
		if doc.Kind.ReceivesStock() {
			if err := s.stockSvc.LockAndCheck(ctx, tx, doc.AcademicYearID, documentdomain.StockQuantities(doc.Items)); err != nil {
				return documentdomain.Document{}, err
			}
		}
		if err := s.stockSvc.Record(ctx, tx, s.stockEntries(doc, true)...); err != nil {
			return documentdomain.Document{}, err
		}
	}

	now := s.clock.Now().UTC()
	reason := strings.TrimSpace(in.Reason)
	updates := map[string]any{
		"status":    documentdomain.StatusVoided,
		"voided_by": in.ActorID,
		"voided_at": now,
	}
	if reason != "" {
		updates["void_reason"] = reason
	}
	res := tx.WithContext(ctx).Model(&documentdomain.Document{}).
		Where("id = ? AND status = ?", doc.ID, documentdomain.StatusIssued).
		Updates(updates)
	if res.Error != nil {
		return documentdomain.Document{}, res.Error
	}
	if res.RowsAffected == 0 {
		return documentdomain.Document{}, documentdomain.ErrAlreadyVoided
	}

	actor := in.ActorID
	doc.Status = documentdomain.StatusVoided
	doc.VoidedBy = &actor
	doc.VoidedAt = &now
	if reason != "" {
		doc.VoidReason = &reason
	}

	if s.auditSvc != nil {
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "document.voided",
			TargetType: "document",
			TargetID:   doc.ID,
			ActorID:    in.ActorID,
			Metadata: map[string]any{
				"kind":        string(doc.Kind),
				"document_no": doc.DocumentNo,
				"reason":      reason,
			},
		}); err != nil {
			return documentdomain.Document{}, err
		}
	}

	s.log.Info("document voided",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_no", doc.DocumentNo),
	)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (documentdomain.Document, error) {
	return s.load(ctx, db, db.WithContext(ctx), id)
}

func (s *Service) GetForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (documentdomain.Document, error) {
	return s.load(ctx, tx, tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, stmt *gorm.DB, id snowflake.ID) (documentdomain.Document, error) {
	var doc documentdomain.Document
	err := stmt.Where("id = ?", id).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return documentdomain.Document{}, documentdomain.ErrDocumentNotFound
	}
	if err != nil {
		return documentdomain.Document{}, err
	}

	if err := db.WithContext(ctx).
		Where("document_id = ?", id).
		Order("line_no asc").
		Find(&doc.Items).Error; err != nil {
		return documentdomain.Document{}, err
	}
	return doc, nil
}

func (s *Service) ListByFlowGroup(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID) ([]documentdomain.Document, error) {
	var docs []documentdomain.Document
	if err := db.WithContext(ctx).
		Where("flow_group_id = ?", flowGroupID).
		Order("document_date asc, created_at asc, id asc").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}
