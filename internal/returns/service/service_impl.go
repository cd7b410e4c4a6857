package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	"github.com/smallbiznis/bookledger/internal/clock"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	returnsdomain "github.com/smallbiznis/bookledger/internal/returns/domain"
	sequencedomain "github.com/smallbiznis/bookledger/internal/sequence/domain"
	stockdomain "github.com/smallbiznis/bookledger/internal/stock/domain"
	"github.com/smallbiznis/bookledger/pkg/money"
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
	DocumentSvc  documentdomain.Service
	FlowGroupSvc flowgroupdomain.Service
	SequenceSvc  sequencedomain.Service
	StockSvc     stockdomain.Service
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	documentSvc  documentdomain.Service
	flowGroupSvc flowgroupdomain.Service
	sequenceSvc  sequencedomain.Service
	stockSvc     stockdomain.Service
	auditSvc     auditdomain.Service
}

func NewService(p Params) returnsdomain.Service {
	return &Service{
		log:          p.Log.Named("returns.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		documentSvc:  p.DocumentSvc,
		flowGroupSvc: p.FlowGroupSvc,
		sequenceSvc:  p.SequenceSvc,
		stockSvc:     p.StockSvc,
		auditSvc:     p.AuditSvc,
	}
}

// parentLine is the issued quantity and valuation of one textbook on the parent.
type parentLine struct {
	quantity  int64
	unitPrice decimal.Decimal
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, in returnsdomain.CreateInput) (returnsdomain.Return, error) {
	requested, order, err := mergeItems(in.Items)
	if err != nil {
		return returnsdomain.Return{}, err
	}

	// The parent row lock serializes concurrent returns against the same document.
	parent, err := s.documentSvc.GetForUpdate(ctx, tx, in.ParentDocumentID)
	if errors.Is(err, documentdomain.ErrDocumentNotFound) {
		return returnsdomain.Return{}, returnsdomain.ErrParentNotFound
	}
	if err != nil {
		return returnsdomain.Return{}, err
	}

	kind, ok := returnsdomain.KindForParent(parent.Kind)
	if !ok {
		return returnsdomain.Return{}, returnsdomain.ErrInvalidParentKind
	}
	if parent.IsVoided() {
		return returnsdomain.Return{}, returnsdomain.ErrParentVoided
	}
	if err := academicyeardomain.EnsureCurrent(scope, parent.AcademicYearID); err != nil {
		return returnsdomain.Return{}, err
	}

	group, err := s.flowGroupSvc.Get(ctx, tx, parent.FlowGroupID)
	if err != nil {
		return returnsdomain.Return{}, err
	}
	if !group.IsOpen() {
		return returnsdomain.Return{}, flowgroupdomain.ErrFlowGroupSettled
	}

	lines := parentLines(parent)
	returned, err := s.Returned(ctx, tx, parent.ID)
	if err != nil {
		return returnsdomain.Return{}, err
	}
	for _, textbookID := range order {
		maxQty := lines[textbookID].quantity - returned[textbookID]
		if maxQty < 0 {
			maxQty = 0
		}
		if want := requested[textbookID]; want > maxQty {
			return returnsdomain.Return{}, &returnsdomain.ReturnExceedsIssuedError{
				TextbookID: textbookID,
				Max:        maxQty,
				Requested:  want,
			}
		}
	}

	// Books going back to a dealer leave our stock.
	if kind == returnsdomain.KindDealerReturn {
		if err := s.stockSvc.LockAndCheck(ctx, tx, scope.ID, requested); err != nil {
			return returnsdomain.Return{}, err
		}
	}

	number, err := s.sequenceSvc.Next(ctx, tx, scope.ID, string(kind))
	if err != nil {
		return returnsdomain.Return{}, err
	}
	returnNo, err := s.sequenceSvc.Format(string(kind), number)
	if err != nil {
		return returnsdomain.Return{}, err
	}

	now := s.clock.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	ret := returnsdomain.Return{
		ID:               s.genID.Generate(),
		AcademicYearID:   scope.ID,
		FlowGroupID:      group.ID,
		Kind:             kind,
		ParentDocumentID: parent.ID,
		SequenceNumber:   number,
		ReturnNo:         returnNo,
		ReturnDate:       date.UTC(),
		Notes:            strings.TrimSpace(in.Notes),
		CreatedBy:        in.ActorID,
		CreatedAt:        now,
	}

	items := make([]returnsdomain.Item, 0, len(order))
	amounts := make([]decimal.Decimal, 0, len(order))
	entries := make([]stockdomain.Entry, 0, len(order))
	for _, textbookID := range order {
		qty := requested[textbookID]
		unitPrice := lines[textbookID].unitPrice
		amount := money.Mul(unitPrice, qty)

		items = append(items, returnsdomain.Item{
			ID:               s.genID.Generate(),
			ReturnID:         ret.ID,
			ParentDocumentID: parent.ID,
			TextbookID:       textbookID,
			QtyReturned:      qty,
			UnitPrice:        unitPrice,
			Amount:           amount,
		})
		amounts = append(amounts, amount)
		ret.TotalQuantity += qty

		entry := stockdomain.Entry{
			AcademicYearID: scope.ID,
			TextbookID:     textbookID,
			QtyChange:      qty,
			EventType:      stockdomain.EventSalesReturn,
			ReferenceType:  stockdomain.ReferenceReturn,
			ReferenceID:    ret.ID,
		}
		if kind == returnsdomain.KindDealerReturn {
			entry.QtyChange = -qty
			entry.EventType = stockdomain.EventDealerReturn
		}
		entries = append(entries, entry)
	}
	ret.TotalAmount = money.Sum(amounts...)

	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(&ret).Error; err != nil {
		return returnsdomain.Return{}, err
	}
	if err := tx.WithContext(ctx).CreateInBatches(&items, 100).Error; err != nil {
		return returnsdomain.Return{}, err
	}
	ret.Items = items

	if err := s.stockSvc.Record(ctx, tx, entries...); err != nil {
		return returnsdomain.Return{}, err
	}

	if s.auditSvc != nil {
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "return.created",
			TargetType: "return",
			TargetID:   ret.ID,
			ActorID:    in.ActorID,
			Metadata: map[string]any{
				"kind":               string(ret.Kind),
				"return_no":          ret.ReturnNo,
				"parent_document_id": parent.ID.String(),
				"total_amount":       ret.TotalAmount.StringFixed(2),
			},
		}); err != nil {
			return returnsdomain.Return{}, err
		}
	}

	s.log.Debug("return created",
		zap.String("return_id", ret.ID.String()),
		zap.String("return_no", ret.ReturnNo),
		zap.String("parent_document_id", parent.ID.String()),
	)
	return ret, nil
}

// mergeItems sums requested quantities per textbook, keeping first-seen order.
func mergeItems(inputs []returnsdomain.ItemInput) (map[snowflake.ID]int64, []snowflake.ID, error) {
	if len(inputs) == 0 {
		return nil, nil, returnsdomain.ErrNoItems
	}
	requested := make(map[snowflake.ID]int64, len(inputs))
	order := make([]snowflake.ID, 0, len(inputs))
	for _, in := range inputs {
		if in.TextbookID <= 0 {
			return nil, nil, returnsdomain.ErrInvalidTextbook
		}
		if in.Quantity < 1 {
			return nil, nil, returnsdomain.ErrInvalidQuantity
		}
		if _, ok := requested[in.TextbookID]; !ok {
			order = append(order, in.TextbookID)
		}
		requested[in.TextbookID] += in.Quantity
	}
	return requested, order, nil
}

// parentLines sums quantities per textbook. A textbook billed on several lines is
// valued at the unit price of its first line.
func parentLines(parent documentdomain.Document) map[snowflake.ID]parentLine {
	lines := map[snowflake.ID]parentLine{}
	for _, item := range parent.Items {
		if item.TextbookID == nil {
			continue
		}
		line, ok := lines[*item.TextbookID]
		if !ok {
			line.unitPrice = item.UnitPrice
		}
		line.quantity += item.Quantity
		lines[*item.TextbookID] = line
	}
	return lines
}

type returnedSum struct {
	TextbookID snowflake.ID
	Quantity   int64
}

func (s *Service) Returned(ctx context.Context, db *gorm.DB, parentDocumentID snowflake.ID) (map[snowflake.ID]int64, error) {
	var rows []returnedSum
	if err := db.WithContext(ctx).Model(&returnsdomain.Item{}).
		Select("textbook_id, COALESCE(SUM(qty_returned), 0) AS quantity").
		Where("parent_document_id = ?", parentDocumentID).
		Group("textbook_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[snowflake.ID]int64, len(rows))
	for _, row := range rows {
		out[row.TextbookID] = row.Quantity
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (returnsdomain.Return, error) {
	var ret returnsdomain.Return
	err := db.WithContext(ctx).Where("id = ?", id).Take(&ret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return returnsdomain.Return{}, returnsdomain.ErrReturnNotFound
	}
	if err != nil {
		return returnsdomain.Return{}, err
	}
	if err := db.WithContext(ctx).
		Where("return_id = ?", id).
		Order("id asc").
		Find(&ret.Items).Error; err != nil {
		return returnsdomain.Return{}, err
	}
	return ret, nil
}

func (s *Service) ListByFlowGroup(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID) ([]returnsdomain.Return, error) {
	var rets []returnsdomain.Return
	if err := db.WithContext(ctx).
		Where("flow_group_id = ?", flowGroupID).
		Order("return_date asc, created_at asc, id asc").
		Find(&rets).Error; err != nil {
		return nil, err
	}
	return rets, nil
}
