package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/config"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	idempotencydomain "github.com/smallbiznis/bookledger/internal/idempotency/domain"
	ledgerdomain "github.com/smallbiznis/bookledger/internal/ledger/domain"
	"github.com/smallbiznis/bookledger/internal/observability/logger"
	"github.com/smallbiznis/bookledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	returnsdomain "github.com/smallbiznis/bookledger/internal/returns/domain"
	statementdomain "github.com/smallbiznis/bookledger/internal/statement/domain"
	stockdomain "github.com/smallbiznis/bookledger/internal/stock/domain"
	pkgdb "github.com/smallbiznis/bookledger/pkg/db"
	"github.com/smallbiznis/bookledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateDocument = "create_document"
	opVoidDocument   = "void_document"
	opRecordPayment  = "record_payment"
	opReversePayment = "reverse_payment"
	opCreateReturn   = "create_return"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Config    config.Config
	Clock     clock.Clock
	Validator *validator.Validate

	YearSvc        academicyeardomain.Service
	FlowGroupSvc   flowgroupdomain.Service
	DocumentSvc    documentdomain.Service
	PaymentSvc     paymentdomain.Service
	ReturnsSvc     returnsdomain.Service
	StatementSvc   statementdomain.Service
	StockSvc       stockdomain.Service
	IdempotencySvc idempotencydomain.Service
	AuditSvc       auditdomain.Service

	Partners ledgerdomain.PartnerDirectory `optional:"true"`
	Metrics  *metrics.Metrics              `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	validate  *validator.Validate
	txTimeout time.Duration
	attempts  int

	yearSvc        academicyeardomain.Service
	flowGroupSvc   flowgroupdomain.Service
	documentSvc    documentdomain.Service
	paymentSvc     paymentdomain.Service
	returnsSvc     returnsdomain.Service
	statementSvc   statementdomain.Service
	stockSvc       stockdomain.Service
	idempotencySvc idempotencydomain.Service
	auditSvc       auditdomain.Service

	partners ledgerdomain.PartnerDirectory
	metrics  *metrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	validate := p.Validator
	if validate == nil {
		validate = validator.New()
	}
	attempts := p.Config.Ledger.TxMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ledger.service"),
		clock:     p.Clock,
		validate:  validate,
		txTimeout: p.Config.Ledger.TxTimeout,
		attempts:  attempts,

		yearSvc:        p.YearSvc,
		flowGroupSvc:   p.FlowGroupSvc,
		documentSvc:    p.DocumentSvc,
		paymentSvc:     p.PaymentSvc,
		returnsSvc:     p.ReturnsSvc,
		statementSvc:   p.StatementSvc,
		stockSvc:       p.StockSvc,
		idempotencySvc: p.IdempotencySvc,
		auditSvc:       p.AuditSvc,

		partners: p.Partners,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateDocument(ctx context.Context, req ledgerdomain.CreateDocumentRequest) (ledgerdomain.DocumentReceipt, error) {
	ctx, _ = logger.EnsureCorrelationID(ctx)
	if err := s.validateRequest(req); err != nil {
		return ledgerdomain.DocumentReceipt{}, err
	}
	if err := s.checkPartner(ctx, req.Partner); err != nil {
		return ledgerdomain.DocumentReceipt{}, err
	}
	if !req.Kind.AllowedFor(req.Partner.Type) {
		return ledgerdomain.DocumentReceipt{}, documentdomain.ErrKindNotAllowed
	}

	items := make([]documentdomain.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, documentdomain.ItemInput{
			TextbookID:      item.TextbookID,
			Description:     strings.TrimSpace(item.Description),
			Tags:            item.Tags,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		})
	}

	var (
		doc      documentdomain.Document
		replayed bool
	)
	err := s.run(ctx, opCreateDocument, func(tx *gorm.DB) error {
		replayed = false
		scope, err := s.yearSvc.CurrentScope(ctx, tx)
		if err != nil {
			return err
		}

		if id, found, err := s.lookup(ctx, tx, opCreateDocument, req.IdempotencyKey); err != nil {
			return err
		} else if found {
			replayed = true
			doc, err = s.documentSvc.Get(ctx, tx, id)
			return err
		}

		group, err := s.flowGroupSvc.Open(ctx, tx, req.Partner, scope.ID)
		if err != nil {
			return err
		}

		doc, err = s.documentSvc.Create(ctx, tx, scope, group, documentdomain.CreateInput{
			Kind:    req.Kind,
			Date:    s.dateOrToday(req.Date),
			Items:   items,
			Notes:   strings.TrimSpace(req.Notes),
			ActorID: req.ActorID,
		})
		if err != nil {
			return err
		}
		return s.save(ctx, tx, opCreateDocument, req.IdempotencyKey, doc.ID)
	})
	if err != nil {
		s.recordRejection(ctx, err)
		return ledgerdomain.DocumentReceipt{}, err
	}

	if replayed {
		return ledgerdomain.DocumentReceipt{DocumentID: doc.ID, DocumentNo: doc.DocumentNo}, nil
	}
	s.metrics.RecordDocumentCreated(ctx, string(doc.Kind))
	logger.WithContext(ctx, s.log).Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_no", doc.DocumentNo),
		zap.String("kind", string(doc.Kind)),
	)
	return ledgerdomain.DocumentReceipt{DocumentID: doc.ID, DocumentNo: doc.DocumentNo}, nil
}

func (s *Service) VoidDocument(ctx context.Context, req ledgerdomain.VoidDocumentRequest) (documentdomain.Document, error) {
	ctx, _ = logger.EnsureCorrelationID(ctx)
	if err := s.validateRequest(req); err != nil {
		return documentdomain.Document{}, err
	}

	var doc documentdomain.Document
	err := s.run(ctx, opVoidDocument, func(tx *gorm.DB) error {
		scope, err := s.yearSvc.CurrentScope(ctx, tx)
		if err != nil {
			return err
		}
		doc, err = s.documentSvc.Void(ctx, tx, scope, documentdomain.VoidInput{
			DocumentID: req.DocumentID,
			ActorID:    req.ActorID,
			Reason:     strings.TrimSpace(req.Reason),
		})
		return err
	})
	if err != nil {
		s.recordRejection(ctx, err)
		return documentdomain.Document{}, err
	}

	s.metrics.RecordDocumentVoided(ctx, string(doc.Kind))
	logger.WithContext(ctx, s.log).Info("document voided",
		zap.String("document_id", doc.ID.String()),
		zap.String("document_no", doc.DocumentNo),
	)
	return doc, nil
}

func (s *Service) RecordPayment(ctx context.Context, req ledgerdomain.RecordPaymentRequest) (ledgerdomain.PaymentReceipt, error) {
	ctx, _ = logger.EnsureCorrelationID(ctx)
	if err := s.validateRequest(req); err != nil {
		return ledgerdomain.PaymentReceipt{}, err
	}
	if err := s.checkPartner(ctx, req.Partner); err != nil {
		return ledgerdomain.PaymentReceipt{}, err
	}

	var (
		payment  paymentdomain.Payment
		group    flowgroupdomain.FlowGroup
		replayed bool
	)
	err := s.run(ctx, opRecordPayment, func(tx *gorm.DB) error {
		replayed = false
		scope, err := s.yearSvc.CurrentScope(ctx, tx)
		if err != nil {
			return err
		}

		if id, found, err := s.lookup(ctx, tx, opRecordPayment, req.IdempotencyKey); err != nil {
			return err
		} else if found {
			replayed = true
			if payment, err = s.paymentSvc.Get(ctx, tx, id); err != nil {
				return err
			}
			group, err = s.flowGroupSvc.Get(ctx, tx, payment.FlowGroupID)
			return err
		}

		opened, err := s.flowGroupSvc.Open(ctx, tx, req.Partner, scope.ID)
		if err != nil {
			return err
		}

		payment, err = s.paymentSvc.Record(ctx, tx, scope, opened, paymentdomain.RecordInput{
			Amount:  req.Amount,
			Mode:    req.Mode,
			Note:    strings.TrimSpace(req.Note),
			PaidAt:  s.dateOrToday(req.PaidAt),
			ActorID: req.ActorID,
		})
		if err != nil {
			return err
		}
		// Record may have settled the group.
		if group, err = s.flowGroupSvc.Get(ctx, tx, opened.ID); err != nil {
			return err
		}
		return s.save(ctx, tx, opRecordPayment, req.IdempotencyKey, payment.ID)
	})
	if err != nil {
		return ledgerdomain.PaymentReceipt{}, err
	}

	if !replayed {
		s.metrics.RecordPayment(ctx, string(payment.Direction), string(payment.Mode))
		logger.WithContext(ctx, s.log).Info("payment recorded",
			zap.String("payment_id", payment.ID.String()),
			zap.String("receipt_no", payment.ReceiptNo),
			zap.String("direction", string(payment.Direction)),
			zap.String("flow_group_status", string(group.Status)),
		)
	}
	return ledgerdomain.PaymentReceipt{
		PaymentID:       payment.ID,
		ReceiptNo:       payment.ReceiptNo,
		FlowGroupStatus: group.Status,
	}, nil
}

func (s *Service) ReversePayment(ctx context.Context, req ledgerdomain.ReversePaymentRequest) (paymentdomain.Payment, error) {
	ctx, _ = logger.EnsureCorrelationID(ctx)
	if err := s.validateRequest(req); err != nil {
		return paymentdomain.Payment{}, err
	}

	var payment paymentdomain.Payment
	err := s.run(ctx, opReversePayment, func(tx *gorm.DB) error {
		scope, err := s.yearSvc.CurrentScope(ctx, tx)
		if err != nil {
			return err
		}
		payment, err = s.paymentSvc.Reverse(ctx, tx, scope, paymentdomain.ReverseInput{
			PaymentID: req.PaymentID,
			ActorID:   req.ActorID,
		})
		return err
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	s.metrics.RecordPaymentReversed(ctx, string(payment.Direction))
	logger.WithContext(ctx, s.log).Info("payment reversed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("receipt_no", payment.ReceiptNo),
	)
	return payment, nil
}

func (s *Service) CreateReturn(ctx context.Context, req ledgerdomain.CreateReturnRequest) (ledgerdomain.ReturnReceipt, error) {
	ctx, _ = logger.EnsureCorrelationID(ctx)
	if err := s.validateRequest(req); err != nil {
		return ledgerdomain.ReturnReceipt{}, err
	}

	items := make([]returnsdomain.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, returnsdomain.ItemInput{
			TextbookID: item.TextbookID,
			Quantity:   item.Quantity,
		})
	}

	var (
		ret      returnsdomain.Return
		replayed bool
	)
	err := s.run(ctx, opCreateReturn, func(tx *gorm.DB) error {
		replayed = false
		scope, err := s.yearSvc.CurrentScope(ctx, tx)
		if err != nil {
			return err
		}

		if id, found, err := s.lookup(ctx, tx, opCreateReturn, req.IdempotencyKey); err != nil {
			return err
		} else if found {
			replayed = true
			ret, err = s.returnsSvc.Get(ctx, tx, id)
			return err
		}

		ret, err = s.returnsSvc.Create(ctx, tx, scope, returnsdomain.CreateInput{
			ParentDocumentID: req.ParentDocumentID,
			Date:             s.dateOrToday(req.Date),
			Items:            items,
			Notes:            strings.TrimSpace(req.Notes),
			ActorID:          req.ActorID,
		})
		if err != nil {
			return err
		}
		return s.save(ctx, tx, opCreateReturn, req.IdempotencyKey, ret.ID)
	})
	if err != nil {
		s.recordRejection(ctx, err)
		return ledgerdomain.ReturnReceipt{}, err
	}

	if !replayed {
		s.metrics.RecordReturn(ctx, string(ret.Kind))
		logger.WithContext(ctx, s.log).Info("return created",
			zap.String("return_id", ret.ID.String()),
			zap.String("return_no", ret.ReturnNo),
			zap.String("parent_document_id", ret.ParentDocumentID.String()),
		)
	}
	return ledgerdomain.ReturnReceipt{ReturnID: ret.ID, ReturnNo: ret.ReturnNo}, nil
}

func (s *Service) Statement(ctx context.Context, partner flowgroupdomain.PartnerRef) (statementdomain.Statement, error) {
	if err := partner.Validate(); err != nil {
		return statementdomain.Statement{}, err
	}
	conn := s.db.WithContext(ctx)
	scope, err := s.yearSvc.CurrentScope(ctx, conn)
	if err != nil {
		return statementdomain.Statement{}, err
	}
	group, err := s.flowGroupSvc.FindLatest(ctx, conn, partner, scope.ID)
	if err != nil {
		return statementdomain.Statement{}, err
	}
	return s.statementSvc.Build(ctx, conn, group.ID)
}

func (s *Service) StatementByFlowGroup(ctx context.Context, flowGroupID snowflake.ID) (statementdomain.Statement, error) {
	return s.statementSvc.Build(ctx, s.db.WithContext(ctx), flowGroupID)
}

func (s *Service) AvailableStock(ctx context.Context, textbookID snowflake.ID) (int64, error) {
	conn := s.db.WithContext(ctx)
	scope, err := s.yearSvc.CurrentScope(ctx, conn)
	if err != nil {
		return 0, err
	}
	return s.stockSvc.Available(ctx, conn, scope.ID, textbookID)
}

func (s *Service) StockHistory(ctx context.Context, textbookID snowflake.ID, page pagination.Pagination) (stockdomain.HistoryResponse, error) {
	if textbookID <= 0 {
		return stockdomain.HistoryResponse{}, ledgerdomain.ErrInvalidRequest
	}
	scope, err := s.yearSvc.CurrentScope(ctx, s.db.WithContext(ctx))
	if err != nil {
		return stockdomain.HistoryResponse{}, err
	}
	return s.stockSvc.History(ctx, stockdomain.HistoryRequest{
		Pagination:     page,
		AcademicYearID: scope.ID,
		TextbookID:     textbookID,
	})
}

func (s *Service) AuditTrail(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return s.auditSvc.List(ctx, req)
}

// run executes fn in a bounded transaction and retries it while it loses lock
// races. Business rejections are returned on the first attempt.
func (s *Service) run(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	start := s.clock.Now()
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err = pkgdb.RunInTx(ctx, s.db, s.txTimeout, fn)
		if err == nil || !errors.Is(err, pkgdb.ErrConcurrentConflict) || ctx.Err() != nil {
			break
		}
		if attempt < s.attempts {
			s.metrics.RecordTxRetry(ctx, operation)
			logger.WithContext(ctx, s.log).Warn("retrying ledger transaction",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, pkgdb.ErrConcurrentConflict):
		outcome = "conflict"
	default:
		outcome = "rejected"
	}
	s.metrics.ObserveTx(ctx, operation, outcome, s.clock.Now().Sub(start))
	return err
}

func (s *Service) lookup(ctx context.Context, tx *gorm.DB, operation, key string) (snowflake.ID, bool, error) {
	if key == "" {
		return 0, false, nil
	}
	return s.idempotencySvc.Lookup(ctx, tx, operation, key)
}

func (s *Service) save(ctx context.Context, tx *gorm.DB, operation, key string, id snowflake.ID) error {
	if key == "" {
		return nil
	}
	return s.idempotencySvc.Save(ctx, tx, operation, key, id)
}

func (s *Service) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ledgerdomain.ErrInvalidRequest, err)
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return &ledgerdomain.ValidationError{Err: ledgerdomain.ErrInvalidRequest, Details: details}
}

func (s *Service) checkPartner(ctx context.Context, partner flowgroupdomain.PartnerRef) error {
	if err := partner.Validate(); err != nil {
		return err
	}
	if s.partners == nil {
		return nil
	}
	ok, err := s.partners.Exists(ctx, partner)
	if err != nil {
		return err
	}
	if !ok {
		return ledgerdomain.ErrPartnerNotFound
	}
	return nil
}

func (s *Service) recordRejection(ctx context.Context, err error) {
	var insufficient *stockdomain.InsufficientStockError
	if errors.As(err, &insufficient) {
		s.metrics.RecordStockRejection(ctx, "insufficient_stock")
		return
	}
	var exceeds *returnsdomain.ReturnExceedsIssuedError
	if errors.As(err, &exceeds) {
		s.metrics.RecordStockRejection(ctx, "return_exceeds_issued")
	}
}

func (s *Service) dateOrToday(t time.Time) time.Time {
	if t.IsZero() {
		return s.clock.Now()
	}
	return t
}
