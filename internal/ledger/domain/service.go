package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	statementdomain "github.com/smallbiznis/bookledger/internal/statement/domain"
	stockdomain "github.com/smallbiznis/bookledger/internal/stock/domain"
	pkgdb "github.com/smallbiznis/bookledger/pkg/db"
	"github.com/smallbiznis/bookledger/pkg/db/pagination"
)

// Service is the entry point used by the HTTP layer. Every mutating call runs in one
// bounded transaction against the current academic year.
type Service interface {
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (DocumentReceipt, error)
	VoidDocument(ctx context.Context, req VoidDocumentRequest) (documentdomain.Document, error)
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (PaymentReceipt, error)
	ReversePayment(ctx context.Context, req ReversePaymentRequest) (paymentdomain.Payment, error)
	CreateReturn(ctx context.Context, req CreateReturnRequest) (ReturnReceipt, error)
	// Statement uses the partner's OPEN flow group, or its latest one in the year.
	Statement(ctx context.Context, partner flowgroupdomain.PartnerRef) (statementdomain.Statement, error)
	StatementByFlowGroup(ctx context.Context, flowGroupID snowflake.ID) (statementdomain.Statement, error)
	AvailableStock(ctx context.Context, textbookID snowflake.ID) (int64, error)
	// StockHistory pages the textbook's ledger entries in the current year, newest first.
	StockHistory(ctx context.Context, textbookID snowflake.ID, page pagination.Pagination) (stockdomain.HistoryResponse, error)
	AuditTrail(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error)
}

// PartnerDirectory is implemented by the school, company and dealer registry.
type PartnerDirectory interface {
	Exists(ctx context.Context, partner flowgroupdomain.PartnerRef) (bool, error)
}

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrPartnerNotFound = errors.New("partner_not_found")
)

// ValidationError lists the request fields that failed shape validation.
type ValidationError struct {
	Err     error
	Details map[string]string
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return ErrInvalidRequest.Error()
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsRetryable reports whether the call failed on a transient conflict and may be
// retried with the same idempotency key.
func IsRetryable(err error) bool {
	return errors.Is(err, pkgdb.ErrConcurrentConflict)
}
