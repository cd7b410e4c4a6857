package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	academicyearservice "github.com/smallbiznis/bookledger/internal/academicyear/service"
	auditrepository "github.com/smallbiznis/bookledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/bookledger/internal/audit/service"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/config"
	"github.com/smallbiznis/bookledger/internal/dbtest"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	documentservice "github.com/smallbiznis/bookledger/internal/document/service"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	flowgroupservice "github.com/smallbiznis/bookledger/internal/flowgroup/service"
	idempotencydomain "github.com/smallbiznis/bookledger/internal/idempotency/domain"
	idempotencyservice "github.com/smallbiznis/bookledger/internal/idempotency/service"
	ledgerdomain "github.com/smallbiznis/bookledger/internal/ledger/domain"
	"github.com/smallbiznis/bookledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/bookledger/internal/payment/repository"
	paymentservice "github.com/smallbiznis/bookledger/internal/payment/service"
	returnsdomain "github.com/smallbiznis/bookledger/internal/returns/domain"
	returnsservice "github.com/smallbiznis/bookledger/internal/returns/service"
	sequenceservice "github.com/smallbiznis/bookledger/internal/sequence/service"
	statementservice "github.com/smallbiznis/bookledger/internal/statement/service"
	stockdomain "github.com/smallbiznis/bookledger/internal/stock/domain"
	stockservice "github.com/smallbiznis/bookledger/internal/stock/service"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	pkgdb "github.com/smallbiznis/bookledger/pkg/db"
	"github.com/smallbiznis/bookledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	mathBook    snowflake.ID = 501
	scienceBook snowflake.ID = 502
)

var (
	school = flowgroupdomain.PartnerRef{Type: flowgroupdomain.PartnerSchool, ID: 10}
	dealer = flowgroupdomain.PartnerRef{Type: flowgroupdomain.PartnerDealer, ID: 20}
)

type mockPartners struct {
	mock.Mock
}

func (m *mockPartners) Exists(ctx context.Context, partner flowgroupdomain.PartnerRef) (bool, error) {
	args := m.Called(ctx, partner)
	return args.Bool(0), args.Error(1)
}

// flakyIdempotency loses the first Save race, the way a concurrent request with the
// same key would.
type flakyIdempotency struct {
	idempotencydomain.Service
	mu    sync.Mutex
	fails int
}

func (f *flakyIdempotency) Save(ctx context.Context, tx *gorm.DB, operation, key string, resourceID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return pkgdb.ErrConcurrentConflict
	}
	return f.Service.Save(ctx, tx, operation, key, resourceID)
}

type fixture struct {
	conn   *gorm.DB
	svc    ledgerdomain.Service
	years  academicyeardomain.Service
	reader *sdkmetric.ManualReader
}

type option func(*Params)

func newFixture(t *testing.T, openYear bool, opts ...option) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	reader := sdkmetric.NewManualReader()
	m, err := metrics.New(metrics.Config{ServiceName: "bookledger-test"}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	years := academicyearservice.NewService(academicyearservice.Params{DB: conn, Log: log, GenID: node, Clock: clk})
	if openYear {
		_, err := years.Open(context.Background(), academicyeardomain.OpenRequest{
			Name:      "2025-26",
			StartDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	audit := auditservice.NewService(auditservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: auditrepository.Provide()})
	stock := stockservice.NewService(stockservice.Params{DB: conn, Log: log, GenID: node, Clock: clk})
	groups := flowgroupservice.NewService(flowgroupservice.Params{Log: log, GenID: node, Clock: clk})
	sequences := sequenceservice.NewService(sequenceservice.Params{
		Log:    log,
		Clock:  clk,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicy()),
	})
	documents := documentservice.NewService(documentservice.Params{
		Log: log, GenID: node, Clock: clk,
		SequenceSvc: sequences, StockSvc: stock, FlowGroupSvc: groups, AuditSvc: audit,
	})
	returns := returnsservice.NewService(returnsservice.Params{
		Log: log, GenID: node, Clock: clk,
		DocumentSvc: documents, FlowGroupSvc: groups, SequenceSvc: sequences, StockSvc: stock, AuditSvc: audit,
	})
	repo := paymentrepository.Provide()
	statements := statementservice.NewService(statementservice.Params{
		Log: log, FlowGroupSvc: groups, DocumentSvc: documents, ReturnsSvc: returns, PaymentRepo: repo,
	})
	payments := paymentservice.NewService(paymentservice.Params{
		Log: log, GenID: node, Clock: clk, Repo: repo,
		SequenceSvc: sequences, FlowGroupSvc: groups, StatementSvc: statements, AuditSvc: audit,
	})

	p := Params{
		DB:     conn,
		Log:    log,
		Clock:  clk,
		Config: config.Config{Ledger: config.LedgerConfig{TxTimeout: 10 * time.Second, TxMaxAttempts: 3}},

		YearSvc:        years,
		FlowGroupSvc:   groups,
		DocumentSvc:    documents,
		PaymentSvc:     payments,
		ReturnsSvc:     returns,
		StatementSvc:   statements,
		StockSvc:       stock,
		IdempotencySvc: idempotencyservice.NewService(idempotencyservice.Params{GenID: node, Clock: clk}),
		AuditSvc:       audit,

		Metrics: m,
	}
	for _, opt := range opts {
		opt(&p)
	}

	return &fixture{conn: conn, svc: NewService(p), years: years, reader: reader}
}

func (f *fixture) counters(t *testing.T) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[metric.Name] += dp.Value
			}
		}
	}
	return totals
}

func line(textbook snowflake.ID, qty int64, price, discount string) ledgerdomain.DocumentItemRequest {
	id := textbook
	return ledgerdomain.DocumentItemRequest{
		TextbookID:      &id,
		Quantity:        qty,
		UnitPrice:       decimal.RequireFromString(price),
		DiscountPercent: decimal.RequireFromString(discount),
	}
}

func (f *fixture) stockUp(t *testing.T, qty int64) ledgerdomain.DocumentReceipt {
	t.Helper()
	receipt, err := f.svc.CreateDocument(context.Background(), ledgerdomain.CreateDocumentRequest{
		Kind:    documentdomain.KindPurchaseInvoice,
		Partner: dealer,
		Items:   []ledgerdomain.DocumentItemRequest{line(mathBook, qty, "80", "0"), line(scienceBook, qty, "40", "0")},
		ActorID: "clerk-1",
	})
	require.NoError(t, err)
	return receipt
}

func (f *fixture) invoice(ctx context.Context, qty int64, key string) (ledgerdomain.DocumentReceipt, error) {
	return f.svc.CreateDocument(ctx, ledgerdomain.CreateDocumentRequest{
		Kind:           documentdomain.KindInvoice,
		Partner:        school,
		Items:          []ledgerdomain.DocumentItemRequest{line(mathBook, qty, "100", "0")},
		ActorID:        "clerk-1",
		IdempotencyKey: key,
	})
}

func TestLedgerEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	purchase := f.stockUp(t, 50)
	assert.Equal(t, "PUR-1", purchase.DocumentNo)

	invoice, err := f.svc.CreateDocument(ctx, ledgerdomain.CreateDocumentRequest{
		Kind:    documentdomain.KindInvoice,
		Partner: school,
		Items: []ledgerdomain.DocumentItemRequest{
			line(mathBook, 10, "100", "10"),
			line(scienceBook, 1, "50", "0"),
		},
		ActorID: "clerk-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-1", invoice.DocumentNo)

	paid, err := f.svc.RecordPayment(ctx, ledgerdomain.RecordPaymentRequest{
		Partner: school,
		Amount:  decimal.NewFromInt(400),
		Mode:    paymentdomain.ModeUPI,
		ActorID: "cashier-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "RCPT-1", paid.ReceiptNo)
	assert.Equal(t, flowgroupdomain.StatusOpen, paid.FlowGroupStatus)

	ret, err := f.svc.CreateReturn(ctx, ledgerdomain.CreateReturnRequest{
		ParentDocumentID: invoice.DocumentID,
		Items:            []ledgerdomain.ReturnItemRequest{{TextbookID: mathBook, Quantity: 3}},
		ActorID:          "clerk-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "SR-1", ret.ReturnNo)

	_, err = f.svc.CreateReturn(ctx, ledgerdomain.CreateReturnRequest{
		ParentDocumentID: invoice.DocumentID,
		Items:            []ledgerdomain.ReturnItemRequest{{TextbookID: mathBook, Quantity: 8}},
		ActorID:          "clerk-1",
	})
	var exceeds *returnsdomain.ReturnExceedsIssuedError
	require.True(t, errors.As(err, &exceeds))
	assert.Equal(t, int64(7), exceeds.Max)

	stmt, err := f.svc.Statement(ctx, school)
	require.NoError(t, err)
	assert.Len(t, stmt.Rows, 3)
	assert.Equal(t, "250.00", stmt.ClosingBalance.StringFixed(2))

	available, err := f.svc.AvailableStock(ctx, mathBook)
	require.NoError(t, err)
	assert.Equal(t, int64(43), available)

	dealerPaid, err := f.svc.RecordPayment(ctx, ledgerdomain.RecordPaymentRequest{
		Partner: dealer,
		Amount:  decimal.NewFromInt(6000),
		Mode:    paymentdomain.ModeBank,
		Note:    "NEFT-7781",
		ActorID: "cashier-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "RCPT-2", dealerPaid.ReceiptNo)
	assert.Equal(t, flowgroupdomain.StatusSettled, dealerPaid.FlowGroupStatus)

	dealerStmt, err := f.svc.Statement(ctx, dealer)
	require.NoError(t, err)
	assert.True(t, dealerStmt.Outstanding().IsZero())
	assert.Equal(t, flowgroupdomain.StatusSettled, dealerStmt.Status)

	reversed, err := f.svc.ReversePayment(ctx, ledgerdomain.ReversePaymentRequest{PaymentID: dealerPaid.PaymentID, ActorID: "cashier-1"})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusReversed, reversed.Status)

	dealerStmt, err = f.svc.StatementByFlowGroup(ctx, dealerStmt.FlowGroupID)
	require.NoError(t, err)
	assert.Equal(t, flowgroupdomain.StatusOpen, dealerStmt.Status)
	assert.Equal(t, "6000.00", dealerStmt.Outstanding().StringFixed(2))

	counters := f.counters(t)
	assert.Equal(t, int64(2), counters["bookledger_documents_created_total"])
	assert.Equal(t, int64(2), counters["bookledger_payments_recorded_total"])
	assert.Equal(t, int64(1), counters["bookledger_payments_reversed_total"])
	assert.Equal(t, int64(1), counters["bookledger_returns_created_total"])
	assert.Equal(t, int64(1), counters["bookledger_stock_rejections_total"])
}

func TestCreateDocumentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.stockUp(t, 10)

	first, err := f.invoice(ctx, 2, "req-1")
	require.NoError(t, err)
	second, err := f.invoice(ctx, 2, "req-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	require.NoError(t, f.conn.Model(&documentdomain.Document{}).Where("kind = ?", documentdomain.KindInvoice).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	available, err := f.svc.AvailableStock(ctx, mathBook)
	require.NoError(t, err)
	assert.Equal(t, int64(8), available)

	third, err := f.invoice(ctx, 2, "req-2")
	require.NoError(t, err)
	assert.Equal(t, "INV-2", third.DocumentNo)
	// The purchase plus two invoices; the replay is not counted.
	assert.Equal(t, int64(3), f.counters(t)["bookledger_documents_created_total"])
}

func TestPaymentAndReturnAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.stockUp(t, 10)
	invoice, err := f.invoice(ctx, 4, "")
	require.NoError(t, err)

	req := ledgerdomain.RecordPaymentRequest{
		Partner:        school,
		Amount:         decimal.NewFromInt(100),
		Mode:           paymentdomain.ModeCash,
		ActorID:        "cashier-1",
		IdempotencyKey: "pay-1",
	}
	first, err := f.svc.RecordPayment(ctx, req)
	require.NoError(t, err)
	second, err := f.svc.RecordPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	retReq := ledgerdomain.CreateReturnRequest{
		ParentDocumentID: invoice.DocumentID,
		Items:            []ledgerdomain.ReturnItemRequest{{TextbookID: mathBook, Quantity: 3}},
		ActorID:          "clerk-1",
		IdempotencyKey:   "ret-1",
	}
	r1, err := f.svc.CreateReturn(ctx, retReq)
	require.NoError(t, err)
	r2, err := f.svc.CreateReturn(ctx, retReq)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	stmt, err := f.svc.Statement(ctx, school)
	require.NoError(t, err)
	assert.Equal(t, "0.00", stmt.ClosingBalance.StringFixed(2))
}

func TestConflictIsRetried(t *testing.T) {
	ctx := context.Background()
	var flaky *flakyIdempotency
	f := newFixture(t, true, func(p *Params) {
		flaky = &flakyIdempotency{Service: p.IdempotencySvc, fails: 1}
		p.IdempotencySvc = flaky
	})
	f.stockUp(t, 10)

	receipt, err := f.invoice(ctx, 1, "retry-1")
	require.NoError(t, err)
	// The first attempt rolled back together with its number.
	assert.Equal(t, "INV-1", receipt.DocumentNo)

	available, err := f.svc.AvailableStock(ctx, mathBook)
	require.NoError(t, err)
	assert.Equal(t, int64(9), available)
	assert.Equal(t, int64(1), f.counters(t)["bookledger_tx_retries_total"])
}

func TestConflictExhaustsAttempts(t *testing.T) {
	f := newFixture(t, true, func(p *Params) {
		p.IdempotencySvc = &flakyIdempotency{Service: p.IdempotencySvc, fails: 10}
	})
	f.stockUp(t, 10)

	_, err := f.invoice(context.Background(), 1, "retry-2")
	assert.True(t, ledgerdomain.IsRetryable(err))
	assert.Equal(t, int64(2), f.counters(t)["bookledger_tx_retries_total"])
}

func TestLastUnitGoesToOneInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.stockUp(t, 1)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.invoice(ctx, 1, "")
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, stockdomain.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	available, err := f.svc.AvailableStock(ctx, mathBook)
	require.NoError(t, err)
	assert.Zero(t, available)
}

func TestConcurrentInvoicesGetConsecutiveNumbers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.stockUp(t, 100)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := f.invoice(ctx, 1, fmt.Sprintf("bulk-%d", i))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[receipt.DocumentNo] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		assert.True(t, numbers[fmt.Sprintf("INV-%d", i)], "missing INV-%d", i)
	}
}

func TestVoidDocumentTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.stockUp(t, 10)
	receipt, err := f.invoice(ctx, 4, "")
	require.NoError(t, err)

	doc, err := f.svc.VoidDocument(ctx, ledgerdomain.VoidDocumentRequest{DocumentID: receipt.DocumentID, ActorID: "clerk-1"})
	require.NoError(t, err)
	assert.Equal(t, documentdomain.StatusVoided, doc.Status)

	_, err = f.svc.VoidDocument(ctx, ledgerdomain.VoidDocumentRequest{DocumentID: receipt.DocumentID, ActorID: "clerk-1"})
	assert.ErrorIs(t, err, documentdomain.ErrAlreadyVoided)

	available, err := f.svc.AvailableStock(ctx, mathBook)
	require.NoError(t, err)
	assert.Equal(t, int64(10), available)

	stmt, err := f.svc.Statement(ctx, school)
	require.NoError(t, err)
	assert.Empty(t, stmt.Rows)
	assert.Equal(t, int64(1), f.counters(t)["bookledger_documents_voided_total"])
}

func TestRequestValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.svc.CreateDocument(ctx, ledgerdomain.CreateDocumentRequest{
		Kind:    documentdomain.KindInvoice,
		Partner: flowgroupdomain.PartnerRef{Type: "SUPPLIER", ID: 1},
	})
	var verr *ledgerdomain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidRequest)
	assert.Equal(t, "required", verr.Details["CreateDocumentRequest.ActorID"])
	assert.Equal(t, "required", verr.Details["CreateDocumentRequest.Items"])
	assert.Equal(t, "oneof", verr.Details["CreateDocumentRequest.Partner.Type"])

	_, err = f.svc.RecordPayment(ctx, ledgerdomain.RecordPaymentRequest{
		Partner: school,
		Amount:  decimal.NewFromInt(10),
		Mode:    "CHEQUE",
		ActorID: "cashier-1",
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "oneof", verr.Details["RecordPaymentRequest.Mode"])

	_, err = f.svc.CreateDocument(ctx, ledgerdomain.CreateDocumentRequest{
		Kind:    documentdomain.KindInvoice,
		Partner: dealer,
		Items:   []ledgerdomain.DocumentItemRequest{line(mathBook, 1, "10", "0")},
		ActorID: "clerk-1",
	})
	assert.ErrorIs(t, err, documentdomain.ErrKindNotAllowed)
}

func TestUnknownPartnerIsRejected(t *testing.T) {
	partners := &mockPartners{}
	partners.On("Exists", mock.Anything, school).Return(false, nil)
	f := newFixture(t, true, func(p *Params) { p.Partners = partners })

	_, err := f.svc.RecordPayment(context.Background(), ledgerdomain.RecordPaymentRequest{
		Partner: school,
		Amount:  decimal.NewFromInt(10),
		Mode:    paymentdomain.ModeCash,
		ActorID: "cashier-1",
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrPartnerNotFound)
	partners.AssertExpectations(t)
}

func TestNoOpenYear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.CreateDocument(ctx, ledgerdomain.CreateDocumentRequest{
		Kind:    documentdomain.KindCreditNote,
		Partner: school,
		Items:   []ledgerdomain.DocumentItemRequest{{Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		ActorID: "clerk-1",
	})
	assert.ErrorIs(t, err, academicyeardomain.ErrNoOpenPeriod)

	_, err = f.svc.AvailableStock(ctx, mathBook)
	assert.ErrorIs(t, err, academicyeardomain.ErrNoOpenPeriod)
}

func TestStockHistoryAndAuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.stockUp(t, 10)
	receipt, err := f.invoice(ctx, 4, "")
	require.NoError(t, err)
	_, err = f.svc.VoidDocument(ctx, ledgerdomain.VoidDocumentRequest{DocumentID: receipt.DocumentID, ActorID: "clerk-2"})
	require.NoError(t, err)

	history, err := f.svc.StockHistory(ctx, mathBook, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, history.Entries, 2)
	assert.True(t, history.HasMore)
	assert.Equal(t, stockdomain.EventVoidReversal, history.Entries[0].EventType)
	assert.Equal(t, int64(4), history.Entries[0].QtyChange)
	assert.Equal(t, int64(-4), history.Entries[1].QtyChange)

	_, err = f.svc.StockHistory(ctx, mathBook, pagination.Pagination{PageToken: "%%%"})
	assert.ErrorIs(t, err, stockdomain.ErrInvalidPageToken)
	_, err = f.svc.StockHistory(ctx, 0, pagination.Pagination{})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidRequest)

	created, err := f.svc.AuditTrail(ctx, auditdomain.ListAuditLogRequest{ActorID: "clerk-1"})
	require.NoError(t, err)
	assert.Len(t, created.AuditLogs, 2)

	voided, err := f.svc.AuditTrail(ctx, auditdomain.ListAuditLogRequest{ActorID: "clerk-2"})
	require.NoError(t, err)
	require.Len(t, voided.AuditLogs, 1)
	assert.Equal(t, "document.voided", voided.AuditLogs[0].Action)
	assert.Equal(t, receipt.DocumentID.String(), voided.AuditLogs[0].TargetID)
}
