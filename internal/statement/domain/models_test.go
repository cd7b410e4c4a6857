package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	returnsdomain "github.com/smallbiznis/bookledger/internal/returns/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleRows() []Row {
	invoice, _ := DocumentRow(documentdomain.Document{
		ID: 1, Kind: documentdomain.KindInvoice, Status: documentdomain.StatusIssued,
		DocumentNo: "INV-1", DocumentDate: day(1), CreatedAt: day(1), NetAmount: amount("950"),
	})
	note, _ := DocumentRow(documentdomain.Document{
		ID: 2, Kind: documentdomain.KindCreditNote, Status: documentdomain.StatusIssued,
		DocumentNo: "1", DocumentDate: day(3), CreatedAt: day(3), NetAmount: amount("50"),
	})
	payment, _ := PaymentRow(paymentdomain.Payment{
		ID: 3, Direction: paymentdomain.DirectionReceived, Status: paymentdomain.StatusPosted,
		ReceiptNo: "RCPT-1", PaidAt: day(2), CreatedAt: day(2), Amount: amount("400"),
	})
	ret := ReturnRow(returnsdomain.Return{
		ID: 4, Kind: returnsdomain.KindSalesReturn, ReturnNo: "SR-1",
		ReturnDate: day(3), CreatedAt: day(3), TotalAmount: amount("300"),
	})
	return []Row{invoice, note, payment, ret}
}

func TestFoldComputesRunningBalance(t *testing.T) {
	stmt := Fold(sampleRows())

	require.Len(t, stmt.Rows, 4)
	refs := []string{}
	balances := []string{}
	for _, row := range stmt.Rows {
		refs = append(refs, row.Reference)
		balances = append(balances, row.Balance.StringFixed(2))
	}
	assert.Equal(t, []string{"INV-1", "RCPT-1", "1", "SR-1"}, refs)
	assert.Equal(t, []string{"950.00", "550.00", "500.00", "200.00"}, balances)
	assert.Equal(t, "950.00", stmt.TotalDebit.StringFixed(2))
	assert.Equal(t, "750.00", stmt.TotalCredit.StringFixed(2))
	assert.Equal(t, "200.00", stmt.ClosingBalance.StringFixed(2))
	assert.Equal(t, "-200.00", stmt.Outstanding().StringFixed(2))
}

func TestFoldIsOrderIndependent(t *testing.T) {
	want := Fold(sampleRows())
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 20; i++ {
		rows := sampleRows()
		rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })

		got := Fold(rows)
		assert.True(t, want.ClosingBalance.Equal(got.ClosingBalance))
		for j := range want.Rows {
			assert.Equal(t, want.Rows[j].SourceID, got.Rows[j].SourceID)
			assert.True(t, want.Rows[j].Balance.Equal(got.Rows[j].Balance))
		}
	}
}

func TestFoldDoesNotModifyInput(t *testing.T) {
	rows := sampleRows()
	rows[0], rows[3] = rows[3], rows[0]
	first := rows[0].SourceID

	Fold(rows)
	assert.Equal(t, first, rows[0].SourceID)
	assert.True(t, rows[0].Balance.IsZero())
}

func TestFoldEmpty(t *testing.T) {
	stmt := Fold(nil)
	assert.Empty(t, stmt.Rows)
	assert.True(t, stmt.ClosingBalance.IsZero())
}

func TestRowsSkipVoidedReversedAndEstimations(t *testing.T) {
	_, ok := DocumentRow(documentdomain.Document{Kind: documentdomain.KindInvoice, Status: documentdomain.StatusVoided})
	assert.False(t, ok)

	_, ok = DocumentRow(documentdomain.Document{Kind: documentdomain.KindEstimation, Status: documentdomain.StatusIssued})
	assert.False(t, ok)

	_, ok = PaymentRow(paymentdomain.Payment{Status: paymentdomain.StatusReversed})
	assert.False(t, ok)
}

func TestDealerSides(t *testing.T) {
	supply, ok := DocumentRow(documentdomain.Document{
		ID: 1, Kind: documentdomain.KindPurchaseInvoice, Status: documentdomain.StatusIssued,
		DocumentDate: day(1), CreatedAt: day(1), NetAmount: amount("800"),
	})
	require.True(t, ok)
	paid, ok := PaymentRow(paymentdomain.Payment{
		ID: 2, Direction: paymentdomain.DirectionMade, Status: paymentdomain.StatusPosted,
		PaidAt: day(2), CreatedAt: day(2), Amount: amount("300"),
	})
	require.True(t, ok)
	back := ReturnRow(returnsdomain.Return{
		ID: 3, Kind: returnsdomain.KindDealerReturn,
		ReturnDate: day(3), CreatedAt: day(3), TotalAmount: amount("160"),
	})

	stmt := Fold([]Row{supply, paid, back})
	assert.Equal(t, "-340.00", stmt.ClosingBalance.StringFixed(2))
	assert.Equal(t, "340.00", stmt.Outstanding().StringFixed(2))
	assert.Equal(t, snowflake.ID(3), stmt.Rows[2].SourceID)
}
