package domain

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	"gorm.io/gorm"
)

const (
	SourceDocument = "document"
	SourcePayment  = "payment"
	SourceReturn   = "return"
)

// Row is one monetary event of a flow group. Exactly one of Debit and Credit is
// non-zero; Balance is filled by Fold.
type Row struct {
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	SourceType  string          `json:"source_type"`
	SourceID    snowflake.ID    `json:"source_id"`
	EventType   string          `json:"event_type"`
	Reference   string          `json:"reference"`
	Description string          `json:"description,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// Statement is the running-balance projection of a flow group. A positive balance
// means the partner owes the business.
type Statement struct {
	FlowGroupID    snowflake.ID               `json:"flow_group_id"`
	Partner        flowgroupdomain.PartnerRef `json:"partner"`
	Status         flowgroupdomain.Status     `json:"status"`
	Rows           []Row                      `json:"rows"`
	TotalDebit     decimal.Decimal            `json:"total_debit"`
	TotalCredit    decimal.Decimal            `json:"total_credit"`
	ClosingBalance decimal.Decimal            `json:"closing_balance"`
}

// Outstanding is what the business owes the partner.
func (s Statement) Outstanding() decimal.Decimal { return s.ClosingBalance.Neg() }

// Fold sorts rows by (date, created_at, id) and accumulates balance += debit - credit.
// The input slice is not modified, so the result is independent of insertion order.
func Fold(rows []Row) Statement {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.SourceType < b.SourceType
	})

	out := Statement{
		Rows:           sorted,
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		ClosingBalance: decimal.Zero,
	}
	balance := decimal.Zero
	for i := range sorted {
		balance = balance.Add(sorted[i].Debit).Sub(sorted[i].Credit)
		sorted[i].Balance = balance
		out.TotalDebit = out.TotalDebit.Add(sorted[i].Debit)
		out.TotalCredit = out.TotalCredit.Add(sorted[i].Credit)
	}
	out.ClosingBalance = balance
	return out
}

type Service interface {
	// Build replays the flow group's documents, payments and returns through db.
	Build(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID) (Statement, error)
}

var ErrFlowGroupRequired = errors.New("flow_group_required")
