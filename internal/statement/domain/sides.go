package domain

import (
	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	returnsdomain "github.com/smallbiznis/bookledger/internal/returns/domain"
)

// Every event carries a positive amount and a side seen from the partner:
//
//	debit:  INVOICE, PROVISIONAL_INVOICE, payment MADE, DEALER_RETURN
//	credit: CREDIT_NOTE, PURCHASE_INVOICE, payment RECEIVED, SALES_RETURN

// DocumentRow maps a document; ok is false for voided documents and estimations.
func DocumentRow(doc documentdomain.Document) (Row, bool) {
	if doc.IsVoided() || !doc.Kind.AffectsBalance() {
		return Row{}, false
	}
	row := Row{
		Date:        doc.DocumentDate,
		CreatedAt:   doc.CreatedAt,
		SourceType:  SourceDocument,
		SourceID:    doc.ID,
		EventType:   string(doc.Kind),
		Reference:   doc.DocumentNo,
		Description: doc.Notes,
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
	}
	switch doc.Kind {
	case documentdomain.KindInvoice, documentdomain.KindProvisionalInvoice:
		row.Debit = doc.NetAmount
	default:
		row.Credit = doc.NetAmount
	}
	return row, true
}

// PaymentRow maps a payment; ok is false for reversed payments.
func PaymentRow(p paymentdomain.Payment) (Row, bool) {
	if p.IsReversed() {
		return Row{}, false
	}
	row := Row{
		Date:        p.PaidAt,
		CreatedAt:   p.CreatedAt,
		SourceType:  SourcePayment,
		SourceID:    p.ID,
		EventType:   "PAYMENT_" + string(p.Direction),
		Reference:   p.ReceiptNo,
		Description: string(p.Mode),
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
	}
	if p.Direction == paymentdomain.DirectionMade {
		row.Debit = p.Amount
	} else {
		row.Credit = p.Amount
	}
	return row, true
}

func ReturnRow(r returnsdomain.Return) Row {
	row := Row{
		Date:        r.ReturnDate,
		CreatedAt:   r.CreatedAt,
		SourceType:  SourceReturn,
		SourceID:    r.ID,
		EventType:   string(r.Kind),
		Reference:   r.ReturnNo,
		Description: r.Notes,
		Debit:       decimal.Zero,
		Credit:      decimal.Zero,
	}
	if r.Kind == returnsdomain.KindDealerReturn {
		row.Debit = r.TotalAmount
	} else {
		row.Credit = r.TotalAmount
	}
	return row
}
