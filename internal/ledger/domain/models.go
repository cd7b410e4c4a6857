package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
)

type DocumentItemRequest struct {
	TextbookID      *snowflake.ID   `json:"textbook_id,omitempty"`
	Description     string          `json:"description,omitempty" validate:"max=500"`
	Tags            map[string]any  `json:"tags,omitempty"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type CreateDocumentRequest struct {
	Kind           documentdomain.Kind        `json:"kind" validate:"required,oneof=INVOICE PROVISIONAL_INVOICE CREDIT_NOTE ESTIMATION PURCHASE_INVOICE"`
	Partner        flowgroupdomain.PartnerRef `json:"partner"`
	Date           time.Time                  `json:"date"`
	Items          []DocumentItemRequest      `json:"items" validate:"required,min=1,dive"`
	Notes          string                     `json:"notes,omitempty" validate:"max=2000"`
	ActorID        string                     `json:"actor_id" validate:"required,max=64"`
	IdempotencyKey string                     `json:"idempotency_key,omitempty" validate:"max=128"`
}

type DocumentReceipt struct {
	DocumentID snowflake.ID `json:"document_id"`
	DocumentNo string       `json:"document_no"`
}

type VoidDocumentRequest struct {
	DocumentID snowflake.ID `json:"document_id" validate:"required"`
	ActorID    string       `json:"actor_id" validate:"required,max=64"`
	Reason     string       `json:"reason,omitempty" validate:"max=500"`
}

type RecordPaymentRequest struct {
	Partner        flowgroupdomain.PartnerRef `json:"partner"`
	Amount         decimal.Decimal            `json:"amount"`
	Mode           paymentdomain.Mode         `json:"mode" validate:"required,oneof=CASH UPI BANK"`
	Note           string                     `json:"note,omitempty" validate:"max=500"`
	PaidAt         time.Time                  `json:"paid_at"`
	ActorID        string                     `json:"actor_id" validate:"required,max=64"`
	IdempotencyKey string                     `json:"idempotency_key,omitempty" validate:"max=128"`
}

type PaymentReceipt struct {
	PaymentID       snowflake.ID           `json:"payment_id"`
	ReceiptNo       string                 `json:"receipt_no"`
	FlowGroupStatus flowgroupdomain.Status `json:"flow_group_status"`
}

type ReversePaymentRequest struct {
	PaymentID snowflake.ID `json:"payment_id" validate:"required"`
	ActorID   string       `json:"actor_id" validate:"required,max=64"`
}

type ReturnItemRequest struct {
	TextbookID snowflake.ID `json:"textbook_id" validate:"required"`
	Quantity   int64        `json:"quantity"`
}

type CreateReturnRequest struct {
	ParentDocumentID snowflake.ID        `json:"parent_document_id" validate:"required"`
	Date             time.Time           `json:"date"`
	Items            []ReturnItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes            string              `json:"notes,omitempty" validate:"max=2000"`
	ActorID          string              `json:"actor_id" validate:"required,max=64"`
	IdempotencyKey   string              `json:"idempotency_key,omitempty" validate:"max=128"`
}

type ReturnReceipt struct {
	ReturnID snowflake.ID `json:"return_id"`
	ReturnNo string       `json:"return_no"`
}
