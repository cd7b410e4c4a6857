package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindInvoice            Kind = "INVOICE"
	KindProvisionalInvoice Kind = "PROVISIONAL_INVOICE"
	KindCreditNote         Kind = "CREDIT_NOTE"
	KindEstimation         Kind = "ESTIMATION"
	KindPurchaseInvoice    Kind = "PURCHASE_INVOICE"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInvoice, KindProvisionalInvoice, KindCreditNote, KindEstimation, KindPurchaseInvoice:
		return true
	default:
		return false
	}
}

// IssuesStock reports kinds that move books out to the partner.
func (k Kind) IssuesStock() bool {
	return k == KindInvoice || k == KindProvisionalInvoice
}

// ReceivesStock reports kinds that bring books in from a dealer.
func (k Kind) ReceivesStock() bool { return k == KindPurchaseInvoice }

func (k Kind) AffectsStock() bool { return k.IssuesStock() || k.ReceivesStock() }

// AffectsBalance is false for estimations, which are quotes only.
func (k Kind) AffectsBalance() bool { return k.Valid() && k != KindEstimation }

// AllowedFor reports whether a partner of type t may receive documents of kind k.
func (k Kind) AllowedFor(t flowgroupdomain.PartnerType) bool {
	if t == flowgroupdomain.PartnerDealer {
		return k == KindPurchaseInvoice
	}
	return k.Valid() && k != KindPurchaseInvoice
}

type Status string

const (
	StatusIssued Status = "ISSUED"
	StatusVoided Status = "VOIDED"
)

// Document is a priced record. Totals are element-wise sums of the rounded line
// amounts and are recomputed on every write.
type Document struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	AcademicYearID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_documents_number,priority:1" json:"academic_year_id"`
	FlowGroupID    snowflake.ID    `gorm:"not null;index" json:"flow_group_id"`
	Kind           Kind            `gorm:"type:varchar(24);not null;uniqueIndex:ux_documents_number,priority:2" json:"kind"`
	SequenceNumber int64           `gorm:"not null;uniqueIndex:ux_documents_number,priority:3" json:"sequence_number"`
	DocumentNo     string          `gorm:"type:varchar(64);not null" json:"document_no"`
	DocumentDate   time.Time       `gorm:"not null" json:"document_date"`
	Status         Status          `gorm:"type:varchar(16);not null" json:"status"`
	TotalQuantity  int64           `gorm:"not null" json:"total_quantity"`
	GrossAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"gross_amount"`
	TotalDiscount  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_discount"`
	NetAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"net_amount"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy      string          `gorm:"type:varchar(64)" json:"created_by,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	VoidedBy       *string         `gorm:"type:varchar(64)" json:"voided_by,omitempty"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
	VoidReason     *string         `gorm:"type:text" json:"void_reason,omitempty"`
	Items          []Item          `gorm:"foreignKey:DocumentID" json:"items,omitempty"`
}

func (Document) TableName() string { return "documents" }

func (d Document) IsVoided() bool { return d.Status == StatusVoided }

// Item is one priced line of a document.
type Item struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	DocumentID      snowflake.ID      `gorm:"not null;index" json:"document_id"`
	LineNo          int               `gorm:"not null" json:"line_no"`
	TextbookID      *snowflake.ID     `gorm:"index" json:"textbook_id,omitempty"`
	Description     string            `gorm:"type:text" json:"description,omitempty"`
	Tags            datatypes.JSONMap `gorm:"type:json" json:"tags,omitempty"`
	Quantity        int64             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	DiscountPercent decimal.Decimal   `gorm:"type:numeric(5,2);not null" json:"discount_percent"`
	GrossAmount     decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"gross_amount"`
	DiscountAmount  decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"discount_amount"`
	NetAmount       decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"net_amount"`
}

func (Item) TableName() string { return "document_items" }
