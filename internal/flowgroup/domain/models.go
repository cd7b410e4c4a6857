package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PartnerType string

const (
	PartnerSchool  PartnerType = "SCHOOL"
	PartnerCompany PartnerType = "COMPANY"
	PartnerDealer  PartnerType = "DEALER"
)

func (t PartnerType) Valid() bool {
	switch t {
	case PartnerSchool, PartnerCompany, PartnerDealer:
		return true
	default:
		return false
	}
}

// PartnerRef identifies one trading partner.
type PartnerRef struct {
	Type PartnerType  `json:"type" validate:"required,oneof=SCHOOL COMPANY DEALER"`
	ID   snowflake.ID `json:"id" validate:"required"`
}

func (p PartnerRef) Validate() error {
	if !p.Type.Valid() || p.ID <= 0 {
		return ErrInvalidPartner
	}
	return nil
}

// Key is the open_key value of an OPEN flow group for this partner.
func (p PartnerRef) Key() string {
	return string(p.Type) + ":" + p.ID.String()
}

func (p PartnerRef) IsDealer() bool { return p.Type == PartnerDealer }

type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusSettled Status = "SETTLED"
)

// FlowGroup is one partner's running account within an academic year. Exactly one
// of SchoolID, CompanyID and DealerID is set.
type FlowGroup struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	AcademicYearID snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_flow_groups_open_key,priority:1" json:"academic_year_id"`
	PartnerType    PartnerType   `gorm:"type:varchar(16);not null" json:"partner_type"`
	SchoolID       *snowflake.ID `gorm:"index" json:"school_id,omitempty"`
	CompanyID      *snowflake.ID `gorm:"index" json:"company_id,omitempty"`
	DealerID       *snowflake.ID `gorm:"index" json:"dealer_id,omitempty"`
	Status         Status        `gorm:"type:varchar(16);not null" json:"status"`
	OpenKey        *string       `gorm:"type:varchar(64);uniqueIndex:ux_flow_groups_open_key,priority:2" json:"-"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
	SettledAt      *time.Time    `json:"settled_at,omitempty"`
}

func (FlowGroup) TableName() string { return "flow_groups" }

func (g FlowGroup) IsOpen() bool { return g.Status == StatusOpen }

func (g FlowGroup) Partner() PartnerRef {
	switch {
	case g.SchoolID != nil:
		return PartnerRef{Type: PartnerSchool, ID: *g.SchoolID}
	case g.CompanyID != nil:
		return PartnerRef{Type: PartnerCompany, ID: *g.CompanyID}
	case g.DealerID != nil:
		return PartnerRef{Type: PartnerDealer, ID: *g.DealerID}
	default:
		return PartnerRef{Type: g.PartnerType}
	}
}

// PartnerColumn returns the column that stores the partner id for t.
func PartnerColumn(t PartnerType) string {
	switch t {
	case PartnerSchool:
		return "school_id"
	case PartnerCompany:
		return "company_id"
	default:
		return "dealer_id"
	}
}
