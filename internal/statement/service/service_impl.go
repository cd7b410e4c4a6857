package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	returnsdomain "github.com/smallbiznis/bookledger/internal/returns/domain"
	statementdomain "github.com/smallbiznis/bookledger/internal/statement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	FlowGroupSvc flowgroupdomain.Service
	DocumentSvc  documentdomain.Service
	ReturnsSvc   returnsdomain.Service
	PaymentRepo  paymentdomain.Repository
}

type Service struct {
	log          *zap.Logger
	flowGroupSvc flowgroupdomain.Service
	documentSvc  documentdomain.Service
	returnsSvc   returnsdomain.Service
	paymentRepo  paymentdomain.Repository
}

func NewService(p Params) statementdomain.Service {
	return &Service{
		log:          p.Log.Named("statement.service"),
		flowGroupSvc: p.FlowGroupSvc,
		documentSvc:  p.DocumentSvc,
		returnsSvc:   p.ReturnsSvc,
		paymentRepo:  p.PaymentRepo,
	}
}

func (s *Service) Build(ctx context.Context, db *gorm.DB, flowGroupID snowflake.ID) (statementdomain.Statement, error) {
	if flowGroupID == 0 {
		return statementdomain.Statement{}, statementdomain.ErrFlowGroupRequired
	}
	group, err := s.flowGroupSvc.Get(ctx, db, flowGroupID)
	if err != nil {
		return statementdomain.Statement{}, err
	}

	docs, err := s.documentSvc.ListByFlowGroup(ctx, db, flowGroupID)
	if err != nil {
		return statementdomain.Statement{}, err
	}
	payments, err := s.paymentRepo.ListByFlowGroup(ctx, db, flowGroupID, paymentdomain.StatusPosted)
	if err != nil {
		return statementdomain.Statement{}, err
	}
	returns, err := s.returnsSvc.ListByFlowGroup(ctx, db, flowGroupID)
	if err != nil {
		return statementdomain.Statement{}, err
	}

	rows := make([]statementdomain.Row, 0, len(docs)+len(payments)+len(returns))
	for _, doc := range docs {
		if row, ok := statementdomain.DocumentRow(doc); ok {
			rows = append(rows, row)
		}
	}
	for _, p := range payments {
		if row, ok := statementdomain.PaymentRow(p); ok {
			rows = append(rows, row)
		}
	}
	for _, r := range returns {
		rows = append(rows, statementdomain.ReturnRow(r))
	}

	stmt := statementdomain.Fold(rows)
	stmt.FlowGroupID = group.ID
	stmt.Partner = group.Partner()
	stmt.Status = group.Status
	return stmt, nil
}
