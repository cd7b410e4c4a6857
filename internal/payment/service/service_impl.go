package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	"github.com/smallbiznis/bookledger/internal/clock"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	sequencedomain "github.com/smallbiznis/bookledger/internal/sequence/domain"
	statementdomain "github.com/smallbiznis/bookledger/internal/statement/domain"
	"github.com/smallbiznis/bookledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         paymentdomain.Repository
	SequenceSvc  sequencedomain.Service
	FlowGroupSvc flowgroupdomain.Service
	StatementSvc statementdomain.Service
	AuditSvc     auditdomain.Service `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         paymentdomain.Repository
	sequenceSvc  sequencedomain.Service
	flowGroupSvc flowgroupdomain.Service
	statementSvc statementdomain.Service
	auditSvc     auditdomain.Service
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		sequenceSvc:  p.SequenceSvc,
		flowGroupSvc: p.FlowGroupSvc,
		statementSvc: p.StatementSvc,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Record(
	ctx context.Context,
	tx *gorm.DB,
	scope academicyeardomain.AcademicYear,
	group flowgroupdomain.FlowGroup,
	in paymentdomain.RecordInput,
) (paymentdomain.Payment, error) {
	if err := academicyeardomain.EnsureCurrent(scope, group.AcademicYearID); err != nil {
		return paymentdomain.Payment{}, err
	}

	if !money.HasAtMostTwoPlaces(in.Amount) {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}
	amount := money.Round(in.Amount)
	if !amount.IsPositive() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}
	mode := paymentdomain.Mode(strings.ToUpper(strings.TrimSpace(string(in.Mode))))
	if !mode.Valid() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidMode
	}
	note := strings.TrimSpace(in.Note)
	if mode == paymentdomain.ModeBank && note == "" {
		return paymentdomain.Payment{}, paymentdomain.ErrBankReferenceRequired
	}

	// Locking the group serializes payments against it so the outstanding check
	// below cannot race another payment.
	locked, err := s.flowGroupSvc.GetForUpdate(ctx, tx, group.ID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if !locked.IsOpen() {
		return paymentdomain.Payment{}, flowgroupdomain.ErrFlowGroupSettled
	}

	direction := paymentdomain.DirectionFor(locked.PartnerType)
	settle := false
	if direction == paymentdomain.DirectionMade {
		stmt, err := s.statementSvc.Build(ctx, tx, locked.ID)
		if err != nil {
			return paymentdomain.Payment{}, err
		}
		outstanding := stmt.Outstanding()
		if amount.GreaterThan(outstanding) {
			return paymentdomain.Payment{}, &paymentdomain.PaymentExceedsOutstandingError{
				Outstanding: outstanding,
				Amount:      amount,
			}
		}
		settle = outstanding.Sub(amount).IsZero()
	}

	number, err := s.sequenceSvc.Next(ctx, tx, scope.ID, sequencedomain.TypePayment)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	receiptNo, err := s.sequenceSvc.Format(sequencedomain.TypePayment, number)
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	now := s.clock.Now().UTC()
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	payment := paymentdomain.Payment{
		ID:             s.genID.Generate(),
		AcademicYearID: scope.ID,
		FlowGroupID:    locked.ID,
		SequenceNumber: number,
		ReceiptNo:      receiptNo,
		Direction:      direction,
		Amount:         amount,
		Mode:           mode,
		Status:         paymentdomain.StatusPosted,
		Note:           note,
		PaidAt:         paidAt.UTC(),
		RecordedBy:     in.ActorID,
		CreatedAt:      now,
	}
	if err := s.repo.Insert(ctx, tx, &payment); err != nil {
		return paymentdomain.Payment{}, err
	}

	if settle {
		if _, err := s.flowGroupSvc.Settle(ctx, tx, locked.ID); err != nil {
			return paymentdomain.Payment{}, err
		}
	}

	if s.auditSvc != nil {
		metadata := map[string]any{
			"receipt_no":    payment.ReceiptNo,
			"direction":     string(payment.Direction),
			"mode":          string(payment.Mode),
			"amount":        payment.Amount.StringFixed(2),
			"flow_group_id": locked.ID.String(),
			"settled":       settle,
		}
		if mode == paymentdomain.ModeBank {
			metadata["bank_reference"] = note
		}
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "payment.recorded",
			TargetType: "payment",
			TargetID:   payment.ID,
			ActorID:    in.ActorID,
			Metadata:   metadata,
		}); err != nil {
			return paymentdomain.Payment{}, err
		}
	}

	s.log.Debug("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("receipt_no", payment.ReceiptNo),
		zap.Bool("settled", settle),
	)
	return payment, nil
}

func (s *Service) Reverse(ctx context.Context, tx *gorm.DB, scope academicyeardomain.AcademicYear, in paymentdomain.ReverseInput) (paymentdomain.Payment, error) {
	payment, err := s.repo.FindForUpdate(ctx, tx, in.PaymentID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if payment == nil {
		return paymentdomain.Payment{}, paymentdomain.ErrPaymentNotFound
	}
	if payment.IsReversed() {
		return paymentdomain.Payment{}, paymentdomain.ErrAlreadyReversed
	}
	if err := academicyeardomain.EnsureCurrent(scope, payment.AcademicYearID); err != nil {
		return paymentdomain.Payment{}, err
	}

	group, err := s.flowGroupSvc.GetForUpdate(ctx, tx, payment.FlowGroupID)
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	now := s.clock.Now().UTC()
	ok, err := s.repo.MarkReversed(ctx, tx, payment.ID, in.ActorID, now)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if !ok {
		return paymentdomain.Payment{}, paymentdomain.ErrAlreadyReversed
	}

	// The payment that settled the group no longer counts, so the balance is open again.
	reopened := false
	if !group.IsOpen() {
		if _, err := s.flowGroupSvc.Reopen(ctx, tx, group.ID); err != nil {
			return paymentdomain.Payment{}, err
		}
		reopened = true
	}

	actor := in.ActorID
	payment.Status = paymentdomain.StatusReversed
	payment.ReversedBy = &actor
	payment.ReversedAt = &now

	if s.auditSvc != nil {
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			Action:     "payment.reversed",
			TargetType: "payment",
			TargetID:   payment.ID,
			ActorID:    in.ActorID,
			Metadata: map[string]any{
				"receipt_no":          payment.ReceiptNo,
				"amount":              payment.Amount.StringFixed(2),
				"flow_group_reopened": reopened,
			},
		}); err != nil {
			return paymentdomain.Payment{}, err
		}
	}

	s.log.Info("payment reversed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("receipt_no", payment.ReceiptNo),
		zap.Bool("flow_group_reopened", reopened),
	)
	return *payment, nil
}

func (s *Service) Get(ctx context.Context, db *gorm.DB, id snowflake.ID) (paymentdomain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if payment == nil {
		return paymentdomain.Payment{}, paymentdomain.ErrPaymentNotFound
	}
	return *payment, nil
}
