package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookledger/internal/academicyear"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	"github.com/smallbiznis/bookledger/internal/audit"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	"github.com/smallbiznis/bookledger/internal/clock"
	"github.com/smallbiznis/bookledger/internal/config"
	"github.com/smallbiznis/bookledger/internal/document"
	"github.com/smallbiznis/bookledger/internal/flowgroup"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	"github.com/smallbiznis/bookledger/internal/idempotency"
	"github.com/smallbiznis/bookledger/internal/ledger"
	ledgerdomain "github.com/smallbiznis/bookledger/internal/ledger/domain"
	"github.com/smallbiznis/bookledger/internal/lock"
	"github.com/smallbiznis/bookledger/internal/migration"
	"github.com/smallbiznis/bookledger/internal/observability"
	"github.com/smallbiznis/bookledger/internal/payment"
	"github.com/smallbiznis/bookledger/internal/returns"
	"github.com/smallbiznis/bookledger/internal/sequence"
	"github.com/smallbiznis/bookledger/internal/statement"
	"github.com/smallbiznis/bookledger/internal/stock"
	stockdomain "github.com/smallbiznis/bookledger/internal/stock/domain"
	"github.com/smallbiznis/bookledger/pkg/db"
	"github.com/smallbiznis/bookledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const usage = `usage: bookledger <command>

commands:
  migrate                     apply the schema
  reconcile                   report stock projection drift for the open year
  rebuild-stock               rewrite stock projections for the open year
  statement <TYPE> <id>       print the partner statement as JSON (TYPE: SCHOOL, COMPANY, DEALER)
  stock-history <id> [token]  print a page of stock ledger entries for a textbook
  audit-log <actor> [token]   print a page of audit records written by an actor
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "bookledger:", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	var (
		conn      *gorm.DB
		log       *zap.Logger
		yearSvc   academicyeardomain.Service
		stockSvc  stockdomain.Service
		ledgerSvc ledgerdomain.Service
	)

	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		lock.Module,
		migration.Module,

		// Ledger domains
		audit.Module,
		academicyear.Module,
		sequence.Module,
		flowgroup.Module,
		stock.Module,
		document.Module,
		returns.Module,
		payment.Module,
		statement.Module,
		idempotency.Module,
		ledger.Module,

		fx.NopLogger,
		fx.Populate(&conn, &log, &yearSvc, &stockSvc, &ledgerSvc),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	switch command {
	case "migrate":
		// migration.Module has already applied the schema during start.
		log.Info("migrate finished")
		return nil
	case "reconcile":
		scope, err := yearSvc.CurrentScope(ctx, conn.WithContext(ctx))
		if err != nil {
			return err
		}
		drifts, err := stockSvc.Reconcile(context.Background(), scope.ID)
		if err != nil {
			return err
		}
		for _, d := range drifts {
			log.Warn("stock projection drift",
				zap.String("textbook_id", d.TextbookID.String()),
				zap.Int64("ledger", d.Ledger),
				zap.Int64("projected", d.Projected),
			)
		}
		log.Info("reconcile finished", zap.Int("drifts", len(drifts)))
		return nil
	case "rebuild-stock":
		scope, err := yearSvc.CurrentScope(ctx, conn.WithContext(ctx))
		if err != nil {
			return err
		}
		n, err := stockSvc.RebuildProjection(context.Background(), scope.ID)
		if err != nil {
			return err
		}
		log.Info("stock projections rebuilt", zap.Int("textbooks", n))
		return nil
	case "statement":
		if len(args) != 2 {
			return errors.New("statement needs <TYPE> <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parse partner id: %w", err)
		}
		partner := flowgroupdomain.PartnerRef{
			Type: flowgroupdomain.PartnerType(strings.ToUpper(args[0])),
			ID:   snowflake.ID(id),
		}
		stmt, err := ledgerSvc.Statement(context.Background(), partner)
		if err != nil {
			return err
		}
		return printJSON(stmt)
	case "stock-history":
		if len(args) < 1 {
			return errors.New("stock-history needs <textbook-id>")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("parse textbook id: %w", err)
		}
		page, err := ledgerSvc.StockHistory(context.Background(), snowflake.ID(id), pagination.Pagination{PageToken: optionalArg(args, 1)})
		if err != nil {
			return err
		}
		return printJSON(page)
	case "audit-log":
		if len(args) < 1 {
			return errors.New("audit-log needs <actor-id>")
		}
		page, err := ledgerSvc.AuditTrail(context.Background(), auditdomain.ListAuditLogRequest{
			Pagination: pagination.Pagination{PageToken: optionalArg(args, 1)},
			ActorID:    args[0],
		})
		if err != nil {
			return err
		}
		return printJSON(page)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
