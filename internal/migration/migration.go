package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	academicyeardomain "github.com/smallbiznis/bookledger/internal/academicyear/domain"
	auditdomain "github.com/smallbiznis/bookledger/internal/audit/domain"
	documentdomain "github.com/smallbiznis/bookledger/internal/document/domain"
	flowgroupdomain "github.com/smallbiznis/bookledger/internal/flowgroup/domain"
	idempotencydomain "github.com/smallbiznis/bookledger/internal/idempotency/domain"
	paymentdomain "github.com/smallbiznis/bookledger/internal/payment/domain"
	returnsdomain "github.com/smallbiznis/bookledger/internal/returns/domain"
	sequencedomain "github.com/smallbiznis/bookledger/internal/sequence/domain"
	stockdomain "github.com/smallbiznis/bookledger/internal/stock/domain"
	pkgdb "github.com/smallbiznis/bookledger/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table in dependency order.
func Models() []any {
	return []any{
		&academicyeardomain.AcademicYear{},
		&flowgroupdomain.FlowGroup{},
		&sequencedomain.DocumentSequence{},
		&documentdomain.Document{},
		&documentdomain.Item{},
		&stockdomain.Entry{},
		&stockdomain.Balance{},
		&paymentdomain.Payment{},
		&returnsdomain.Return{},
		&returnsdomain.Item{},
		&auditdomain.AuditLog{},
		&idempotencydomain.Key{},
	}
}

// Apply creates the schema. PostgreSQL runs the versioned SQL migrations; MySQL and
// SQLite are migrated from the models.
func Apply(conn *gorm.DB, dbType string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dbType == pkgdb.TypePostgres {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
