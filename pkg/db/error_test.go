package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestIsRetryableErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres serialization", &pgconn.PgError{Code: "40001"}, true},
		{"postgres deadlock", fmt.Errorf("update stock: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"postgres lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"business", errors.New("insufficient_stock"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryableErr(tc.err))
		})
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicateKeyErr(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: flow_groups.open_key")))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsDuplicateKeyErr(nil))
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestRunInTxClassifiesFailures(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	err := RunInTx(ctx, conn, time.Second, func(tx *gorm.DB) error {
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	})
	assert.ErrorIs(t, err, ErrConcurrentConflict)

	errRejected := errors.New("insufficient_stock")
	err = RunInTx(ctx, conn, time.Second, func(tx *gorm.DB) error { return errRejected })
	assert.ErrorIs(t, err, errRejected)
	assert.NotErrorIs(t, err, ErrConcurrentConflict)

	err = RunInTx(ctx, conn, 10*time.Millisecond, func(tx *gorm.DB) error {
		<-tx.Statement.Context.Done()
		return tx.Statement.Context.Err()
	})
	assert.ErrorIs(t, err, ErrConcurrentConflict)

	assert.NoError(t, RunInTx(ctx, conn, 0, func(tx *gorm.DB) error {
		return tx.Exec("SELECT 1").Error
	}))
}
