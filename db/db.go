package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
)

const tracedServiceName = "invoiceflow"

// Open picks the dialect from the DSN scheme: postgres for deployments,
// sqlite (file:) for local runs and tests.
func Open(config *service.Config) (*bun.DB, error) {
	dsn := config.DatabaseUri
	var (
		db  *bun.DB
		err error
	)
	switch {
	case hasAnyPrefix(dsn, "postgres://", "postgresql://", "unix://"):
		db = openPostgres(config)
	case strings.HasPrefix(dsn, "file:"):
		db, err = openSQLite(dsn)
	default:
		err = fmt.Errorf("unsupported database uri %q, expected postgres://, postgresql://, unix:// or file:", dsn)
	}
	if err != nil {
		return nil, err
	}

	// BUNDEBUG=1 logs failed queries, BUNDEBUG=2 all of them
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv("BUNDEBUG"),
	))
	return db, nil
}

func openPostgres(config *service.Config) *bun.DB {
	connector := pgdriver.NewConnector(pgdriver.WithDSN(config.DatabaseUri))
	var conn *sql.DB
	if config.DatadogAgentUrl != "" {
		sqltrace.Register("postgres", pgdriver.Driver{}, sqltrace.WithServiceName(tracedServiceName))
		conn = sqltrace.OpenDB(connector)
	} else {
		conn = sql.OpenDB(connector)
	}
	db := bun.NewDB(conn, pgdialect.New())
	db.SetMaxOpenConns(config.DatabaseMaxConns)
	db.SetMaxIdleConns(config.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.DatabaseConnMaxLifetime) * time.Second)
	return db
}

func openSQLite(dsn string) (*bun.DB, error) {
	conn, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent handlers
	conn.SetMaxOpenConns(1)
	return bun.NewDB(conn, sqlitedialect.New()), nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
