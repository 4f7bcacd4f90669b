package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL flavour differences between the supported engines.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Config holds database configuration
type Config struct {
	Driver string // sqlite | postgres
	Path   string // sqlite file
	DSN    string // postgres URL
}

// DB bundles the connection pool, the root transaction node and a
// statement builder using the dialect's placeholders.
type DB struct {
	*sqlx.DB
	Root    sqalx.Node
	Dialect Dialect
	Builder sq.StatementBuilderType
}

// Open connects to the configured engine.
func Open(cfg Config) (*DB, error) {
	var (
		rdb     *sqlx.DB
		dialect Dialect
		err     error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dialect = SQLite
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		rdb, err = sqlx.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		rdb.SetMaxOpenConns(10)
		rdb.SetMaxIdleConns(5)
	case "postgres":
		dialect = Postgres
		rdb, err = sqlx.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		rdb.SetMaxOpenConns(20)
		rdb.SetMaxIdleConns(10)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := rdb.Ping(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	root, err := sqalx.New(rdb)
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to create transaction node: %w", err)
	}

	return &DB{
		DB:      rdb,
		Root:    root,
		Dialect: dialect,
		Builder: builderFor(dialect),
	}, nil
}

// builderFor returns a statement builder using the dialect's placeholders.
func builderFor(dialect Dialect) sq.StatementBuilderType {
	var placeholders sq.PlaceholderFormat = sq.Question
	if dialect == Postgres {
		placeholders = sq.Dollar
	}
	return sq.StatementBuilder.PlaceholderFormat(placeholders)
}

// sqliteDSN applies the pragmas to every pooled connection. Write
// transactions take the database lock at BEGIN so concurrent submissions
// queue on busy_timeout instead of failing on lock upgrade.
func sqliteDSN(path string) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
		"_txlock=immediate",
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// ForUpdate locks the selected rows for the rest of the transaction where the
// engine supports row locks. SQLite transactions are already exclusive.
func (db *DB) ForUpdate(b sq.SelectBuilder) sq.SelectBuilder {
	if db.Dialect == Postgres {
		return b.Suffix("FOR UPDATE")
	}
	return b
}

// Transaction executes fn within a (possibly nested) transaction on node.
func Transaction(node sqalx.Node, fn func(tx sqalx.Node) error) error {
	tx, err := node.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		return rollbackFailed(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rollbackFailed keeps err matchable when the rollback fails as well.
func rollbackFailed(err, rbErr error) error {
	if rbErr == nil || errors.Is(rbErr, sql.ErrTxDone) {
		return err
	}
	return errors.Join(err, fmt.Errorf("rollback error: %w", rbErr))
}
