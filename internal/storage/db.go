package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"finboard/internal/core"
)

// Dialect names a supported relational engine.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Options configures Open.
type Options struct {
	Dialect Dialect
	// DSN is a PostgreSQL connection URL or a SQLite file path.
	DSN string
	// SSL requests sslmode=require on PostgreSQL URLs that do not set a mode.
	SSL bool
}

// DB is a connection pool shared by the relational manual-data stores.
type DB struct {
	sql     *sql.DB
	dialect Dialect
	dsn     string
	queries *Queries

	initOnce sync.Once
	initErr  error
}

// Open connects and pings the database. Schema migrations run on Init.
func Open(ctx context.Context, opts Options) (*DB, error) {
	var (
		driver string
		dsn    string
	)
	switch opts.Dialect {
	case DialectPostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, fmt.Errorf("postgres connection url is empty")
		}
		driver, dsn = "pgx", postgresDSN(opts.DSN, opts.SSL)
	case DialectSQLite:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		driver, dsn = "sqlite", sqliteDSN(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{
		sql:     db,
		dialect: opts.Dialect,
		dsn:     dsn,
		queries: New(db),
	}, nil
}

// Init applies the embedded schema migrations once per DB.
func (db *DB) Init(ctx context.Context) error {
	db.initOnce.Do(func() {
		if err := RunMigrations(db.dialect, db.dsn); err != nil {
			db.initErr = err
			return
		}
		slog.InfoContext(ctx, "Manual data schema ready", "dialect", db.dialect)
	})
	return db.initErr
}

// Ping runs a trivial query against the pool.
func (db *DB) Ping(ctx context.Context) error {
	var one int
	if err := db.sql.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	if db.sql != nil {
		return db.sql.Close()
	}
	return nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// DropRentRollAccountFK removes the optional foreign key from manual_data to
// an external accounts table, indexing account_id in its place. Only
// PostgreSQL carries that constraint.
func (db *DB) DropRentRollAccountFK(ctx context.Context) ([]core.MigrationStep, error) {
	if db.dialect != DialectPostgres {
		return nil, fmt.Errorf("drop manual_data foreign key on %s: %w", db.dialect, core.ErrUnsupported)
	}

	var steps []core.MigrationStep
	before, err := db.queries.ListRentRollConstraints(ctx)
	if err != nil {
		return steps, fmt.Errorf("list constraints: %w", err)
	}
	steps = append(steps, core.MigrationStep{Step: "before", Constraints: before})

	for _, op := range []struct{ step, stmt string }{
		{"drop_fk", dropRentRollFK},
		{"create_index", createRentRollAccountIndex},
		{"add_comment", commentRentRollTable},
	} {
		if _, err := db.sql.ExecContext(ctx, op.stmt); err != nil {
			return steps, fmt.Errorf("%s: %w", op.step, err)
		}
		steps = append(steps, core.MigrationStep{Step: op.step, Status: "done"})
	}

	after, err := db.queries.ListRentRollConstraints(ctx)
	if err != nil {
		return steps, fmt.Errorf("list constraints: %w", err)
	}
	steps = append(steps, core.MigrationStep{Step: "after", Constraints: after})

	slog.InfoContext(ctx, "Dropped manual_data account foreign key", "constraints_after", after)
	return steps, nil
}

func postgresDSN(raw string, ssl bool) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return raw
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		if ssl {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// isForeignKeyViolation recognizes FK failures from both drivers.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "FOREIGN KEY")
	}
	return false
}
