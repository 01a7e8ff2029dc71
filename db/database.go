package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"validation-recorder/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Database is the result store: it owns the run-result, scan-check,
// scan-metric and validation-summary relations.
type Database struct {
	conn             *sql.DB
	dialect          *dialect
	migrationManager *MigrationManager
	log              logrus.FieldLogger
}

// Option configures a Database
type Option func(*Database)

// WithLogger sets the logger used for migration and store messages.
func WithLogger(log logrus.FieldLogger) Option {
	return func(db *Database) {
		db.log = log
	}
}

// NewDatabase creates a new database connection. A connection that cannot be
// opened or pinged is reported as models.ErrConnectivity.
func NewDatabase(driverName, dataSourceName string, opts ...Option) (*Database, error) {
	d, err := lookupDialect(driverName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConnectivity, err)
	}

	conn, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", models.ErrConnectivity, err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", models.ErrConnectivity, err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &Database{
		conn:    conn,
		dialect: d,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.migrationManager = NewMigrationManager(conn, d, db.log)

	return db, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// Ping checks that the store is still reachable
func (db *Database) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrConnectivity, err)
	}
	return nil
}

// Driver returns the name of the SQL driver in use
func (db *Database) Driver() string {
	return db.dialect.name
}

// EnsureSchema creates every relation that does not exist yet. It is safe to
// call on every start.
func (db *Database) EnsureSchema(ctx context.Context) error {
	if err := db.migrationManager.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	return nil
}

// GetMigrationStatus returns the current migration status
func (db *Database) GetMigrationStatus(ctx context.Context) ([]Migration, error) {
	return db.migrationManager.GetMigrationStatus(ctx)
}

// insertRow appends one row and returns its surrogate id.
func (db *Database) insertRow(ctx context.Context, table string, columns []string, args []any) (int64, error) {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders(len(columns)))

	if db.dialect.returningID {
		var id int64
		if err := db.conn.QueryRowContext(ctx, db.dialect.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := db.conn.ExecContext(ctx, db.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// withTimestamp adds the timestamp column only when the caller supplied one,
// otherwise the column default applies.
func (db *Database) withTimestamp(columns []string, args []any, column string, ts time.Time) ([]string, []any) {
	if ts.IsZero() {
		return columns, args
	}
	return append(columns, column), append(args, db.dialect.timeArg(ts))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
