package loader

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/paulyc/openmaptiles-tools/internal/config"
	"github.com/paulyc/openmaptiles-tools/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Stats holds loader statistics
type Stats struct {
	RowsLoaded int64
}

// Loader replaces the border linestring table from a CSV file
type Loader struct {
	db    *config.Database
	table string
	conn  *pgx.Conn
}

// NewLoader connects to PostgreSQL
func NewLoader(ctx context.Context, db *config.Database, table string) (*Loader, error) {
	conn, err := pgx.Connect(ctx, db.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return &Loader{db: db, table: table, conn: conn}, nil
}

// Close closes the connection
func (l *Loader) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}

// Run replaces the table contents with the rows of csvPath. Drop,
// create, index, COPY and ANALYZE run in one transaction, so a failed
// load leaves the previous table intact.
func (l *Loader) Run(ctx context.Context, csvPath string) (*Stats, error) {
	log := logger.Get()

	// The geometry column type needs PostGIS
	if _, err := l.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return nil, fmt.Errorf("failed to create PostGIS extension: %w", err)
	}

	log.Info("Replacing border table",
		zap.String("table", l.table),
		zap.String("csv", csvPath),
		zap.String("database", l.db.Name),
		zap.String("host", l.db.Host),
	)

	start := time.Now()

	tx, err := l.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := replaceTable(ctx, tx, l.table); err != nil {
		return nil, err
	}

	rows, err := copyCSV(ctx, tx.Conn().PgConn(), l.table, csvPath)
	if err != nil {
		return nil, err
	}

	// ANALYZE is transaction-safe, unlike VACUUM
	if _, err := tx.Exec(ctx, "ANALYZE "+l.table); err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", l.table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.Info("Border table loaded",
		zap.String("table", l.table),
		zap.Int64("rows", rows),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)

	return &Stats{RowsLoaded: rows}, nil
}

// execer is the statement surface replaceTable needs; pgx.Tx satisfies it
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// replaceTable drops and recreates the border table with its spatial index
func replaceTable(ctx context.Context, tx execer, table string) error {
	for _, stmt := range tableStatements(table) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

// tableStatements returns the DDL that rebuilds the border table
func tableStatements(table string) []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table),
		fmt.Sprintf("CREATE TABLE %s (osm_id bigint, admin_level int, dividing_line bool, disputed bool, maritime bool, geometry Geometry(LineString, 3857))", table),
		fmt.Sprintf("CREATE INDEX ON %s USING gist (geometry)", table),
	}
}

// copier is the COPY surface; *pgconn.PgConn satisfies it
type copier interface {
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
}

// copyCSV bulk-loads the tab-delimited CSV into the table and returns
// the number of rows copied.
func copyCSV(ctx context.Context, conn copier, table, csvPath string) (int64, error) {
	r, closeCSV, err := openCSV(csvPath)
	if err != nil {
		return 0, err
	}
	defer closeCSV()

	tag, err := conn.CopyFrom(ctx, r, copySQL(table))
	if err != nil {
		return 0, fmt.Errorf("COPY failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// copySQL returns the bulk-load statement: tab-delimited CSV-quoted text
func copySQL(table string) string {
	return fmt.Sprintf(`COPY %s FROM STDIN WITH (FORMAT csv, DELIMITER E'\t')`, table)
}
