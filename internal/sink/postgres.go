package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopharvest/shopharvest/internal/catalog"
)

// tableNameRe limits the configured table to a plain identifier; the table
// name is interpolated into SQL and cannot be a bind parameter.
var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// execer is the subset of pgxpool.Pool the sink uses, so tests can swap in
// a mock connection.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

type poolExecer struct {
	*pgxpool.Pool
}

// Postgres appends crawl records to a single table, one row per record,
// with the full document in a JSONB column. It assumes a schema like:
//
//	CREATE TABLE products (
//	    id BIGSERIAL PRIMARY KEY,
//	    record_type TEXT NOT NULL,
//	    url TEXT,
//	    handle TEXT,
//	    document JSONB NOT NULL,
//	    created_at TIMESTAMPTZ DEFAULT NOW()
//	);
type Postgres struct {
	conn  execer
	table string
}

// NewPostgres connects a pool for dsn and pings it before returning.
func NewPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	if table == "" {
		table = "products"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{conn: poolExecer{Pool: pool}, table: table}, nil
}

func newPostgresWithConn(conn execer, table string) (*Postgres, error) {
	if table == "" {
		table = "products"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Postgres{conn: conn, table: table}, nil
}

// WriteProduct implements catalog.Sink.
func (s *Postgres) WriteProduct(ctx context.Context, product catalog.Product) error {
	return s.insert(ctx, recordTypeProduct, product.URL, product.Handle, product)
}

// WriteFailure implements catalog.Sink.
func (s *Postgres) WriteFailure(ctx context.Context, failure catalog.FailureRecord) error {
	return s.insert(ctx, recordTypeFailure, failure.URL, "", failure)
}

// WriteSummary implements catalog.Sink.
func (s *Postgres) WriteSummary(ctx context.Context, summary catalog.RunSummary) error {
	return s.insert(ctx, recordTypeSummary, "", "", summary)
}

func (s *Postgres) insert(ctx context.Context, recordType, url, handle string, document any) error {
	payload, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", recordType, err)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (record_type, url, handle, document) VALUES ($1, $2, $3, $4)",
		s.table,
	)
	if _, err := s.conn.Exec(ctx, query, recordType, url, handle, payload); err != nil {
		return fmt.Errorf("insert %s row: %w", recordType, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	s.conn.Close()
	return nil
}
