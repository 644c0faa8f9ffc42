// Package sqldocs is a docstore.Store kept in a SQL table, on sqlite or postgres.
package sqldocs

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/docstore"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect selects the SQL driver and placeholder style
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driver() (string, goose.Dialect, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", goose.DialectSQLite3, nil
	case DialectPostgres:
		return "pgx", goose.DialectPostgres, nil
	default:
		return "", "", fmt.Errorf("unknown dialect %q", d)
	}
}

// Store implements docstore.Store over a documents table
type Store struct {
	db      *sql.DB
	dialect Dialect
	nowTime func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// Open connects to dsn with the dialect's driver and applies the schema
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	driver, _, err := dialect.driver()
	if err != nil {
		return nil, fmt.Errorf("[sqldocs.Open] %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("[sqldocs.Open] sql.Open: %w", err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqldocs.Open] ping: %w", err)
	}

	if err := Migrate(ctx, dialect, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, dialect), nil
}

// New wraps an already migrated database
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, nowTime: time.Now}
}

// Migrate applies the embedded documents schema
func Migrate(ctx context.Context, dialect Dialect, db *sql.DB) error {
	_, gooseDialect, err := dialect.driver()
	if err != nil {
		return fmt.Errorf("[sqldocs.Migrate] %w", err)
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("[sqldocs.Migrate] fs.Sub: %w", err)
	}
	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("[sqldocs.Migrate] goose.NewProvider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("[sqldocs.Migrate] provider.Up: %w", err)
	}
	return nil
}

func (s *Store) ReadDocument(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	doc, ok, err := readDocument(ctx, s.db, s.rebind(`SELECT body FROM documents WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return nil, false, fmt.Errorf("[sqldocs.ReadDocument] %s/%s: %w", collection, id, err)
	}
	return doc, ok, nil
}

func (s *Store) WriteDocument(ctx context.Context, collection, id string, doc docstore.Document, merge bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[sqldocs.WriteDocument] begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if merge {
		existing, _, err := readDocument(ctx, tx, s.rebind(`SELECT body FROM documents WHERE collection = ? AND id = ?`), collection, id)
		if err != nil {
			return fmt.Errorf("[sqldocs.WriteDocument] %s/%s: %w", collection, id, err)
		}
		doc = docstore.Merge(existing, doc)
	}
	if doc == nil {
		doc = docstore.Document{}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("[sqldocs.WriteDocument] marshal: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`), collection, id, string(body), s.nowTime().UnixMilli())
	if err != nil {
		return fmt.Errorf("[sqldocs.WriteDocument] %s/%s: %w", collection, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[sqldocs.WriteDocument] commit: %w", err)
	}
	return nil
}

// Close releases the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readDocument(ctx context.Context, q queryer, query, collection, id string) (docstore.Document, bool, error) {
	var body string
	err := q.QueryRowContext(ctx, query, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var doc docstore.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, false, fmt.Errorf("corrupt document body: %w", err)
	}
	return doc, true, nil
}

// rebind rewrites ? placeholders as $n for postgres
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
