// Package store persists cached records in Postgres, one table per resource
// kind. It is a pass-through: no caching, no retries.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briangreenhill/cityexplorer/internal/records"
)

//go:embed schema.sql
var schema string

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open creates a connection pool capped at maxConns and verifies it with a
// ping.
func Open(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the record tables and their lookup indexes if absent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ReadByKey returns every row stored under key, oldest first.
func (s *Store) ReadByKey(ctx context.Context, kind records.Kind, key string) ([]records.Record, error) {
	rows, err := s.db.Query(ctx, selectSQL(kind), key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind, err)
	}

	var out []records.Record
	switch kind {
	case records.KindLocation:
		out, err = collect[records.Location](rows)
	case records.KindWeather:
		out, err = collect[records.Weather](rows)
	case records.KindEvents:
		out, err = collect[records.Event](rows)
	case records.KindMovies:
		out, err = collect[records.Movie](rows)
	case records.KindYelp:
		out, err = collect[records.Business](rows)
	default:
		rows.Close()
		return nil, fmt.Errorf("read: unknown kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", kind, err)
	}
	return out, nil
}

// DeleteByKey removes every row stored under key.
func (s *Store) DeleteByKey(ctx context.Context, kind records.Kind, key string) error {
	if _, err := s.db.Exec(ctx, deleteSQL(kind), key); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}

// Insert writes one stamped record with a fresh id.
func (s *Store) Insert(ctx context.Context, rec records.Record) error {
	kind := rec.Kind()
	args := append([]any{uuid.New()}, rec.Values()...)
	if _, err := s.db.Exec(ctx, insertSQL(kind), args...); err != nil {
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	return nil
}

func collect[T any, P interface {
	*T
	records.Record
}](rows pgx.Rows) ([]records.Record, error) {
	got, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, err
	}
	out := make([]records.Record, len(got))
	for i, r := range got {
		out[i] = P(r)
	}
	return out, nil
}

func selectSQL(kind records.Kind) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE search_query = $1 ORDER BY date_created",
		strings.Join(records.Columns(kind), ", "), kind.Table())
}

func deleteSQL(kind records.Kind) string {
	if !kind.Valid() {
		panic(fmt.Sprintf("store: unknown kind %q", kind))
	}
	return fmt.Sprintf("DELETE FROM %s WHERE search_query = $1", kind.Table())
}

func insertSQL(kind records.Kind) string {
	cols := append([]string{"id"}, records.Columns(kind)...)
	params := make([]string, len(cols))
	for i := range cols {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		kind.Table(), strings.Join(cols, ", "), strings.Join(params, ", "))
}
