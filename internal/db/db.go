package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-chat/internal/config"
	"document-chat/internal/models"
)

// ErrDisconnected is returned by Store methods when the relational store
// never came up at startup. Callers treat it as a soft failure.
var ErrDisconnected = errors.New("relational store disconnected")

// Document is one stored chunk of an uploaded file. Re-uploading a filename
// inserts new rows; there is no uniqueness constraint on (filename, chunk_index).
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Filename      string    `bun:"filename,notnull"`
	Title         string    `bun:"title,notnull"`
	Content       string    `bun:"content,notnull"`
	ChunkIndex    int       `bun:"chunk_index,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// ChatTurn is one question/answer pair. CreatedAt is assigned by the store.
type ChatTurn struct {
	bun.BaseModel `bun:"table:chat_history,alias:ch"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Query         string    `bun:"query,notnull"`
	Response      string    `bun:"response,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Store wraps the single shared bun handle for the session. All methods are
// safe on a nil receiver so the application can keep running in degraded
// mode when the database never became reachable.
type Store struct {
	db *bun.DB
}

// NewStore wraps an already-open bun handle. Used by tests and custom wiring.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Connect dials the database, retrying up to cfg.ConnectAttempts times with
// cfg.ConnectDelay between attempts. The retry exists because the database
// may start after this process in a multi-service deployment. On exhaustion
// the error is returned and the caller continues with a nil Store.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 5
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		if err := sqldb.PingContext(ctx); err != nil {
			lastErr = err
			_ = sqldb.Close()
			log.Warn().Err(err).Int("attempt", attempt).Msg("Database connection failed")
			if attempt < attempts {
				select {
				case <-time.After(cfg.ConnectDelay()):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			continue
		}

		log.Info().Int("attempt", attempt).Str("host", cfg.Host).Msg("Connected to database")
		bdb := bun.NewDB(sqldb, pgdialect.New())
		if cfg.Debug {
			bdb.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
		}
		return &Store{db: bdb}, nil
	}

	return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}

// Init creates the documents and chat_history tables if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	if s == nil {
		return ErrDisconnected
	}
	for _, model := range []interface{}{(*Document)(nil), (*ChatTurn)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InsertChunks stores one row per chunk of a single document inside one
// transaction. Any failure rolls back the whole batch; partial writes for
// one document are never left committed.
func (s *Store) InsertChunks(ctx context.Context, filename string, chunks []models.Chunk) error {
	if s == nil {
		return ErrDisconnected
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, chunk := range chunks {
			doc := &Document{
				Filename:   filename,
				Title:      filename,
				Content:    chunk.Content,
				ChunkIndex: chunk.Index,
			}
			if _, err := tx.NewInsert().Model(doc).Exec(ctx); err != nil {
				return fmt.Errorf("insert chunk %d of %s: %w", chunk.Index, filename, err)
			}
		}
		return nil
	})
}

// InsertChatTurn records one question/answer pair with a store-assigned
// timestamp. The caller decides whether a failure matters.
func (s *Store) InsertChatTurn(ctx context.Context, query, response string) error {
	if s == nil {
		return ErrDisconnected
	}
	turn := &ChatTurn{Query: query, Response: response}
	if _, err := s.db.NewInsert().Model(turn).Exec(ctx); err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	return nil
}

// ListRecentChat returns up to limit turns, newest first.
func (s *Store) ListRecentChat(ctx context.Context, limit int) ([]ChatTurn, error) {
	if s == nil {
		return nil, ErrDisconnected
	}
	var turns []ChatTurn
	err := s.db.NewSelect().
		Model(&turns).
		OrderExpr("created_at DESC").
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	return turns, nil
}

// CountDocuments returns the number of distinct filenames stored.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	if s == nil {
		return 0, ErrDisconnected
	}
	var count int
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("count(DISTINCT filename)").
		Scan(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Connected reports whether the store survived startup.
func (s *Store) Connected() bool {
	return s != nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
