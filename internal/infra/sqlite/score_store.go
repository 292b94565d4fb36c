package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultScoreKey is the well-known row key of the high score.
const DefaultScoreKey = "highScore"

const scoresTable = "scores"

// ScoreStore keeps the high score in a local SQLite file, the terminal
// counterpart of the browser's localStorage entry.
type ScoreStore struct {
	db  *sql.DB
	key string
	now func() time.Time
}

func NewScoreStore(path, key string) (*ScoreStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "quiz.db"
	}
	if key == "" {
		key = DefaultScoreKey
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &ScoreStore{db: db, key: key, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ScoreStore) Close() error {
	return s.db.Close()
}

func (s *ScoreStore) Get(ctx context.Context) (int, error) {
	query, args, err := sq.Select("value").
		From(scoresTable).
		Where(sq.Eq{"key": s.key}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var score int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load score: %w", err)
	}
	return score, nil
}

func (s *ScoreStore) Set(ctx context.Context, score int) error {
	query, args, err := sq.Insert(scoresTable).
		Columns("key", "value", "updated_at_unix").
		Values(s.key, score, s.now().UTC().UnixNano()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = MAX(value, excluded.value), updated_at_unix = excluded.updated_at_unix").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store score: %w", err)
	}
	return nil
}

func (s *ScoreStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS scores (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value >= 0),
		updated_at_unix INTEGER NOT NULL
	);`)
	return err
}
