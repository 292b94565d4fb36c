package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"timed-quiz/internal/app"
	"timed-quiz/internal/config"
	"timed-quiz/internal/infra/memory"
	pgstore "timed-quiz/internal/infra/postgres"
	redisstore "timed-quiz/internal/infra/redis"
	sqlitestore "timed-quiz/internal/infra/sqlite"
	"timed-quiz/internal/logging"
	"timed-quiz/internal/source"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// deps holds everything a command needs, plus the cleanups to run on exit.
type deps struct {
	cfg     config.Config
	log     *logrus.Logger
	redis   *redis.Client
	closers []func()
}

func newDeps(path string) (*deps, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg, log: log}
	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.onClose(func() { _ = d.redis.Close() })
	}
	return d, nil
}

func (d *deps) onClose(fn func()) {
	d.closers = append(d.closers, fn)
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// scoreStore opens the configured high score backend.
func (d *deps) scoreStore(ctx context.Context) (app.ScoreStore, error) {
	switch d.cfg.Score.Backend {
	case config.BackendMemory:
		return memory.NewScoreStore(), nil
	case config.BackendSQLite:
		store, err := sqlitestore.NewScoreStore(d.cfg.Score.SQLitePath, d.cfg.Score.Key)
		if err != nil {
			return nil, err
		}
		d.onClose(func() { _ = store.Close() })
		return store, nil
	case config.BackendRedis:
		return redisstore.NewScoreStore(d.redis, d.cfg.Score.Key), nil
	case config.BackendPostgres:
		if err := runMigrationsWithConfig(ctx, d.cfg, d.log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, d.cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.onClose(pool.Close)
		return pgstore.NewScoreStore(pool, d.cfg.Score.Key), nil
	default:
		return nil, fmt.Errorf("unknown score backend %q", d.cfg.Score.Backend)
	}
}

// questionSource is the remote trivia API backed by the embedded questions.
func (d *deps) questionSource() (app.QuestionSource, error) {
	local, err := source.NewLocal()
	if err != nil {
		return nil, err
	}
	remote := source.NewOpenTDB(
		source.WithHTTPClient(&http.Client{Timeout: d.cfg.FetchTimeout()}),
		source.WithURL(d.cfg.Source.URL),
		source.WithAmount(d.cfg.Quiz.QuestionCount),
		source.WithCategory(d.cfg.Source.Category),
		source.WithDifficulty(d.cfg.Source.Difficulty),
	)
	return source.NewFallback(remote, local, d.cfg.FetchTimeout(), d.log), nil
}

func (d *deps) quizService(ctx context.Context) (*app.QuizService, error) {
	scores, err := d.scoreStore(ctx)
	if err != nil {
		return nil, err
	}
	questions, err := d.questionSource()
	if err != nil {
		return nil, err
	}

	var sessions app.SessionRepository = memory.NewSessionStore()
	if d.redis != nil {
		sessions = redisstore.NewSessionStore(d.redis, d.cfg.SessionIdleTimeout())
	}

	return app.NewQuizService(sessions, questions, scores,
		app.WithLogger(d.log),
		app.WithQuestionTimeLimit(d.cfg.TimeLimitSeconds()),
		app.WithTickInterval(d.cfg.TickInterval()),
		app.WithRetention(d.cfg.SessionRetention()),
		app.WithIdleTimeout(d.cfg.SessionIdleTimeout()),
	), nil
}
