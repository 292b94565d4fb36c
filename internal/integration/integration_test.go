package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"timed-quiz/internal/app"
	"timed-quiz/internal/domain"
	pgstore "timed-quiz/internal/infra/postgres"
	pgmigrations "timed-quiz/internal/infra/postgres/migrations"
	infraredis "timed-quiz/internal/infra/redis"
	"timed-quiz/internal/source"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizEndToEndWithRedisAndPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	scores := pgstore.NewScoreStore(pool, "")

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)

	logger, _ := test.NewNullLogger()
	service := app.NewQuizService(sessionStore, source.NewStatic(sampleQuestions()), scores,
		app.WithLogger(logger),
		app.WithTickInterval(time.Hour),
	)

	view, err := service.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if n, err := redisClient.Exists(ctx, "quiz:session:"+view.SessionID).Result(); err != nil || n != 1 {
		t.Fatalf("expected session liveness key, got %d (%v)", n, err)
	}

	if _, err := service.Select(ctx, view.SessionID, "4"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := service.Next(ctx, view.SessionID); err != nil {
		t.Fatalf("next: %v", err)
	}
	summary, err := service.Summary(ctx, view.SessionID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.FinalScore != 1 || summary.HighScore != 1 || !summary.NewHighScore {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// A worse run must not lower the stored score.
	if err := scores.Set(ctx, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	high, err := scores.Get(ctx)
	if err != nil || high != 1 {
		t.Fatalf("expected high score 1, got %d (%v)", high, err)
	}

	service.End(ctx, view.SessionID)
	if n, _ := redisClient.Exists(ctx, "quiz:session:"+view.SessionID).Result(); n != 0 {
		t.Fatalf("expected liveness key to be removed")
	}
}

func TestRedisScoreStoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()
	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	store := infraredis.NewScoreStore(client, "")
	for _, score := range []int{2, 1, 3} {
		if _, _, err := app.RecordHighScore(ctx, store, score); err != nil {
			t.Fatalf("record %d: %v", score, err)
		}
	}
	high, err := store.Get(ctx)
	if err != nil || high != 3 {
		t.Fatalf("expected high score 3, got %d (%v)", high, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: "4"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
