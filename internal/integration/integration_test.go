package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"lms-ranking-service/internal/app"
	"lms-ranking-service/internal/domain"
	pgloader "lms-ranking-service/internal/infra/postgres"
	pgmigrations "lms-ranking-service/internal/infra/postgres/migrations"
	infraredis "lms-ranking-service/internal/infra/redis"
)

func TestProgressAndRankingEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL, sampleCourse(), sampleUsers())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	catalog := infraredis.NewCatalogCache(redisClient, pgloader.NewCatalogLoader(pool), 5*time.Minute)
	users := pgloader.NewUserDirectory(pool)
	store := infraredis.NewProgressStore(redisClient)

	rankings := app.NewRankingService(catalog, users, store)
	feed := app.NewLeaderboardFeed(rankings)
	progress := app.NewProgressService(catalog, users, store, feed)
	quizzes := app.NewQuizService(catalog, store, app.NewGrader(30*time.Second), feed)

	for _, userID := range []string{"u1", "u2"} {
		if err := progress.Enroll(ctx, userID, "course-1"); err != nil {
			t.Fatalf("enroll %s: %v", userID, err)
		}
	}
	if err := progress.Enroll(ctx, "u1", "course-1"); err == nil {
		t.Fatalf("expected duplicate enrollment to fail")
	}

	view, err := progress.MarkModuleComplete(ctx, "u1", "course-1", "mod-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if view.ProgressPercentage != 50 {
		t.Fatalf("expected 50%% progress, got %v", view.ProgressPercentage)
	}

	result, err := quizzes.Submit(ctx, "u2", "course-1", "mod-1", domain.QuizSubmission{
		Answers: []domain.AnswerSubmission{
			{QuestionID: "q1", ChoiceID: "b"},
			{QuestionID: "q2", ChoiceID: "a"},
		},
		ElapsedSeconds: 120,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 100 || result.TimedOut {
		t.Fatalf("expected full score, got %+v", result)
	}

	lb, err := rankings.CourseLeaderboard(ctx, "course-1")
	if err != nil {
		t.Fatalf("course leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" || lb.Entries[0].Rank != 1 {
		t.Fatalf("expected u2 leading, got %+v", lb.Entries)
	}
	if lb.Entries[0].Name != "Bob" {
		t.Fatalf("expected directory name, got %q", lb.Entries[0].Name)
	}

	window, err := rankings.UserWindow(ctx, "u1", "course-1")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if window.UserRank != 2 || window.TotalUsers != 2 {
		t.Fatalf("unexpected window: %+v", window)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "lms", "POSTGRES_PASSWORD": "lmspass", "POSTGRES_DB": "lmsdb"},
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
	dsn := fmt.Sprintf("postgres://lms:lmspass@%s:%s/lmsdb?sslmode=disable", host, port.Port())
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

func seedCatalog(t *testing.T, ctx context.Context, dsn string, course domain.Course, users []domain.User) {
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

	data, err := json.Marshal(course)
	if err != nil {
		t.Fatalf("marshal course: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO courses (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, course.ID, string(data)); err != nil {
		t.Fatalf("insert course: %v", err)
	}
	for _, user := range users {
		if _, err := db.ExecContext(ctx, `INSERT INTO users (id, name, role) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`, user.ID, user.Name, string(user.Role)); err != nil {
			t.Fatalf("insert user %s: %v", user.ID, err)
		}
	}
}

func sampleCourse() domain.Course {
	return domain.Course{
		ID:    "course-1",
		Title: "Distributed Systems",
		Modules: []domain.Module{
			{
				ID:    "mod-1",
				Title: "Consensus",
				Quiz: &domain.Quiz{
					ID:               "quiz-1",
					TimeLimitMinutes: 10,
					PassingScore:     60,
					Questions: []domain.Question{
						{
							ID:   "q1",
							Text: "Raft elects a?",
							Choices: []domain.Choice{
								{ID: "a", Text: "follower"},
								{ID: "b", Text: "leader", Correct: true},
							},
						},
						{
							ID:   "q2",
							Text: "Quorum of 5 nodes?",
							Choices: []domain.Choice{
								{ID: "a", Text: "3", Correct: true},
								{ID: "b", Text: "5"},
							},
						},
					},
				},
			},
			{ID: "mod-2", Title: "Replication"},
		},
	}
}

func sampleUsers() []domain.User {
	return []domain.User{
		{ID: "u1", Name: "Alice", Role: domain.RoleStudent},
		{ID: "u2", Name: "Bob", Role: domain.RoleStudent},
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
