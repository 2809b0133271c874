package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"lms-ranking-service/internal/app"
	"lms-ranking-service/internal/config"
	"lms-ranking-service/internal/domain"
	"lms-ranking-service/internal/infra/memory"
	pgcatalog "lms-ranking-service/internal/infra/postgres"
	redisinfra "lms-ranking-service/internal/infra/redis"
	transport "lms-ranking-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the ranking service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.CourseLoader = memory.NewStaticCourseLoader(sampleCourses())
	var users app.UserDirectory = memory.NewUserDirectory(sampleUsers())
	if pool != nil {
		loader = pgcatalog.NewCatalogLoader(pool)
		users = pgcatalog.NewUserDirectory(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalogCache(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogCache(loader, catalogTTL)
	}

	var progressStore app.ProgressStore
	if redisClient != nil {
		progressStore = redisinfra.NewProgressStore(redisClient)
	} else {
		progressStore = memory.NewProgressStore()
	}

	grace := time.Duration(cfg.Quiz.GraceSeconds) * time.Second
	if cfg.Quiz.GraceSeconds == 0 {
		grace = app.DefaultGraceSeconds * time.Second
	}

	rankings := app.NewRankingService(catalog, users, progressStore)
	feed := app.NewLeaderboardFeed(rankings)
	progress := app.NewProgressService(catalog, users, progressStore, feed)
	quizzes := app.NewQuizService(catalog, progressStore, app.NewGrader(grace), feed)

	api := transport.NewAPI(progress, quizzes, rankings)
	wsHandler := transport.NewWSHandler(feed)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/api", api.Routes)
	r.Get("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting ranking service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleCourses provides minimal catalog data for running without Postgres.
func sampleCourses() map[string]domain.Course {
	return map[string]domain.Course{
		"course-go": {
			ID:    "course-go",
			Title: "Go Fundamentals",
			Modules: []domain.Module{
				{
					ID:    "mod-1",
					Title: "Syntax and Types",
					Order: 0,
					Quiz: &domain.Quiz{
						ID:               "quiz-1",
						Title:            "Syntax check",
						TimeLimitMinutes: 10,
						PassingScore:     70,
						Questions: []domain.Question{
							{
								ID:   "q1",
								Text: "Which keyword declares a variable?",
								Choices: []domain.Choice{
									{ID: "o1", Text: "let", Correct: false},
									{ID: "o2", Text: "var", Correct: true},
									{ID: "o3", Text: "def", Correct: false},
								},
								Points: 1,
							},
							{
								ID:   "q2",
								Text: "What is the zero value of an int?",
								Choices: []domain.Choice{
									{ID: "o1", Text: "nil", Correct: false},
									{ID: "o2", Text: "0", Correct: true},
								},
								Points: 1,
							},
						},
					},
				},
				{ID: "mod-2", Title: "Control Flow", Order: 1},
			},
		},
	}
}

func sampleUsers() []domain.User {
	return []domain.User{
		{ID: "u1", Name: "Alice", Role: domain.RoleStudent},
		{ID: "u2", Name: "Bob", Role: domain.RoleStudent},
		{ID: "u3", Name: "Carol", Role: domain.RoleInstructor},
	}
}
