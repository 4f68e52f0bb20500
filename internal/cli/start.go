package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quizee-service/internal/app"
	"quizee-service/internal/auth"
	"quizee-service/internal/config"
	"quizee-service/internal/domain"
	"quizee-service/internal/infra/memory"
	pgstore "quizee-service/internal/infra/postgres"
	redisinfra "quizee-service/internal/infra/redis"
	"quizee-service/internal/logger"
	transport "quizee-service/internal/transport/http"
	"quizee-service/internal/validation"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quizee server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runServer(cmd.Context(), cfg, *port, log)
		},
	}
}

func runServer(ctx context.Context, cfg config.Config, portFlag string, log *logger.Logger) error {
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
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

	matcher, err := validation.ParseMatcher(cfg.Editor.MatchMode)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwtSecret is empty; publishing will be rejected")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var store app.QuizeeStore = memory.NewQuizeeStore(sampleQuizees()...)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = pgstore.NewQuizeeStore(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var public app.PublicQuizeeSource
	var sessions app.SessionRepository
	if redisClient != nil {
		public = redisinfra.NewQuizeeCache(redisClient, store, quizTTL)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		public = memory.NewPublicCache(store, quizTTL)
		sessions = memory.NewSessionStore()
	}

	service := app.NewQuizeeService(store, public, sessions, app.Options{Logger: log, Matcher: matcher})
	router := transport.NewRouter(service, transport.RouterOptions{
		Tokens:   auth.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)),
		Debounce: config.TTLDuration(cfg.Editor.Debounce, 300*time.Millisecond),
		Logger:   log,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quizee service", "port", finalPort, "matchMode", matcher.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizees seeds the in-memory store when no database is configured.
func sampleQuizees() []domain.Quiz {
	return []domain.Quiz{
		{
			Info: domain.QuizInfo{ID: "quiz-1", Caption: "Warm-up", QuestionsCount: 2},
			Questions: []domain.Question{
				{
					ID:      "q1",
					Caption: "What is 2 + 2?",
					Type:    domain.OneTrue,
					AnswerOptions: []domain.AnswerOption{
						{ID: "o1", Value: "3"},
						{ID: "o2", Value: "4"},
						{ID: "o3", Value: "5"},
					},
				},
				{
					ID:            "q2",
					Caption:       "Capital of France?",
					Type:          domain.WriteAnswer,
					AnswerOptions: []domain.AnswerOption{{ID: "o4"}},
				},
			},
			Answers: []domain.Answer{
				{AnswerTo: "q1", Answer: []string{"o2"}},
				{AnswerTo: "q2", Answer: []string{"Paris"}},
			},
		},
	}
}
