package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	badgerarchive "live-quiz-service/internal/infra/badger"
	"live-quiz-service/internal/infra/firestore"
	"live-quiz-service/internal/infra/memory"
	pgstore "live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/registry"
	"live-quiz-service/internal/replay"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := quizLoader(cfg, pool)
	if err != nil {
		return err
	}

	var quizRepo app.QuizRepository
	var rooms app.RoomStore
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, cfg.QuizTTL(), logger)
		rooms = redisstore.NewRoomStore(redisClient, cfg.RedisTTL(), logger)
	} else {
		quizRepo = memory.NewQuizRepository(loader, cfg.QuizTTL())
		rooms = memory.NewRoomStore()
	}

	archiver, closeArchive, err := archiveSinks(ctx, cfg, pool, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeArchive()

	service := app.NewGameService(
		rooms,
		quizRepo,
		registry.New(),
		replay.NewBuffer(cfg.Game.BufferCapacity),
		archiver,
		app.WithLogger(logger),
		app.WithCountdown(cfg.Countdown()),
		app.WithArchiveTimeout(cfg.ArchiveTimeout()),
	)
	wsHandler := transport.NewWSHandler(service, logger)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, wsHandler),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting game server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ArchiveTimeout()+5*time.Second)
	defer cancel()
	shutdownErr := server.Shutdown(shutdownCtx)
	if err := service.Close(shutdownCtx); err != nil {
		logger.Warn("pending archive writes abandoned", slog.Any("error", err))
	}
	return shutdownErr
}

// quizLoader picks the quiz source: Postgres when configured, else the YAML
// catalogue, else the built-in sample.
func quizLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuizLoader, error) {
	if pool != nil {
		return pgstore.NewQuizLoader(pool), nil
	}
	if cfg.Quiz.File != "" {
		return memory.LoadQuizFile(cfg.Quiz.File)
	}
	return memory.NewStaticQuizLoader(sampleQuizzes()), nil
}

// archiveSinks wires every configured archive destination into one fan-out.
// It returns a nil Archiver when none is configured.
func archiveSinks(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, client *redis.Client, logger *slog.Logger) (app.Archiver, func(), error) {
	var sinks []app.NamedArchiver
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if pool != nil {
		sinks = append(sinks, app.NamedArchiver{Name: "postgres", Archiver: pgstore.NewArchiveStore(pool)})
	}
	if client != nil {
		sinks = append(sinks, app.NamedArchiver{Name: "redis", Archiver: redisstore.NewArchiveStore(client, cfg.Archive.RedisMax)})
	}
	if cfg.Archive.BadgerPath != "" {
		db, err := badgerarchive.Open(cfg.Archive.BadgerPath)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { _ = db.Close() })
		sinks = append(sinks, app.NamedArchiver{Name: "badger", Archiver: badgerarchive.NewArchiveStore(db, logger)})
	}
	if fs := cfg.Archive.Firestore; fs.ProjectID != "" {
		client, err := firestore.Open(ctx, firestore.Config{ProjectID: fs.ProjectID, APIKey: fs.APIKey})
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { _ = client.Close() })
		sinks = append(sinks, app.NamedArchiver{Name: "firestore", Archiver: firestore.NewArchiveStore(client, fs.Collection)})
	}

	if len(sinks) == 0 {
		logger.Info("no archive sink configured, finished games are not persisted")
		return nil, closeAll, nil
	}
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name)
	}
	logger.Info("archive sinks configured", slog.Any("sinks", names))
	return app.NewArchiveFanout(sinks...), closeAll, nil
}

// sampleQuizzes is served when neither Postgres nor a quiz file is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:       "quiz-1",
			Title:    "Warm-up",
			Category: "general",
			Questions: []domain.Question{
				{
					ID:       "q1",
					Type:     domain.QuestionStandard,
					Question: "What is 2 + 2?",
					Options: []domain.QuestionOption{
						{Text: "3"},
						{Text: "4"},
						{Text: "5"},
					},
					CorrectAnswers: []int{1},
				},
				{
					ID:            "q2",
					Type:          domain.QuestionTrueFalse,
					Question:      "Water boils at 100°C at sea level.",
					CorrectAnswer: true,
				},
			},
		},
	}
}
