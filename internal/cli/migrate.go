package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	pgstore "live-quiz-service/internal/infra/postgres"
	pgmigrations "live-quiz-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations and optionally seeds quizzes from a YAML catalogue.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, seed)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "YAML quiz catalogue to upsert after migrating")
	return cmd
}

func runMigrations(ctx context.Context, configPath, seed string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}
	if seed == "" {
		return nil
	}
	return seedQuizzes(ctx, cfg, seed, logger)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("database schema up to date")
		return nil
	}
	logger.Info("migrations applied", slog.String("group", group.String()))
	return nil
}

func seedQuizzes(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) error {
	catalogue, err := memory.LoadQuizFile(path)
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := pgstore.NewQuizLoader(pool)
	for _, quiz := range catalogue.All() {
		if err := store.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
	}
	logger.Info("quizzes seeded", slog.Int("count", catalogue.Len()), slog.String("file", path))
	return nil
}
