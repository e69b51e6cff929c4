package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// ArchiveStore writes finished games into the game_archives table.
type ArchiveStore struct {
	pool *pgxpool.Pool
}

func NewArchiveStore(pool *pgxpool.Pool) *ArchiveStore {
	return &ArchiveStore{pool: pool}
}

func (s *ArchiveStore) Archive(ctx context.Context, game domain.GameArchive) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_archives (game_id, quiz_id, finished_at, data) VALUES ($1, $2, $3, $4::jsonb)`,
		game.Game.ID, game.Game.QuizID, game.ArchivedAt, string(data))
	if err != nil {
		return fmt.Errorf("insert archive: %w", err)
	}
	return nil
}

// Count reports how many games were archived for gameID.
func (s *ArchiveStore) Count(ctx context.Context, gameID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM game_archives WHERE game_id=$1`, gameID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count archives: %w", err)
	}
	return n, nil
}
