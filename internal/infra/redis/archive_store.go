package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// ArchiveKey is the list finished games are appended to.
const ArchiveKey = "quiz:archive:games"

// ArchiveStore appends finished games to a capped Redis list, newest last.
type ArchiveStore struct {
	client *redis.Client
	max    int64
}

// NewArchiveStore keeps at most max games; max <= 0 keeps everything.
func NewArchiveStore(client *redis.Client, max int64) *ArchiveStore {
	return &ArchiveStore{client: client, max: max}
}

func (s *ArchiveStore) Archive(ctx context.Context, game domain.GameArchive) error {
	raw, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, ArchiveKey, raw)
	if s.max > 0 {
		pipe.LTrim(ctx, ArchiveKey, -s.max, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push archive: %w", err)
	}
	return nil
}
