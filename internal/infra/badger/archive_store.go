// Package badger archives finished games into an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// ArchiveStore writes one key per finished game:
// "game:{room_id}:{finished_unix_nano, 19-digit padded}:{uuid}". Padding keeps a
// room's archives in chronological order; the uuid keeps two writes in the same
// nanosecond apart (join codes are reused across rooms).
type ArchiveStore struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens (or creates) the database at dir.
func Open(dir string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return db, nil
}

func NewArchiveStore(db *badger.DB, log *slog.Logger) *ArchiveStore {
	if log == nil {
		log = slog.Default()
	}
	return &ArchiveStore{db: db, log: log}
}

func (s *ArchiveStore) Archive(ctx context.Context, game domain.GameArchive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	key := fmt.Sprintf("game:%s:%019d:%s", game.Game.ID, game.ArchivedAt.UnixNano(), uuid.NewString())
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	}); err != nil {
		return fmt.Errorf("store archive: %w", err)
	}
	s.log.Debug("game archived to badger", slog.String("key", key))
	return nil
}

// List returns every archive stored for roomID, oldest first.
func (s *ArchiveStore) List(roomID string) ([]domain.GameArchive, error) {
	var out []domain.GameArchive
	prefix := []byte("game:" + roomID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var archive domain.GameArchive
				if err := json.Unmarshal(val, &archive); err != nil {
					return err
				}
				out = append(out, archive)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	return out, nil
}
