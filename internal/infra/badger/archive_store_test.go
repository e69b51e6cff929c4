package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func TestArchiveStoreKeepsChronologicalOrder(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	store := NewArchiveStore(db, nil)
	at := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		archive := domain.GameArchive{
			Game:       domain.Room{ID: "123456", QuizTitle: title, Status: domain.StatusFinished},
			Winners:    []domain.ScoreEntry{{ID: "u1", Name: "Alice", Points: 1000 * i}},
			ArchivedAt: at.Add(time.Duration(i) * time.Minute),
		}
		req.NoError(store.Archive(context.Background(), archive))
	}
	req.NoError(store.Archive(context.Background(), domain.GameArchive{Game: domain.Room{ID: "654321"}, ArchivedAt: at}))

	archives, err := store.List("123456")
	req.NoError(err)
	req.Len(archives, 3)
	req.Equal("first", archives[0].Game.QuizTitle)
	req.Equal("third", archives[2].Game.QuizTitle)
	req.Equal(2000, archives[2].Winners[0].Points)
}

func TestArchiveStoreSameInstantDoesNotOverwrite(t *testing.T) {
	req := require.New(t)
	db, err := Open(t.TempDir())
	req.NoError(err)
	defer db.Close()

	store := NewArchiveStore(db, nil)
	at := time.Now().UTC()
	req.NoError(store.Archive(context.Background(), domain.GameArchive{Game: domain.Room{ID: "111111"}, ArchivedAt: at}))
	req.NoError(store.Archive(context.Background(), domain.GameArchive{Game: domain.Room{ID: "111111"}, ArchivedAt: at}))

	archives, err := store.List("111111")
	req.NoError(err)
	req.Len(archives, 2)
}

func TestArchiveStoreHonoursCancelledContext(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewArchiveStore(db, nil).Archive(ctx, domain.GameArchive{Game: domain.Room{ID: "1"}})
	require.ErrorIs(t, err, context.Canceled)
}
