package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/domain"
)

// Archiver stores a finished game somewhere durable. There is no read path back.
type Archiver interface {
	Archive(ctx context.Context, game domain.GameArchive) error
}

// ArchiveFunc adapts a function to Archiver.
type ArchiveFunc func(ctx context.Context, game domain.GameArchive) error

func (f ArchiveFunc) Archive(ctx context.Context, game domain.GameArchive) error {
	return f(ctx, game)
}

// NamedArchiver labels a sink in fan-out errors.
type NamedArchiver struct {
	Name string
	Archiver
}

// ArchiveFanout writes every finished game to all sinks concurrently. One failing
// sink does not stop the others; the returned error joins every failure.
type ArchiveFanout struct {
	sinks []NamedArchiver
}

func NewArchiveFanout(sinks ...NamedArchiver) *ArchiveFanout {
	return &ArchiveFanout{sinks: sinks}
}

// Len reports how many sinks are configured.
func (f *ArchiveFanout) Len() int {
	return len(f.sinks)
}

func (f *ArchiveFanout) Archive(ctx context.Context, game domain.GameArchive) error {
	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	for i, sink := range f.sinks {
		g.Go(func() error {
			if err := sink.Archive(ctx, game); err != nil {
				errs[i] = fmt.Errorf("%s: %w", sink.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
