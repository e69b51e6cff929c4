// Package firestore archives finished games as documents in a Firestore collection.
package firestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"live-quiz-service/internal/domain"
)

// Config identifies the target project.
type Config struct {
	ProjectID string
	APIKey    string
}

// Open connects a Firestore client. When FIRESTORE_EMULATOR_HOST is set the
// client talks to the emulator instead and the API key is not needed.
func Open(ctx context.Context, cfg Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return client, nil
}

// ArchiveStore adds each finished game as a new document with a generated id.
type ArchiveStore struct {
	client     *firestore.Client
	collection string
}

func NewArchiveStore(client *firestore.Client, collection string) *ArchiveStore {
	if collection == "" {
		collection = "games"
	}
	return &ArchiveStore{client: client, collection: collection}
}

func (s *ArchiveStore) Archive(ctx context.Context, game domain.GameArchive) error {
	doc, err := Document(game)
	if err != nil {
		return err
	}
	if _, _, err := s.client.Collection(s.collection).Add(ctx, doc); err != nil {
		return fmt.Errorf("add game %s: %w", game.Game.ID, err)
	}
	return nil
}

// Document converts v into the map form the client stores. The value goes through
// its JSON form first, so json tags decide field names; integral numbers become
// int64 and the rest float64.
func Document(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root must be an object, got %T", generic)
	}
	return convertMap(obj), nil
}

func convertMap(obj map[string]any) map[string]any {
	for k, v := range obj {
		obj[k] = convert(v)
	}
	return obj
}

func convert(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i, item := range t {
			t[i] = convert(item)
		}
		return t
	case map[string]any:
		return convertMap(t)
	default:
		return v
	}
}
