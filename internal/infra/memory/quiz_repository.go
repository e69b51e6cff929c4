package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (Postgres, a YAML catalogue, ...).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quizzes with TTL so creating many rooms for the same quiz
// hits the loader once.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if quiz, ok := r.cached(quizID); ok {
			return quiz, nil
		}
		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			quiz:      quiz,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) cached(quizID string) (domain.Quiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[quizID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter spreads expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader serves quizzes from a map (tests, demos, the YAML catalogue).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// Len reports how many quizzes the loader knows.
func (l *StaticQuizLoader) Len() int {
	return len(l.quizzes)
}

// All returns every quiz ordered by id.
func (l *StaticQuizLoader) All() []domain.Quiz {
	quizzes := lo.Values(l.quizzes)
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })
	return quizzes
}

type quizCatalogue struct {
	Quizzes []domain.Quiz `yaml:"quizzes"`
}

// LoadQuizFile reads a YAML catalogue of the form `quizzes: [...]`.
func LoadQuizFile(path string) (*StaticQuizLoader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quiz file: %w", err)
	}
	return ParseQuizCatalogue(raw)
}

// ParseQuizCatalogue decodes a YAML quiz catalogue. Quiz ids must be unique.
func ParseQuizCatalogue(raw []byte) (*StaticQuizLoader, error) {
	var cat quizCatalogue
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse quiz file: %w", err)
	}
	quizzes := make(map[string]domain.Quiz, len(cat.Quizzes))
	for _, q := range cat.Quizzes {
		if q.ID == "" {
			return nil, fmt.Errorf("parse quiz file: quiz %q has no id", q.Title)
		}
		if _, dup := quizzes[q.ID]; dup {
			return nil, fmt.Errorf("parse quiz file: duplicate quiz id %q", q.ID)
		}
		quizzes[q.ID] = q
	}
	return NewStaticQuizLoader(quizzes), nil
}
