package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()})}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz after expiry: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
	}
}

func TestQuizRepositoryCollapsesConcurrentLoads(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": sampleQuiz()}),
		delay:      20 * time.Millisecond,
	}
	repo := NewQuizRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
				t.Errorf("get quiz: %v", err)
			}
		}()
	}
	wg.Wait()
	if loader.calls.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loader.calls.Load())
	}
}

func TestQuizRepositoryUnknownQuiz(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(nil), time.Minute)
	_, err := repo.GetQuiz(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestLoadQuizFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.yaml")
	content := `
quizzes:
  - id: capitals
    title: Capitals
    questions:
      - id: q1
        type: standard
        question: Capital of France?
        options:
          - text: Berlin
          - text: Paris
        correctAnswers: [1]
      - id: q2
        type: true-false
        question: Rome is in Italy
        correctAnswer: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	loader, err := LoadQuizFile(path)
	if err != nil {
		t.Fatalf("load quiz file: %v", err)
	}
	quiz, err := loader.LoadQuiz(context.Background(), "capitals")
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
	if quiz.Questions[0].Type != domain.QuestionStandard || quiz.Questions[0].CorrectAnswers[0] != 1 {
		t.Fatalf("unexpected first question: %+v", quiz.Questions[0])
	}
	if quiz.Questions[1].Type != domain.QuestionTrueFalse || !quiz.Questions[1].CorrectAnswer {
		t.Fatalf("unexpected second question: %+v", quiz.Questions[1])
	}
	if all := loader.All(); len(all) != 1 || all[0].ID != "capitals" {
		t.Fatalf("unexpected catalogue listing: %+v", all)
	}
}

func TestParseQuizCatalogueRejectsDuplicates(t *testing.T) {
	_, err := ParseQuizCatalogue([]byte("quizzes:\n  - id: a\n  - id: a\n"))
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

type countingLoader struct {
	QuizLoader
	delay time.Duration
	calls atomic.Int32
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []domain.Question{
			{
				ID:       "q1",
				Type:     domain.QuestionStandard,
				Question: "What is 2 + 2?",
				Options: []domain.QuestionOption{
					{Text: "3"},
					{Text: "4"},
				},
				CorrectAnswers: []int{1},
			},
		},
	}
}
