package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"live-quiz-service/internal/broadcast"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/protocol"
	"live-quiz-service/internal/registry"
	"live-quiz-service/internal/replay"
	"live-quiz-service/internal/scoring"
)

const (
	DefaultCountdown      = 3 * time.Second
	DefaultArchiveTimeout = 10 * time.Second
)

var errNoFreePin = errors.New("could not allocate a free join code")

// RoomStore holds the open rooms (in-memory, Redis-marked, etc).
type RoomStore interface {
	// Insert adds game unless its id is already taken.
	Insert(game *Game) bool
	Get(roomID string) (*Game, bool)
	// Touch marks the room as still in play, extending any expiring claim on its id.
	Touch(roomID string)
	Delete(roomID string)
	Len() int
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CreateRoomRequest carries either inline quiz content or a quiz id to load.
type CreateRoomRequest struct {
	QuizID   string
	Quiz     *domain.Quiz
	Settings *domain.Settings
}

// ReconnectState is what a reconnecting participant needs to resynchronise.
type ReconnectState struct {
	Participant          domain.Participant
	Status               domain.Status
	CurrentQuestionIndex int
	TotalQuestions       int
	Missed               []domain.Event
}

// Option configures a GameService.
type Option func(*GameService)

// WithClock replaces time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

// WithCountdown sets the delay between the countdown event and the question reveal.
func WithCountdown(d time.Duration) Option {
	return func(s *GameService) { s.countdown = d }
}

// WithArchiveTimeout bounds each archive write.
func WithArchiveTimeout(d time.Duration) Option {
	return func(s *GameService) { s.archiveTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *GameService) { s.log = log }
}

// WithPinGenerator replaces the random join-code source.
func WithPinGenerator(next func() string) Option {
	return func(s *GameService) { s.nextPin = next }
}

// GameService owns room lifecycle: creation, joins, question progression,
// scoring and finish/archival.
type GameService struct {
	rooms    RoomStore
	quizzes  QuizRepository
	registry *registry.Registry
	buffer   *replay.Buffer
	router   *broadcast.Router
	archiver Archiver
	timers   *scheduler

	log            *slog.Logger
	now            func() time.Time
	nextPin        func() string
	countdown      time.Duration
	archiveTimeout time.Duration

	archives sync.WaitGroup
}

func NewGameService(rooms RoomStore, quizzes QuizRepository, reg *registry.Registry, buffer *replay.Buffer, archiver Archiver, opts ...Option) *GameService {
	s := &GameService{
		rooms:          rooms,
		quizzes:        quizzes,
		registry:       reg,
		buffer:         buffer,
		archiver:       archiver,
		timers:         newScheduler(),
		log:            slog.Default(),
		now:            time.Now,
		nextPin:        randomPins(),
		countdown:      DefaultCountdown,
		archiveTimeout: DefaultArchiveTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = broadcast.NewRouter(reg, buffer, s.log)
	return s
}

// Now returns the server clock.
func (s *GameService) Now() time.Time {
	return s.now()
}

// Room returns a snapshot of an open room.
func (s *GameService) Room(roomID string) (domain.Room, bool) {
	game, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Room{}, false
	}
	return game.Snapshot(), true
}

// OpenRooms reports how many rooms are currently open.
func (s *GameService) OpenRooms() int {
	return s.rooms.Len()
}

// CreateRoom opens a room with a fresh 6-digit join code and binds host as its host connection.
func (s *GameService) CreateRoom(ctx context.Context, host domain.Conn, req CreateRoomRequest) (domain.Room, error) {
	quiz, err := s.resolveQuiz(ctx, req)
	if err != nil {
		return domain.Room{}, err
	}
	settings := domain.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	for attempt := 0; attempt < maxPinAttempts; attempt++ {
		pin := s.nextPin()
		room := domain.Room{
			ID:                pin,
			GamePin:           pin,
			QuizID:            quiz.ID,
			QuizTitle:         quiz.Title,
			Status:            domain.StatusWaiting,
			TotalQuestions:    len(quiz.Questions),
			Participants:      []domain.Participant{},
			AnsweredQuestions: []domain.AnsweredQuestion{},
			Settings:          settings,
			CreatedAt:         s.now(),
		}
		game := NewGame(room, quiz)
		if !s.rooms.Insert(game) {
			continue
		}
		if err := s.registry.RegisterHost(pin, host); err != nil {
			s.rooms.Delete(pin)
			continue
		}
		s.log.Info("room created",
			slog.String("room_id", pin),
			slog.String("quiz_id", quiz.ID),
			slog.Int("questions", room.TotalQuestions))
		snapshot := game.Snapshot()
		_ = s.router.Unicast(host, protocol.NewGameCreated(snapshot))
		return snapshot, nil
	}
	return domain.Room{}, errNoFreePin
}

func (s *GameService) resolveQuiz(ctx context.Context, req CreateRoomRequest) (domain.Quiz, error) {
	if req.Quiz != nil {
		quiz := *req.Quiz
		if quiz.ID == "" {
			quiz.ID = req.QuizID
		}
		return quiz, nil
	}
	if req.QuizID == "" || s.quizzes == nil {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz %s: %w", req.QuizID, err)
	}
	return quiz, nil
}

// Join adds a participant or, for a known participant id, rebinds its connection.
// A fresh join is announced to the whole room; a rejoin is answered only to the
// rejoining connection, together with the events it missed since `since`.
func (s *GameService) Join(roomID string, p domain.Participant, conn domain.Conn, since time.Time) (registry.JoinKind, error) {
	game, ok := s.rooms.Get(roomID)
	if !ok {
		return registry.JoinFresh, domain.ErrRoomNotFound
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	if game.room.Status == domain.StatusFinished {
		return registry.JoinFresh, domain.ErrRoomNotFound
	}
	known := game.hasParticipantLocked(p.ID)
	if !known && game.room.Status != domain.StatusWaiting && !game.room.Settings.AllowLateJoins {
		return registry.JoinFresh, domain.ErrLateJoinNotAllowed
	}
	if !known {
		p.JoinedAt = s.now()
	}

	kind, err := s.registry.JoinParticipant(roomID, p, conn)
	if err != nil {
		return kind, err
	}
	log := s.log.With(slog.String("room_id", roomID), slog.String("participant_id", p.ID))

	if kind == registry.JoinRejoin {
		log.Info("participant rejoined")
		s.sendReconnectedLocked(game, p.ID, conn, since)
		return kind, nil
	}

	game.room.Participants = s.registry.Participants(roomID)
	log.Info("participant joined", slog.Int("participants", len(game.room.Participants)))
	s.router.Broadcast(roomID, protocol.NewJoined(roomID, p, false))
	return kind, nil
}

// Reconnect rebinds a participant's connection and replays the buffered events
// recorded after since.
func (s *GameService) Reconnect(roomID, participantID string, conn domain.Conn, since time.Time) (ReconnectState, error) {
	game, ok := s.rooms.Get(roomID)
	if !ok {
		return ReconnectState{}, domain.ErrRoomNotFound
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	if game.room.Status == domain.StatusFinished {
		return ReconnectState{}, domain.ErrRoomNotFound
	}
	p, err := s.registry.Reconnect(roomID, participantID, conn)
	if err != nil {
		return ReconnectState{}, err
	}
	s.log.Info("participant reconnected", slog.String("room_id", roomID), slog.String("participant_id", participantID))
	missed := s.sendReconnectedLocked(game, participantID, conn, since)
	return ReconnectState{
		Participant:          p,
		Status:               game.room.Status,
		CurrentQuestionIndex: game.room.CurrentQuestionIndex,
		TotalQuestions:       game.room.TotalQuestions,
		Missed:               missed,
	}, nil
}

func (s *GameService) sendReconnectedLocked(game *Game, participantID string, conn domain.Conn, since time.Time) []domain.Event {
	missed := s.buffer.ReplaySince(game.room.ID, since)
	_ = s.router.Unicast(conn, protocol.NewReconnected(
		game.room.ID,
		participantID,
		game.room.Status,
		game.room.CurrentQuestionIndex,
		game.room.TotalQuestions,
		missed,
	))
	return missed
}

// hostGame looks up the room and checks that caller is its host connection.
func (s *GameService) hostGame(roomID string, caller domain.Conn) (*Game, error) {
	game, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !s.registry.IsHost(roomID, caller) {
		return nil, domain.ErrNotHost
	}
	return game, nil
}

// Start moves a waiting room to active and opens the first question.
func (s *GameService) Start(roomID string, caller domain.Conn) error {
	game, err := s.hostGame(roomID, caller)
	if err != nil {
		return err
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	switch game.room.Status {
	case domain.StatusFinished:
		return domain.ErrRoomNotFound
	case domain.StatusActive:
		return domain.ErrInvalidTransition
	}
	now := s.now()
	game.room.Status = domain.StatusActive
	game.room.CurrentQuestionIndex = 0
	game.room.StartedAt = &now
	s.log.Info("room started", slog.String("room_id", roomID), slog.Int("participants", len(game.room.Participants)))
	s.router.Broadcast(roomID, protocol.NewGameStarted(roomID, game.room.TotalQuestions))
	s.advanceLocked(game)
	return nil
}

// Advance opens the next question, or finishes the room when none are left.
func (s *GameService) Advance(roomID string, caller domain.Conn) error {
	game, err := s.hostGame(roomID, caller)
	if err != nil {
		return err
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	switch game.room.Status {
	case domain.StatusFinished:
		return domain.ErrRoomNotFound
	case domain.StatusWaiting:
		return domain.ErrInvalidTransition
	}
	// the previous question must be on screen before the next one can open
	if entry, ok := game.openQuestionLocked(); ok && !entry.Revealed {
		return domain.ErrInvalidTransition
	}
	s.advanceLocked(game)
	return nil
}

// advanceLocked appends the answered-question entry, announces the countdown and
// schedules the reveal. The index moves on immediately; the entry accepts answers
// only after revealQuestion marks it revealed.
func (s *GameService) advanceLocked(game *Game) {
	room := &game.room
	if room.CurrentQuestionIndex >= room.TotalQuestions {
		s.finishLocked(game)
		return
	}
	index := room.CurrentQuestionIndex
	room.AnsweredQuestions = append(room.AnsweredQuestions, domain.AnsweredQuestion{
		QuestionIndex: index,
		StartedAt:     s.now(),
		Answers:       []domain.Answer{},
	})
	s.router.Broadcast(room.ID, protocol.NewCountdown(room.ID, s.countdown))
	room.CurrentQuestionIndex++
	game.reveal++
	s.rooms.Touch(room.ID)

	roomID, reveal := room.ID, game.reveal
	s.timers.schedule(roomID, s.countdown, func() {
		s.revealQuestion(roomID, reveal, index)
	})
}

// revealQuestion runs when the countdown elapses. It is a no-op if the room was
// finished, removed or advanced again in the meantime.
func (s *GameService) revealQuestion(roomID string, reveal, index int) {
	game, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	if game.room.Status != domain.StatusActive || game.reveal != reveal {
		return
	}
	question, ok := game.questionLocked(index)
	if !ok {
		return
	}
	entry, ok := game.openQuestionLocked()
	if !ok || entry.QuestionIndex != index {
		return
	}
	now := s.now()
	entry.StartedAt = now
	entry.Revealed = true
	if limit := game.room.Settings.QuestionTimeLimit; limit > 0 {
		endsAt := now.Add(time.Duration(limit) * time.Second)
		entry.EndsAt = &endsAt
	}
	s.router.Broadcast(roomID, protocol.NewQuestion(roomID, index, question, entry.EndsAt))
}

// SubmitAnswer scores an answer to the open question. The submitting connection
// gets its own result; the host gets the updated answer state.
func (s *GameService) SubmitAnswer(roomID, participantID string, questionIndex int, answer domain.AnswerValue, conn domain.Conn) (domain.Answer, error) {
	game, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Answer{}, domain.ErrRoomNotFound
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	switch game.room.Status {
	case domain.StatusFinished:
		return domain.Answer{}, domain.ErrRoomNotFound
	case domain.StatusWaiting:
		return domain.Answer{}, domain.ErrStaleAnswer
	}
	if !game.hasParticipantLocked(participantID) {
		return domain.Answer{}, domain.ErrParticipantNotFound
	}
	entry, ok := game.openQuestionLocked()
	if !ok || entry.QuestionIndex != questionIndex || !entry.Revealed {
		return domain.Answer{}, domain.ErrStaleAnswer
	}
	if entry.HasAnswerFrom(participantID) {
		return domain.Answer{}, domain.ErrDuplicateAnswer
	}
	question, ok := game.questionLocked(questionIndex)
	if !ok {
		return domain.Answer{}, domain.ErrStaleAnswer
	}

	now := s.now()
	correct := scoring.Evaluate(question, answer)
	submitted := domain.Answer{
		ParticipantID: participantID,
		QuestionID:    question.ID,
		QuestionIndex: questionIndex,
		Answer:        answer,
		AnsweredAt:    now,
		IsCorrect:     correct,
		Points:        scoring.Score(correct, entry.StartedAt, now),
	}
	entry.Answers = append(entry.Answers, submitted)
	total := scoring.Aggregate(game.room, participantID)

	s.log.Debug("answer recorded",
		slog.String("room_id", roomID),
		slog.String("participant_id", participantID),
		slog.Int("question_index", questionIndex),
		slog.Bool("correct", correct),
		slog.Int("points", submitted.Points))

	if conn == nil {
		conn, _ = s.registry.Conn(roomID, participantID)
	}
	_ = s.router.Unicast(conn, protocol.NewAnswerReceived(roomID, submitted, total))
	if host, ok := s.registry.Host(roomID); ok && host.Open() {
		_ = s.router.Unicast(host, protocol.NewAnswerUpdate(roomID, game.room.Clone().AnsweredQuestions))
	}
	return submitted, nil
}

// RevealResults broadcasts the answers to the open question, with the correct
// answer when the room's settings allow it.
func (s *GameService) RevealResults(roomID string, caller domain.Conn) error {
	game, err := s.hostGame(roomID, caller)
	if err != nil {
		return err
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	if game.room.Status == domain.StatusFinished {
		return domain.ErrRoomNotFound
	}
	entry, ok := game.openQuestionLocked()
	if !ok || !entry.Revealed {
		return domain.ErrInvalidTransition
	}
	var correct *protocol.CorrectAnswer
	if game.room.Settings.ShowCorrectAnswers {
		if q, ok := game.questionLocked(entry.QuestionIndex); ok {
			correct = correctAnswerOf(q)
		}
	}
	answers := append([]domain.Answer(nil), entry.Answers...)
	s.router.Broadcast(roomID, protocol.NewResults(roomID, entry.QuestionIndex, correct, answers))
	return nil
}

func correctAnswerOf(q domain.Question) *protocol.CorrectAnswer {
	switch q.Type {
	case domain.QuestionTrueFalse:
		v := q.CorrectAnswer
		return &protocol.CorrectAnswer{Bool: &v}
	case domain.QuestionStandard:
		return &protocol.CorrectAnswer{Options: append([]int(nil), q.CorrectAnswers...)}
	default:
		return nil
	}
}

// RemoveParticipant kicks a participant out of the room and closes its connection.
func (s *GameService) RemoveParticipant(roomID, participantID string, caller domain.Conn) error {
	game, err := s.hostGame(roomID, caller)
	if err != nil {
		return err
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	if game.room.Status == domain.StatusFinished {
		return domain.ErrRoomNotFound
	}
	if conn, ok := s.registry.Conn(roomID, participantID); ok {
		_ = s.router.Unicast(conn, protocol.NewDisconnected(roomID, protocol.ReasonRemoved))
	}
	if _, err := s.registry.RemoveParticipant(roomID, participantID); err != nil {
		return err
	}
	game.room.Participants = s.registry.Participants(roomID)
	s.log.Info("participant removed", slog.String("room_id", roomID), slog.String("participant_id", participantID))
	s.router.Broadcast(roomID, protocol.NewPlayerDisconnected(roomID, participantID, protocol.ReasonRemoved))
	return nil
}

// ConnectionClosed unbinds a participant whose connection dropped. The participant
// stays in the room and may reconnect.
func (s *GameService) ConnectionClosed(roomID, participantID string, conn domain.Conn) {
	game, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	if game.room.Status == domain.StatusFinished {
		return
	}
	if !s.registry.OnConnectionClosed(roomID, participantID, conn) {
		return
	}
	s.log.Info("participant connection lost", slog.String("room_id", roomID), slog.String("participant_id", participantID))
	s.router.Broadcast(roomID, protocol.NewPlayerDisconnected(roomID, participantID, protocol.ReasonConnectionLost))
}

// Finish ends the room on the host's request.
func (s *GameService) Finish(roomID string, caller domain.Conn) ([]domain.ScoreEntry, error) {
	game, err := s.hostGame(roomID, caller)
	if err != nil {
		return nil, err
	}
	game.mu.Lock()
	defer game.mu.Unlock()

	if game.room.Status == domain.StatusFinished {
		return nil, domain.ErrRoomNotFound
	}
	return s.finishLocked(game), nil
}

// finishLocked is idempotent: the first caller wins, later callers see a finished room.
func (s *GameService) finishLocked(game *Game) []domain.ScoreEntry {
	room := &game.room
	if room.Status == domain.StatusFinished {
		return nil
	}
	now := s.now()
	room.Status = domain.StatusFinished
	room.FinishedAt = &now
	s.timers.cancel(room.ID)
	if n := len(room.AnsweredQuestions); n > 0 && !room.AnsweredQuestions[n-1].Revealed {
		room.AnsweredQuestions = room.AnsweredQuestions[:n-1]
	}

	winners := scoring.Rank(*room)
	s.dispatchArchive(domain.GameArchive{
		Game:       room.Clone(),
		Quiz:       game.quiz,
		Winners:    winners,
		ArchivedAt: now,
	})

	// announce before the bindings go away, otherwise nobody receives it
	s.router.Broadcast(room.ID, protocol.NewGameFinished(room.ID, winners))

	s.rooms.Delete(room.ID)
	s.registry.RemoveRoom(room.ID)
	s.buffer.Drop(room.ID)
	s.log.Info("room finished",
		slog.String("room_id", room.ID),
		slog.Int("questions_shown", len(room.AnsweredQuestions)),
		slog.Int("participants", len(room.Participants)))
	return winners
}

// dispatchArchive hands the finished game to the archiver without waiting for it.
// Failures are logged and dropped.
func (s *GameService) dispatchArchive(archive domain.GameArchive) {
	if s.archiver == nil {
		return
	}
	s.archives.Add(1)
	go func() {
		defer s.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.archiveTimeout)
		defer cancel()
		if err := s.archiver.Archive(ctx, archive); err != nil {
			s.log.Warn("archive game failed", slog.String("room_id", archive.Game.ID), slog.Any("error", err))
			return
		}
		s.log.Debug("game archived", slog.String("room_id", archive.Game.ID))
	}()
}

// Close stops every pending timer and waits for in-flight archive writes or ctx.
func (s *GameService) Close(ctx context.Context) error {
	s.timers.stopAll()
	done := make(chan struct{})
	go func() {
		s.archives.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
