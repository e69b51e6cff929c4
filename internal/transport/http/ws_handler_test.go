package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/registry"
	"live-quiz-service/internal/replay"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	service := app.NewGameService(
		memory.NewRoomStore(),
		quizRepo,
		registry.New(),
		replay.NewBuffer(replay.DefaultCapacity),
		memory.NewArchiveStore(),
		app.WithCountdown(10*time.Millisecond),
	)
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, nil)))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketGameFlow(t *testing.T) {
	server := newTestServer(t)
	host := dial(t, server)

	send(t, host, map[string]any{"type": "create_game", "data": map[string]any{"quizId": "quiz-1"}})
	created := readUntil(t, host, "game_created")
	gameID, _ := created["gameId"].(string)
	if len(gameID) != 6 {
		t.Fatalf("expected 6-digit game id, got %q", gameID)
	}

	player := dial(t, server)
	send(t, player, map[string]any{
		"type":   "join_game",
		"gameId": gameID,
		"player": map[string]any{"id": "u1", "name": "Alice"},
	})
	readUntil(t, player, "joined")
	readUntil(t, host, "joined")

	// Only the host may start.
	send(t, player, map[string]any{"type": "start_game", "gameId": gameID})
	if msg := readUntil(t, player, "error"); msg["code"] != "not_host" {
		t.Fatalf("expected not_host, got %v", msg)
	}

	send(t, host, map[string]any{"type": "start_game", "gameId": gameID})
	readUntil(t, player, "countdown")
	question := readUntil(t, player, "question")
	q, _ := question["question"].(map[string]any)
	if _, leaked := q["correctAnswers"]; leaked {
		t.Fatalf("question leaked correct answers: %v", q)
	}

	send(t, player, map[string]any{"type": "addAnswer", "gameId": gameID, "playerId": "u1", "questionIndex": 0, "answer": 1})
	result := readUntil(t, player, "answer_received")
	if result["isCorrect"] != true {
		t.Fatalf("expected correct answer, got %v", result)
	}
	if points, _ := result["points"].(float64); points < 500 {
		t.Fatalf("expected at least base points, got %v", result["points"])
	}
	readUntil(t, host, "answer_update")

	// Answering for someone else is refused.
	send(t, player, map[string]any{"type": "addAnswer", "gameId": gameID, "playerId": "u2", "questionIndex": 0, "answer": 1})
	if msg := readUntil(t, player, "error"); msg["code"] != "participant_not_found" {
		t.Fatalf("expected participant_not_found, got %v", msg)
	}

	send(t, host, map[string]any{"type": "finish_game", "gameId": gameID})
	finished := readUntil(t, player, "game_finished")
	winners, _ := finished["winners"].([]any)
	if len(winners) != 1 {
		t.Fatalf("expected one winner row, got %v", finished["winners"])
	}
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server)

	send(t, conn, map[string]any{"type": "dance"})
	msg := readUntil(t, conn, "error")
	if msg["message"] != "Unknown message type" {
		t.Fatalf("unexpected error message: %v", msg)
	}

	send(t, conn, map[string]any{"type": "join_game", "gameId": "123456"})
	if msg := readUntil(t, conn, "error"); msg["code"] != "malformed_message" {
		t.Fatalf("expected malformed_message, got %v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, "error")

	// The connection stays usable after errors.
	send(t, conn, map[string]any{"type": "get_time"})
	if msg := readUntil(t, conn, "server_time"); msg["time"] == nil {
		t.Fatalf("expected time in server_time, got %v", msg)
	}
}

func TestWebSocketReportsDroppedPlayer(t *testing.T) {
	server := newTestServer(t)
	host := dial(t, server)
	send(t, host, map[string]any{"type": "create_game", "data": map[string]any{"quizId": "quiz-1"}})
	gameID := readUntil(t, host, "game_created")["gameId"].(string)

	player := dial(t, server)
	send(t, player, map[string]any{"type": "join_game", "gameId": gameID, "player": map[string]any{"id": "u1", "name": "Alice"}})
	readUntil(t, host, "joined")

	_ = player.Close()
	msg := readUntil(t, host, "player_disconnected")
	if msg["playerId"] != "u1" || msg["reason"] != "connection_lost" {
		t.Fatalf("unexpected disconnect event: %v", msg)
	}

	back := dial(t, server)
	send(t, back, map[string]any{"type": "reconnect", "gameId": gameID, "playerId": "u1"})
	reconnected := readUntil(t, back, "reconnected")
	if reconnected["status"] != string(domain.StatusWaiting) {
		t.Fatalf("unexpected reconnect state: %v", reconnected)
	}
}

func TestWebSocketReconnectResumesFromLastStamp(t *testing.T) {
	server := newTestServer(t)
	host := dial(t, server)
	send(t, host, map[string]any{"type": "create_game", "data": map[string]any{"quizId": "quiz-1"}})
	gameID := readUntil(t, host, "game_created")["gameId"].(string)

	alice := dial(t, server)
	send(t, alice, map[string]any{"type": "join_game", "gameId": gameID, "player": map[string]any{"id": "u1", "name": "Alice"}})
	readUntil(t, alice, "joined")
	bob := dial(t, server)
	send(t, bob, map[string]any{"type": "join_game", "gameId": gameID, "player": map[string]any{"id": "u2", "name": "Bob"}})
	lastSeen := stampOf(t, readUntil(t, alice, "joined"))

	_ = alice.Close()
	readUntil(t, host, "player_disconnected")
	send(t, host, map[string]any{"type": "start_game", "gameId": gameID})
	readUntil(t, bob, "question")

	back := dial(t, server)
	send(t, back, map[string]any{"type": "reconnect", "gameId": gameID, "playerId": "u1", "since": lastSeen})
	reconnected := readUntil(t, back, "reconnected")
	missed, _ := reconnected["missedEvents"].([]any)

	var types []string
	prev := lastSeen
	for _, raw := range missed {
		evt := raw.(map[string]any)
		types = append(types, evt["type"].(string))
		at := stampOf(t, evt)
		if at <= prev {
			t.Fatalf("expected strictly increasing stamps after %d, got %d in %v", prev, at, evt)
		}
		prev = at
	}
	want := []string{"player_disconnected", "game_started", "countdown", "question"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("expected missed %v, got %v", want, types)
	}

	// resuming from the newest stamp replays nothing
	again := dial(t, server)
	send(t, again, map[string]any{"type": "reconnect", "gameId": gameID, "playerId": "u1", "since": prev})
	if rest, _ := readUntil(t, again, "reconnected")["missedEvents"].([]any); len(rest) != 0 {
		t.Fatalf("expected no missed events, got %v", rest)
	}
}

func stampOf(t *testing.T, evt map[string]any) int64 {
	t.Helper()
	at, ok := evt["at"].(float64)
	if !ok || at <= 0 {
		t.Fatalf("event carries no record stamp: %v", evt)
	}
	return int64(at)
}

func TestHTTPHelpers(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected healthz response %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(server.URL + "/time")
	if err != nil {
		t.Fatalf("time: %v", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Type string `json:"type"`
		Time int64  `json:"time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode time: %v", err)
	}
	if payload.Type != "server_time" || payload.Time == 0 {
		t.Fatalf("unexpected time payload: %+v", payload)
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write json: %v", err)
	}
}

// readUntil skips events until one of type expect arrives.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg["type"] == expect {
			return msg
		}
	}
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
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
						{Text: "5"},
					},
					CorrectAnswers: []int{1},
				},
			},
		},
	}
}
