package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

func TestWebSocketStatusAndSubmit(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := memory.NewStore()
	service := app.NewAttemptService(memory.NewQuizRepository(store, time.Minute), store, store, nil, app.WithClock(clock))

	ctx := context.Background()
	if _, err := service.CreateQuiz(ctx, domain.Quiz{ID: "quiz-1", Mode: domain.ModeManual, DurationMinutes: 30}); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	attempt, err := service.CreateAttempt(ctx, app.CreateAttemptRequest{QuizID: "quiz-1", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("create attempt: %v", err)
	}

	wsHandler := NewWSHandler(service, clock)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?attemptId=" + attempt.ID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the initial status first.
	_, payload := readNext(conn, t, "status")
	if payload["status"] != string(domain.StatusInProgress) {
		t.Fatalf("expected in progress, got %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "submit", "payload": map[string]any{"total": 2, "correct": 3}}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	_, payload = readNext(conn, t, "error")
	if payload["code"] != "invalid_score_input" {
		t.Fatalf("expected invalid score input, got %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "submit", "payload": map[string]any{"total": 4, "correct": 3}}); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	_, payload = readNext(conn, t, "submitted")
	if payload["incorrect"] != float64(1) {
		t.Fatalf("expected incorrect=1, got %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "status"}); err != nil {
		t.Fatalf("write status: %v", err)
	}
	_, payload = readNext(conn, t, "status")
	if payload["status"] != string(domain.StatusCompleted) {
		t.Fatalf("expected completed, got %v", payload)
	}
}

func TestWebSocketRequiresAttemptID(t *testing.T) {
	store := memory.NewStore()
	service := app.NewAttemptService(memory.NewQuizRepository(store, time.Minute), store, store, nil)
	server := httptest.NewServer(http.HandlerFunc(NewWSHandler(service, nil).ServeWS))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
