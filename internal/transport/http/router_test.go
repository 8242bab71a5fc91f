package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
)

type testEnv struct {
	server *httptest.Server
	mu     sync.Mutex
	now    time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	clock := env.clock

	store := memory.NewStore()
	service := app.NewAttemptService(memory.NewQuizRepository(store, time.Minute), store, store, app.NewKeyedLocker(), app.WithClock(clock))
	scoring := app.NewScoringService(memory.NewQuizRepository(store, time.Minute), store, clock, nil)
	env.server = httptest.NewServer(NewAPI(service, scoring, nil, clock).Router())
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/quizzes", map[string]any{"id": "quiz-m", "mode": "manual", "durationMinutes": 30})
	if code != http.StatusCreated {
		t.Fatalf("create quiz: status %d", code)
	}

	code, body := env.do(t, http.MethodPost, "/quizzes/quiz-m/attempts", map[string]any{"email": "alice@example.com", "nij": "1001"})
	if code != http.StatusCreated {
		t.Fatalf("create attempt: status %d body %v", code, body)
	}
	attemptID, _ := body["id"].(string)
	if attemptID == "" {
		t.Fatalf("expected attempt id, got %v", body)
	}

	code, body = env.do(t, http.MethodPost, "/quizzes/quiz-m/attempts", map[string]any{"email": "ALICE@example.com"})
	if code != http.StatusConflict || body["code"] != "duplicate_email" {
		t.Fatalf("expected duplicate email conflict, got %d %v", code, body)
	}

	env.advance(40 * time.Minute)
	code, body = env.do(t, http.MethodGet, "/attempts/"+attemptID+"/status", nil)
	if code != http.StatusOK || body["status"] != string(domain.StatusExpired) {
		t.Fatalf("expected expired, got %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/attempts/"+attemptID+"/submit", map[string]any{"total": 5, "correct": 7})
	if code != http.StatusUnprocessableEntity || body["code"] != "invalid_score_input" {
		t.Fatalf("expected invalid score input, got %d %v", code, body)
	}

	env.advance(5 * time.Minute)
	code, body = env.do(t, http.MethodPost, "/attempts/"+attemptID+"/submit", map[string]any{"total": 10, "correct": 7})
	if code != http.StatusOK || body["incorrect"] != float64(3) {
		t.Fatalf("submit: %d %v", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/attempts/"+attemptID, nil)
	if code != http.StatusOK || body["status"] != string(domain.StatusCompleted) {
		t.Fatalf("expected completed, got %d %v", code, body)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/quizzes", map[string]any{
		"id": "quiz-s", "mode": "scheduled",
		"startsAt": "2025-01-01T08:00:00Z", "endsAt": "2025-01-01T10:00:00Z",
	})
	if code != http.StatusCreated {
		t.Fatalf("create quiz: %d %v", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/quizzes/quiz-s/window?at=2025-01-01T07:00:00Z", nil)
	if code != http.StatusOK || !strings.HasPrefix(body["start"].(string), "2025-01-01T08:00:00") {
		t.Fatalf("window: %d %v", code, body)
	}
	code, body = env.do(t, http.MethodGet, "/quizzes/quiz-s/window?at=2025-01-01T11:00:00Z", nil)
	if code != http.StatusUnprocessableEntity || body["code"] != "invalid_window" {
		t.Fatalf("expected invalid window, got %d %v", code, body)
	}

	if code, _ := env.do(t, http.MethodPost, "/quizzes/quiz-s/attempts", map[string]any{"email": "bob@example.com"}); code != http.StatusCreated {
		t.Fatalf("create attempt: %d", code)
	}
	code, body = env.do(t, http.MethodPut, "/quizzes/quiz-s/schedule", map[string]any{"mode": "manual", "durationMinutes": 15})
	if code != http.StatusConflict || body["code"] != "mode_locked" {
		t.Fatalf("expected mode locked, got %d %v", code, body)
	}
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPost, "/quizzes", map[string]any{"id": "q", "mode": "weekly"})
	if code != http.StatusBadRequest || body["code"] != "validation_failed" {
		t.Fatalf("expected validation failure, got %d %v", code, body)
	}
	code, body = env.do(t, http.MethodPost, "/quizzes", map[string]any{"id": "q", "mode": "manual"})
	if code != http.StatusUnprocessableEntity || body["code"] != "invalid_duration" {
		t.Fatalf("expected invalid duration, got %d %v", code, body)
	}
	code, body = env.do(t, http.MethodPost, "/quizzes", map[string]any{"id": "q", "mode": "manual", "durationMinutes": 200_000_000})
	if code != http.StatusBadRequest || body["code"] != "validation_failed" {
		t.Fatalf("expected oversized duration to fail validation, got %d %v", code, body)
	}
	code, body = env.do(t, http.MethodPost, "/quizzes/q/attempts", map[string]any{"email": "not-an-email"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d %v", code, body)
	}
	code, body = env.do(t, http.MethodGet, "/attempts/missing/status", nil)
	if code != http.StatusNotFound || body["code"] != "attempt_not_found" {
		t.Fatalf("expected not found, got %d %v", code, body)
	}
	code, _ = env.do(t, http.MethodPost, "/attempts/missing/submit", map[string]any{"total": 3})
	if code != http.StatusBadRequest {
		t.Fatalf("expected bad request for missing correct, got %d", code)
	}
}

func TestScoringAndAssignmentEndpoints(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodPut, "/quizzes/ghost/scoring", map[string]any{"questionCount": 10})
	if code != http.StatusNotFound || body["code"] != "quiz_not_found" {
		t.Fatalf("expected quiz not found, got %d %v", code, body)
	}

	if code, _ := env.do(t, http.MethodPost, "/quizzes", map[string]any{"id": "quiz-s", "mode": "manual", "durationMinutes": 20}); code != http.StatusCreated {
		t.Fatalf("create quiz: status %d", code)
	}
	code, body = env.do(t, http.MethodPut, "/quizzes/quiz-s/scoring", map[string]any{"questionCount": -1})
	if code != http.StatusBadRequest {
		t.Fatalf("expected validation failure for negative count, got %d %v", code, body)
	}
	code, body = env.do(t, http.MethodPut, "/quizzes/quiz-s/scoring", map[string]any{"questionCount": 25})
	if code != http.StatusOK || body["questionCount"] != float64(25) {
		t.Fatalf("set scoring: %d %v", code, body)
	}
	code, body = env.do(t, http.MethodGet, "/quizzes/quiz-s/scoring", nil)
	if code != http.StatusOK || body["questionCount"] != float64(25) {
		t.Fatalf("get scoring: %d %v", code, body)
	}

	code, body = env.do(t, http.MethodPost, "/users/u-7/assignments", map[string]any{"quizId": "quiz-s", "assignedBy": "admin"})
	if code != http.StatusCreated || body["quizId"] != "quiz-s" || body["userId"] != "u-7" {
		t.Fatalf("assign: %d %v", code, body)
	}

	resp, err := http.Get(env.server.URL + "/users/u-7/assignments")
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	defer resp.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode assignments: %v", err)
	}
	if len(list) != 1 || list[0]["quizId"] != "quiz-s" {
		t.Fatalf("unexpected assignments %v", list)
	}
}
