package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// API exposes the attempt lifecycle operations over HTTP.
type API struct {
	service  *app.AttemptService
	scoring  *app.ScoringService
	validate *validator.Validate
	now      app.Clock
	log      *zap.Logger
}

// NewAPI builds the HTTP surface. A nil scoring service leaves the admin routes unmounted.
func NewAPI(service *app.AttemptService, scoring *app.ScoringService, log *zap.Logger, now app.Clock) *API {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &API{service: service, scoring: scoring, validate: validator.New(), now: now, log: log}
}

// Router mounts the REST routes and the websocket endpoint.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/quizzes", func(qr chi.Router) {
		qr.Post("/", a.createQuiz)
		qr.Put("/{quizID}/schedule", a.changeSchedule)
		qr.Get("/{quizID}/window", a.resolveWindow)
		qr.Post("/{quizID}/attempts", a.createAttempt)
	})
	r.Route("/attempts/{attemptID}", func(ar chi.Router) {
		ar.Get("/", a.getAttempt)
		ar.Get("/status", a.getStatus)
		ar.Post("/submit", a.submitAttempt)
	})
	if a.scoring != nil {
		r.Put("/quizzes/{quizID}/scoring", a.setScoring)
		r.Get("/quizzes/{quizID}/scoring", a.getScoring)
		r.Post("/users/{userID}/assignments", a.assignQuiz)
		r.Get("/users/{userID}/assignments", a.listAssignments)
	}
	r.Get("/ws", NewWSHandler(a.service, a.now).ServeWS)
	return r
}

type createQuizRequest struct {
	ID              string     `json:"id" validate:"required,max=128"`
	Mode            string     `json:"mode" validate:"required,oneof=scheduled manual"`
	StartsAt        *time.Time `json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt"`
	DurationMinutes int        `json:"durationMinutes" validate:"max=527040"`
	Link            string     `json:"link" validate:"omitempty,url"`
}

type scheduleRequest struct {
	Mode            string     `json:"mode" validate:"required,oneof=scheduled manual"`
	StartsAt        *time.Time `json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt"`
	DurationMinutes int        `json:"durationMinutes" validate:"max=527040"`
}

type createAttemptRequest struct {
	Email      string `json:"email" validate:"required,email,max=320"`
	NIJ        string `json:"nij" validate:"max=64"`
	ServoID    string `json:"servoId" validate:"max=128"`
	ServiceKey string `json:"serviceKey" validate:"max=128"`
}

// Counts are pointers so a missing field is distinguishable from zero; range
// checks belong to the score reconciler.
type submitRequest struct {
	Total   *int `json:"total" validate:"required"`
	Correct *int `json:"correct" validate:"required"`
}

type scoringRequest struct {
	QuestionCount *int `json:"questionCount" validate:"required,gte=0"`
}

type assignmentRequest struct {
	QuizID     string `json:"quizId" validate:"required,max=128"`
	AssignedBy string `json:"assignedBy" validate:"max=128"`
	Notes      string `json:"notes" validate:"max=1024"`
}

type statusResponse struct {
	AttemptID string               `json:"attemptId"`
	Status    domain.AttemptStatus `json:"status"`
	At        time.Time            `json:"at"`
}

func (a *API) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !a.decode(w, r, &req) {
		return
	}
	quiz, err := a.service.CreateQuiz(r.Context(), domain.Quiz{
		ID:              req.ID,
		Mode:            domain.SchedulingMode(req.Mode),
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		DurationMinutes: req.DurationMinutes,
		Link:            req.Link,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (a *API) changeSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !a.decode(w, r, &req) {
		return
	}
	quiz, err := a.service.ChangeQuizMode(r.Context(), chi.URLParam(r, "quizID"), app.ScheduleChange{
		Mode:            domain.SchedulingMode(req.Mode),
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) resolveWindow(w http.ResponseWriter, r *http.Request) {
	at, ok := a.instantParam(w, r)
	if !ok {
		return
	}
	window, err := a.service.ResolveSchedulingWindow(r.Context(), chi.URLParam(r, "quizID"), at)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}

func (a *API) createAttempt(w http.ResponseWriter, r *http.Request) {
	var req createAttemptRequest
	if !a.decode(w, r, &req) {
		return
	}
	attempt, err := a.service.CreateAttempt(r.Context(), app.CreateAttemptRequest{
		QuizID:     chi.URLParam(r, "quizID"),
		Email:      req.Email,
		NIJ:        req.NIJ,
		ServoID:    req.ServoID,
		ServiceKey: req.ServiceKey,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (a *API) getAttempt(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) getStatus(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptID")
	now := a.now()
	status, err := a.service.GetStatus(r.Context(), attemptID, now)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{AttemptID: attemptID, Status: status, At: now.UTC()})
}

func (a *API) submitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !a.decode(w, r, &req) {
		return
	}
	attempt, err := a.service.SubmitAttempt(r.Context(), chi.URLParam(r, "attemptID"), *req.Total, *req.Correct)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) setScoring(w http.ResponseWriter, r *http.Request) {
	var req scoringRequest
	if !a.decode(w, r, &req) {
		return
	}
	scoring, err := a.scoring.SetScoring(r.Context(), chi.URLParam(r, "quizID"), *req.QuestionCount)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoring)
}

func (a *API) getScoring(w http.ResponseWriter, r *http.Request) {
	scoring, err := a.scoring.GetScoring(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoring)
}

func (a *API) assignQuiz(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !a.decode(w, r, &req) {
		return
	}
	assignment, err := a.scoring.AssignQuiz(r.Context(), domain.UserQuizAssignment{
		UserID:     chi.URLParam(r, "userID"),
		QuizID:     req.QuizID,
		AssignedBy: req.AssignedBy,
		Notes:      req.Notes,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) listAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := a.scoring.ListAssignments(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.UserQuizAssignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

// instantParam reads the optional RFC 3339 "at" query parameter, defaulting to now.
func (a *API) instantParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return a.now(), true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "at must be an RFC 3339 timestamp"})
		return time.Time{}, false
	}
	return at, true
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "invalid JSON body"})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "validation_failed", Message: err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrDuplicateEmail, http.StatusConflict, "duplicate_email"},
	{domain.ErrAlreadySubmitted, http.StatusConflict, "already_submitted"},
	{domain.ErrModeLocked, http.StatusConflict, "mode_locked"},
	{domain.ErrIdentityBusy, http.StatusConflict, "identity_busy"},
	{domain.ErrInvalidWindow, http.StatusUnprocessableEntity, "invalid_window"},
	{domain.ErrInvalidDuration, http.StatusUnprocessableEntity, "invalid_duration"},
	{domain.ErrInvalidScoreInput, http.StatusUnprocessableEntity, "invalid_score_input"},
	{domain.ErrInvalidQuiz, http.StatusUnprocessableEntity, "invalid_quiz"},
	{domain.ErrInvalidEmail, http.StatusUnprocessableEntity, "invalid_email"},
	{domain.ErrQuizNotFound, http.StatusNotFound, "quiz_not_found"},
	{domain.ErrAttemptNotFound, http.StatusNotFound, "attempt_not_found"},
}

// classify maps a service error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.status, ec.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
