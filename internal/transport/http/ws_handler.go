package http

import (
	"encoding/json"
	"net/http"
	"time"

	"quiz-attempt-service/internal/app"

	"github.com/gorilla/websocket"
)

// WSHandler serves a per-attempt websocket. Every inbound message is answered
// synchronously; nothing is pushed on a timer.
type WSHandler struct {
	service  *app.AttemptService
	now      app.Clock
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, now app.Clock) *WSHandler {
	if now == nil {
		now = time.Now
	}
	return &WSHandler{
		service: service,
		now:     now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and answers "status" and "submit" messages for one attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	attemptID := r.URL.Query().Get("attemptId")
	if attemptID == "" {
		http.Error(w, "missing attemptId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	if !h.writeStatus(conn, r, attemptID) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "status":
			if !h.writeStatus(conn, r, attemptID) {
				return
			}
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				if !writeWSError(conn, "bad_request", "invalid submit payload") {
					return
				}
				continue
			}
			attempt, err := h.service.SubmitAttempt(ctx, attemptID, payload.Total, payload.Correct)
			if err != nil {
				_, code := classify(err)
				if !writeWSError(conn, code, err.Error()) {
					return
				}
				continue
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "submitted", Payload: attempt}); err != nil {
				return
			}
		default:
			if !writeWSError(conn, "bad_request", "unsupported message type") {
				return
			}
		}
	}
}

func (h *WSHandler) writeStatus(conn *websocket.Conn, r *http.Request, attemptID string) bool {
	now := h.now()
	status, err := h.service.GetStatus(r.Context(), attemptID, now)
	if err != nil {
		_, code := classify(err)
		return writeWSError(conn, code, err.Error())
	}
	return conn.WriteJSON(outboundMessage[statusResponse]{
		Type:    "status",
		Payload: statusResponse{AttemptID: attemptID, Status: status, At: now.UTC()},
	}) == nil
}

func writeWSError(conn *websocket.Conn, code, message string) bool {
	return conn.WriteJSON(outboundMessage[errorBody]{Type: "error", Payload: errorBody{Code: code, Message: message}}) == nil
}
