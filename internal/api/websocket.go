package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"codetutor/internal/domain"
)

// wsEvent is one conversation message pushed to a connected client.
type wsEvent struct {
	Role      domain.MessageRole `json:"role"`
	Content   string             `json:"content"`
	Timestamp int64              `json:"timestamp"`
}

// SessionStream upgrades to a WebSocket and pushes every message appended
// to the session's conversation until the client disconnects or the
// session is evicted. The session must already exist.
func (h *Handler) SessionStream(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	if _, err := h.store.Get(sessionID); err != nil {
		writeError(w, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	messages, unsubscribe := h.store.Subscribe(sessionID)
	defer unsubscribe()

	// Reads are discarded; a read error means the client went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	slog.Info("Session stream opened", "session_id", sessionID)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				// Subscription closed: the session was evicted.
				return
			}
			if err := writeJSON(ctx, ws, wsEvent{
				Role:      msg.Role,
				Content:   msg.Content,
				Timestamp: msg.Timestamp,
			}); err != nil {
				slog.Debug("Session stream write failed", "error", err, "session_id", sessionID)
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
