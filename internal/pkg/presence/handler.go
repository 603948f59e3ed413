package presence

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/fixmate/fixmate-api/internal/middleware"
	"github.com/fixmate/fixmate-api/internal/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin is enforced by the CORS middleware upstream
		return true
	},
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Serve upgrades to a websocket and keeps the user marked online while
// the connection lives. The socket carries no payload; its liveness is
// the signal.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	if err := h.svc.MarkOnline(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("mark online failed")
	}
	defer func() {
		if err := h.svc.MarkOffline(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("mark offline failed")
		}
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(keyTTL))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(keyTTL))
		h.svc.Heartbeat(ctx, userID)
		return nil
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		h.svc.Heartbeat(ctx, userID)
		conn.SetReadDeadline(time.Now().Add(keyTTL))
	}
}
