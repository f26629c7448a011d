package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/board"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var errBadParent = errors.New("parent type must be topic or comment")

const (
	liveWriteWait  = 5 * time.Second
	livePingPeriod = 30 * time.Second
)

// handleLive отдает новые комментарии элемента через websocket.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	sub, err := s.Store.GetSubmit(r.Context(), chi.URLParam(r, "id"))
	if err == nil && sub.AccountID != acc.ID {
		err = storage.ErrNotFound
	}
	if err == nil && sub.Status != domain.StatusPublic {
		err = board.ErrPrivate
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "submit_id", sub.ID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Читаем только для обнаружения закрытия соединения клиентом
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	comments := s.Feedback.Hub().Subscribe(ctx, sub.ID)
	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	for {
		select {
		case c, ok := <-comments:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(board.ViewComment(c, true)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
