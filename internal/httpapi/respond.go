package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/UkralStul/feedback-board-service/internal/attachment"
	"github.com/UkralStul/feedback-board-service/internal/auth"
	"github.com/UkralStul/feedback-board-service/internal/board"
	"github.com/UkralStul/feedback-board-service/internal/feedback"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/go-chi/chi/v5/middleware"
)

const maxJSONBody = 8 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON читает тело запроса. Битый JSON - ошибка ввода.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &feedback.ValidationError{Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

// statusOf сопоставляет доменные ошибки HTTP-статусам.
func statusOf(err error) int {
	var verr *feedback.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, board.ErrInvalidFilter),
		errors.Is(err, attachment.ErrBadDataURL),
		errors.Is(err, attachment.ErrAborted):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, feedback.ErrPrivate):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, board.ErrPrivate),
		errors.Is(err, board.ErrUnconfigured),
		errors.Is(err, attachment.ErrDraftNotFound),
		errors.Is(err, attachment.ErrNotTracked):
		return http.StatusNotFound
	case errors.Is(err, feedback.ErrAlreadyVoted),
		errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, attachment.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, feedback.ErrThreadDepth),
		errors.Is(err, feedback.ErrNotRepliable):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
