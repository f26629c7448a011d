package httpapi

import (
	"errors"
	"net/http"

	"github.com/UkralStul/feedback-board-service/internal/board"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/feedback"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/go-chi/chi/v5"
)

// === Dashboard & Lists ===

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.Board.Dashboard(r.Context(), account(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subs, err := s.Board.AdminList(r.Context(), account(r), board.AdminListParams{
		Status:   domain.Status(q.Get("status")),
		Progress: domain.Progress(q.Get("progress")),
		Sort:     storage.SortKey(q.Get("sort")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleAdminDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.Board.Detail(r.Context(), account(r), chi.URLParam(r, "id"), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// === Moderation ===

type statusRequest struct {
	Status domain.Status `json:"status"`
}

type progressRequest struct {
	Progress domain.Progress `json:"progress"`
}

type replyRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.Feedback.SetStatus(r.Context(), account(r), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleSetProgress(w http.ResponseWriter, r *http.Request) {
	var in progressRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.Feedback.SetProgress(r.Context(), account(r), chi.URLParam(r, "id"), in.Progress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type deleteResponse struct {
	Error  string                  `json:"error,omitempty"`
	Report *feedback.CascadeReport `json:"report"`
}

// handleDelete возвращает журнал каскада. Неполное удаление - 500 с журналом,
// запрос можно повторить.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	report, err := s.Feedback.Delete(r.Context(), account(r), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, feedback.ErrCascadeIncomplete):
		writeJSON(w, http.StatusInternalServerError, deleteResponse{Error: err.Error(), Report: report})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, deleteResponse{Report: report})
	}
}

func (s *Server) handleAdminReply(w http.ResponseWriter, r *http.Request) {
	var in replyRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Feedback.AdminReply(r.Context(), account(r), chi.URLParam(r, "id"), in.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, board.ViewComment(c, false))
}

func (s *Server) handleSurveyTest(w http.ResponseWriter, r *http.Request) {
	res, err := s.Feedback.SendTestSurvey(r.Context(), account(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// === Settings ===

func settingsOf(acc *domain.Account) feedback.Settings {
	return feedback.Settings{
		AdminEmail:   acc.AdminEmail,
		PrimaryColor: acc.PrimaryColor,
		HomeURL:      acc.HomeURL,
		BoardTitle:   acc.BoardTitle,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsOf(account(r)))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in feedback.Settings
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.Feedback.UpdateSettings(r.Context(), account(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Resolver.Invalidate(acc.Slug)
	writeJSON(w, http.StatusOK, settingsOf(acc))
}
