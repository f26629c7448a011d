package httpapi

import (
	"net/http"

	"github.com/UkralStul/feedback-board-service/internal/attachment"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/feedback"

	"github.com/go-chi/chi/v5"
)

type openDraftRequest struct {
	ParentType domain.ParentType `json:"parent_type"`
}

type draftResponse struct {
	ID         string            `json:"id"`
	ParentType domain.ParentType `json:"parent_type"`
	Files      []domain.Upload   `json:"files"`
}

// handleOpenDraft открывает сессию загрузки для одной формы.
func (s *Server) handleOpenDraft(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	var in openDraftRequest
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !in.ParentType.Valid() {
		s.writeError(w, r, &feedback.ValidationError{Err: errBadParent})
		return
	}
	d := s.Attachments.OpenDraft(acc.ID, in.ParentType)
	writeJSON(w, http.StatusCreated, draftResponse{ID: d.ID, ParentType: d.ParentType, Files: d.Files()})
}

// handleDiscardDraft откатывает все файлы брошенной формы.
func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	d, err := s.Attachments.Draft(chi.URLParam(r, "id"), acc.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.Attachments.Discard(r.Context(), d)
	s.Attachments.Close(d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// draftFor находит сессию из ?draft= и сверяет тип родителя с путем.
func (s *Server) draftFor(r *http.Request, acc *domain.Account) (*attachment.Draft, error) {
	parent := domain.ParentType(chi.URLParam(r, "parentType"))
	if !parent.Valid() {
		return nil, &feedback.ValidationError{Err: errBadParent}
	}
	d, err := s.Attachments.Draft(r.URL.Query().Get("draft"), acc.ID)
	if err != nil {
		return nil, err
	}
	if d.ParentType != parent {
		return nil, &feedback.ValidationError{Err: errBadParent}
	}
	return d, nil
}

// handleUpload принимает сырое тело файла. Обрыв соединения отменяет загрузку.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	d, err := s.draftFor(r, acc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	progress := func(sent, total int64) {
		s.log.Debug("upload progress", "draft", d.ID, "sent", sent, "total", total)
	}
	up, err := s.Attachments.Process(r.Context(), d, contentType, r.Body, r.ContentLength, progress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

// handleRevert удаляет файл из формы: ?draft=...&id=...
func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	d, err := s.draftFor(r, acc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Attachments.Revert(r.Context(), d, r.URL.Query().Get("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
