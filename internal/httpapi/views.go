package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/UkralStul/feedback-board-service/internal/auth"
	"github.com/UkralStul/feedback-board-service/internal/board"

	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

type views struct {
	tmpl *template.Template
}

func loadViews() (*views, error) {
	tmpl, err := template.New("views").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("httpapi: parse templates: %w", err)
	}
	return &views{tmpl: tmpl}, nil
}

// render рендерит в буфер, чтобы ошибка шаблона не оставила полуответ.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.views.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type boardPage struct {
	*boardResponse
	Email string
	// Topic - карточка, открытая через ?topic=
	Topic *board.Detail
}

// handleBoardPage - публичная доска. ?topic={id} сразу открывает карточку.
func (s *Server) handleBoardPage(w http.ResponseWriter, r *http.Request) {
	resp, err := s.loadBoard(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page := boardPage{boardResponse: resp, Email: rememberedEmail(r)}
	if id := r.URL.Query().Get("topic"); id != "" && account(r) != nil {
		d, err := s.Board.Detail(r.Context(), account(r), id, true)
		switch {
		case err == nil:
			page.Topic = d
		case statusOf(err) == http.StatusNotFound:
			// Битая ссылка открывает просто доску
		default:
			s.writeError(w, r, err)
			return
		}
	}
	s.render(w, r, http.StatusOK, "board.html", page)
}

func (s *Server) handleDetailPage(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	d, err := s.Board.Detail(r.Context(), acc, chi.URLParam(r, "id"), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "detail.html", map[string]any{"Detail": d, "Email": rememberedEmail(r)})
}

// === Login ===

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", map[string]any{"Error": "", "Email": ""})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email, password := r.FormValue("email"), r.FormValue("password")
	_, err := s.Auth.Login(w, r, email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.render(w, r, http.StatusUnauthorized, "login.html", map[string]any{"Error": err.Error(), "Email": email})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Auth.Logout(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
