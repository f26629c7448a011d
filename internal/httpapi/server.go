// Package httpapi - HTTP-интерфейс доски: публичные страницы и API,
// загрузка файлов, живые комментарии и админка.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/attachment"
	"github.com/UkralStul/feedback-board-service/internal/auth"
	"github.com/UkralStul/feedback-board-service/internal/board"
	"github.com/UkralStul/feedback-board-service/internal/dataloader"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/feedback"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/mailer"
	"github.com/UkralStul/feedback-board-service/internal/metrics"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// Deps - зависимости сервера.
type Deps struct {
	Store       storage.Storage
	Resolver    *board.Resolver
	Board       *board.Board
	Feedback    *feedback.Service
	Attachments *attachment.Manager
	Mailer      *mailer.Mailer
	Auth        *auth.Auth
	Metrics     *metrics.Metrics
	// Files раздает локальное хранилище блобов, nil - не раздавать
	Files http.Handler
	// SecureCookie включает Secure для cookie userEmail
	SecureCookie bool
}

type Server struct {
	Deps
	views    *views
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func New(d Deps) (*Server, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	return &Server{
		Deps:  d,
		views: v,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logging.Module("http"),
	}, nil
}

// Routes собирает роутер.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	if s.Metrics != nil {
		router.Handle("/metrics", s.Metrics.Handler())
	}
	if s.Files != nil {
		router.Handle("/files/*", http.StripPrefix("/files/", s.Files))
	}

	router.Get("/login", s.handleLoginPage)
	router.Post("/login", s.handleLogin)
	router.Post("/logout", s.handleLogout)

	// Оба маршрута отправки принимают только POST
	router.HandleFunc("/api/send-demo", s.handleSendDemo)
	router.With(s.Auth.RequireAdmin).HandleFunc("/api/send", s.handleSend)

	// Публичная доска тенанта
	router.Group(func(r chi.Router) {
		r.Use(s.tenant)
		r.Use(dataloader.Middleware(s.Store))

		r.Get("/", s.handleBoardPage)
		r.Get("/submits/{id}", s.handleDetailPage)

		r.Get("/api/board", s.handleBoard)
		r.Get("/api/me", s.handleMe)
		r.Get("/api/submits", s.handleList)
		r.Get("/api/submits/{id}", s.handleDetail)
		r.Get("/api/submits/{id}/live", s.handleLive)
		r.Post("/api/submits", s.handleSubmit)
		r.Post("/api/widget/submits", s.handleWidgetSubmit)
		r.Post("/api/submits/{id}/votes", s.handleVote)
		r.Post("/api/submits/{id}/comments", s.handleComment)
		r.Post("/api/comments/{id}/replies", s.handleReply)

		r.Post("/api/drafts", s.handleOpenDraft)
		r.Delete("/api/drafts/{id}", s.handleDiscardDraft)
		r.Post("/api/uploads/{parentType}", s.handleUpload)
		r.Delete("/api/uploads/{parentType}", s.handleRevert)
	})

	// Админка: тенант берется из сессии
	router.Group(func(r chi.Router) {
		r.Use(s.Auth.RequireAdmin)
		r.Use(s.adminTenant)
		r.Use(dataloader.Middleware(s.Store))

		r.Get("/admin", s.handleDashboard)
		r.Get("/api/admin/submits", s.handleAdminList)
		r.Get("/api/admin/submits/{id}", s.handleAdminDetail)
		r.Patch("/api/admin/submits/{id}/status", s.handleSetStatus)
		r.Patch("/api/admin/submits/{id}/progress", s.handleSetProgress)
		r.Delete("/api/admin/submits/{id}", s.handleDelete)
		r.Post("/api/admin/submits/{id}/replies", s.handleAdminReply)
		r.Post("/api/admin/submits/{id}/survey-test", s.handleSurveyTest)
		r.Get("/api/admin/settings", s.handleGetSettings)
		r.Put("/api/admin/settings", s.handleUpdateSettings)
	})

	return router
}

// === Tenant ===

type tenantKey struct{}

// tenant определяет аккаунт по хосту. Неизвестный хост - пустая доска, не ошибка.
func (s *Server) tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, err := s.Resolver.Resolve(r.Context(), r.Host)
		if err != nil && !errors.Is(err, board.ErrUnconfigured) {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, acc)))
	})
}

// adminTenant не дает админу одного тенанта работать на доске другого.
func (s *Server) adminTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin := auth.Admin(r.Context())
		host, err := s.Resolver.Resolve(r.Context(), r.Host)
		if err == nil && host.ID != admin.ID {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "signed in to a different board"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, admin)))
	})
}

// account - тенант запроса или nil для ненастроенной доски.
func account(r *http.Request) *domain.Account {
	acc, _ := r.Context().Value(tenantKey{}).(*domain.Account)
	return acc
}

// requireAccount пишет 404, если доска не настроена.
func (s *Server) requireAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	acc := account(r)
	if acc == nil {
		s.writeError(w, r, board.ErrUnconfigured)
		return nil, false
	}
	return acc, true
}

// === User Email Cookie ===

const (
	emailCookie    = "userEmail"
	emailCookieAge = 365 * 24 * time.Hour
)

// rememberEmail запоминает email автора, чтобы подставлять его в формы.
func (s *Server) rememberEmail(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     emailCookie,
		Value:    email,
		Path:     "/",
		MaxAge:   int(emailCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func rememberedEmail(r *http.Request) string {
	c, err := r.Cookie(emailCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
