// Package auth - вход администратора тенанта и сессии на cookie.
package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionName   = "feedback_admin"
	accountKey    = "account_id"
	sessionMaxAge = 86400 * 7
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type ctxKey struct{}

// Auth проверяет пароль админа и хранит ID его аккаунта в подписанной cookie.
type Auth struct {
	store    storage.Storage
	sessions *sessions.CookieStore
	log      *slog.Logger
}

// sessionKey растягивает секрет до 32 байт для HMAC и AES-256.
func sessionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

func New(store storage.Storage, secret string, secure bool) *Auth {
	cs := sessions.NewCookieStore(sessionKey(secret), sessionKey(secret+"encryption"))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Auth{store: store, sessions: cs, log: logging.Module("auth")}
}

// HashPassword возвращает bcrypt-хэш для Account.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login проверяет учетные данные и открывает сессию.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request, email, password string) (*domain.Account, error) {
	acc, err := a.store.GetAccountByAdminEmail(r.Context(), strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if acc.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		a.log.Warn("failed admin login", "tenant", acc.Slug)
		return nil, ErrInvalidCredentials
	}

	sess, _ := a.sessions.Get(r, sessionName)
	sess.Values[accountKey] = acc.ID
	if err := sess.Save(r, w); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	a.log.Info("admin logged in", "tenant", acc.Slug)
	return acc, nil
}

// Logout закрывает сессию.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := a.sessions.Get(r, sessionName)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Account возвращает аккаунт текущей сессии.
func (a *Auth) Account(r *http.Request) (*domain.Account, error) {
	sess, err := a.sessions.Get(r, sessionName)
	if err != nil {
		// Подпись не сошлась: считаем, что сессии нет
		return nil, storage.ErrNotFound
	}
	id, _ := sess.Values[accountKey].(string)
	if id == "" {
		return nil, storage.ErrNotFound
	}
	return a.store.GetAccountByID(r.Context(), id)
}

// RequireAdmin пускает дальше только с действующей сессией. Для /api/
// отвечает 401, для страниц - редиректом на /login.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, err := a.Account(r)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				a.log.Error("failed to load session account", "error", err)
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), acc)))
	})
}

func WithAdmin(ctx context.Context, acc *domain.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, acc)
}

// Admin - аккаунт администратора из контекста запроса или nil.
func Admin(ctx context.Context) *domain.Account {
	acc, _ := ctx.Value(ctxKey{}).(*domain.Account)
	return acc
}
