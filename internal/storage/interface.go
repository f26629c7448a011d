package storage

import (
	"context"
	"errors"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
)

var (
	// ErrNotFound - документ не найден.
	ErrNotFound = errors.New("document not found")
	// ErrConflict - документ изменился между чтением и записью.
	ErrConflict = errors.New("document was modified concurrently")
)

// MaxMutateAttempts - сколько раз MutateSubmit/MutateComment повторяют
// чтение-изменение-запись при конфликте ревизий.
const MaxMutateAttempts = 5

// SortKey - поле сортировки списка элементов, всегда по убыванию.
type SortKey string

const (
	SortCreatedAt SortKey = "created_at"
	SortVotes     SortKey = "votes"
)

// SubmitQuery - составной запрос к коллекции submits.
// Пустые поля не участвуют в фильтре.
type SubmitQuery struct {
	AccountID    string
	Status       domain.Status
	Progress     domain.Progress
	Types        []domain.SubmitType
	CreatedSince time.Time
	Sort         SortKey
	Limit        int
}

// SubmitMutation изменяет свежую копию документа перед записью.
type SubmitMutation func(s *domain.Submit) error

// CommentMutation - то же для комментариев.
type CommentMutation func(c *domain.Comment) error

// Storage определяет контракт документного хранилища.
// Все записи - полная замена документа.
type Storage interface {
	// Accounts
	GetAccountBySlug(ctx context.Context, slug string) (*domain.Account, error)
	GetAccountByID(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByAdminEmail(ctx context.Context, email string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	SaveAccount(ctx context.Context, account *domain.Account) error

	// Submits
	CreateSubmit(ctx context.Context, submit *domain.Submit) error
	GetSubmit(ctx context.Context, id string) (*domain.Submit, error)
	ListSubmits(ctx context.Context, q SubmitQuery) ([]*domain.Submit, error)
	SaveSubmit(ctx context.Context, submit *domain.Submit) error
	// MutateSubmit читает документ, применяет fn и записывает его, только если
	// ревизия не изменилась. При конфликте повторяет до MaxMutateAttempts раз.
	MutateSubmit(ctx context.Context, id string, fn SubmitMutation) (*domain.Submit, error)
	DeleteSubmit(ctx context.Context, id string) error

	// Comments
	CreateComment(ctx context.Context, comment *domain.Comment) error
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
	// Метод для Dataloader'а
	GetCommentsByIDs(ctx context.Context, ids []string) (map[string]*domain.Comment, error)
	MutateComment(ctx context.Context, id string, fn CommentMutation) (*domain.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// Votes
	CreateVote(ctx context.Context, vote *domain.Voter) error
	ListVotesBySubmit(ctx context.Context, submitID string) ([]*domain.Voter, error)
	DeleteVote(ctx context.Context, id string) error

	// Profiles
	GetProfileByEmail(ctx context.Context, accountID, email string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	ListProfiles(ctx context.Context, accountID string) ([]*domain.Profile, error)

	// Uploads
	SaveUpload(ctx context.Context, upload *domain.Upload) error
	GetUpload(ctx context.Context, id string) (*domain.Upload, error)
	DeleteUpload(ctx context.Context, id string) error
}

// Matches проверяет документ на соответствие фильтрам запроса.
// Используется хранилищами без нативных составных запросов.
func (q SubmitQuery) Matches(s *domain.Submit) bool {
	if q.AccountID != "" && s.AccountID != q.AccountID {
		return false
	}
	if q.Status != "" && s.Status != q.Status {
		return false
	}
	if q.Progress != "" && s.Progress != q.Progress {
		return false
	}
	if !q.CreatedSince.IsZero() && s.CreatedAt.Before(q.CreatedSince) {
		return false
	}
	if len(q.Types) > 0 {
		for _, t := range q.Types {
			if s.Type == t {
				return true
			}
		}
		return false
	}
	return true
}
