// Package board - запросы публичной доски и админки: списки, детали, дашборд.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/blob"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/storage"
)

var (
	ErrPrivate       = errors.New("feedback item is private")
	ErrInvalidFilter = errors.New("invalid board filter")
)

// Категории фильтра доски.
const (
	CategoryAll     = ""
	CategoryBug     = "bug"
	CategoryImprove = "improve"
)

// ListParams - фильтры публичной доски.
type ListParams struct {
	Progress domain.Progress
	Category string
	Sort     storage.SortKey
}

// AdminListParams - фильтры списка в админке. Пустые поля не фильтруют.
type AdminListParams struct {
	Status   domain.Status
	Progress domain.Progress
	Sort     storage.SortKey
}

type Board struct {
	store storage.Storage
	blobs blob.Store
	now   func() time.Time
	log   *slog.Logger
}

func New(store storage.Storage, blobs blob.Store) *Board {
	return &Board{
		store: store,
		blobs: blobs,
		now:   time.Now,
		log:   logging.Module("board"),
	}
}

// categoryTypes переводит категорию доски в типы элементов.
func categoryTypes(category string) ([]domain.SubmitType, error) {
	switch category {
	case CategoryAll:
		return nil, nil
	case CategoryBug:
		return []domain.SubmitType{domain.TypeBug}, nil
	case CategoryImprove, string(domain.TypeFeature):
		return []domain.SubmitType{domain.TypeFeature, domain.TypeImprove}, nil
	}
	return nil, fmt.Errorf("%w: category %q", ErrInvalidFilter, category)
}

func normalizeSort(s storage.SortKey, def storage.SortKey) (storage.SortKey, error) {
	switch s {
	case "":
		return def, nil
	case storage.SortVotes, storage.SortCreatedAt:
		return s, nil
	}
	return "", fmt.Errorf("%w: sort %q", ErrInvalidFilter, s)
}

// List возвращает публичные элементы тенанта с одной стадией прогресса.
func (b *Board) List(ctx context.Context, acc *domain.Account, p ListParams) ([]*domain.Submit, error) {
	if p.Progress == "" {
		p.Progress = domain.ProgressOpen
	}
	if !p.Progress.Valid() {
		return nil, fmt.Errorf("%w: progress %q", ErrInvalidFilter, p.Progress)
	}
	types, err := categoryTypes(p.Category)
	if err != nil {
		return nil, err
	}
	sort, err := normalizeSort(p.Sort, storage.SortVotes)
	if err != nil {
		return nil, err
	}
	subs, err := b.store.ListSubmits(ctx, storage.SubmitQuery{
		AccountID: acc.ID,
		Status:    domain.StatusPublic,
		Progress:  p.Progress,
		Types:     types,
		Sort:      sort,
	})
	if err != nil {
		b.log.Error("failed to list board", "tenant", acc.Slug, "op", "list", "error", err)
		return nil, err
	}
	return subs, nil
}

// AdminList - список элементов тенанта без фильтра видимости по умолчанию.
func (b *Board) AdminList(ctx context.Context, acc *domain.Account, p AdminListParams) ([]*domain.Submit, error) {
	if p.Status != "" && !p.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidFilter, p.Status)
	}
	if p.Progress != "" && !p.Progress.Valid() {
		return nil, fmt.Errorf("%w: progress %q", ErrInvalidFilter, p.Progress)
	}
	sort, err := normalizeSort(p.Sort, storage.SortCreatedAt)
	if err != nil {
		return nil, err
	}
	return b.store.ListSubmits(ctx, storage.SubmitQuery{
		AccountID: acc.ID,
		Status:    p.Status,
		Progress:  p.Progress,
		Sort:      sort,
	})
}

// Dashboard - последние элементы и число новых за неделю.
type Dashboard struct {
	Latest     []*domain.Submit `json:"latest"`
	LastWeek   int              `json:"last_week"`
	BoardTitle string           `json:"board_title"`
}

const dashboardLatest = 5

func (b *Board) Dashboard(ctx context.Context, acc *domain.Account) (*Dashboard, error) {
	latest, err := b.store.ListSubmits(ctx, storage.SubmitQuery{
		AccountID: acc.ID,
		Sort:      storage.SortCreatedAt,
		Limit:     dashboardLatest,
	})
	if err != nil {
		return nil, err
	}
	recent, err := b.store.ListSubmits(ctx, storage.SubmitQuery{
		AccountID:    acc.ID,
		CreatedSince: b.now().Add(-7 * 24 * time.Hour),
		Sort:         storage.SortCreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &Dashboard{Latest: latest, LastWeek: len(recent), BoardTitle: acc.BoardTitle}, nil
}

// LogoURL - логотип тенанта или общий логотип, если свой не загружен.
func (b *Board) LogoURL(ctx context.Context, acc *domain.Account) string {
	p := blob.BrandLogoPath(acc.ID)
	ok, err := b.blobs.Exists(ctx, p)
	if err != nil {
		b.log.Error("failed to check brand logo", "tenant", acc.Slug, "op", "logo", "error", err)
	}
	if !ok {
		p = blob.DefaultLogoPath
	}
	return b.blobs.URL(p)
}
