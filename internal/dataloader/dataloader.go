package dataloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	CommentByID *dataloader.Loader
}

// NewLoaders создает лоадеры на один запрос.
func NewLoaders(store storage.Storage) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		// Вызываем метод хранилища, который делает ОДИН запрос к БД
		commentsMap, err := store.GetCommentsByIDs(ctx, ids)
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			c, ok := commentsMap[id]
			if !ok {
				results[i] = &dataloader.Result{Error: fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)}
				continue
			}
			results[i] = &dataloader.Result{Data: c}
		}
		return results
	}

	return &Loaders{
		CommentByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond*1)),
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithLoaders кладет лоадеры в контекст.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, key, l)
}

// For извлекает лоадеры из контекста. Вне HTTP-запроса (джобы, тесты)
// возвращает nil.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// LoadComments загружает комментарии по ссылкам одним батчем.
// Отсутствующие документы пропускаются, порядок ссылок сохраняется.
func LoadComments(ctx context.Context, store storage.Storage, refs []domain.CommentRef) ([]*domain.Comment, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}

	loaders := For(ctx)
	if loaders == nil {
		loaders = NewLoaders(store)
	}

	thunk := loaders.CommentByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))
	data, errs := thunk()

	out := make([]*domain.Comment, 0, len(ids))
	for i, d := range data {
		if len(errs) > i && errs[i] != nil {
			if errors.Is(errs[i], storage.ErrNotFound) {
				continue
			}
			return nil, errs[i]
		}
		if c, ok := d.(*domain.Comment); ok && c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}
