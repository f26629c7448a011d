package board

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/patrickmn/go-cache"
)

// ErrUnconfigured - для хоста нет аккаунта, доска пустая.
var ErrUnconfigured = errors.New("board is not configured for this host")

// Resolver сопоставляет хост запроса с аккаунтом по поддомену.
type Resolver struct {
	store         storage.Storage
	baseDomain    string
	defaultTenant string
	cache         *cache.Cache
}

func NewResolver(store storage.Storage, baseDomain, defaultTenant string, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		store:         store,
		baseDomain:    strings.ToLower(strings.TrimPrefix(baseDomain, ".")),
		defaultTenant: defaultTenant,
		cache:         cache.New(ttl, 2*ttl),
	}
}

// Slug извлекает поддомен: acme.ssimple.co -> acme. Для localhost и
// посторонних хостов возвращается тенант по умолчанию.
func (r *Resolver) Slug(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if r.baseDomain != "" {
		if sub, ok := strings.CutSuffix(host, "."+r.baseDomain); ok && sub != "" {
			// a.b.ssimple.co -> a
			first, _, _ := strings.Cut(sub, ".")
			return first
		}
	}
	return r.defaultTenant
}

// Resolve находит аккаунт для хоста.
func (r *Resolver) Resolve(ctx context.Context, host string) (*domain.Account, error) {
	slug := r.Slug(host)
	if slug == "" {
		return nil, ErrUnconfigured
	}
	if v, ok := r.cache.Get(slug); ok {
		return v.(*domain.Account), nil
	}
	acc, err := r.store.GetAccountBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnconfigured
		}
		return nil, fmt.Errorf("resolve tenant %q: %w", slug, err)
	}
	r.cache.SetDefault(slug, acc)
	return acc, nil
}

// Invalidate сбрасывает закешированный аккаунт после изменения настроек.
func (r *Resolver) Invalidate(slug string) {
	r.cache.Delete(slug)
}
