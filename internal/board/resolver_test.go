package board

import (
	"context"
	"testing"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Slug(t *testing.T) {
	r := NewResolver(inmemory.New(), "ssimple.co", "demo", 0)
	cases := map[string]string{
		"acme.ssimple.co":      "acme",
		"ACME.ssimple.co:443":  "acme",
		"beta.acme.ssimple.co": "beta",
		"localhost:8080":       "demo",
		"ssimple.co":           "demo",
		"example.com":          "demo",
	}
	for host, want := range cases {
		assert.Equal(t, want, r.Slug(host), host)
	}
}

func TestResolver_Resolve(t *testing.T) {
	store := inmemory.New()
	ctx := context.Background()
	require.NoError(t, store.SaveAccount(ctx, &domain.Account{ID: "acc-1", Slug: "acme", BoardTitle: "Acme Feedback"}))
	r := NewResolver(store, "ssimple.co", "", 0)

	acc, err := r.Resolve(ctx, "acme.ssimple.co")
	require.NoError(t, err)
	assert.Equal(t, "Acme Feedback", acc.BoardTitle)

	_, err = r.Resolve(ctx, "ghost.ssimple.co")
	assert.ErrorIs(t, err, ErrUnconfigured)
	_, err = r.Resolve(ctx, "localhost")
	assert.ErrorIs(t, err, ErrUnconfigured)

	// закешированное значение живет до Invalidate
	require.NoError(t, store.SaveAccount(ctx, &domain.Account{ID: "acc-1", Slug: "acme", BoardTitle: "Renamed"}))
	acc, err = r.Resolve(ctx, "acme.ssimple.co")
	require.NoError(t, err)
	assert.Equal(t, "Acme Feedback", acc.BoardTitle)

	r.Invalidate("acme")
	acc, err = r.Resolve(ctx, "acme.ssimple.co")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", acc.BoardTitle)
}
