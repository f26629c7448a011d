package dataloader

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"
	"github.com/UkralStul/feedback-board-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore считает батч-запросы к хранилищу
type countingStore struct {
	storage.Storage
	batches atomic.Int32
}

func (s *countingStore) GetCommentsByIDs(ctx context.Context, ids []string) (map[string]*domain.Comment, error) {
	s.batches.Add(1)
	return s.Storage.GetCommentsByIDs(ctx, ids)
}

func TestLoadComments_OneBatchKeepsOrder(t *testing.T) {
	ctx := context.Background()
	mem := inmemory.New()
	ids := []string{"c3", "c1", "c2"}
	for _, id := range ids {
		require.NoError(t, mem.CreateComment(ctx, &domain.Comment{ID: id, Content: "text " + id}))
	}
	store := &countingStore{Storage: mem}

	ctx = WithLoaders(ctx, NewLoaders(store))
	refs := []domain.CommentRef{{ID: "c3"}, {ID: "gone"}, {ID: "c1"}, {ID: "c2"}}
	comments, err := LoadComments(ctx, store, refs)
	require.NoError(t, err)

	require.Len(t, comments, 3)
	assert.Equal(t, "c3", comments[0].ID)
	assert.Equal(t, "c1", comments[1].ID)
	assert.Equal(t, "c2", comments[2].ID)
	assert.EqualValues(t, 1, store.batches.Load())
}

func TestLoadComments_Empty(t *testing.T) {
	comments, err := LoadComments(context.Background(), inmemory.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
