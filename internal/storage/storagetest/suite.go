// Package storagetest содержит общий набор проверок для реализаций storage.Storage.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"
)

// Factory создаёт пустое хранилище для одного теста.
type Factory func(t *testing.T) storage.Storage

// Run запускает все проверки контракта против хранилища из factory.
func Run(t *testing.T, factory Factory) {
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, factory(t)) })
	t.Run("SubmitQueries", func(t *testing.T) { testSubmitQueries(t, factory(t)) })
	t.Run("MutateSubmit", func(t *testing.T) { testMutateSubmit(t, factory(t)) })
	t.Run("Comments", func(t *testing.T) { testComments(t, factory(t)) })
	t.Run("VotesAndProfiles", func(t *testing.T) { testVotesAndProfiles(t, factory(t)) })
	t.Run("Uploads", func(t *testing.T) { testUploads(t, factory(t)) })
}

// NewSubmit - минимальный публичный элемент для тестов.
func NewSubmit(accountID, title string, votes int, created time.Time) *domain.Submit {
	return &domain.Submit{
		ID:        domain.NewID(),
		AccountID: accountID,
		Type:      domain.TypeFeature,
		Title:     title,
		Status:    domain.StatusPublic,
		Progress:  domain.ProgressOpen,
		Votes:     votes,
		CreatedAt: created,
	}
}

func testAccounts(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	acc := &domain.Account{ID: "acc-1", Slug: "acme", AdminEmail: "admin@acme.test", BoardTitle: "Acme Feedback"}
	require.NoError(t, s.SaveAccount(ctx, acc))

	got, err := s.GetAccountBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Feedback", got.BoardTitle)

	got, err = s.GetAccountByAdminEmail(ctx, "admin@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)

	_, err = s.GetAccountBySlug(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	acc.BoardTitle = "Renamed"
	require.NoError(t, s.SaveAccount(ctx, acc))
	got, err = s.GetAccountByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.BoardTitle)

	all, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testSubmitQueries(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	now := time.Now().UTC()

	low := NewSubmit("acc-1", "low", 2, now.Add(-time.Hour))
	high := NewSubmit("acc-1", "high", 5, now.Add(-2*time.Hour))
	private := NewSubmit("acc-1", "private", 9, now)
	private.Status = domain.StatusPrivate
	bug := NewSubmit("acc-1", "bug", 1, now.Add(-3*time.Hour))
	bug.Type = domain.TypeBug
	other := NewSubmit("acc-2", "other tenant", 7, now)
	for _, sub := range []*domain.Submit{low, high, private, bug, other} {
		require.NoError(t, s.CreateSubmit(ctx, sub))
	}

	byVotes, err := s.ListSubmits(ctx, storage.SubmitQuery{
		AccountID: "acc-1",
		Status:    domain.StatusPublic,
		Progress:  domain.ProgressOpen,
		Types:     []domain.SubmitType{domain.TypeFeature, domain.TypeImprove},
		Sort:      storage.SortVotes,
	})
	require.NoError(t, err)
	require.Len(t, byVotes, 2)
	assert.Equal(t, "high", byVotes[0].Title)
	assert.Equal(t, "low", byVotes[1].Title)

	byDate, err := s.ListSubmits(ctx, storage.SubmitQuery{AccountID: "acc-1", Status: domain.StatusPublic, Sort: storage.SortCreatedAt})
	require.NoError(t, err)
	require.Len(t, byDate, 3)
	assert.Equal(t, []string{"low", "high", "bug"}, []string{byDate[0].Title, byDate[1].Title, byDate[2].Title})

	recent, err := s.ListSubmits(ctx, storage.SubmitQuery{AccountID: "acc-1", CreatedSince: now.Add(-90 * time.Minute), Sort: storage.SortCreatedAt})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := s.ListSubmits(ctx, storage.SubmitQuery{AccountID: "acc-1", Sort: storage.SortCreatedAt, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "private", limited[0].Title)

	require.NoError(t, s.DeleteSubmit(ctx, low.ID))
	_, err = s.GetSubmit(ctx, low.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteSubmit(ctx, low.ID), storage.ErrNotFound)
}

func testMutateSubmit(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	sub := NewSubmit("acc-1", "mutable", 1, time.Now().UTC())
	sub.Voters = []domain.Voter{{ID: "v1", Email: "a@x.test", Impact: domain.ImpactStronglyAgree}}
	require.NoError(t, s.CreateSubmit(ctx, sub))

	updated, err := s.MutateSubmit(ctx, sub.ID, func(cur *domain.Submit) error {
		cur.Voters = append(cur.Voters, domain.Voter{ID: "v2", Email: "b@x.test", Impact: domain.ImpactAgree})
		cur.Votes++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Votes)

	got, err := s.GetSubmit(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, got.Voters, 2)
	assert.Equal(t, domain.ImpactAgree, got.Voters[1].Impact)
	assert.Greater(t, got.Revision, sub.Revision)

	_, err = s.MutateSubmit(ctx, "missing", func(*domain.Submit) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testComments(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	root := &domain.Comment{ID: domain.NewID(), AccountID: "acc-1", SubmitID: "s1", Role: domain.RoleUser, Content: "root", Status: domain.StatusPublic}
	reply := &domain.Comment{ID: domain.NewID(), AccountID: "acc-1", SubmitID: "s1", Role: domain.RoleUser, Content: "reply", ThreadParentID: root.ID, Status: domain.StatusPublic}
	require.NoError(t, s.CreateComment(ctx, root))
	require.NoError(t, s.CreateComment(ctx, reply))

	_, err := s.MutateComment(ctx, root.ID, func(c *domain.Comment) error {
		c.IsThread = true
		c.ThreadReplies = append(c.ThreadReplies, domain.CommentRef{ID: reply.ID})
		return nil
	})
	require.NoError(t, err)

	found, err := s.GetCommentsByIDs(ctx, []string{root.ID, reply.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[root.ID].IsThread)
	assert.Equal(t, reply.ID, found[root.ID].ThreadReplies[0].ID)
	assert.Equal(t, root.ID, found[reply.ID].ThreadParentID)

	require.NoError(t, s.DeleteComment(ctx, reply.ID))
	assert.ErrorIs(t, s.DeleteComment(ctx, reply.ID), storage.ErrNotFound)
}

func testVotesAndProfiles(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	require.NoError(t, s.CreateVote(ctx, &domain.Voter{ID: "v1", AccountID: "acc-1", SubmitID: "s1", Email: "a@x.test", Impact: domain.ImpactDisagree}))
	require.NoError(t, s.CreateVote(ctx, &domain.Voter{ID: "v2", AccountID: "acc-1", SubmitID: "s2", Email: "a@x.test", Impact: domain.ImpactAgree}))

	votes, err := s.ListVotesBySubmit(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, domain.ImpactDisagree, votes[0].Impact)
	require.NoError(t, s.DeleteVote(ctx, "v1"))

	require.NoError(t, s.CreateProfile(ctx, &domain.Profile{ID: "p1", AccountID: "acc-1", Email: "a@x.test"}))
	require.NoError(t, s.CreateProfile(ctx, &domain.Profile{ID: "p2", AccountID: "acc-2", Email: "a@x.test"}))

	p, err := s.GetProfileByEmail(ctx, "acc-1", "a@x.test")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	_, err = s.GetProfileByEmail(ctx, "acc-1", "b@x.test")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	profiles, err := s.ListProfiles(ctx, "acc-2")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "p2", profiles[0].ID)
}

func testUploads(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	up := &domain.Upload{ID: "u1", AccountID: "acc-1", Type: "image", ParentType: domain.ParentTopic, Status: domain.UploadPending}
	require.NoError(t, s.SaveUpload(ctx, up))

	up.Status = domain.UploadPublished
	up.ParentID = "s1"
	require.NoError(t, s.SaveUpload(ctx, up))

	got, err := s.GetUpload(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.UploadPublished, got.Status)
	assert.Equal(t, "s1", got.ParentID)

	require.NoError(t, s.DeleteUpload(ctx, "u1"))
	assert.ErrorIs(t, s.DeleteUpload(ctx, "u1"), storage.ErrNotFound)
}
