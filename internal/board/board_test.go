package board

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/blob"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"
	"github.com/UkralStul/feedback-board-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *inmemory.Store
	blobs *blob.Local
	board *Board
	acme  *domain.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inmemory.New()
	blobs, err := blob.NewLocal(t.TempDir(), "/files")
	require.NoError(t, err)
	acme := &domain.Account{ID: "acc-acme", Slug: "acme", BoardTitle: "Acme Feedback", BrandName: "Acme"}
	require.NoError(t, store.SaveAccount(context.Background(), acme))
	return &fixture{store: store, blobs: blobs, board: New(store, blobs), acme: acme}
}

func (f *fixture) submit(t *testing.T, mut func(s *domain.Submit)) *domain.Submit {
	t.Helper()
	s := &domain.Submit{
		AccountID: f.acme.ID,
		Email:     "user@acme.test",
		Type:      domain.TypeFeature,
		Title:     "item",
		Status:    domain.StatusPublic,
		Progress:  domain.ProgressOpen,
		CreatedAt: time.Now().UTC(),
	}
	if mut != nil {
		mut(s)
	}
	require.NoError(t, f.store.CreateSubmit(context.Background(), s))
	return s
}

func TestList_AcmeSortedByVotes(t *testing.T) {
	f := newFixture(t)
	low := f.submit(t, func(s *domain.Submit) { s.Title = "two"; s.Votes = 2 })
	high := f.submit(t, func(s *domain.Submit) { s.Title = "five"; s.Votes = 5; s.CreatedAt = s.CreatedAt.Add(-time.Hour) })

	subs, err := f.board.List(context.Background(), f.acme, ListParams{Sort: storage.SortVotes, Progress: domain.ProgressOpen})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, high.ID, subs[0].ID)
	assert.Equal(t, 5, subs[0].Votes)
	assert.Equal(t, low.ID, subs[1].ID)
	assert.Equal(t, 2, subs[1].Votes)
}

func TestList_NeverReturnsPrivate(t *testing.T) {
	f := newFixture(t)
	f.submit(t, func(s *domain.Submit) { s.Type = domain.TypeBug; s.Status = domain.StatusPrivate; s.Votes = 10 })
	public := f.submit(t, func(s *domain.Submit) { s.Type = domain.TypeBug })

	for _, category := range []string{CategoryAll, CategoryBug} {
		subs, err := f.board.List(context.Background(), f.acme, ListParams{Category: category})
		require.NoError(t, err)
		require.Len(t, subs, 1, "category %q", category)
		assert.Equal(t, public.ID, subs[0].ID)
	}
}

func TestList_CategoryAndProgress(t *testing.T) {
	f := newFixture(t)
	f.submit(t, func(s *domain.Submit) { s.Type = domain.TypeBug })
	f.submit(t, func(s *domain.Submit) { s.Type = domain.TypeImprove })
	f.submit(t, func(s *domain.Submit) { s.Type = domain.TypeFeature })
	f.submit(t, func(s *domain.Submit) { s.Type = domain.TypeFeature; s.Progress = domain.ProgressDone })
	f.submit(t, func(s *domain.Submit) { s.AccountID = "other-tenant" })

	ctx := context.Background()
	improve, err := f.board.List(ctx, f.acme, ListParams{Category: CategoryImprove})
	require.NoError(t, err)
	assert.Len(t, improve, 2)

	all, err := f.board.List(ctx, f.acme, ListParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	done, err := f.board.List(ctx, f.acme, ListParams{Progress: domain.ProgressDone})
	require.NoError(t, err)
	assert.Len(t, done, 1)

	_, err = f.board.List(ctx, f.acme, ListParams{Category: "ideas"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = f.board.List(ctx, f.acme, ListParams{Progress: "someday"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestAdminList_IncludesPrivate(t *testing.T) {
	f := newFixture(t)
	f.submit(t, func(s *domain.Submit) { s.Status = domain.StatusPrivate })
	f.submit(t, nil)

	subs, err := f.board.AdminList(context.Background(), f.acme, AdminListParams{})
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subs, err = f.board.AdminList(context.Background(), f.acme, AdminListParams{Status: domain.StatusPrivate})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestDetail_EmptyState(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t, nil)

	d, err := f.board.Detail(context.Background(), f.acme, sub.ID, true)
	require.NoError(t, err)
	assert.Empty(t, d.Threads)
	assert.Equal(t, EmptyCommentsPublic, d.EmptyText)
	assert.Equal(t, "Suggestion", d.TypeLabel)

	d, err = f.board.Detail(context.Background(), f.acme, sub.ID, false)
	require.NoError(t, err)
	assert.Equal(t, EmptyCommentsAdmin, d.EmptyText)
}

func TestDetail_VisibilityRules(t *testing.T) {
	f := newFixture(t)
	private := f.submit(t, func(s *domain.Submit) { s.Status = domain.StatusPrivate })
	foreign := f.submit(t, func(s *domain.Submit) { s.AccountID = "other" })
	ctx := context.Background()

	_, err := f.board.Detail(ctx, f.acme, private.ID, true)
	assert.ErrorIs(t, err, ErrPrivate)
	_, err = f.board.Detail(ctx, f.acme, private.ID, false)
	assert.NoError(t, err)
	_, err = f.board.Detail(ctx, f.acme, foreign.ID, false)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDetail_ThreadsAndPublishedFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := &domain.Comment{ID: "c-root", AccountID: f.acme.ID, Role: domain.RoleUser, Email: "jane@x.io", Content: "root",
		Status: domain.StatusPublic, IsThread: true, ThreadReplies: []domain.CommentRef{{ID: "c-reply"}},
		Files: []domain.Upload{{ID: "draft", Status: domain.UploadPending}, {ID: "live", Status: domain.UploadPublished}}}
	reply := &domain.Comment{ID: "c-reply", AccountID: f.acme.ID, Role: domain.RoleUser, Email: "bob@x.io", Content: "reply",
		Status: domain.StatusPublic, ThreadParentID: "c-root"}
	admin := &domain.Comment{ID: "c-admin", AccountID: f.acme.ID, Role: domain.RoleAdmin, Email: "admin@acme.test", Content: "thanks", Status: domain.StatusPublic}
	for _, c := range []*domain.Comment{root, reply, admin} {
		require.NoError(t, f.store.CreateComment(ctx, c))
	}
	sub := f.submit(t, func(s *domain.Submit) {
		s.Comments = []domain.CommentRef{{ID: "c-root"}, {ID: "c-admin"}, {ID: "c-deleted"}}
		s.Files = []domain.Upload{{ID: "f1", Status: domain.UploadPending}, {ID: "f2", Status: domain.UploadPublished}}
		s.Voters = []domain.Voter{{Email: "user@acme.test", Impact: domain.ImpactStronglyAgree}, {Email: "x@y", Impact: domain.ImpactDisagree}}
	})

	d, err := f.board.Detail(ctx, f.acme, sub.ID, true)
	require.NoError(t, err)
	require.Len(t, d.Files, 1)
	assert.Equal(t, "f2", d.Files[0].ID)
	assert.Empty(t, d.EmptyText)
	assert.Nil(t, d.Submit.Voters)
	assert.Nil(t, d.Tally)

	require.Len(t, d.Threads, 2)
	assert.Equal(t, "j********", d.Threads[0].Author)
	assert.True(t, d.Threads[0].Repliable)
	require.Len(t, d.Threads[0].Files, 1)
	assert.Equal(t, "live", d.Threads[0].Files[0].ID)
	require.Len(t, d.Threads[0].Replies, 1)
	assert.Equal(t, "b******o", d.Threads[0].Replies[0].Author)
	assert.False(t, d.Threads[0].Replies[0].Repliable)
	assert.Equal(t, "Admin", d.Threads[1].Author)
	assert.False(t, d.Threads[1].Repliable)

	admin2, err := f.board.Detail(ctx, f.acme, sub.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "jane@x.io", admin2.Threads[0].Author)
	require.Len(t, admin2.Tally, 3)
	assert.Equal(t, TallyLine{Label: "Strongly agree", Count: 1, Percent: 50}, admin2.Tally[0])
	assert.Equal(t, TallyLine{Label: "Disagree", Count: 1, Percent: 50}, admin2.Tally[2])
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.board.now = func() time.Time { return now }
	for i := 0; i < 7; i++ {
		f.submit(t, func(s *domain.Submit) { s.CreatedAt = now.Add(-time.Duration(i) * 24 * time.Hour) })
	}
	f.submit(t, func(s *domain.Submit) { s.CreatedAt = now.Add(-30 * 24 * time.Hour) })

	d, err := f.board.Dashboard(context.Background(), f.acme)
	require.NoError(t, err)
	assert.Len(t, d.Latest, 5)
	assert.Equal(t, 7, d.LastWeek)
	assert.Equal(t, "Acme Feedback", d.BoardTitle)
}

func TestLogoURL_FallsBackToDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.Equal(t, "/files/brand/logo.png", f.board.LogoURL(ctx, f.acme))

	_, err := f.blobs.Put(ctx, blob.BrandLogoPath(f.acme.ID), strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/files/brand/acc-acme.png", f.board.LogoURL(ctx, f.acme))
}
