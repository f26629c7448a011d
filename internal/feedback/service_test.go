package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/attachment"
	"github.com/UkralStul/feedback-board-service/internal/blob"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/mailer"
	"github.com/UkralStul/feedback-board-service/internal/storage"
	"github.com/UkralStul/feedback-board-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outbox - потокобезопасный Sender для фоновых писем
type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(ctx context.Context, msg mailer.Message) (mailer.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return mailer.Result{ID: fmt.Sprintf("msg-%d", len(o.sent))}, nil
}

func (o *outbox) subjects() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.sent))
	for _, m := range o.sent {
		out = append(out, m.Subject)
	}
	return out
}

// failingStore отказывает в удалении выбранных комментариев
type failingStore struct {
	storage.Storage
	failComments map[string]bool
}

func (s *failingStore) DeleteComment(ctx context.Context, id string) error {
	if s.failComments[id] {
		return errors.New("backend unavailable")
	}
	return s.Storage.DeleteComment(ctx, id)
}

type fixture struct {
	svc   *Service
	store *failingStore
	blobs *blob.Local
	atts  *attachment.Manager
	mail  *outbox
	acc   *domain.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &failingStore{Storage: inmemory.New(), failComments: map[string]bool{}}
	blobs, err := blob.NewLocal(t.TempDir(), "/files")
	require.NoError(t, err)
	atts := attachment.NewManager(store, blobs, attachment.Options{DraftTTL: time.Hour})
	box := &outbox{}
	m, err := mailer.New(box, mailer.Options{
		From:  "ssimple notification <noreply@ssimple.co>",
		Links: mailer.Links{Scheme: "https", BaseDomain: "ssimple.co"},
	})
	require.NoError(t, err)

	acc := &domain.Account{ID: "acc-1", Slug: "acme", BrandName: "Acme", AdminEmail: "admin@acme.test"}
	require.NoError(t, store.SaveAccount(context.Background(), acc))

	return &fixture{
		svc:   New(store, atts, m, NewHub(), nil),
		store: store,
		blobs: blobs,
		atts:  atts,
		mail:  box,
		acc:   acc,
	}
}

func (f *fixture) submit(t *testing.T) *domain.Submit {
	t.Helper()
	sub, err := f.svc.Submit(context.Background(), f.acc, NewSubmission{
		Email: "jane@example.com",
		Type:  domain.TypeFeature,
		Title: "Dark mode",
	})
	require.NoError(t, err)
	return sub
}

// attachFile загружает один файл в новую форму и возвращает её ID
func (f *fixture) attachFile(t *testing.T, parent domain.ParentType) string {
	t.Helper()
	d := f.atts.OpenDraft(f.acc.ID, parent)
	_, err := f.atts.Process(context.Background(), d, "image/png", strings.NewReader("png"), 3, nil)
	require.NoError(t, err)
	return d.ID
}

// === Intake ===

func TestSubmit_NewPageDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := f.submit(t)
	f.svc.Wait()

	assert.Equal(t, domain.StatusPublic, sub.Status)
	assert.Equal(t, domain.ProgressOpen, sub.Progress)
	assert.Equal(t, 1, sub.Votes)
	require.Len(t, sub.Voters, 1)
	assert.Equal(t, domain.ImpactStronglyAgree, sub.Voters[0].Impact)
	assert.Equal(t, "jane@example.com", sub.Voters[0].Email)
	assert.Empty(t, sub.DeviceInfo)

	votes, err := f.store.ListVotesBySubmit(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	_, err = f.store.GetProfileByEmail(ctx, f.acc.ID, "jane@example.com")
	assert.NoError(t, err)

	assert.ElementsMatch(t, []string{"New feedback received", "Thank you for sharing your feedback"}, f.mail.subjects())
}

func TestSubmit_WidgetBugIsPrivateWithDiagnostics(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.Submit(context.Background(), f.acc, NewSubmission{
		Email:      "bob@example.com",
		Type:       domain.TypeBug,
		Title:      "Checkout crashes",
		Screenshot: "data:image/png;base64,aGk=",
		ConsoleLog: []domain.ConsoleLog{{Type: "error", Value: "TypeError"}},
		DeviceInfo: "Firefox 120",
		Widget:     true,
	})
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, domain.StatusPrivate, sub.Status)
	require.Len(t, sub.BugFiles, 1)
	assert.Equal(t, domain.UploadPublished, sub.BugFiles[0].Status)
	assert.Equal(t, sub.ID, sub.BugFiles[0].ParentID)
	assert.Equal(t, "Firefox 120", sub.DeviceInfo)
	assert.Len(t, sub.ConsoleLog, 1)

	assert.Equal(t, []string{"New Feedback Submission Received"}, f.mail.subjects())
}

func TestSubmit_FeatureDropsDeviceInfo(t *testing.T) {
	f := newFixture(t)
	sub, err := f.svc.Submit(context.Background(), f.acc, NewSubmission{
		Email:      "bob@example.com",
		Type:       domain.TypeImprove,
		Title:      "Faster search",
		DeviceInfo: "Safari",
	})
	require.NoError(t, err)
	assert.Empty(t, sub.DeviceInfo)
	assert.Empty(t, sub.BugFiles)
}

func TestSubmit_PublishesDraftFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draftID := f.attachFile(t, domain.ParentTopic)

	sub, err := f.svc.Submit(ctx, f.acc, NewSubmission{
		Email:   "jane@example.com",
		Type:    domain.TypeFeature,
		Title:   "Export to CSV",
		DraftID: draftID,
	})
	require.NoError(t, err)
	require.Len(t, sub.Files, 1)
	assert.Equal(t, domain.UploadPublished, sub.Files[0].Status)
	assert.Equal(t, sub.ID, sub.Files[0].ParentID)

	// Сессия формы закрыта после отправки
	_, err = f.atts.Draft(draftID, f.acc.ID)
	assert.ErrorIs(t, err, attachment.ErrDraftNotFound)
}

func TestSubmit_RejectsCommentDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draftID := f.attachFile(t, domain.ParentComment)

	_, err := f.svc.Submit(ctx, f.acc, NewSubmission{
		Email:   "jane@example.com",
		Type:    domain.TypeFeature,
		Title:   "Wrong form",
		DraftID: draftID,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// Файлы формы остаются pending, форму можно отправить по назначению
	d, err := f.atts.Draft(draftID, f.acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())

	sub := f.submit(t)
	c, err := f.svc.Comment(ctx, f.acc, sub.ID, CommentInput{Email: "x@example.com", Content: "here", DraftID: draftID})
	require.NoError(t, err)
	assert.Len(t, c.Files, 1)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]NewSubmission{
		"bad email":    {Email: "nope", Type: domain.TypeBug, Title: "x"},
		"unknown type": {Email: "a@b.co", Type: "question", Title: "x"},
		"empty title":  {Email: "a@b.co", Type: domain.TypeBug, Title: "   "},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), f.acc, in)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

// === Votes ===

func impactOf(i domain.Impact) *domain.Impact { return &i }

func TestVote_ImpactRequired(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t)

	_, err := f.svc.Vote(context.Background(), f.acc, sub.ID, VoteInput{Email: "x@example.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := f.store.GetSubmit(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Len(t, got.Voters, 1)
}

func TestVote_DisagreeIsRecordedButNotCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submit(t)

	updated, err := f.svc.Vote(ctx, f.acc, sub.ID, VoteInput{Email: "x@example.com", Impact: impactOf(domain.ImpactDisagree), Feedback: "not needed"})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Votes)
	assert.Len(t, updated.Voters, 2)

	updated, err = f.svc.Vote(ctx, f.acc, sub.ID, VoteInput{Email: "y@example.com", Impact: impactOf(domain.ImpactAgree)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Votes)
	assert.Equal(t, updated.CountedVotes(), updated.Votes)

	votes, err := f.store.ListVotesBySubmit(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 3)
}

func TestVote_DuplicateEmailRejected(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t)

	_, err := f.svc.Vote(context.Background(), f.acc, sub.ID, VoteInput{Email: "jane@example.com", Impact: impactOf(domain.ImpactAgree)})
	assert.ErrorIs(t, err, ErrAlreadyVoted)
}

func TestVote_ConcurrentVotesAreNotLost(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Vote(context.Background(), f.acc, sub.ID, VoteInput{
				Email:  fmt.Sprintf("voter%d@example.com", i),
				Impact: impactOf(domain.ImpactAgree),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.store.GetSubmit(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Votes)
	assert.Len(t, got.Voters, 11)
}

func TestVote_OtherTenantAndPrivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submit(t)

	other := &domain.Account{ID: "acc-2", Slug: "globex"}
	_, err := f.svc.Vote(ctx, other, sub.ID, VoteInput{Email: "x@example.com", Impact: impactOf(domain.ImpactAgree)})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.svc.SetStatus(ctx, f.acc, sub.ID, domain.StatusPrivate)
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, f.acc, sub.ID, VoteInput{Email: "x@example.com", Impact: impactOf(domain.ImpactAgree)})
	assert.ErrorIs(t, err, ErrPrivate)
}

// === Comments ===

func TestComment_LinksSubmitAndNotifiesHub(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	live := f.svc.Hub().Subscribe(ctx, sub.ID)

	c, err := f.svc.Comment(context.Background(), f.acc, sub.ID, CommentInput{Email: "x@example.com", Content: " +1 from me "})
	require.NoError(t, err)
	assert.Equal(t, "+1 from me", c.Content)
	assert.Equal(t, domain.RoleUser, c.Role)

	select {
	case got := <-live:
		assert.Equal(t, c.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("hub did not deliver the comment")
	}

	stored, err := f.store.GetSubmit(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.CommentRef{{ID: c.ID}}, stored.Comments)
}

func TestReply_ThreadRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submit(t)

	root, err := f.svc.Comment(ctx, f.acc, sub.ID, CommentInput{Email: "x@example.com", Content: "root"})
	require.NoError(t, err)

	reply, err := f.svc.Reply(ctx, f.acc, root.ID, CommentInput{Email: "y@example.com", Content: "reply"})
	require.NoError(t, err)
	assert.Equal(t, root.ID, reply.ThreadParentID)
	assert.Equal(t, sub.ID, reply.SubmitID)

	parent, err := f.store.GetComment(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, parent.IsThread)
	assert.Equal(t, []domain.CommentRef{{ID: reply.ID}}, parent.ThreadReplies)

	// Ответ не попадает в список комментариев элемента
	stored, err := f.store.GetSubmit(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Comments, 1)

	_, err = f.svc.Reply(ctx, f.acc, reply.ID, CommentInput{Email: "z@example.com", Content: "too deep"})
	assert.ErrorIs(t, err, ErrThreadDepth)

	admin, err := f.svc.AdminReply(ctx, f.acc, sub.ID, "Thanks, on it")
	require.NoError(t, err)
	_, err = f.svc.Reply(ctx, f.acc, admin.ID, CommentInput{Email: "z@example.com", Content: "hi admin"})
	assert.ErrorIs(t, err, ErrNotRepliable)
	// Скрытый админом элемент закрыт и для ответов
	_, err = f.svc.SetStatus(ctx, f.acc, sub.ID, domain.StatusPrivate)
	require.NoError(t, err)
	_, err = f.svc.Reply(ctx, f.acc, root.ID, CommentInput{Email: "w@example.com", Content: "still here?"})
	assert.ErrorIs(t, err, ErrPrivate)
	parent, err = f.store.GetComment(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, parent.ThreadReplies, 1)
}

func TestAdminReply_EmailsSubmitter(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t)
	f.svc.Wait()
	before := len(f.mail.subjects())

	c, err := f.svc.AdminReply(context.Background(), f.acc, sub.ID, "Shipped!")
	require.NoError(t, err)
	f.svc.Wait()

	assert.Equal(t, domain.RoleAdmin, c.Role)
	assert.Equal(t, f.acc.AdminEmail, c.Email)
	subjects := f.mail.subjects()
	require.Len(t, subjects, before+1)
	assert.Equal(t, "You received a new reply from the Acme admin", subjects[before])
}

// === Admin ===

func TestSetProgress(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t)

	got, err := f.svc.SetProgress(context.Background(), f.acc, sub.ID, domain.ProgressDone)
	require.NoError(t, err)
	assert.Equal(t, domain.ProgressDone, got.Progress)

	_, err = f.svc.SetProgress(context.Background(), f.acc, sub.ID, "later")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.svc.UpdateSettings(ctx, f.acc, Settings{
		AdminEmail:   "owner@acme.test",
		PrimaryColor: "#ff6600",
		HomeURL:      "https://acme.test",
		BoardTitle:   "Acme ideas",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.test", acc.AdminEmail)

	stored, err := f.store.GetAccountBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme ideas", stored.BoardTitle)

	_, err = f.svc.UpdateSettings(ctx, f.acc, Settings{AdminEmail: "owner@acme.test", PrimaryColor: "orange"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSendTestSurvey(t *testing.T) {
	f := newFixture(t)
	sub := f.submit(t)
	f.svc.Wait()

	res, err := f.svc.SendTestSurvey(context.Background(), f.acc, sub.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Contains(t, f.mail.subjects(), `Do you agree with this suggestion for Acme – "Dark mode"`)
}
