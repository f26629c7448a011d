package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/UkralStul/feedback-board-service/internal/domain"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender запоминает отправленные письма
type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) (Result, error) {
	if s.err != nil {
		return Result{}, s.err
	}
	s.sent = append(s.sent, msg)
	return Result{ID: "msg-1"}, nil
}

func newTestMailer(t *testing.T, sender Sender) *Mailer {
	t.Helper()
	m, err := New(sender, Options{
		From:      "ssimple notification <noreply@ssimple.co>",
		DemoFrom:  "ssimple Survey Demo <demo@ssimple.co>",
		SurveyURL: "https://feedback.ssimple.co/survey-demo",
		Links:     Links{Scheme: "https", BaseDomain: "ssimple.co"},
	})
	require.NoError(t, err)
	return m
}

var acme = &domain.Account{ID: "acc-1", Slug: "acme", BrandName: "Acme", AdminEmail: "admin@acme.test"}

func TestResendSender(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("POST", ResendEndpoint, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer re_test", req.Header.Get("Authorization"))
		var msg Message
		require.NoError(t, json.NewDecoder(req.Body).Decode(&msg))
		if msg.To[0] == "bad@x.test" {
			return httpmock.NewStringResponse(422, `{"name":"validation_error"}`), nil
		}
		assert.Equal(t, "Hello", msg.Subject)
		return httpmock.NewJsonResponse(200, map[string]string{"id": "email-123"})
	})

	s := NewResendSender("re_test", client)
	res, err := s.Send(context.Background(), Message{From: "a@x", To: []string{"b@x.test"}, Subject: "Hello", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "email-123", res.ID)

	_, err = s.Send(context.Background(), Message{To: []string{"bad@x.test"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 422, apiErr.Status)
	assert.Contains(t, apiErr.Body, "validation_error")
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestMailer_SendFillsDefaults(t *testing.T) {
	rec := &recordingSender{}
	m := newTestMailer(t, rec)

	_, err := m.Send(context.Background(), KindRaw, Message{To: []string{"u@x.test"}, Subject: "s", HTML: "<p>Hello <b>there</b></p>"})
	require.NoError(t, err)
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "ssimple notification <noreply@ssimple.co>", rec.sent[0].From)
	assert.Contains(t, rec.sent[0].Text, "Hello there")
	assert.NotContains(t, rec.sent[0].Text, "<b>")

	rec.err = errors.New("provider down")
	_, err = m.Send(context.Background(), KindRaw, Message{To: []string{"u@x.test"}})
	assert.Error(t, err)
}

func TestDigestMessage(t *testing.T) {
	m := newTestMailer(t, &recordingSender{})
	data := DigestData{
		Brand:   "Acme",
		Slug:    "acme",
		LogoURL: "https://cdn/brand/logo.png",
		Submits: []*domain.Submit{{ID: "s1", Title: "Dark mode"}, {ID: "s2", Title: "Export CSV"}},
	}

	msg, err := m.DigestMessage(data, "p@x.test")
	require.NoError(t, err)
	assert.Equal(t, "Do you agree with these feedback for Acme?", msg.Subject)
	assert.Contains(t, msg.HTML, "https://acme.ssimple.co/?topic=s1")
	assert.Contains(t, msg.HTML, "2. Export CSV")
	assert.Contains(t, msg.HTML, "https://cdn/brand/logo.png")

	data.Submits = nil
	msg, err = m.DigestMessage(data, "p@x.test")
	require.NoError(t, err)
	assert.Equal(t, "Do you have any feedback for Acme?", msg.Subject)
	assert.Contains(t, msg.HTML, "Give Us Feedback")
	assert.Contains(t, msg.HTML, "https://acme.ssimple.co/new")
}

func TestSurveyDemoMessage(t *testing.T) {
	m := newTestMailer(t, &recordingSender{})
	msg, err := m.SurveyDemoMessage("demo@user.test")
	require.NoError(t, err)
	assert.Equal(t, "ssimple Survey Demo <demo@ssimple.co>", msg.From)
	assert.Equal(t, "How satisfied are you with this demo?", msg.Subject)
	for _, label := range []string{"Not Satisfied", "Just Okay", "Satisfied"} {
		assert.Contains(t, msg.HTML, label)
	}
	assert.Contains(t, msg.HTML, "https://feedback.ssimple.co/survey-demo?s=5&amp;sid=O2v2kx2UQNFnJW0q")
	assert.Contains(t, msg.HTML, "e=demo%40user.test")
}

func TestAdminReplyMessage(t *testing.T) {
	m := newTestMailer(t, &recordingSender{})
	sub := &domain.Submit{ID: "s1", Email: "author@x.test", Title: "Dark mode", Desc: "Please", Status: domain.StatusPublic}

	msg, err := m.AdminReplyMessage(acme, sub, "On it")
	require.NoError(t, err)
	assert.Equal(t, "You received a new reply from the Acme admin", msg.Subject)
	assert.Equal(t, []string{"author@x.test"}, msg.To)
	assert.Contains(t, msg.HTML, "https://acme.ssimple.co/?topic=s1")
	assert.NotContains(t, msg.HTML, "On it")

	sub.Status = domain.StatusPrivate
	msg, err = m.AdminReplyMessage(acme, sub, "On it")
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "<h2>Dark mode</h2>")
	assert.Contains(t, msg.HTML, "On it")
	assert.NotContains(t, msg.HTML, "?topic=")
}

func TestNewSubmissionMessage(t *testing.T) {
	m := newTestMailer(t, &recordingSender{})
	sub := &domain.Submit{ID: "s1", Status: domain.StatusPrivate}

	msg, err := m.NewSubmissionMessage(acme, sub, false)
	require.NoError(t, err)
	assert.Equal(t, "New feedback received", msg.Subject)
	assert.Equal(t, []string{"admin@acme.test"}, msg.To)
	assert.Contains(t, msg.HTML, "https://acme.ssimple.co/admin")

	sub.Status = domain.StatusPublic
	msg, err = m.NewSubmissionMessage(acme, sub, true)
	require.NoError(t, err)
	assert.Equal(t, "New Feedback Submission Received", msg.Subject)
	assert.Contains(t, msg.HTML, "https://acme.ssimple.co/?topic=s1")
}

func TestFeedbackSurveyMessage(t *testing.T) {
	m := newTestMailer(t, &recordingSender{})
	sub := &domain.Submit{ID: "s1", Title: "Dark mode", Desc: "Night theme"}

	msg, err := m.FeedbackSurveyMessage(acme, sub, "admin@acme.test")
	require.NoError(t, err)
	assert.Equal(t, `Do you agree with this suggestion for Acme – "Dark mode"`, msg.Subject)
	assert.True(t, strings.Contains(msg.HTML, "impact=strongly-agree"))
	assert.Contains(t, msg.HTML, "Night theme")
}

func TestLogSender(t *testing.T) {
	res, err := LogSender{Logger: slogDiscard()}.Send(context.Background(), Message{To: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "log", res.ID)
}

func slogDiscard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
