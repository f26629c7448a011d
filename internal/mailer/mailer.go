package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/metrics"

	"github.com/k3a/html2text"
)

//go:embed templates/*.html
var templateFS embed.FS

// Виды писем, они же метки метрик.
const (
	KindDigest         = "digest"
	KindSurveyDemo     = "survey_demo"
	KindFeedbackSurvey = "feedback_survey"
	KindAdminReply     = "admin_reply"
	KindNewSubmission  = "new_submission"
	KindThanks         = "submission_thanks"
	KindRaw            = "raw"
)

// surveyDemoID - идентификатор демо-опроса в ссылках.
const surveyDemoID = "O2v2kx2UQNFnJW0q"

// Links строит публичные ссылки на доску тенанта: https://{slug}.{domain}/.
type Links struct {
	Scheme     string
	BaseDomain string
}

func (l Links) Board(slug string) string {
	scheme := l.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s.%s/", scheme, slug, l.BaseDomain)
}

func (l Links) Topic(slug, id string) string { return l.Board(slug) + "?topic=" + url.QueryEscape(id) }
func (l Links) Admin(slug string) string     { return l.Board(slug) + "admin" }
func (l Links) New(slug string) string       { return l.Board(slug) + "new" }

type Options struct {
	From      string
	DemoFrom  string
	SurveyURL string
	Links     Links
	Metrics   *metrics.Metrics
}

// Mailer рендерит письма и передает их Sender.
type Mailer struct {
	sender    Sender
	from      string
	demoFrom  string
	surveyURL string
	links     Links
	tmpl      *template.Template
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func New(sender Sender, opts Options) (*Mailer, error) {
	m := &Mailer{
		sender:    sender,
		from:      opts.From,
		demoFrom:  opts.DemoFrom,
		surveyURL: opts.SurveyURL,
		links:     opts.Links,
		metrics:   opts.Metrics,
		log:       logging.Module("mailer"),
	}
	tmpl, err := template.New("mail").Funcs(template.FuncMap{
		"topicURL": m.links.Topic,
		"newURL":   m.links.New,
		"inc":      func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mailer: parse templates: %w", err)
	}
	m.tmpl = tmpl
	return m, nil
}

// Links - построитель ссылок, с которым настроен Mailer.
func (m *Mailer) Links() Links { return m.links }

// Send дополняет письмо отправителем и текстовой версией и отправляет его.
func (m *Mailer) Send(ctx context.Context, kind string, msg Message) (Result, error) {
	if msg.From == "" {
		msg.From = m.from
	}
	if msg.Text == "" {
		msg.Text = html2text.HTML2Text(msg.HTML)
	}
	start := time.Now()
	res, err := m.sender.Send(ctx, msg)
	m.metrics.Email(kind, time.Since(start), err)
	if err != nil {
		m.log.ErrorContext(ctx, "failed to send email", "kind", kind, "to", msg.To, "error", err)
		return Result{}, err
	}
	return res, nil
}

func (m *Mailer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("mailer: render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func brand(acc *domain.Account) string {
	if acc.BrandName != "" {
		return acc.BrandName
	}
	return acc.Slug
}

// === Digest ===

// DigestData - общие данные еженедельного письма тенанта.
type DigestData struct {
	Brand   string           `json:"brand"`
	Slug    string           `json:"slug"`
	LogoURL string           `json:"logo_url"`
	Submits []*domain.Submit `json:"submits"`
}

func (m *Mailer) DigestMessage(data DigestData, to string) (Message, error) {
	html, err := m.render("digest", data)
	if err != nil {
		return Message{}, err
	}
	subject := "Do you have any feedback for " + data.Brand + "?"
	if len(data.Submits) > 0 {
		subject = "Do you agree with these feedback for " + data.Brand + "?"
	}
	return Message{From: m.from, To: []string{to}, Subject: subject, HTML: html}, nil
}

// === Surveys ===

type scoreLink struct {
	Score int
	Label string
	URL   string
}

func (m *Mailer) SurveyDemoMessage(to string) (Message, error) {
	id := domain.NewID()
	labels := map[int]string{1: "Not Satisfied", 3: "Just Okay", 5: "Satisfied"}
	scores := make([]scoreLink, 0, 5)
	for s := 1; s <= 5; s++ {
		scores = append(scores, scoreLink{
			Score: s,
			Label: labels[s],
			URL:   fmt.Sprintf("%s?s=%d&sid=%s&i=%s&e=%s", m.surveyURL, s, surveyDemoID, id, url.QueryEscape(to)),
		})
	}
	html, err := m.render("survey_demo", struct{ Scores []scoreLink }{scores})
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    m.demoFrom,
		To:      []string{to},
		Subject: "How satisfied are you with this demo?",
		HTML:    html,
	}, nil
}

type choiceLink struct {
	Label string
	URL   string
}

// FeedbackSurveyMessage - опрос "согласны ли вы" по одному элементу.
func (m *Mailer) FeedbackSurveyMessage(acc *domain.Account, sub *domain.Submit, to string) (Message, error) {
	topic := m.links.Topic(acc.Slug, sub.ID)
	choices := []choiceLink{
		{Label: "Strongly agree", URL: topic + "&impact=" + domain.ImpactStronglyAgree.String()},
		{Label: "Agree", URL: topic + "&impact=" + domain.ImpactAgree.String()},
		{Label: "Disagree", URL: topic + "&impact=" + domain.ImpactDisagree.String()},
	}
	html, err := m.render("feedback_survey", map[string]any{
		"Brand":   brand(acc),
		"Title":   sub.Title,
		"Desc":    sub.Desc,
		"Choices": choices,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    m.from,
		To:      []string{to},
		Subject: "Do you agree with this suggestion for " + brand(acc) + ` – "` + sub.Title + `"`,
		HTML:    html,
	}, nil
}

// === Notifications ===

// AdminReplyMessage - уведомление автору об ответе админа. Для публичного
// элемента - ссылка, для приватного - текст элемента и ответа в письме.
func (m *Mailer) AdminReplyMessage(acc *domain.Account, sub *domain.Submit, reply string) (Message, error) {
	html, err := m.render("admin_reply", map[string]any{
		"Public": sub.Status == domain.StatusPublic,
		"Brand":  brand(acc),
		"Link":   m.links.Topic(acc.Slug, sub.ID),
		"Title":  sub.Title,
		"Desc":   sub.Desc,
		"Reply":  reply,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    m.from,
		To:      []string{sub.Email},
		Subject: "You received a new reply from the " + brand(acc) + " admin",
		HTML:    html,
	}, nil
}

// NewSubmissionMessage - уведомление админу о новом элементе.
func (m *Mailer) NewSubmissionMessage(acc *domain.Account, sub *domain.Submit, widget bool) (Message, error) {
	public := sub.Status == domain.StatusPublic
	link := m.links.Admin(acc.Slug)
	if public {
		link = m.links.Topic(acc.Slug, sub.ID)
	}
	html, err := m.render("new_submission", map[string]any{"Public": public, "Link": link})
	if err != nil {
		return Message{}, err
	}
	subject := "New feedback received"
	if widget {
		subject = "New Feedback Submission Received"
	}
	return Message{From: m.from, To: []string{acc.AdminEmail}, Subject: subject, HTML: html}, nil
}

// ThanksMessage - подтверждение автору публичного элемента.
func (m *Mailer) ThanksMessage(acc *domain.Account, sub *domain.Submit) (Message, error) {
	html, err := m.render("submission_thanks", map[string]any{"Link": m.links.Topic(acc.Slug, sub.ID)})
	if err != nil {
		return Message{}, err
	}
	return Message{
		From:    m.from,
		To:      []string{sub.Email},
		Subject: "Thank you for sharing your feedback",
		HTML:    html,
	}, nil
}
