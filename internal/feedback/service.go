// Package feedback содержит операции над элементами обратной связи:
// прием, голосование, комментарии, админские действия и каскадное удаление.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/attachment"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/mailer"
	"github.com/UkralStul/feedback-board-service/internal/metrics"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/go-playground/validator/v10"
)

var (
	ErrAlreadyVoted = errors.New("this email has already voted on the submission")
	ErrThreadDepth  = errors.New("replies can only be one level deep")
	ErrNotRepliable = errors.New("admin comments cannot be replied to")
	ErrPrivate      = errors.New("submission is private")
)

// ValidationError - некорректный ввод пользователя.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// NewSubmission - форма нового элемента со страницы /new или из виджета.
type NewSubmission struct {
	Email      string              `json:"email" validate:"required,email"`
	Type       domain.SubmitType   `json:"type" validate:"required,oneof=bug feature improve"`
	Title      string              `json:"title" validate:"required,max=300"`
	Desc       string              `json:"desc" validate:"max=20000"`
	Status     domain.Status       `json:"status" validate:"omitempty,oneof=public private"`
	DraftID    string              `json:"draft_id"`
	Screenshot string              `json:"screenshot"`
	ConsoleLog []domain.ConsoleLog `json:"console_log"`
	DeviceInfo string              `json:"device_info"`
	Widget     bool                `json:"-"`
}

// VoteInput - голос с доски или из письма-опроса.
// Impact обязателен: пропущенное поле не превращается в disagree.
type VoteInput struct {
	Email    string         `json:"email" validate:"required,email"`
	Impact   *domain.Impact `json:"impact" validate:"required"`
	Feedback string         `json:"feedback" validate:"max=5000"`
}

// CommentInput - новый комментарий или ответ в треде.
type CommentInput struct {
	Email   string `json:"email" validate:"required,email"`
	Content string `json:"content" validate:"required,max=10000"`
	DraftID string `json:"draft_id"`
}

// Settings - изменяемые админом настройки доски.
type Settings struct {
	AdminEmail   string `json:"admin_email" validate:"required,email"`
	PrimaryColor string `json:"primary_color" validate:"omitempty,hexcolor"`
	HomeURL      string `json:"home_url" validate:"omitempty,url"`
	BoardTitle   string `json:"board_title" validate:"max=255"`
}

// Service - операции над элементами одного или нескольких тенантов.
type Service struct {
	store       storage.Storage
	attachments *attachment.Manager
	mail        *mailer.Mailer
	hub         *Hub
	metrics     *metrics.Metrics
	validate    *validator.Validate
	log         *slog.Logger
	now         func() time.Time

	// фоновые письма
	wg sync.WaitGroup
}

func New(store storage.Storage, attachments *attachment.Manager, mail *mailer.Mailer, hub *Hub, m *metrics.Metrics) *Service {
	if hub == nil {
		hub = NewHub()
	}
	return &Service{
		store:       store,
		attachments: attachments,
		mail:        mail,
		hub:         hub,
		metrics:     m,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         logging.Module("feedback"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Hub() *Hub { return s.hub }

// Wait дожидается отправки фоновых писем.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

// submit загружает элемент тенанта. Чужой элемент выглядит как отсутствующий.
func (s *Service) submit(ctx context.Context, acc *domain.Account, id string) (*domain.Submit, error) {
	sub, err := s.store.GetSubmit(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.AccountID != acc.ID {
		return nil, storage.ErrNotFound
	}
	return sub, nil
}

// ensureProfile заводит профиль адресата дайджеста, если его ещё нет.
func (s *Service) ensureProfile(ctx context.Context, acc *domain.Account, email string) error {
	_, err := s.store.GetProfileByEmail(ctx, acc.ID, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get profile: %w", err)
	}
	p := &domain.Profile{AccountID: acc.ID, Email: email, Type: string(domain.RoleUser)}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		// Параллельный запрос мог создать профиль раньше
		if _, again := s.store.GetProfileByEmail(ctx, acc.ID, email); again == nil {
			return nil
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// publishDraft публикует файлы формы под parentID и закрывает сессию.
// Форма должна быть открыта для того же вида родителя: файлы комментария
// лежат в другом каталоге и не могут стать файлами элемента.
func (s *Service) publishDraft(ctx context.Context, acc *domain.Account, draftID string, parent domain.ParentType, parentID string) ([]domain.Upload, error) {
	if draftID == "" || s.attachments == nil {
		return []domain.Upload{}, nil
	}
	d, err := s.attachments.Draft(draftID, acc.ID)
	if err != nil {
		return nil, err
	}
	if d.ParentType != parent {
		return nil, &ValidationError{Err: fmt.Errorf("draft %s holds %s uploads, not %s", d.ID, d.ParentType, parent)}
	}
	files, err := s.attachments.Publish(ctx, d, parentID)
	if err != nil {
		return nil, err
	}
	s.attachments.Close(d)
	return files, nil
}

// notify отправляет письмо в фоне, не задерживая ответ пользователю.
func (s *Service) notify(kind string, build func() (mailer.Message, error)) {
	if s.mail == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		msg, err := build()
		if err != nil {
			s.log.Error("failed to build email", "kind", kind, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		// Ошибка уже залогирована мейлером
		_, _ = s.mail.Send(ctx, kind, msg)
	}()
}

// === Intake ===

// Submit создает элемент. Автор сразу становится первым голосующим.
func (s *Service) Submit(ctx context.Context, acc *domain.Account, in NewSubmission) (*domain.Submit, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.StatusPublic
		if in.Widget {
			in.Status = domain.StatusPrivate
		}
	}

	if err := s.ensureProfile(ctx, acc, in.Email); err != nil {
		return nil, err
	}

	id := domain.NewID()
	files, err := s.publishDraft(ctx, acc, in.DraftID, domain.ParentTopic, id)
	if err != nil {
		return nil, fmt.Errorf("publish attachments: %w", err)
	}

	now := s.now()
	sub := &domain.Submit{
		ID:        id,
		AccountID: acc.ID,
		Email:     in.Email,
		Type:      in.Type,
		Title:     in.Title,
		Desc:      in.Desc,
		Status:    in.Status,
		Progress:  domain.ProgressOpen,
		Comments:  []domain.CommentRef{},
		Files:     files,
		CreatedAt: now,
	}

	if in.Type == domain.TypeBug {
		if in.Screenshot != "" && s.attachments != nil {
			shot, err := s.attachments.UploadDataURL(ctx, acc.ID, domain.ParentTopic, id, in.Screenshot)
			if err != nil {
				return nil, err
			}
			sub.BugFiles = []domain.Upload{*shot}
		}
		sub.ConsoleLog = in.ConsoleLog
		sub.DeviceInfo = in.DeviceInfo
	}

	vote := domain.Voter{
		ID:          domain.NewID(),
		AccountID:   acc.ID,
		SubmitID:    id,
		SubmitTitle: sub.Title,
		Email:       in.Email,
		Impact:      domain.ImpactStronglyAgree,
		CreatedAt:   now,
	}
	sub.Voters = []domain.Voter{vote}
	sub.Votes = 1

	if err := s.store.CreateVote(ctx, &vote); err != nil {
		return nil, fmt.Errorf("create vote: %w", err)
	}
	if err := s.store.CreateSubmit(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submit: %w", err)
	}

	s.metrics.Submission(string(sub.Type), string(sub.Status))
	s.log.InfoContext(ctx, "submission created", "account", acc.Slug, "submit_id", sub.ID, "type", sub.Type, "widget", in.Widget)

	snapshot := *sub
	s.notify(mailer.KindNewSubmission, func() (mailer.Message, error) {
		return s.mail.NewSubmissionMessage(acc, &snapshot, in.Widget)
	})
	if sub.Status == domain.StatusPublic {
		s.notify(mailer.KindThanks, func() (mailer.Message, error) {
			return s.mail.ThanksMessage(acc, &snapshot)
		})
	}
	return sub, nil
}

// === Vote Methods ===

// Vote добавляет голос. Disagree записывается, но не увеличивает votes.
func (s *Service) Vote(ctx context.Context, acc *domain.Account, submitID string, in VoteInput) (*domain.Submit, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if !in.Impact.Valid() {
		return nil, &ValidationError{Err: fmt.Errorf("unknown impact %d", *in.Impact)}
	}
	sub, err := s.submit(ctx, acc, submitID)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.StatusPublic {
		return nil, ErrPrivate
	}
	if err := s.ensureProfile(ctx, acc, in.Email); err != nil {
		return nil, err
	}

	vote := domain.Voter{
		ID:              domain.NewID(),
		AccountID:       acc.ID,
		SubmitID:        sub.ID,
		SubmitTitle:     sub.Title,
		Email:           in.Email,
		Impact:          *in.Impact,
		FeedbackContent: in.Feedback,
		CreatedAt:       s.now(),
	}
	updated, err := s.store.MutateSubmit(ctx, sub.ID, func(cur *domain.Submit) error {
		if cur.HasVoted(vote.Email) {
			return ErrAlreadyVoted
		}
		cur.Voters = append(cur.Voters, vote)
		if vote.Impact.Counts() {
			cur.Votes++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVote(ctx, &vote); err != nil {
		return nil, fmt.Errorf("create vote: %w", err)
	}
	s.metrics.Vote(vote.Impact.String())
	return updated, nil
}

// === Comment Methods ===

// Comment добавляет корневой комментарий пользователя.
func (s *Service) Comment(ctx context.Context, acc *domain.Account, submitID string, in CommentInput) (*domain.Comment, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}
	sub, err := s.submit(ctx, acc, submitID)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.StatusPublic {
		return nil, ErrPrivate
	}
	if err := s.ensureProfile(ctx, acc, in.Email); err != nil {
		return nil, err
	}
	c, err := s.newComment(ctx, acc, sub, domain.RoleUser, in.Email, in.Content, in.DraftID)
	if err != nil {
		return nil, err
	}
	if err := s.attach(ctx, sub.ID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Reply добавляет ответ в тред. Ответ - отдельный документ, родитель хранит его ID.
func (s *Service) Reply(ctx context.Context, acc *domain.Account, parentID string, in CommentInput) (*domain.Comment, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}
	parent, err := s.store.GetComment(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.AccountID != acc.ID {
		return nil, storage.ErrNotFound
	}
	if parent.Depth() >= domain.MaxThreadDepth {
		return nil, ErrThreadDepth
	}
	if parent.Role == domain.RoleAdmin {
		return nil, ErrNotRepliable
	}
	sub, err := s.submit(ctx, acc, parent.SubmitID)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.StatusPublic {
		return nil, ErrPrivate
	}
	if err := s.ensureProfile(ctx, acc, in.Email); err != nil {
		return nil, err
	}

	reply, err := s.newCommentWithParent(ctx, acc, sub, domain.RoleUser, in.Email, in.Content, in.DraftID, parent.ID)
	if err != nil {
		return nil, err
	}
	_, err = s.store.MutateComment(ctx, parent.ID, func(cur *domain.Comment) error {
		cur.IsThread = true
		cur.ThreadReplies = append(cur.ThreadReplies, domain.CommentRef{ID: reply.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("link reply to %s: %w", parent.ID, err)
	}
	s.metrics.Comment(string(reply.Role))
	s.hub.Publish(reply)
	return reply, nil
}

func (s *Service) newComment(ctx context.Context, acc *domain.Account, sub *domain.Submit, role domain.Role, email, content, draftID string) (*domain.Comment, error) {
	return s.newCommentWithParent(ctx, acc, sub, role, email, content, draftID, "")
}

func (s *Service) newCommentWithParent(ctx context.Context, acc *domain.Account, sub *domain.Submit, role domain.Role, email, content, draftID, parentID string) (*domain.Comment, error) {
	id := domain.NewID()
	files, err := s.publishDraft(ctx, acc, draftID, domain.ParentComment, id)
	if err != nil {
		return nil, fmt.Errorf("publish attachments: %w", err)
	}
	c := &domain.Comment{
		ID:             id,
		AccountID:      acc.ID,
		SubmitID:       sub.ID,
		SubmitTitle:    sub.Title,
		Role:           role,
		Email:          email,
		Content:        strings.TrimSpace(content),
		Files:          files,
		ThreadParentID: parentID,
		ThreadReplies:  []domain.CommentRef{},
		Status:         domain.StatusPublic,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// attach добавляет ссылку на комментарий в элемент и оповещает подписчиков.
func (s *Service) attach(ctx context.Context, submitID string, c *domain.Comment) error {
	_, err := s.store.MutateSubmit(ctx, submitID, func(cur *domain.Submit) error {
		cur.Comments = append(cur.Comments, domain.CommentRef{ID: c.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("link comment to %s: %w", submitID, err)
	}
	s.metrics.Comment(string(c.Role))
	s.hub.Publish(c)
	return nil
}

// === Admin Methods ===

// AdminReply добавляет комментарий админа и уведомляет автора элемента.
func (s *Service) AdminReply(ctx context.Context, acc *domain.Account, submitID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Err: errors.New("content is required")}
	}
	sub, err := s.submit(ctx, acc, submitID)
	if err != nil {
		return nil, err
	}
	c, err := s.newComment(ctx, acc, sub, domain.RoleAdmin, acc.AdminEmail, content, "")
	if err != nil {
		return nil, err
	}
	if err := s.attach(ctx, sub.ID, c); err != nil {
		return nil, err
	}
	if sub.Email != "" {
		s.notify(mailer.KindAdminReply, func() (mailer.Message, error) {
			return s.mail.AdminReplyMessage(acc, sub, content)
		})
	}
	return c, nil
}

func (s *Service) SetStatus(ctx context.Context, acc *domain.Account, submitID string, status domain.Status) (*domain.Submit, error) {
	if !status.Valid() {
		return nil, &ValidationError{Err: fmt.Errorf("unknown status %q", status)}
	}
	if _, err := s.submit(ctx, acc, submitID); err != nil {
		return nil, err
	}
	return s.store.MutateSubmit(ctx, submitID, func(cur *domain.Submit) error {
		cur.Status = status
		return nil
	})
}

func (s *Service) SetProgress(ctx context.Context, acc *domain.Account, submitID string, progress domain.Progress) (*domain.Submit, error) {
	if !progress.Valid() {
		return nil, &ValidationError{Err: fmt.Errorf("unknown progress %q", progress)}
	}
	if _, err := s.submit(ctx, acc, submitID); err != nil {
		return nil, err
	}
	return s.store.MutateSubmit(ctx, submitID, func(cur *domain.Submit) error {
		cur.Progress = progress
		return nil
	})
}

// UpdateSettings сохраняет настройки доски. Кэш тенантов сбрасывает вызывающий.
func (s *Service) UpdateSettings(ctx context.Context, acc *domain.Account, in Settings) (*domain.Account, error) {
	in.AdminEmail = strings.TrimSpace(in.AdminEmail)
	if err := s.check(in); err != nil {
		return nil, err
	}
	next := *acc
	next.AdminEmail = in.AdminEmail
	next.PrimaryColor = in.PrimaryColor
	next.HomeURL = in.HomeURL
	next.BoardTitle = strings.TrimSpace(in.BoardTitle)
	if err := s.store.SaveAccount(ctx, &next); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	return &next, nil
}

// SendTestSurvey отправляет админу письмо-опрос по элементу, как его увидят пользователи.
func (s *Service) SendTestSurvey(ctx context.Context, acc *domain.Account, submitID string) (mailer.Result, error) {
	sub, err := s.submit(ctx, acc, submitID)
	if err != nil {
		return mailer.Result{}, err
	}
	msg, err := s.mail.FeedbackSurveyMessage(acc, sub, acc.AdminEmail)
	if err != nil {
		return mailer.Result{}, err
	}
	return s.mail.Send(ctx, mailer.KindFeedbackSurvey, msg)
}
