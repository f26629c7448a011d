package board

import (
	"context"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/dataloader"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"
)

// Тексты пустого списка комментариев.
const (
	EmptyCommentsPublic = "Be the first to comment"
	EmptyCommentsAdmin  = "No comment"
)

// CommentView - комментарий в том виде, в каком он показывается.
type CommentView struct {
	ID        string          `json:"id"`
	Role      domain.Role     `json:"role"`
	Author    string          `json:"author"`
	Content   string          `json:"content"`
	Files     []domain.Upload `json:"files"`
	Repliable bool            `json:"repliable"`
	CreatedAt time.Time       `json:"created_at"`
}

// Thread - корневой комментарий и ответы на него.
type Thread struct {
	CommentView
	Replies []CommentView `json:"replies"`
}

// TallyLine - строка распределения оценок.
type TallyLine struct {
	Label   string `json:"label"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// Detail - карточка элемента с комментариями.
type Detail struct {
	Submit    *domain.Submit  `json:"submit"`
	TypeLabel string          `json:"type_label"`
	Files     []domain.Upload `json:"files"`
	BugFiles  []domain.Upload `json:"bug_files,omitempty"`
	Threads   []Thread        `json:"threads"`
	EmptyText string          `json:"empty_text,omitempty"`
	Tally     []TallyLine     `json:"tally,omitempty"`
}

// Detail собирает карточку элемента. Публичный вызов не видит приватные
// элементы и элементы других тенантов.
func (b *Board) Detail(ctx context.Context, acc *domain.Account, id string, public bool) (*Detail, error) {
	sub, err := b.store.GetSubmit(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.AccountID != acc.ID {
		return nil, storage.ErrNotFound
	}
	if public && sub.Status != domain.StatusPublic {
		return nil, ErrPrivate
	}

	threads, err := b.threads(ctx, sub, public)
	if err != nil {
		b.log.Error("failed to load comments", "tenant", acc.Slug, "submit_id", id, "op", "detail", "error", err)
		return nil, err
	}

	d := &Detail{
		Submit:    sub,
		TypeLabel: sub.Type.Label(),
		Files:     domain.PublishedOnly(append(append([]domain.Upload{}, sub.Files...), sub.Images...)),
		Threads:   threads,
	}
	if len(threads) == 0 {
		d.EmptyText = EmptyCommentsAdmin
		if public {
			d.EmptyText = EmptyCommentsPublic
		}
	}
	if public {
		// Голоса и диагностика видны только админу
		view := *sub
		view.Email = ""
		view.Voters = nil
		view.ConsoleLog = nil
		view.DeviceInfo = ""
		view.BugFiles = nil
		d.Submit = &view
	} else {
		d.BugFiles = domain.PublishedOnly(sub.BugFiles)
		d.Tally = Tally(sub.Voters)
	}
	return d, nil
}

// Tally - распределение оценок с процентами для админки.
func Tally(voters []domain.Voter) []TallyLine {
	t := domain.TallyImpact(voters)
	return []TallyLine{
		{Label: "Strongly agree", Count: t.StronglyAgree, Percent: t.Percent(domain.ImpactStronglyAgree)},
		{Label: "Agree", Count: t.Agree, Percent: t.Percent(domain.ImpactAgree)},
		{Label: "Disagree", Count: t.Disagree, Percent: t.Percent(domain.ImpactDisagree)},
	}
}

func (b *Board) threads(ctx context.Context, sub *domain.Submit, public bool) ([]Thread, error) {
	roots, err := dataloader.LoadComments(ctx, b.store, sub.Comments)
	if err != nil {
		return nil, err
	}

	// Все ответы грузим одним батчем
	var replyRefs []domain.CommentRef
	for _, c := range roots {
		replyRefs = append(replyRefs, c.ThreadReplies...)
	}
	replies, err := dataloader.LoadComments(ctx, b.store, replyRefs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Comment, len(replies))
	for _, r := range replies {
		byID[r.ID] = r
	}

	out := make([]Thread, 0, len(roots))
	for _, c := range roots {
		if public && c.Status == domain.StatusPrivate {
			continue
		}
		t := Thread{CommentView: ViewComment(c, public), Replies: []CommentView{}}
		for _, ref := range c.ThreadReplies {
			if r, ok := byID[ref.ID]; ok {
				t.Replies = append(t.Replies, ViewComment(r, public))
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// ViewComment готовит комментарий к показу: в публичном виде email автора маскируется.
func ViewComment(c *domain.Comment, public bool) CommentView {
	author := c.Email
	switch {
	case c.Role == domain.RoleAdmin:
		author = "Admin"
	case public && c.Depth() > 0:
		author = domain.MaskEmailKeepLast(c.Email)
	case public:
		author = domain.MaskEmail(c.Email)
	}
	return CommentView{
		ID:        c.ID,
		Role:      c.Role,
		Author:    author,
		Content:   c.Content,
		Files:     domain.PublishedOnly(c.Files),
		Repliable: c.Repliable(),
		CreatedAt: c.CreatedAt,
	}
}
