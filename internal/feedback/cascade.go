package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/getsentry/sentry-go"
)

// ErrCascadeIncomplete - часть шагов удаления не выполнилась, их можно повторить.
var ErrCascadeIncomplete = errors.New("delete cascade finished with failed steps")

// Шаги каскадного удаления.
const (
	StepCommentFile = "comment_file"
	StepComment     = "comment"
	StepVote        = "vote"
	StepSubmitFile  = "submit_file"
	StepSubmit      = "submit"
)

// errSkipped - шаг не выполнялся, потому что раньше были сбои.
const errSkipped = "skipped: earlier steps failed"

// CascadeStep - результат одного шага удаления.
type CascadeStep struct {
	Kind    string `json:"kind"`
	Target  string `json:"target"`
	Err     string `json:"error,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

func (s CascadeStep) Done() bool { return s.Err == "" && !s.Skipped }

// CascadeReport - журнал удаления элемента в порядке выполнения шагов.
type CascadeReport struct {
	SubmitID string        `json:"submit_id"`
	Steps    []CascadeStep `json:"steps"`
}

// Failed возвращает невыполненные шаги.
func (r *CascadeReport) Failed() []CascadeStep {
	var out []CascadeStep
	for _, st := range r.Steps {
		if !st.Done() {
			out = append(out, st)
		}
	}
	return out
}

// Count - число выполненных шагов вида kind.
func (r *CascadeReport) Count(kind string) int {
	n := 0
	for _, st := range r.Steps {
		if st.Kind == kind && st.Done() {
			n++
		}
	}
	return n
}

type cascade struct {
	svc    *Service
	report *CascadeReport
}

// run выполняет шаг. Отсутствующий документ считается удаленным.
func (c *cascade) run(ctx context.Context, kind, target string, fn func(context.Context) error) bool {
	err := fn(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	c.svc.metrics.CascadeStep(kind, err)
	st := CascadeStep{Kind: kind, Target: target}
	if err != nil {
		st.Err = err.Error()
		c.svc.log.ErrorContext(ctx, "delete cascade step failed",
			"submit_id", c.report.SubmitID, "step", kind, "target", target, "error", err)
		sentry.CaptureException(fmt.Errorf("delete %s %s of submit %s: %w", kind, target, c.report.SubmitID, err))
	}
	c.report.Steps = append(c.report.Steps, st)
	return err == nil
}

// Delete удаляет элемент вместе с комментариями, ответами, голосами и файлами.
// Шаги выполняются по порядку, ошибка шага не останавливает следующие,
// но сам элемент удаляется, только если все остальные шаги прошли.
func (s *Service) Delete(ctx context.Context, acc *domain.Account, submitID string) (*CascadeReport, error) {
	sub, err := s.submit(ctx, acc, submitID)
	if err != nil {
		return nil, err
	}
	c := &cascade{svc: s, report: &CascadeReport{SubmitID: sub.ID}}

	for _, ref := range sub.Comments {
		c.deleteComment(ctx, ref.ID, true)
	}

	votes, err := s.store.ListVotesBySubmit(ctx, sub.ID)
	if err != nil {
		c.run(ctx, StepVote, "*", func(context.Context) error { return fmt.Errorf("list votes: %w", err) })
	}
	for _, v := range votes {
		c.run(ctx, StepVote, v.ID, func(ctx context.Context) error {
			return s.store.DeleteVote(ctx, v.ID)
		})
	}

	for _, f := range sub.AllFiles() {
		c.run(ctx, StepSubmitFile, f.ID, func(ctx context.Context) error {
			return s.attachments.DeleteFile(ctx, domain.ParentTopic, f.ID)
		})
	}

	// Элемент - единственная ссылка на оставшиеся документы. Пока есть сбои,
	// он остается, и повторный Delete доделывает каскад.
	if len(c.report.Failed()) > 0 {
		c.skip(StepSubmit, sub.ID)
	} else {
		c.run(ctx, StepSubmit, sub.ID, func(ctx context.Context) error {
			return s.store.DeleteSubmit(ctx, sub.ID)
		})
	}

	failed := len(c.report.Failed())
	s.log.InfoContext(ctx, "delete cascade finished", "account", acc.Slug, "submit_id", sub.ID,
		"steps", len(c.report.Steps), "failed", failed)
	if failed > 0 {
		return c.report, ErrCascadeIncomplete
	}
	return c.report, nil
}

func (c *cascade) skip(kind, target string) {
	c.report.Steps = append(c.report.Steps, CascadeStep{Kind: kind, Target: target, Err: errSkipped, Skipped: true})
}

// deleteComment удаляет ответы треда, затем файлы и сам комментарий.
func (c *cascade) deleteComment(ctx context.Context, id string, withReplies bool) {
	svc := c.svc
	cm, err := svc.store.GetComment(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.run(ctx, StepComment, id, func(context.Context) error { return nil })
		return
	}
	if err != nil {
		c.run(ctx, StepComment, id, func(context.Context) error { return fmt.Errorf("get comment: %w", err) })
		return
	}
	if withReplies {
		for _, r := range cm.ThreadReplies {
			c.deleteComment(ctx, r.ID, false)
		}
	}
	for _, f := range cm.Files {
		c.run(ctx, StepCommentFile, f.ID, func(ctx context.Context) error {
			return svc.attachments.DeleteFile(ctx, domain.ParentComment, f.ID)
		})
	}
	c.run(ctx, StepComment, cm.ID, func(ctx context.Context) error {
		return svc.store.DeleteComment(ctx, cm.ID)
	})
}
