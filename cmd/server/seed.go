package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/feedback-board-service/internal/auth"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/feedback"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/storage"
)

const (
	demoSlug  = "acme"
	demoAdmin = "admin@acme.test"
)

// seed создает демо-тенанта с несколькими элементами, голосами и веткой комментариев.
// Повторный запуск ничего не делает, если тенант уже есть.
func seed(ctx context.Context, a *app, password string) error {
	log := logging.Module("seed")

	if _, err := a.store.GetAccountBySlug(ctx, demoSlug); err == nil {
		log.Info("demo tenant already exists", "slug", demoSlug)
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	acc := &domain.Account{
		ID:           domain.NewID(),
		Slug:         demoSlug,
		AdminEmail:   demoAdmin,
		PasswordHash: hash,
		BrandName:    "Acme",
		BoardTitle:   "Acme Feedback",
		PrimaryColor: "#3b82f6",
		HomeURL:      "https://acme.test",
		Plan:         "free",
	}
	if err := a.store.SaveAccount(ctx, acc); err != nil {
		return fmt.Errorf("seed: failed to create account: %w", err)
	}

	// 1. Публичная фича, за которую уже проголосовали
	feature, err := a.feedback.Submit(ctx, acc, feedback.NewSubmission{
		Email:  "jane@example.com",
		Type:   domain.TypeFeature,
		Title:  "Dark mode for the dashboard",
		Desc:   "Working late with a bright dashboard is painful.",
		Status: domain.StatusPublic,
	})
	if err != nil {
		return fmt.Errorf("seed: failed to create feature: %w", err)
	}
	agree := domain.ImpactAgree
	for _, email := range []string{"bob@example.com", "carol@example.com"} {
		if _, err := a.feedback.Vote(ctx, acc, feature.ID, feedback.VoteInput{
			Email:  email,
			Impact: &agree,
		}); err != nil {
			return fmt.Errorf("seed: failed to vote: %w", err)
		}
	}

	// 2. Комментарий и ответ на него
	c1, err := a.feedback.Comment(ctx, acc, feature.ID, feedback.CommentInput{
		Email:   "bob@example.com",
		Content: "Would love this for the mobile app too.",
	})
	if err != nil {
		return fmt.Errorf("seed: failed to create comment: %w", err)
	}
	if _, err := a.feedback.Reply(ctx, acc, c1.ID, feedback.CommentInput{
		Email:   "jane@example.com",
		Content: "Agreed, same theme everywhere.",
	}); err != nil {
		return fmt.Errorf("seed: failed to create reply: %w", err)
	}

	// 3. Ответ администратора
	if _, err := a.feedback.AdminReply(ctx, acc, feature.ID, "Thanks! This is on our roadmap."); err != nil {
		return fmt.Errorf("seed: failed to create admin reply: %w", err)
	}
	if _, err := a.feedback.SetProgress(ctx, acc, feature.ID, domain.ProgressInProgress); err != nil {
		return err
	}

	// 4. Приватный баг из виджета, на доске не виден
	bug, err := a.feedback.Submit(ctx, acc, feedback.NewSubmission{
		Email:      "dave@example.com",
		Type:       domain.TypeBug,
		Title:      "Export button does nothing",
		Desc:       "Clicking Export on the reports page has no effect.",
		DeviceInfo: "Chrome 120 / macOS",
		Widget:     true,
	})
	if err != nil {
		return fmt.Errorf("seed: failed to create bug: %w", err)
	}

	a.feedback.Wait()
	log.Info("demo data filled", "slug", demoSlug, "admin", demoAdmin, "feature_id", feature.ID, "bug_id", bug.ID)
	return nil
}
