package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// PromptService manages writing prompts.
type PromptService struct {
	prompts repository.PromptRepository
	users   repository.UserRepository
	logger  *slog.Logger
}

// NewPromptService creates a PromptService. users resolves the caller's
// profile so a new prompt can record who created it.
func NewPromptService(prompts repository.PromptRepository, users repository.UserRepository, logger *slog.Logger) *PromptService {
	return &PromptService{prompts: prompts, users: users, logger: logger}
}

// PromptQuery is the public listing filter. Category "all" means any.
type PromptQuery struct {
	Category  string
	IsPublic  *bool
	CreatorID string
}

// List returns up to repository.MaxPromptResults prompts, newest first.
func (s *PromptService) List(ctx context.Context, q PromptQuery) ([]model.WritingPrompt, error) {
	filter := repository.PromptFilter{
		IsPublic:  q.IsPublic,
		CreatorID: strings.TrimSpace(q.CreatorID),
	}
	// An unknown category is not an error here; it simply matches nothing.
	if c := strings.TrimSpace(q.Category); c != "" && !strings.EqualFold(c, model.CategoryAll) {
		filter.Category = model.PromptCategory(c)
	}

	prompts, err := s.prompts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing writing prompts: %w", err)
	}
	return prompts, nil
}

// PromptInput is the body of a new prompt. IsPublic defaults to true.
type PromptInput struct {
	Title    string
	Content  string
	Category string
	IsPublic *bool
}

// Create stores a prompt authored by the caller. The caller is checked
// before anything in the input.
func (s *PromptService) Create(ctx context.Context, caller *auth.Caller, in PromptInput) (*model.WritingPrompt, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	category := strings.TrimSpace(in.Category)
	if field := firstMissing("title", title, "content", content, "category", category); field != "" {
		return nil, apperror.ValidationFailed(field, msgMissingFields)
	}

	prompt := &model.WritingPrompt{
		Title:    title,
		Content:  content,
		Category: model.PromptCategory(category),
		IsPublic: true,
		Uses:     0,
	}
	if in.IsPublic != nil {
		prompt.IsPublic = *in.IsPublic
	}
	if err := model.Validate(prompt); err != nil {
		return nil, err
	}

	// Signed-in callers without a profile may still post; the prompt is
	// then stored without a creator.
	profile, err := profileOf(ctx, s.users, caller)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		prompt.CreatorID = profile.ID
	}

	if err := s.prompts.Create(ctx, prompt); err != nil {
		s.logger.Error("failed to create writing prompt",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating writing prompt: %w", err)
	}

	s.logger.Info("writing prompt created",
		slog.String("id", prompt.ID),
		slog.String("category", string(prompt.Category)),
	)
	return prompt, nil
}

// Use records that a writer picked the prompt up.
func (s *PromptService) Use(ctx context.Context, id string) (*model.WritingPrompt, error) {
	prompt, err := s.prompts.IncrementUses(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("using writing prompt %s: %w", id, err)
	}
	return prompt, nil
}

// Categories lists the accepted prompt categories.
func (s *PromptService) Categories() []model.PromptCategory {
	return model.PromptCategories
}
