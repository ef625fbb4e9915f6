package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/service"
)

// systemCaller owns seeded prompts. It has no profile, so the prompts are
// stored without a creator.
var systemCaller = &auth.Caller{ExternalID: "inkwell-seed"}

// defaultPrompts holds one starter prompt per category.
var defaultPrompts = []service.PromptInput{
	{
		Title:    "The Unsent Letter",
		Content:  "Your character finds a letter they wrote years ago and never sent. Who was it for, and why does it matter now?",
		Category: string(model.CategoryCharacterDevelopment),
	},
	{
		Title:    "The Trusted Ally",
		Content:  "The mentor who guided your hero has been working for the other side all along. Reveal it in a single scene.",
		Category: string(model.CategoryPlotTwist),
	},
	{
		Title:    "A Market at Dawn",
		Content:  "Describe a market in the minutes before it opens, using sound and smell before sight.",
		Category: string(model.CategorySettingDescription),
	},
	{
		Title:    "Two Truths",
		Content:  "Write a conversation where both characters are lying, and the reader can tell.",
		Category: string(model.CategoryDialogue),
	},
	{
		Title:    "The Price of Magic",
		Content:  "In your world every spell costs the caster a memory. Who keeps count, and what is forbidden?",
		Category: string(model.CategoryWorldBuilding),
	},
	{
		Title:    "One Seat Left",
		Content:  "Two people need the last place on the only ship leaving the city. Neither is the villain.",
		Category: string(model.CategoryConflict),
	},
	{
		Title:    "What We Inherit",
		Content:  "Tell a story about something passed down through a family that nobody actually wants.",
		Category: string(model.CategoryTheme),
	},
	{
		Title:    "Found in the Margins",
		Content:  "Start with a handwritten note found in a second-hand book and follow it wherever it leads.",
		Category: string(model.CategoryOther),
	},
}

// NewPromptsCommand builds "inkwell-seed prompts". Running it twice inserts
// nothing the second time; prompts are matched on title.
func NewPromptsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "prompts",
		Short:        "Insert the default writing prompts, one per category",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			// Seeding goes through the services, not the repositories, so
			// seeded data passes the same validation as API input.
			prompts := service.NewPromptService(store.Prompts, store.Users, newLogger(cmd.ErrOrStderr(), rootOpts.Verbose))
			n, err := seedPrompts(cmd.Context(), prompts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d prompts\n", n)
			return nil
		},
	}
}

// seedPrompts inserts the default prompts whose title is not already
// present in their category and reports how many were added.
func seedPrompts(ctx context.Context, prompts *service.PromptService) (int, error) {
	added := 0
	for _, in := range defaultPrompts {
		existing, err := prompts.List(ctx, service.PromptQuery{Category: in.Category})
		if err != nil {
			return added, err
		}
		if hasTitle(existing, in.Title) {
			continue
		}
		if _, err := prompts.Create(ctx, systemCaller, in); err != nil {
			return added, fmt.Errorf("seeding %q: %w", in.Title, err)
		}
		added++
	}
	return added, nil
}

// hasTitle matches titles exactly; a renamed prompt is seeded again.
func hasTitle(prompts []model.WritingPrompt, title string) bool {
	for _, p := range prompts {
		if p.Title == title {
			return true
		}
	}
	return false
}

type demoOptions struct {
	Email      string
	Name       string
	ExternalID string
}

// NewDemoCommand builds "inkwell-seed demo": a demo profile plus one novel
// with three chapters, enough to click through the reader. Each run adds
// another novel; only the profile is reused.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &demoOptions{}

	cmd := &cobra.Command{
		Use:          "demo",
		Short:        "Create a demo author with one three-chapter novel",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			logger := newLogger(cmd.ErrOrStderr(), rootOpts.Verbose)
			users := service.NewUserService(store.Users, store.Novels, logger)
			novels := service.NewNovelService(store.Novels, store.Users, nil, logger) // no cache

			novel, err := seedDemo(cmd.Context(), users, novels, *opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded novel %s (%d chapters) for %s\n", novel.ID, len(novel.Chapters), opts.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "demo@inkwell.local", "demo author email")
	cmd.Flags().StringVar(&opts.Name, "name", "Demo Author", "demo author name")
	cmd.Flags().StringVar(&opts.ExternalID, "external-id", "demo-author", "identity provider id of the demo author")

	return cmd
}

// demoChapters[0] opens the novel; the rest are appended in order.
var demoChapters = []service.ChapterInput{
	{Title: "The Lighthouse", Content: "<p>The lamp had been dark for eleven years when Mara climbed the stairs.</p>"},
	{Title: "Salt and Iron", Content: "<p>The keeper's logbook stopped mid-sentence.</p>"},
	{Title: "The Second Light", Content: "<p>Across the bay, another lamp answered hers.</p>"},
}

// seedDemo creates the demo author, reusing an existing profile, and
// publishes a novel with demoChapters.
func seedDemo(ctx context.Context, users *service.UserService, novels *service.NovelService, opts demoOptions) (*model.Novel, error) {
	if _, err := users.Create(ctx, opts.Email, opts.Name, opts.ExternalID); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
	}

	// Act as the demo author so ownership checks pass for AddChapter.
	caller := &auth.Caller{ExternalID: opts.ExternalID, Email: opts.Email}
	novel, err := novels.Create(ctx, caller, service.NovelInput{
		Title:    "The Second Light",
		Synopsis: "A keeper's daughter relights an abandoned lighthouse and gets an answer.",
		Genre:    string(model.GenreMystery),
		Tags:     []string{"lighthouse", "coastal", "slow burn"},
		Chapter:  demoChapters[0],
	})
	if err != nil {
		return nil, err
	}

	for _, ch := range demoChapters[1:] {
		if _, err := novels.AddChapter(ctx, caller, novel.ID, ch); err != nil {
			return nil, err
		}
	}
	return novels.Get(ctx, novel.ID)
}
