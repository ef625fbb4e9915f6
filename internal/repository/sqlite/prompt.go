package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

var _ repository.PromptRepository = (*PromptDB)(nil)

// PromptDB stores WritingPrompt documents in the writing_prompts table.
type PromptDB struct {
	conn *sql.DB
}

const promptColumns = `id, title, content, category, creator_id, is_public, uses, created_at, updated_at`

// Create inserts the prompt under a fresh xid.
func (p *PromptDB) Create(ctx context.Context, prompt *model.WritingPrompt) error {
	prompt.ID = xid.New().String()
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = time.Now().UTC()
	}
	prompt.UpdatedAt = prompt.CreatedAt

	_, err := p.conn.ExecContext(ctx,
		`INSERT INTO writing_prompts (`+promptColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		prompt.ID,
		prompt.Title,
		prompt.Content,
		string(prompt.Category),
		prompt.CreatorID,
		prompt.IsPublic,
		prompt.Uses,
		prompt.CreatedAt,
		prompt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting writing prompt: %w", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound for an unknown id.
func (p *PromptDB) GetByID(ctx context.Context, id string) (*model.WritingPrompt, error) {
	row := p.conn.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM writing_prompts WHERE id = ?`, id)
	prompt, err := scanPrompt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("writing prompt", id)
		}
		return nil, fmt.Errorf("sqlite: getting writing prompt %s: %w", id, err)
	}
	return prompt, nil
}

// List applies the filter conjunctively and returns at most
// repository.MaxPromptResults prompts, newest first.
func (p *PromptDB) List(ctx context.Context, filter repository.PromptFilter) ([]model.WritingPrompt, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.IsPublic != nil {
		where = append(where, "is_public = ?")
		args = append(args, *filter.IsPublic)
	}
	if filter.CreatorID != "" {
		where = append(where, "creator_id = ?")
		args = append(args, filter.CreatorID)
	}

	query := `SELECT ` + promptColumns + ` FROM writing_prompts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// rowid breaks ties between prompts created in the same instant.
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, repository.MaxPromptResults)

	rows, err := p.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing writing prompts: %w", err)
	}
	defer rows.Close()

	prompts := make([]model.WritingPrompt, 0)
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning writing prompt row: %w", err)
		}
		prompts = append(prompts, *prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating writing prompts: %w", err)
	}
	return prompts, nil
}

// IncrementUses adds one use with a single atomic UPDATE.
func (p *PromptDB) IncrementUses(ctx context.Context, id string) (*model.WritingPrompt, error) {
	result, err := p.conn.ExecContext(ctx,
		`UPDATE writing_prompts SET uses = uses + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: incrementing uses of %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("writing prompt", id)
	}
	// The UPDATE does not return the row, so read it back.
	return p.GetByID(ctx, id)
}

func scanPrompt(row rowScanner) (*model.WritingPrompt, error) {
	var (
		prompt   model.WritingPrompt
		category string
	)
	if err := row.Scan(
		&prompt.ID,
		&prompt.Title,
		&prompt.Content,
		&category,
		&prompt.CreatorID,
		&prompt.IsPublic,
		&prompt.Uses,
		&prompt.CreatedAt,
		&prompt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	prompt.Category = model.PromptCategory(category)
	return &prompt, nil
}
