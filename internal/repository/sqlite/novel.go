package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

var _ repository.NovelRepository = (*NovelDB)(nil)

// NovelDB stores Novel documents in the novels table, with the embedded
// chapter list and tags held as JSON.
//
// DOCUMENT COLUMNS:
// chapters and tags are TEXT columns holding JSON arrays. The novel is
// always read whole, so there is no need to join a chapters table; the
// price is that appending a chapter rewrites the array, which is why
// AppendChapter runs in a transaction.
//
// COUNTERS:
// views and likes are integer columns changed with "col = col + 1" in the
// same transaction as the novel_reactions insert that justifies them. The
// reactions table's primary key makes a repeat insert a no-op.
type NovelDB struct {
	conn *sql.DB
}

const novelColumns = `id, title, synopsis, cover_image, genre, author_id, chapters, status, tags, views, likes, created_at, updated_at`

// reaction kinds stored in novel_reactions
const (
	kindView = "view"
	kindLike = "like"
)

// Create inserts a novel. IDs are generated for the novel and for any
// chapter that does not have one yet.
func (n *NovelDB) Create(ctx context.Context, novel *model.Novel) error {
	novel.ID = xid.New().String()
	now := time.Now().UTC()
	if novel.CreatedAt.IsZero() {
		novel.CreatedAt = now
	}
	novel.UpdatedAt = novel.CreatedAt
	for i := range novel.Chapters {
		c := &novel.Chapters[i]
		if c.ID == "" {
			c.ID = xid.New().String()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = novel.CreatedAt
			c.UpdatedAt = novel.CreatedAt
		}
	}

	chapters, tags, err := encodeNovelArrays(novel)
	if err != nil {
		return err
	}

	_, err = n.conn.ExecContext(ctx,
		`INSERT INTO novels (`+novelColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		novel.ID,
		novel.Title,
		novel.Synopsis,
		novel.CoverImage,
		string(novel.Genre),
		novel.AuthorID,
		chapters,
		string(novel.Status),
		tags,
		novel.Views,
		novel.Likes,
		novel.CreatedAt,
		novel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting novel: %w", err)
	}
	return nil
}

// GetByID retrieves a novel with its chapters.
func (n *NovelDB) GetByID(ctx context.Context, id string) (*model.Novel, error) {
	row := n.conn.QueryRowContext(ctx,
		`SELECT `+novelColumns+` FROM novels WHERE id = ?`, id)
	novel, err := scanNovel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("novel", id)
		}
		return nil, fmt.Errorf("sqlite: getting novel %s: %w", id, err)
	}
	return novel, nil
}

// List returns one catalog page and the total number of matches.
func (n *NovelDB) List(ctx context.Context, filter repository.NovelFilter) ([]model.Novel, int, error) {
	limit, offset := repository.ClampPage(filter.Limit, filter.Offset)

	// Every condition appends its SQL and its args together, so placeholders
	// and values stay in step whatever subset of the filter is set.
	var (
		where []string
		args  []any
	)
	if filter.Genre != "" {
		where = append(where, "genre = ?")
		args = append(args, string(filter.Genre))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AuthorID != "" {
		where = append(where, "author_id = ?")
		args = append(args, filter.AuthorID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(synopsis) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	// The count ignores LIMIT/OFFSET: it is the size of the whole result.
	var total int
	if err := n.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM novels`+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting novels: %w", err)
	}

	rows, err := n.conn.QueryContext(ctx,
		`SELECT `+novelColumns+` FROM novels`+clause+
			` ORDER BY `+novelOrder(filter.Sort)+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing novels: %w", err)
	}
	defer rows.Close()

	novels := make([]model.Novel, 0, limit)
	for rows.Next() {
		novel, err := scanNovel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning novel row: %w", err)
		}
		novels = append(novels, *novel)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating novels: %w", err)
	}

	return novels, total, nil
}

// novelOrder maps a sort to ORDER BY. Ties break on created_at then id so
// pages stay stable when counters are equal.
func novelOrder(sort repository.NovelSort) string {
	switch sort {
	case repository.SortPopular:
		return "views DESC, created_at DESC, id DESC"
	case repository.SortLikes:
		return "likes DESC, created_at DESC, id DESC"
	default:
		return "created_at DESC, id DESC"
	}
}

// Update writes the editable novel fields. Chapters and counters have
// their own write paths.
func (n *NovelDB) Update(ctx context.Context, novel *model.Novel) error {
	novel.UpdatedAt = time.Now().UTC()
	// Only tags are re-encoded; the chapters column is not part of the SET.
	_, tags, err := encodeNovelArrays(novel)
	if err != nil {
		return err
	}

	result, err := n.conn.ExecContext(ctx,
		`UPDATE novels
		 SET title = ?, synopsis = ?, cover_image = ?, genre = ?, status = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		novel.Title,
		novel.Synopsis,
		novel.CoverImage,
		string(novel.Genre),
		string(novel.Status),
		tags,
		novel.UpdatedAt,
		novel.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating novel %s: %w", novel.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("novel", novel.ID)
	}
	return nil
}

// AppendChapter assigns the chapter the next contiguous order and appends
// it inside one transaction, so concurrent appends cannot reuse an order.
func (n *NovelDB) AppendChapter(ctx context.Context, novelID string, chapter *model.Chapter) error {
	return withTx(ctx, n.conn, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT chapters FROM novels WHERE id = ?`, novelID,
		).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("novel", novelID)
			}
			return fmt.Errorf("sqlite: reading chapters of %s: %w", novelID, err)
		}

		var chapters []model.Chapter
		if err := json.Unmarshal([]byte(raw), &chapters); err != nil {
			return fmt.Errorf("sqlite: decoding chapters of %s: %w", novelID, err)
		}

		now := time.Now().UTC()
		chapter.ID = xid.New().String()
		chapter.Order = len(chapters) + 1
		chapter.CreatedAt = now
		chapter.UpdatedAt = now
		chapters = append(chapters, *chapter)

		encoded, err := json.Marshal(chapters)
		if err != nil {
			return fmt.Errorf("sqlite: encoding chapters: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE novels SET chapters = ?, updated_at = ? WHERE id = ?`,
			string(encoded), now, novelID,
		); err != nil {
			return fmt.Errorf("sqlite: appending chapter to %s: %w", novelID, err)
		}
		return nil
	})
}

// IncrementViews adds one view; a non-empty actorKey counts once.
func (n *NovelDB) IncrementViews(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	var res repository.CounterResult
	err := withTx(ctx, n.conn, func(tx *sql.Tx) error {
		if err := requireNovel(ctx, tx, novelID); err != nil {
			return err
		}
		if actorKey != "" {
			inserted, err := insertReaction(ctx, tx, novelID, actorKey, kindView)
			if err != nil {
				return err
			}
			if !inserted {
				return readCounter(ctx, tx, novelID, "views", &res.Value)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE novels SET views = views + 1 WHERE id = ?`, novelID,
		); err != nil {
			return fmt.Errorf("sqlite: incrementing views of %s: %w", novelID, err)
		}
		res.Changed = true
		return readCounter(ctx, tx, novelID, "views", &res.Value)
	})
	return res, err
}

// AddLike records the actor's like once.
func (n *NovelDB) AddLike(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	var res repository.CounterResult
	err := withTx(ctx, n.conn, func(tx *sql.Tx) error {
		if err := requireNovel(ctx, tx, novelID); err != nil {
			return err
		}
		inserted, err := insertReaction(ctx, tx, novelID, actorKey, kindLike)
		if err != nil {
			return err
		}
		if inserted {
			if _, err := tx.ExecContext(ctx,
				`UPDATE novels SET likes = likes + 1 WHERE id = ?`, novelID,
			); err != nil {
				return fmt.Errorf("sqlite: incrementing likes of %s: %w", novelID, err)
			}
			res.Changed = true
		}
		return readCounter(ctx, tx, novelID, "likes", &res.Value)
	})
	return res, err
}

// RemoveLike withdraws the actor's like if one exists.
func (n *NovelDB) RemoveLike(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	var res repository.CounterResult
	err := withTx(ctx, n.conn, func(tx *sql.Tx) error {
		if err := requireNovel(ctx, tx, novelID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`DELETE FROM novel_reactions WHERE novel_id = ? AND actor_key = ? AND kind = ?`,
			novelID, actorKey, kindLike,
		)
		if err != nil {
			return fmt.Errorf("sqlite: removing like on %s: %w", novelID, err)
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if removed > 0 {
			// MAX keeps a hand-edited zero from going negative.
			if _, err := tx.ExecContext(ctx,
				`UPDATE novels SET likes = MAX(likes - 1, 0) WHERE id = ?`, novelID,
			); err != nil {
				return fmt.Errorf("sqlite: decrementing likes of %s: %w", novelID, err)
			}
			res.Changed = true
		}
		return readCounter(ctx, tx, novelID, "likes", &res.Value)
	})
	return res, err
}

// HasLiked reports whether the actor currently likes the novel.
func (n *NovelDB) HasLiked(ctx context.Context, novelID, actorKey string) (bool, error) {
	var count int
	err := n.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM novel_reactions WHERE novel_id = ? AND actor_key = ? AND kind = ?`,
		novelID, actorKey, kindLike,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking like on %s: %w", novelID, err)
	}
	return count > 0, nil
}

// requireNovel turns a missing novel into apperror.ErrNotFound before any
// reaction row is written for it.
func requireNovel(ctx context.Context, tx *sql.Tx, novelID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM novels WHERE id = ?`, novelID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("novel", novelID)
		}
		return fmt.Errorf("sqlite: looking up novel %s: %w", novelID, err)
	}
	return nil
}

// insertReaction returns false when the (novel, actor, kind) row exists.
func insertReaction(ctx context.Context, tx *sql.Tx, novelID, actorKey, kind string) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO novel_reactions (novel_id, actor_key, kind, created_at)
		 VALUES (?, ?, ?, ?)`,
		novelID, actorKey, kind, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: recording %s on %s: %w", kind, novelID, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return inserted > 0, nil
}

// readCounter reads views or likes; column is never user input.
func readCounter(ctx context.Context, tx *sql.Tx, novelID, column string, dst *int64) error {
	if err := tx.QueryRowContext(ctx,
		`SELECT `+column+` FROM novels WHERE id = ?`, novelID,
	).Scan(dst); err != nil {
		return fmt.Errorf("sqlite: reading %s of %s: %w", column, novelID, err)
	}
	return nil
}

// encodeNovelArrays stores nil slices as [] so reads never see JSON null.
func encodeNovelArrays(novel *model.Novel) (chapters, tags string, err error) {
	if novel.Chapters == nil {
		novel.Chapters = []model.Chapter{}
	}
	if novel.Tags == nil {
		novel.Tags = []string{}
	}
	c, err := json.Marshal(novel.Chapters)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding chapters: %w", err)
	}
	t, err := json.Marshal(novel.Tags)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	return string(c), string(t), nil
}

// scanNovel reads one row in novelColumns order. Chapters come back sorted.
func scanNovel(row rowScanner) (*model.Novel, error) {
	var (
		novel          model.Novel
		genre, status  string
		chapters, tags string
	)
	if err := row.Scan(
		&novel.ID,
		&novel.Title,
		&novel.Synopsis,
		&novel.CoverImage,
		&genre,
		&novel.AuthorID,
		&chapters,
		&status,
		&tags,
		&novel.Views,
		&novel.Likes,
		&novel.CreatedAt,
		&novel.UpdatedAt,
	); err != nil {
		return nil, err
	}
	novel.Genre = model.Genre(genre)
	novel.Status = model.NovelStatus(status)

	if err := json.Unmarshal([]byte(chapters), &novel.Chapters); err != nil {
		return nil, fmt.Errorf("decoding chapters: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &novel.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if novel.Tags == nil {
		novel.Tags = []string{}
	}
	novel.SortChapters()
	return &novel, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
