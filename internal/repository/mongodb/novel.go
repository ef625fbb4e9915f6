package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

var _ repository.NovelRepository = (*NovelDB)(nil)

// NovelDB stores novels in the novels collection, chapters embedded.
// Counters are plain integer fields changed only with $inc.
type NovelDB struct {
	conn *Connector
}

const (
	kindView = "view"
	kindLike = "like"
)

// reaction is one counted view or like. The unique index on
// (novel, actor, kind) makes a second insert fail with a duplicate key.
type reaction struct {
	NovelID   string    `bson:"novel"`
	ActorKey  string    `bson:"actor"`
	Kind      string    `bson:"kind"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Create assigns IDs to the novel and any chapters that lack one.
func (n *NovelDB) Create(ctx context.Context, novel *model.Novel) error {
	coll, err := n.conn.collection(ctx, novelsCollection)
	if err != nil {
		return err
	}

	novel.ID = xid.New().String()
	if novel.CreatedAt.IsZero() {
		novel.CreatedAt = time.Now().UTC()
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
	if novel.Chapters == nil {
		novel.Chapters = []model.Chapter{}
	}
	if novel.Tags == nil {
		novel.Tags = []string{}
	}

	if _, err := coll.InsertOne(ctx, novel); err != nil {
		return fmt.Errorf("mongo: inserting novel: %w", err)
	}
	return nil
}

// GetByID returns the novel with chapters sorted by order.
func (n *NovelDB) GetByID(ctx context.Context, id string) (*model.Novel, error) {
	coll, err := n.conn.collection(ctx, novelsCollection)
	if err != nil {
		return nil, err
	}

	var novel model.Novel
	if err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&novel); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("novel", id)
		}
		return nil, fmt.Errorf("mongo: getting novel %s: %w", id, err)
	}
	normalizeNovel(&novel)
	return &novel, nil
}

// List counts and pages with the same query; see novelQuery.
func (n *NovelDB) List(ctx context.Context, filter repository.NovelFilter) ([]model.Novel, int, error) {
	coll, err := n.conn.collection(ctx, novelsCollection)
	if err != nil {
		return nil, 0, err
	}

	limit, offset := repository.ClampPage(filter.Limit, filter.Offset)
	query := novelQuery(filter)

	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: counting novels: %w", err)
	}

	opts := options.Find().
		SetSort(novelSort(filter.Sort)).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo: listing novels: %w", err)
	}

	novels := make([]model.Novel, 0, limit)
	if err := cursor.All(ctx, &novels); err != nil {
		return nil, 0, fmt.Errorf("mongo: decoding novels: %w", err)
	}
	for i := range novels {
		normalizeNovel(&novels[i])
	}
	return novels, int(total), nil
}

// Update $sets the editable fields only, so counters and chapters
// written concurrently are kept.
func (n *NovelDB) Update(ctx context.Context, novel *model.Novel) error {
	coll, err := n.conn.collection(ctx, novelsCollection)
	if err != nil {
		return err
	}

	novel.UpdatedAt = time.Now().UTC()
	if novel.Tags == nil {
		novel.Tags = []string{}
	}
	result, err := coll.UpdateByID(ctx, novel.ID, bson.D{{Key: "$set", Value: bson.D{
		{Key: "title", Value: novel.Title},
		{Key: "synopsis", Value: novel.Synopsis},
		{Key: "coverImage", Value: novel.CoverImage},
		{Key: "genre", Value: string(novel.Genre)},
		{Key: "status", Value: string(novel.Status)},
		{Key: "tags", Value: novel.Tags},
		{Key: "updatedAt", Value: novel.UpdatedAt},
	}}})
	if err != nil {
		return fmt.Errorf("mongo: updating novel %s: %w", novel.ID, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("novel", novel.ID)
	}
	return nil
}

// AppendChapter pushes the chapter in a single pipeline update whose order
// is computed from the current array size on the server.
//
// PIPELINE UPDATE:
// A classic $push cannot read the array it is pushing to, so the order
// would have to be computed client side and could race. An aggregation
// pipeline update evaluates $size and $concatArrays against the stored
// document, all under the document lock.
func (n *NovelDB) AppendChapter(ctx context.Context, novelID string, chapter *model.Chapter) error {
	coll, err := n.conn.collection(ctx, novelsCollection)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	chapter.ID = xid.New().String()
	chapter.CreatedAt = now
	chapter.UpdatedAt = now

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "chapters", Value: 1}})

	var updated model.Novel
	err = coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: novelID}},
		appendChapterPipeline(chapter, now),
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperror.NotFound("novel", novelID)
		}
		return fmt.Errorf("mongo: appending chapter to %s: %w", novelID, err)
	}

	// The order was decided by the server; read it back by ID.
	for _, c := range updated.Chapters {
		if c.ID == chapter.ID {
			chapter.Order = c.Order
			break
		}
	}
	return nil
}

// appendChapterPipeline builds the one-stage $set pipeline. Title and content
// are wrapped in $literal: a pipeline treats "$x" strings as field paths.
func appendChapterPipeline(chapter *model.Chapter, now time.Time) mongo.Pipeline {
	existing := bson.D{{Key: "$ifNull", Value: bson.A{"$chapters", bson.A{}}}}
	entry := bson.D{
		{Key: "id", Value: chapter.ID},
		{Key: "title", Value: bson.D{{Key: "$literal", Value: chapter.Title}}},
		{Key: "content", Value: bson.D{{Key: "$literal", Value: chapter.Content}}},
		{Key: "order", Value: bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$size", Value: existing}}, 1}}}},
		{Key: "createdAt", Value: now},
		{Key: "updatedAt", Value: now},
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "chapters", Value: bson.D{{Key: "$concatArrays", Value: bson.A{existing, bson.A{entry}}}}},
			{Key: "updatedAt", Value: now},
		}}},
	}
}

// IncrementViews bumps views. With an actor key it goes through the
// reactions collection first, so a repeat key leaves the count alone.
func (n *NovelDB) IncrementViews(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	if actorKey == "" {
		value, err := n.bump(ctx, novelID, "views", 1, nil)
		return repository.CounterResult{Value: value, Changed: true}, err
	}
	return n.react(ctx, novelID, actorKey, kindView, "views")
}

// AddLike is react with kind "like".
func (n *NovelDB) AddLike(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	return n.react(ctx, novelID, actorKey, kindLike, "likes")
}

// RemoveLike deletes the reaction and decrements only if it existed. The
// $gt guard keeps likes from going negative after manual edits.
func (n *NovelDB) RemoveLike(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	var res repository.CounterResult
	if _, err := n.counter(ctx, novelID, "likes"); err != nil {
		return res, err
	}

	reactions, err := n.conn.collection(ctx, reactionsCollection)
	if err != nil {
		return res, err
	}
	deleted, err := reactions.DeleteOne(ctx, bson.D{
		{Key: "novel", Value: novelID},
		{Key: "actor", Value: actorKey},
		{Key: "kind", Value: kindLike},
	})
	if err != nil {
		return res, fmt.Errorf("mongo: removing like on %s: %w", novelID, err)
	}

	if deleted.DeletedCount == 0 {
		res.Value, err = n.counter(ctx, novelID, "likes")
		return res, err
	}

	res.Changed = true
	res.Value, err = n.bump(ctx, novelID, "likes", -1, bson.D{{Key: "likes", Value: bson.D{{Key: "$gt", Value: 0}}}})
	if errors.Is(err, apperror.ErrNotFound) {
		// already at zero
		res.Value, err = n.counter(ctx, novelID, "likes")
	}
	return res, err
}

// HasLiked reports whether the actor has a like recorded.
func (n *NovelDB) HasLiked(ctx context.Context, novelID, actorKey string) (bool, error) {
	reactions, err := n.conn.collection(ctx, reactionsCollection)
	if err != nil {
		return false, err
	}
	count, err := reactions.CountDocuments(ctx, bson.D{
		{Key: "novel", Value: novelID},
		{Key: "actor", Value: actorKey},
		{Key: "kind", Value: kindLike},
	})
	if err != nil {
		return false, fmt.Errorf("mongo: checking like on %s: %w", novelID, err)
	}
	return count > 0, nil
}

// react records a (novel, actor, kind) reaction and bumps field when the
// reaction is new.
//
// The insert and the $inc are two writes with no transaction around them;
// the unique index is what makes the pair idempotent. A crash between them
// leaves the reaction uncounted, never counted twice.
func (n *NovelDB) react(ctx context.Context, novelID, actorKey, kind, field string) (repository.CounterResult, error) {
	var res repository.CounterResult
	// Reading first doubles as the existence check and gives the value to
	// report for a repeat.
	current, err := n.counter(ctx, novelID, field)
	if err != nil {
		return res, err
	}

	reactions, err := n.conn.collection(ctx, reactionsCollection)
	if err != nil {
		return res, err
	}
	_, err = reactions.InsertOne(ctx, reaction{
		NovelID:   novelID,
		ActorKey:  actorKey,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		res.Value = current
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("mongo: recording %s on %s: %w", kind, novelID, err)
	}

	res.Changed = true
	res.Value, err = n.bump(ctx, novelID, field, 1, nil)
	return res, err
}

// bump applies $inc to field and returns the new value. extra narrows the
// match; no match is reported as apperror.ErrNotFound.
func (n *NovelDB) bump(ctx context.Context, novelID, field string, delta int64, extra bson.D) (int64, error) {
	coll, err := n.conn.collection(ctx, novelsCollection)
	if err != nil {
		return 0, err
	}

	filter := append(bson.D{{Key: "_id", Value: novelID}}, extra...)
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: field, Value: 1}})

	var doc bson.M
	err = coll.FindOneAndUpdate(ctx, filter,
		bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: delta}}}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, apperror.NotFound("novel", novelID)
		}
		return 0, fmt.Errorf("mongo: updating %s of %s: %w", field, novelID, err)
	}
	return asInt64(doc[field]), nil
}

// counter reads one integer field of a novel.
func (n *NovelDB) counter(ctx context.Context, novelID, field string) (int64, error) {
	coll, err := n.conn.collection(ctx, novelsCollection)
	if err != nil {
		return 0, err
	}

	var doc bson.M
	err = coll.FindOne(ctx,
		bson.D{{Key: "_id", Value: novelID}},
		options.FindOne().SetProjection(bson.D{{Key: field, Value: 1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, apperror.NotFound("novel", novelID)
		}
		return 0, fmt.Errorf("mongo: reading %s of %s: %w", field, novelID, err)
	}
	return asInt64(doc[field]), nil
}

// asInt64 accepts the integer widths bson may decode a counter as.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// normalizeNovel gives decoded documents the same shape SQLite returns.
func normalizeNovel(novel *model.Novel) {
	if novel.Chapters == nil {
		novel.Chapters = []model.Chapter{}
	}
	if novel.Tags == nil {
		novel.Tags = []string{}
	}
	novel.SortChapters()
}
