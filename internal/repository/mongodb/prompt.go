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

var _ repository.PromptRepository = (*PromptDB)(nil)

// PromptDB stores writing prompts in the writing_prompts collection.
type PromptDB struct {
	conn *Connector
}

// Create assigns the ID and, when unset, the creation time.
func (p *PromptDB) Create(ctx context.Context, prompt *model.WritingPrompt) error {
	coll, err := p.conn.collection(ctx, promptsCollection)
	if err != nil {
		return err
	}

	prompt.ID = xid.New().String()
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = time.Now().UTC()
	}
	prompt.UpdatedAt = prompt.CreatedAt

	if _, err := coll.InsertOne(ctx, prompt); err != nil {
		return fmt.Errorf("mongo: inserting writing prompt: %w", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound for an unknown id.
func (p *PromptDB) GetByID(ctx context.Context, id string) (*model.WritingPrompt, error) {
	coll, err := p.conn.collection(ctx, promptsCollection)
	if err != nil {
		return nil, err
	}

	var prompt model.WritingPrompt
	if err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&prompt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("writing prompt", id)
		}
		return nil, fmt.Errorf("mongo: getting writing prompt %s: %w", id, err)
	}
	return &prompt, nil
}

// List returns at most repository.MaxPromptResults prompts, newest first.
func (p *PromptDB) List(ctx context.Context, filter repository.PromptFilter) ([]model.WritingPrompt, error) {
	coll, err := p.conn.collection(ctx, promptsCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(repository.MaxPromptResults)
	cursor, err := coll.Find(ctx, promptQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing writing prompts: %w", err)
	}

	prompts := []model.WritingPrompt{}
	if err := cursor.All(ctx, &prompts); err != nil {
		return nil, fmt.Errorf("mongo: decoding writing prompts: %w", err)
	}
	return prompts, nil
}

// IncrementUses is a single findAndModify with $inc.
func (p *PromptDB) IncrementUses(ctx context.Context, id string) (*model.WritingPrompt, error) {
	coll, err := p.conn.collection(ctx, promptsCollection)
	if err != nil {
		return nil, err
	}

	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "uses", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
	}
	var prompt model.WritingPrompt
	err = coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&prompt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("writing prompt", id)
		}
		return nil, fmt.Errorf("mongo: incrementing uses of %s: %w", id, err)
	}
	return &prompt, nil
}
