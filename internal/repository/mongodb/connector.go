// Package mongodb implements the repository interfaces on MongoDB.
//
// Documents are stored as the model types encode them with bson. Embedded
// chapters live inside the novel document; likes and keyed views are one
// document each in novel_reactions, kept unique by index.
package mongodb

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	novelsCollection    = "novels"
	promptsCollection   = "writing_prompts"
	reactionsCollection = "novel_reactions"
)

// Connector opens the database on first use and hands the same handle to
// every later caller. A failed connect is not cached; the next call retries.
type Connector struct {
	uri      string
	database string

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
}

// NewConnector records where to connect. It never dials; see Database.
func NewConnector(uri, database string) *Connector {
	return &Connector{uri: uri, database: database}
}

// Database returns the connected database, connecting and creating indexes
// if this is the first call.
func (c *Connector) Database(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := client.Database(c.database)
	if err := ensureIndexes(ctx, db); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	c.client = client
	c.db = db
	return db, nil
}

func (c *Connector) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := c.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

// Close disconnects if a connection was ever made.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	c.db = nil
	if err != nil {
		return fmt.Errorf("mongo: disconnecting: %w", err)
	}
	return nil
}

// Users, Novels and Prompts return repositories that share this connector.
// None of them touch the network until their first call.
func (c *Connector) Users() *UserDB     { return &UserDB{conn: c} }
func (c *Connector) Novels() *NovelDB   { return &NovelDB{conn: c} }
func (c *Connector) Prompts() *PromptDB { return &PromptDB{conn: c} }

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("uniq_email").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "supabaseId", Value: 1}},
				Options: options.Index().SetName("uniq_supabase_id").SetUnique(true),
			},
		},
		novelsCollection: {
			{
				Keys:    bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("idx_author_created"),
			},
			{
				Keys:    bson.D{{Key: "genre", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("idx_genre_status"),
			},
			{
				Keys:    bson.D{{Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("idx_created"),
			},
		},
		promptsCollection: {
			{
				Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
				Options: options.Index().SetName("idx_category_created"),
			},
		},
		reactionsCollection: {
			{
				Keys: bson.D{
					{Key: "novel", Value: 1},
					{Key: "actor", Value: 1},
					{Key: "kind", Value: 1},
				},
				Options: options.Index().SetName("uniq_novel_actor_kind").SetUnique(true),
			},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: creating %s indexes: %w", name, err)
		}
	}
	return nil
}
