package mongodb

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sakif/inkwell/internal/repository"
)

// novelQuery translates a catalog filter into a find filter. Empty fields
// contribute nothing.
func novelQuery(f repository.NovelFilter) bson.D {
	q := bson.D{}
	if f.Genre != "" {
		q = append(q, bson.E{Key: "genre", Value: string(f.Genre)})
	}
	if f.Status != "" {
		q = append(q, bson.E{Key: "status", Value: string(f.Status)})
	}
	if f.AuthorID != "" {
		q = append(q, bson.E{Key: "author", Value: f.AuthorID})
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
		q = append(q, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "synopsis", Value: re}},
		}})
	}
	return q
}

func novelSort(s repository.NovelSort) bson.D {
	switch s {
	case repository.SortPopular:
		return bson.D{{Key: "views", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	case repository.SortLikes:
		return bson.D{{Key: "likes", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
}

func promptQuery(f repository.PromptFilter) bson.D {
	q := bson.D{}
	if f.Category != "" {
		q = append(q, bson.E{Key: "category", Value: string(f.Category)})
	}
	if f.IsPublic != nil {
		q = append(q, bson.E{Key: "isPublic", Value: *f.IsPublic})
	}
	if f.CreatorID != "" {
		q = append(q, bson.E{Key: "creator", Value: f.CreatorID})
	}
	return q
}
