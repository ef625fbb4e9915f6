// Package model defines the documents stored by the application: users,
// novels with their embedded chapters, and writing prompts.
//
// Struct tags serve three consumers:
//   - json:     the HTTP API
//   - bson:     the MongoDB backend
//   - validate: schema validation (see Validate)
package model

import "time"

// User is a reader/author profile. The identity itself lives with the
// external identity provider; ExternalID is the foreign reference to it.
type User struct {
	ID         string    `json:"id"         bson:"_id"`
	Email      string    `json:"email"      bson:"email"      validate:"required,email"`
	Name       string    `json:"name"       bson:"name"       validate:"required"`
	Image      string    `json:"image"      bson:"image"`
	Bio        string    `json:"bio"        bson:"bio"`
	ExternalID string    `json:"supabaseId" bson:"supabaseId" validate:"required"`
	Favorites  []string  `json:"favorites"  bson:"favorites"` // ordered novel IDs
	CreatedAt  time.Time `json:"createdAt"  bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"  bson:"updatedAt"`
}

// HasFavorite reports whether novelID is already in the favorites list.
func (u *User) HasFavorite(novelID string) bool {
	for _, id := range u.Favorites {
		if id == novelID {
			return true
		}
	}
	return false
}
