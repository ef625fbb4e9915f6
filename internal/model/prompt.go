package model

import "time"

// PromptCategory is the closed set of writing prompt categories.
type PromptCategory string

const (
	CategoryCharacterDevelopment PromptCategory = "Character Development"
	CategoryPlotTwist            PromptCategory = "Plot Twist"
	CategorySettingDescription   PromptCategory = "Setting Description"
	CategoryDialogue             PromptCategory = "Dialogue"
	CategoryWorldBuilding        PromptCategory = "World Building"
	CategoryConflict             PromptCategory = "Conflict"
	CategoryTheme                PromptCategory = "Theme"
	CategoryOther                PromptCategory = "Other"
)

// CategoryAll is the list-filter sentinel meaning "no category filter".
const CategoryAll = "all"

// PromptCategories lists every category in display order. The seed
// command creates one prompt per entry.
var PromptCategories = []PromptCategory{
	CategoryCharacterDevelopment, CategoryPlotTwist, CategorySettingDescription,
	CategoryDialogue, CategoryWorldBuilding, CategoryConflict, CategoryTheme,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c PromptCategory) Valid() bool {
	for _, v := range PromptCategories {
		if c == v {
			return true
		}
	}
	return false
}

// WritingPrompt is a creative suggestion, optionally owned by a creator.
type WritingPrompt struct {
	ID        string         `json:"id"                bson:"_id"`
	Title     string         `json:"title"             bson:"title"    validate:"required"`
	Content   string         `json:"content"           bson:"content"  validate:"required"`
	Category  PromptCategory `json:"category"          bson:"category" validate:"required,promptcategory"`
	CreatorID string         `json:"creator,omitempty" bson:"creator,omitempty"`
	IsPublic  bool           `json:"isPublic"          bson:"isPublic"`
	Uses      int64          `json:"uses"              bson:"uses"`
	CreatedAt time.Time      `json:"createdAt"         bson:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"         bson:"updatedAt"`
}
