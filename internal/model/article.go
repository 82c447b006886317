package model

// Category classifies an Article.
type Category string

const (
	CategoryTraining        Category = "training"
	CategoryHypertrophy     Category = "hypertrophy"
	CategoryNutrition       Category = "nutrition"
	CategorySupplementation Category = "supplementation"
	CategoryWeightLoss      Category = "weight-loss"
)

// Categories lists every valid Category in display order.
var Categories = []Category{
	CategoryTraining,
	CategoryHypertrophy,
	CategoryNutrition,
	CategorySupplementation,
	CategoryWeightLoss,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Article is a published piece of content shown to gym members.
type Article struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Category    Category `json:"category" validate:"required,oneof=training hypertrophy nutrition supplementation weight-loss"`
}

// Truncate shortens text to limit runes followed by "..." when it is longer.
func Truncate(text string, limit int) string {
	r := []rune(text)
	if limit <= 0 || len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}
