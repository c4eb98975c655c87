package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDraft is returned when a draft is missing a required field.
var ErrInvalidDraft = errors.New("invalid recipe draft")

// Ingredient is a single ingredient with its quantity.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// Draft is a generated-but-unpersisted recipe suggestion. PostalCode and
// FlyerDeals are optional and caller-supplied; FlyerDeals is carried as an
// opaque payload.
type Draft struct {
	Name        string          `json:"name"`
	Ingredients []Ingredient    `json:"ingredients"`
	Steps       []string        `json:"steps"`
	CookTime    string          `json:"cook_time"`
	PrepTime    string          `json:"prep_time"`
	Servings    int             `json:"servings"`
	Difficulty  string          `json:"difficulty"`
	PostalCode  string          `json:"postal_code,omitempty"`
	FlyerDeals  json.RawMessage `json:"flyer_deals,omitempty"`
}

// Recipe is a persisted recipe. The set of recipes with InList set is the
// shopping list.
type Recipe struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Ingredients []Ingredient    `json:"ingredients"`
	Steps       []string        `json:"steps"`
	CookTime    string          `json:"cook_time" db:"cook_time"`
	PrepTime    string          `json:"prep_time" db:"prep_time"`
	Servings    int             `json:"servings" db:"servings"`
	Difficulty  string          `json:"difficulty" db:"difficulty"`
	PostalCode  string          `json:"postal_code,omitempty" db:"postal_code"`
	FlyerDeals  json.RawMessage `json:"flyer_deals,omitempty"`
	InList      bool            `json:"in_list" db:"in_list"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Validate checks that the fields without defaults are present.
func (d *Draft) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDraft)
	}
	if len(d.Ingredients) == 0 {
		return fmt.Errorf("%w: ingredients are required", ErrInvalidDraft)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: steps are required", ErrInvalidDraft)
	}
	return nil
}

// ApplyDefaults fills the optional timing and difficulty fields.
func (d *Draft) ApplyDefaults() {
	if d.CookTime == "" {
		d.CookTime = "30 minutes"
	}
	if d.PrepTime == "" {
		d.PrepTime = "15 minutes"
	}
	if d.Servings == 0 {
		d.Servings = 4
	}
	if d.Difficulty == "" {
		d.Difficulty = "Easy"
	}
}
