package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrInvalidID is returned when an identifier is not a well-formed recipe id.
// It is distinct from "not found": a malformed id can never name a recipe.
var ErrInvalidID = errors.New("invalid id format")

// Store defines the interface for recipe persistence.
type Store interface {
	SaveRecipes(ctx context.Context, drafts []Draft) ([]*Recipe, error)
	FindRecipes(ctx context.Context, filter Filter) ([]*Recipe, error)
	SetSelections(ctx context.Context, ids []string) (int64, error)
	DeleteRecipe(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

// Filter selects recipes by exact match on its present fields.
type Filter struct {
	PostalCode *string
	InList     *bool
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS recipes (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		ingredients JSONB NOT NULL,
		steps JSONB NOT NULL,
		cook_time TEXT NOT NULL,
		prep_time TEXT NOT NULL,
		servings INTEGER NOT NULL,
		difficulty TEXT NOT NULL,
		postal_code TEXT,
		flyer_deals JSONB,
		in_list BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipes table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SaveRecipes validates all drafts, then persists them in one transaction.
// Each saved recipe gets a fresh id, in_list=false, a creation timestamp and
// defaults for the optional fields.
func (s *PostgresStore) SaveRecipes(ctx context.Context, drafts []Draft) ([]*Recipe, error) {
	for i := range drafts {
		if err := drafts[i].Validate(); err != nil {
			return nil, fmt.Errorf("recipe %d: %w", i+1, err)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	saved := make([]*Recipe, 0, len(drafts))
	for _, d := range drafts {
		d.ApplyDefaults()

		ingredientsJSON, err := json.Marshal(d.Ingredients)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ingredients: %w", err)
		}
		stepsJSON, err := json.Marshal(d.Steps)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal steps: %w", err)
		}

		r := &Recipe{
			ID:          uuid.NewString(),
			Name:        d.Name,
			Ingredients: d.Ingredients,
			Steps:       d.Steps,
			CookTime:    d.CookTime,
			PrepTime:    d.PrepTime,
			Servings:    d.Servings,
			Difficulty:  d.Difficulty,
			PostalCode:  d.PostalCode,
			FlyerDeals:  d.FlyerDeals,
			InList:      false,
			CreatedAt:   now,
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO recipes (id, name, ingredients, steps, cook_time, prep_time, servings, difficulty, postal_code, flyer_deals, in_list, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			r.ID, r.Name, ingredientsJSON, stepsJSON, r.CookTime, r.PrepTime, r.Servings, r.Difficulty,
			nullableString(r.PostalCode), nullableJSON(r.FlyerDeals), r.InList, r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to save recipe %q: %w", r.Name, err)
		}
		saved = append(saved, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit save: %w", err)
	}
	return saved, nil
}

// FindRecipes returns the recipes matching the filter, oldest first. An empty
// filter returns everything.
func (s *PostgresStore) FindRecipes(ctx context.Context, filter Filter) ([]*Recipe, error) {
	query := "SELECT id, name, ingredients, steps, cook_time, prep_time, servings, difficulty, postal_code, flyer_deals, in_list, created_at FROM recipes WHERE 1=1"
	var args []interface{}

	paramCount := 1
	if filter.PostalCode != nil {
		query += fmt.Sprintf(" AND postal_code = $%d", paramCount)
		args = append(args, *filter.PostalCode)
		paramCount++
	}
	if filter.InList != nil {
		query += fmt.Sprintf(" AND in_list = $%d", paramCount)
		args = append(args, *filter.InList)
		paramCount++
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}
	defer rows.Close()

	recipes := []*Recipe{}
	for rows.Next() {
		var r Recipe
		var ingredientsJSON, stepsJSON []byte
		var flyerDealsJSON []byte
		var postalCode *string
		err := rows.Scan(
			&r.ID, &r.Name, &ingredientsJSON, &stepsJSON, &r.CookTime, &r.PrepTime,
			&r.Servings, &r.Difficulty, &postalCode, &flyerDealsJSON, &r.InList, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipe row: %w", err)
		}

		if err := json.Unmarshal(ingredientsJSON, &r.Ingredients); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
		}
		if err := json.Unmarshal(stepsJSON, &r.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
		if postalCode != nil {
			r.PostalCode = *postalCode
		}
		if len(flyerDealsJSON) > 0 {
			r.FlyerDeals = json.RawMessage(flyerDealsJSON)
		}
		recipes = append(recipes, &r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return recipes, nil
}

// SetSelections replaces the shopping list: every in_list flag is cleared,
// then set on exactly the given ids. Both steps run in one transaction so
// readers never observe the intermediate empty state. Returns the number of
// recipes flagged.
func (s *PostgresStore) SetSelections(ctx context.Context, ids []string) (int64, error) {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE recipes SET in_list = FALSE WHERE in_list = TRUE"); err != nil {
		return 0, fmt.Errorf("failed to clear selections: %w", err)
	}

	var updated int64
	if len(ids) > 0 {
		res, err := tx.ExecContext(ctx, "UPDATE recipes SET in_list = TRUE WHERE id = ANY($1::uuid[])", pq.Array(ids))
		if err != nil {
			return 0, fmt.Errorf("failed to set selections: %w", err)
		}
		updated, err = res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count updated rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit selections: %w", err)
	}
	return updated, nil
}

// DeleteRecipe removes a recipe by id. The second return value reports
// whether a recipe existed under that id.
func (s *PostgresStore) DeleteRecipe(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete recipe: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return affected > 0, nil
}

// Ping reports database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
