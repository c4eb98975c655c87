package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// TextGenerator defines the interface for the external generative model.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// RetryPolicy controls the generator's retry loop. Delay is called between
// attempts with the 1-based number of the attempt that just failed; a nil
// Delay retries immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration
}

// DefaultRetryPolicy retries up to 3 times with no delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3}

// Generator turns a prompt into recipe drafts via the generative model,
// retrying on malformed output.
type Generator struct {
	textGen TextGenerator
	retry   RetryPolicy
}

// NewGenerator creates a new Generator. A zero MaxAttempts falls back to the
// default policy.
func NewGenerator(textGen TextGenerator, retry RetryPolicy) *Generator {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &Generator{textGen: textGen, retry: retry}
}

// Generate calls the model with the prompt and parses its response into
// drafts. A call failure, malformed JSON, or an empty recipes array triggers
// another attempt; the last failure is wrapped and returned once the attempt
// budget is exhausted.
func (g *Generator) Generate(ctx context.Context, prompt string) ([]Draft, error) {
	var lastErr error
	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if attempt > 1 && g.retry.Delay != nil {
			select {
			case <-time.After(g.retry.Delay(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := g.textGen.GenerateContent(ctx, prompt)
		if err != nil {
			lastErr = err
			log.Printf("model call failed (attempt %d/%d): %v", attempt, g.retry.MaxAttempts, err)
			continue
		}

		drafts, err := parseDrafts(raw)
		if err != nil {
			lastErr = err
			log.Printf("model response rejected (attempt %d/%d): %v", attempt, g.retry.MaxAttempts, err)
			continue
		}
		return drafts, nil
	}

	return nil, fmt.Errorf("failed to generate recipes after %d attempts: %w", g.retry.MaxAttempts, lastErr)
}

func parseDrafts(raw string) ([]Draft, error) {
	cleaned := stripCodeFences(raw)

	var payload struct {
		Recipes []Draft `json:"recipes"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipes JSON: %w", err)
	}
	if len(payload.Recipes) == 0 {
		return nil, fmt.Errorf("response contained no recipes")
	}
	return payload.Recipes, nil
}

// stripCodeFences removes the leading/trailing markdown fences models often
// wrap JSON in despite instructions.
func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
