package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"flyerchef/internal/deal"
	"flyerchef/internal/postal"
	"flyerchef/internal/recipe"
)

// DealFetcher defines the interface for aggregating flyer deals.
type DealFetcher interface {
	FetchDeals(ctx context.Context, postalCode string) ([]deal.Record, int, error)
}

// RecipeGenerator defines the interface for turning a prompt into drafts.
type RecipeGenerator interface {
	Generate(ctx context.Context, prompt string) ([]recipe.Draft, error)
}

// RecipeStore defines the interface for recipe persistence.
type RecipeStore interface {
	SaveRecipes(ctx context.Context, drafts []recipe.Draft) ([]*recipe.Recipe, error)
	FindRecipes(ctx context.Context, filter recipe.Filter) ([]*recipe.Recipe, error)
	SetSelections(ctx context.Context, ids []string) (int64, error)
	DeleteRecipe(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

// Handler handles HTTP requests.
type Handler struct {
	DealFetcher     DealFetcher
	RecipeGenerator RecipeGenerator
	RecipeStore     RecipeStore
}

// NewHandler creates a new Handler.
func NewHandler(fetcher DealFetcher, generator RecipeGenerator, store RecipeStore) *Handler {
	return &Handler{DealFetcher: fetcher, RecipeGenerator: generator, RecipeStore: store}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// GenerateRecipes runs the deal-to-recipe pipeline for a postal code and
// returns unsaved drafts.
func (h *Handler) GenerateRecipes(c *gin.Context) {
	var req struct {
		PostalCode string `json:"postal_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PostalCode == "" {
		fail(c, http.StatusBadRequest, "postal_code is required")
		return
	}

	postalCode, err := postal.Normalize(req.PostalCode)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	// One budget for the whole pipeline: flyer listing, per-flyer items and
	// up to three model calls.
	ctx, cancel := context.WithTimeout(c.Request.Context(), 45*time.Second)
	defer cancel()

	deals, skipped, err := h.DealFetcher.FetchDeals(ctx, postalCode)
	if err != nil {
		log.Printf("deal fetch failed for %s: %v", postalCode, err)
		fail(c, http.StatusInternalServerError, "failed to fetch flyer deals")
		return
	}
	if skipped > 0 {
		log.Printf("skipped %d flyer(s) for %s", skipped, postalCode)
	}

	prompt := recipe.BuildPrompt(deals, postalCode)
	drafts, err := h.RecipeGenerator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("recipe generation failed for %s: %v", postalCode, err)
		fail(c, http.StatusInternalServerError, "failed to generate recipes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"recipes":     drafts,
		"count":       len(drafts),
		"postal_code": postalCode,
		"deals_found": len(deals),
	})
}

// SaveRecipes persists the drafts the client selected from a generation
// response.
func (h *Handler) SaveRecipes(c *gin.Context) {
	var req struct {
		Recipes []recipe.Draft `json:"recipes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Recipes) == 0 {
		fail(c, http.StatusBadRequest, "recipes array is required and must not be empty")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	saved, err := h.RecipeStore.SaveRecipes(ctx, req.Recipes)
	if err != nil {
		if errors.Is(err, recipe.ErrInvalidDraft) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("failed to save recipes: %v", err)
		fail(c, http.StatusInternalServerError, "failed to save recipes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "recipes": saved, "count": len(saved)})
}

// GetRecipes lists saved recipes, optionally filtered by postal_code and
// in_list query parameters.
func (h *Handler) GetRecipes(c *gin.Context) {
	var filter recipe.Filter
	if pc := c.Query("postal_code"); pc != "" {
		filter.PostalCode = &pc
	}
	if raw := c.Query("in_list"); raw != "" {
		inList, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "in_list must be true or false")
			return
		}
		filter.InList = &inList
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	recipes, err := h.RecipeStore.FindRecipes(ctx, filter)
	if err != nil {
		log.Printf("failed to list recipes: %v", err)
		fail(c, http.StatusInternalServerError, "failed to retrieve recipes")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "recipes": recipes, "count": len(recipes)})
}

// UpdateSelections replaces the shopping list with the given recipe ids.
func (h *Handler) UpdateSelections(c *gin.Context) {
	var req struct {
		SelectedRecipeIDs *[]string `json:"selected_recipe_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SelectedRecipeIDs == nil {
		fail(c, http.StatusBadRequest, "selected_recipe_ids is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	updated, err := h.RecipeStore.SetSelections(ctx, *req.SelectedRecipeIDs)
	if err != nil {
		if errors.Is(err, recipe.ErrInvalidID) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("failed to update selections: %v", err)
		fail(c, http.StatusInternalServerError, "failed to update selections")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"updated_count": updated,
		"message":       "shopping list updated",
	})
}

// GetShoppingList returns the recipes currently flagged for the shopping list.
func (h *Handler) GetShoppingList(c *gin.Context) {
	inList := true

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	recipes, err := h.RecipeStore.FindRecipes(ctx, recipe.Filter{InList: &inList})
	if err != nil {
		log.Printf("failed to load shopping list: %v", err)
		fail(c, http.StatusInternalServerError, "failed to retrieve shopping list")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "recipes": recipes, "count": len(recipes)})
}

// DeleteRecipe removes a single recipe by id.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	found, err := h.RecipeStore.DeleteRecipe(ctx, id)
	if err != nil {
		if errors.Is(err, recipe.ErrInvalidID) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("failed to delete recipe %s: %v", id, err)
		fail(c, http.StatusInternalServerError, "failed to delete recipe")
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "recipe not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "recipe deleted"})
}

// Health reports process liveness and store connectivity. It always answers
// 200; a broken store shows up in the body, not the status.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	store := "connected"
	if err := h.RecipeStore.Ping(ctx); err != nil {
		log.Printf("health check: store unreachable: %v", err)
		store = "disconnected"
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": "healthy", "store": store})
}
