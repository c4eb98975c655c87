package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyerchef/internal/api"
	"flyerchef/internal/deal"
	"flyerchef/internal/recipe"
)

// mockDealFetcher is a mock of the DealFetcher interface.
type mockDealFetcher struct {
	deals       []deal.Record
	skipped     int
	returnError error
	receivedPC  string
}

func (m *mockDealFetcher) FetchDeals(ctx context.Context, postalCode string) ([]deal.Record, int, error) {
	m.receivedPC = postalCode
	if m.returnError != nil {
		return nil, 0, m.returnError
	}
	return m.deals, m.skipped, nil
}

// mockRecipeGenerator is a mock of the RecipeGenerator interface.
type mockRecipeGenerator struct {
	drafts         []recipe.Draft
	returnError    error
	receivedPrompt string
}

func (m *mockRecipeGenerator) Generate(ctx context.Context, prompt string) ([]recipe.Draft, error) {
	m.receivedPrompt = prompt
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.drafts, nil
}

// mockRecipeStore is an in-memory mock of the RecipeStore interface.
type mockRecipeStore struct {
	recipes   map[string]*recipe.Recipe
	order     []string
	saveError error
	findError error
	pingError error
}

func newMockRecipeStore() *mockRecipeStore {
	return &mockRecipeStore{recipes: make(map[string]*recipe.Recipe)}
}

func (m *mockRecipeStore) SaveRecipes(ctx context.Context, drafts []recipe.Draft) ([]*recipe.Recipe, error) {
	if m.saveError != nil {
		return nil, m.saveError
	}
	for i := range drafts {
		if err := drafts[i].Validate(); err != nil {
			return nil, fmt.Errorf("recipe %d: %w", i+1, err)
		}
	}
	saved := make([]*recipe.Recipe, 0, len(drafts))
	for _, d := range drafts {
		d.ApplyDefaults()
		r := &recipe.Recipe{
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
			CreatedAt:   time.Now().UTC(),
		}
		m.recipes[r.ID] = r
		m.order = append(m.order, r.ID)
		saved = append(saved, r)
	}
	return saved, nil
}

func (m *mockRecipeStore) FindRecipes(ctx context.Context, filter recipe.Filter) ([]*recipe.Recipe, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	result := []*recipe.Recipe{}
	for _, id := range m.order {
		r, ok := m.recipes[id]
		if !ok {
			continue
		}
		if filter.PostalCode != nil && r.PostalCode != *filter.PostalCode {
			continue
		}
		if filter.InList != nil && r.InList != *filter.InList {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func (m *mockRecipeStore) SetSelections(ctx context.Context, ids []string) (int64, error) {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return 0, fmt.Errorf("%w: %q", recipe.ErrInvalidID, id)
		}
	}
	for _, r := range m.recipes {
		r.InList = false
	}
	var updated int64
	for _, id := range ids {
		if r, ok := m.recipes[id]; ok {
			r.InList = true
			updated++
		}
	}
	return updated, nil
}

func (m *mockRecipeStore) DeleteRecipe(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, fmt.Errorf("%w: %q", recipe.ErrInvalidID, id)
	}
	if _, ok := m.recipes[id]; !ok {
		return false, nil
	}
	delete(m.recipes, id)
	return true, nil
}

func (m *mockRecipeStore) Ping(ctx context.Context) error {
	return m.pingError
}

func setupRouter(fetcher api.DealFetcher, generator api.RecipeGenerator, store api.RecipeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := api.NewHandler(fetcher, generator, store)

	r := gin.New()
	r.POST("/api/recipes/generate", handler.GenerateRecipes)
	r.POST("/api/recipes/save", handler.SaveRecipes)
	r.GET("/api/recipes", handler.GetRecipes)
	r.POST("/api/recipes/update-selections", handler.UpdateSelections)
	r.GET("/api/recipes/shopping-list", handler.GetShoppingList)
	r.DELETE("/api/recipes/:id", handler.DeleteRecipe)
	r.GET("/api/health", handler.Health)
	return r
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func sampleDraft(name string) recipe.Draft {
	return recipe.Draft{
		Name:        name,
		Ingredients: []recipe.Ingredient{{Name: "Chicken Breast", Quantity: "500g"}},
		Steps:       []string{"Slice chicken", "Stir fry"},
	}
}

func TestGenerateRecipes(t *testing.T) {
	fetcher := &mockDealFetcher{deals: []deal.Record{
		{Merchant: "FreshMart", FlyerID: 1, Name: "Chicken Breast", Price: "7.99"},
	}}
	generator := &mockRecipeGenerator{drafts: []recipe.Draft{sampleDraft("Chicken Stir Fry")}}
	r := setupRouter(fetcher, generator, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/generate", gin.H{"postal_code": "m5v2h1"})
	assert.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "M5V2H1", body["postal_code"])
	assert.Equal(t, float64(1), body["deals_found"])

	// Postal code reaches the fetcher normalized, and the deal shows up in
	// the generation prompt.
	assert.Equal(t, "M5V2H1", fetcher.receivedPC)
	assert.Contains(t, generator.receivedPrompt, "Chicken Breast - $7.99 at FreshMart")
}

func TestGenerateRecipes_MissingPostalCode(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/generate", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["success"])
}

func TestGenerateRecipes_InvalidPostalCode(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/generate", gin.H{"postal_code": "12345"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body["error"], "A1A1A1")
}

func TestGenerateRecipes_NoDealsStillGenerates(t *testing.T) {
	generator := &mockRecipeGenerator{drafts: []recipe.Draft{sampleDraft("Budget Pasta")}}
	r := setupRouter(&mockDealFetcher{}, generator, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/generate", gin.H{"postal_code": "M5V2H1"})
	assert.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, float64(0), body["deals_found"])
	assert.Contains(t, generator.receivedPrompt, "budget-friendly")
}

func TestGenerateRecipes_GenerationFailure(t *testing.T) {
	generator := &mockRecipeGenerator{returnError: errors.New("failed to generate recipes after 3 attempts")}
	r := setupRouter(&mockDealFetcher{}, generator, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/generate", gin.H{"postal_code": "M5V2H1"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, false, body["success"])
}

func TestSaveRecipes(t *testing.T) {
	store := newMockRecipeStore()
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, store)

	rr := postJSON(r, "/api/recipes/save", gin.H{"recipes": []recipe.Draft{sampleDraft("Chicken Stir Fry")}})
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success bool             `json:"success"`
		Recipes []*recipe.Recipe `json:"recipes"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Recipes, 1)
	saved := resp.Recipes[0]
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.InList)
	assert.Equal(t, 4, saved.Servings)
	assert.Equal(t, "30 minutes", saved.CookTime)
	assert.Equal(t, "Easy", saved.Difficulty)
}

func TestSaveRecipes_EmptyArray(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/save", gin.H{"recipes": []recipe.Draft{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSaveRecipes_MissingSteps(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	draft := sampleDraft("Incomplete")
	draft.Steps = nil
	rr := postJSON(r, "/api/recipes/save", gin.H{"recipes": []recipe.Draft{draft}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body["error"], "steps")
}

func TestGetRecipes_Filters(t *testing.T) {
	store := newMockRecipeStore()
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, store)

	torontoDraft := sampleDraft("Toronto Dish")
	torontoDraft.PostalCode = "M5V2H1"
	ottawaDraft := sampleDraft("Ottawa Dish")
	ottawaDraft.PostalCode = "K1A0B1"
	_, err := store.SaveRecipes(context.Background(), []recipe.Draft{torontoDraft, ottawaDraft})
	require.NoError(t, err)

	rr := get(r, "/api/recipes")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), decodeBody(t, rr)["count"])

	rr = get(r, "/api/recipes?postal_code=M5V2H1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decodeBody(t, rr)["count"])

	rr = get(r, "/api/recipes?in_list=true")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), decodeBody(t, rr)["count"])
}

func TestUpdateSelections_ReplacesShoppingList(t *testing.T) {
	store := newMockRecipeStore()
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, store)

	saved, err := store.SaveRecipes(context.Background(), []recipe.Draft{
		sampleDraft("A"), sampleDraft("B"), sampleDraft("C"),
	})
	require.NoError(t, err)

	// First selection.
	rr := postJSON(r, "/api/recipes/update-selections", gin.H{
		"selected_recipe_ids": []string{saved[0].ID, saved[1].ID},
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), decodeBody(t, rr)["updated_count"])

	// Re-selection replaces the previous state entirely.
	rr = postJSON(r, "/api/recipes/update-selections", gin.H{
		"selected_recipe_ids": []string{saved[2].ID},
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decodeBody(t, rr)["updated_count"])

	rr = get(r, "/api/recipes/shopping-list")
	assert.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Recipes []*recipe.Recipe `json:"recipes"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Recipes, 1)
	assert.Equal(t, "C", resp.Recipes[0].Name)
}

func TestUpdateSelections_MissingField(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/update-selections", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateSelections_MalformedID(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	rr := postJSON(r, "/api/recipes/update-selections", gin.H{
		"selected_recipe_ids": []string{"not-a-uuid"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body["error"], "invalid id format")
}

func TestDeleteRecipe(t *testing.T) {
	store := newMockRecipeStore()
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, store)

	saved, err := store.SaveRecipes(context.Background(), []recipe.Draft{sampleDraft("A")})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/recipes/"+saved[0].ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Gone now.
	req = httptest.NewRequest(http.MethodDelete, "/api/recipes/"+saved[0].ID, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteRecipe_MalformedID(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	req := httptest.NewRequest(http.MethodDelete, "/api/recipes/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body["error"], "invalid id format")
}

func TestDeleteRecipe_UnknownID(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	req := httptest.NewRequest(http.MethodDelete, "/api/recipes/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealth(t *testing.T) {
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, newMockRecipeStore())

	rr := get(r, "/api/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["store"])
}

func TestHealth_StoreDisconnected(t *testing.T) {
	store := newMockRecipeStore()
	store.pingError = errors.New("connection refused")
	r := setupRouter(&mockDealFetcher{}, &mockRecipeGenerator{}, store)

	rr := get(r, "/api/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "disconnected", body["store"])
}
