package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"flyerchef/internal/api"
	"flyerchef/internal/deal"
	"flyerchef/internal/platform/flipp"
	"flyerchef/internal/platform/gemini"
	"flyerchef/internal/recipe"
)

// Config represents the application configuration.
type Config struct {
	GeminiAPIKey string `json:"gemini_api_key"`
	DatabaseURL  string `json:"DATABASE_URL"`
	FlippBaseURL string `json:"flipp_base_url"`
	ListenAddr   string `json:"listen_addr"`
}

func main() {
	ctx := context.Background()

	// Read configuration from config.json
	configData, err := os.ReadFile("config.json")
	if err != nil {
		panic(fmt.Errorf("failed to read config.json: %w", err))
	}

	var config Config
	if err := json.Unmarshal(configData, &config); err != nil {
		panic(fmt.Errorf("failed to unmarshal config.json: %w", err))
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}

	geminiClient, err := gemini.NewClient(ctx, config.GeminiAPIKey)
	if err != nil {
		panic(fmt.Errorf("error creating gemini client: %w", err))
	}
	defer geminiClient.Close()

	flippClient := flipp.NewClient(config.FlippBaseURL)

	dbStore, err := recipe.NewPostgresStore(config.DatabaseURL)
	if err != nil {
		panic(fmt.Errorf("error creating postgresstore: %w", err))
	}

	fetcher := deal.NewFetcher(flippClient)
	generator := recipe.NewGenerator(geminiClient, recipe.DefaultRetryPolicy)
	handler := api.NewHandler(fetcher, generator, dbStore)

	r := gin.Default()

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8081"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.POST("/api/recipes/generate", handler.GenerateRecipes)
	r.POST("/api/recipes/save", handler.SaveRecipes)
	r.GET("/api/recipes", handler.GetRecipes)
	r.POST("/api/recipes/update-selections", handler.UpdateSelections)
	r.GET("/api/recipes/shopping-list", handler.GetShoppingList)
	r.DELETE("/api/recipes/:id", handler.DeleteRecipe)
	r.GET("/api/health", handler.Health)

	r.Run(config.ListenAddr)
}
