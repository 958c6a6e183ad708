package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/poselab/swinglab/internal/analyzer"
	"github.com/poselab/swinglab/internal/config"
)

func main() {
	var (
		apiKey = flag.String("api-key", "", "Analyzer API key (default: GEMINI_API_KEY env)")
		model  = flag.String("model", "", "Model to verify (default: analyzer's default)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	fmt.Println("🔍 Checking Video Analyzer")
	fmt.Println("==========================")

	key := *apiKey
	if key == "" {
		key = cfg.GeminiAPIKey
	}
	if key == "" {
		fmt.Println("⚠️  WARNING: No API key configured!")
		fmt.Println("   Set GEMINI_API_KEY or pass -api-key")
		os.Exit(1)
	}
	fmt.Println("✅ API key configured")

	g, err := analyzer.NewGemini(analyzer.Config{
		APIKey:  key,
		BaseURL: cfg.GeminiBaseURL,
		Model:   *model,
	})
	if err != nil {
		log.Fatal("Failed to create analyzer:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := g.Initialize(ctx); err != nil {
		fmt.Printf("❌ Model %s is not reachable: %v\n", g.Model(), err)
		os.Exit(1)
	}
	fmt.Printf("✅ Model %s is reachable\n\n", g.Model())

	models, err := g.ListModels(ctx)
	if err != nil {
		log.Fatal("Failed to list models:", err)
	}

	fmt.Printf("📊 Available models: %d\n", len(models))
	fmt.Println("---------------------")
	for _, m := range models {
		name := strings.TrimPrefix(m.Name, "models/")
		if m.DisplayName != "" && m.DisplayName != name {
			fmt.Printf("  - %s (%s)\n", name, m.DisplayName)
		} else {
			fmt.Printf("  - %s\n", name)
		}
	}
}
