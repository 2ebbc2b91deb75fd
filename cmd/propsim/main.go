// Command propsim runs the nine-stage strategy pipeline for one scenario and
// exports the resulting memo and audit artifacts.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"propsim/internal/config"
	"propsim/internal/export"
	"propsim/internal/llm"
	"propsim/internal/pipeline"
	"propsim/internal/search"
	"propsim/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	scenario, err := loadScenario(cfg.InputPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	client, err := buildClient(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()
	client = llm.Wrap(client,
		llm.WithLogging(nil),
		llm.Retry(3, 500*time.Millisecond),
		llm.RateLimit(cfg.LLMRPS, 1),
	)

	var searcher search.Searcher
	if cfg.TavilyKey != "" {
		searcher, err = search.NewTavilyClient(cfg.TavilyKey, 10, 128)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		log.Print("TAVILY_API_KEY not set; running without live market context")
	}

	opts := []pipeline.Option{
		pipeline.WithTopK(cfg.TopK),
		pipeline.WithWeights(cfg.Weights),
	}
	if cfg.AllowTruncate {
		opts = append(opts, pipeline.WithTruncation())
	}
	eng, err := pipeline.NewEngine(client, searcher, opts...)
	if err != nil {
		log.Fatal(err)
	}

	result, state, err := eng.Run(ctx, scenario)
	if err != nil {
		log.Fatalf("run failed (committed stages: %v): %v", state.Stages(), err)
	}

	exp := &export.Exporter{OutDir: cfg.OutDir, S3: cfg.Artifact}
	if err := exp.Export(ctx, result, state); err != nil {
		log.Fatal(err)
	}
	log.Printf("done: %d recommended strategies, simulation score %.2f, artifacts in %s",
		len(result.TopStrategies), result.SimulationScore, cfg.OutDir)
}

func loadScenario(path string) (types.Scenario, error) {
	var sc types.Scenario
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := json.Unmarshal(b, &sc); err != nil {
		return sc, err
	}
	return sc, nil
}

func buildClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.Provider {
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.Model)
	case "azure":
		return llm.NewOpenAIClient(cfg.Endpoint, cfg.APIKey, cfg.Model, true), nil
	default:
		return llm.NewOpenAIClient(cfg.Endpoint, cfg.APIKey, cfg.Model, false), nil
	}
}
