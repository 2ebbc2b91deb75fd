// Package config loads run configuration from flags, the environment, and
// an optional .env file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"propsim/internal/export"
	"propsim/internal/scoring"
)

// Config is everything the CLI needs to assemble a run.
type Config struct {
	InputPath string // scenario JSON file
	OutDir    string

	Provider string // openai | azure | gemini
	Model    string
	APIKey   string
	Endpoint string // chat-completions URL for openai/azure

	TavilyKey     string
	TopK          int
	AllowTruncate bool
	Weights       scoring.Weights
	LLMRPS        float64

	Artifact export.S3Config
}

// Load parses flags and environment. Flag values win over env values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	input := flag.String("input", "", "path to the scenario JSON file (required)")
	outDir := flag.String("out", "out", "output directory for run artifacts")
	provider := flag.String("provider", envOr("LLM_PROVIDER", "openai"), "text-generation provider: openai, azure, gemini")
	model := flag.String("model", envOr("LLM_MODEL", "gpt-4o"), "model id")
	topK := flag.Int("top-k", envInt("TOP_K", 3), "how many strategies the run recommends")
	allowTruncate := flag.Bool("allow-truncate", envBool("ALLOW_TRUNCATE"), "return fewer than top-k strategies with a warning instead of failing")
	flag.Parse()

	if *input == "" {
		return nil, fmt.Errorf("config: -input is required")
	}

	cfg := &Config{
		InputPath:     *input,
		OutDir:        *outDir,
		Provider:      strings.ToLower(strings.TrimSpace(*provider)),
		Model:         *model,
		TavilyKey:     os.Getenv("TAVILY_API_KEY"),
		TopK:          *topK,
		AllowTruncate: *allowTruncate,
		Weights:       loadWeights(),
		LLMRPS:        envFloat("LLM_RPS", 0),
		Artifact:      loadArtifact(),
	}

	switch cfg.Provider {
	case "openai":
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Endpoint = os.Getenv("OPENAI_BASE_URL")
	case "azure":
		cfg.APIKey = os.Getenv("AZURE_API_KEY")
		cfg.Endpoint = os.Getenv("AZURE_ENDPOINT")
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("config: AZURE_ENDPOINT is required for provider azure")
		}
	case "gemini":
		// The genai SDK reads GEMINI_API_KEY itself.
	default:
		return nil, fmt.Errorf("config: unknown provider %q", cfg.Provider)
	}

	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadWeights() scoring.Weights {
	w := scoring.DefaultWeights
	if v := envFloat("WEIGHT_IMPACT", -1); v >= 0 {
		w.Impact = v
	}
	if v := envFloat("WEIGHT_SPEED", -1); v >= 0 {
		w.Speed = v
	}
	if v := envFloat("WEIGHT_COST_RISK", -1); v >= 0 {
		w.CostRisk = v
	}
	return w
}

func loadArtifact() export.S3Config {
	endpoint := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
	return export.S3Config{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    envOr("ARTIFACT_S3_REGION", "us-east-1"),
		AccessKey: os.Getenv("ARTIFACT_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("ARTIFACT_S3_SECRET_KEY"),
		Bucket:    envOr("ARTIFACT_S3_BUCKET", "propsim-artifacts"),
		UseSSL:    envBool("ARTIFACT_S3_USE_SSL"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
