// Package config loads the title report generator configuration from
// defaults, an optional YAML file, a .env file and the environment.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/title_report.md
var defaultPrompt string

// DefaultPrompt returns the built-in legal title report instructions.
func DefaultPrompt() string {
	return defaultPrompt
}

// Config holds all configuration for the pipeline and its entry points.
type Config struct {
	// APIKey and ProjectID come from the environment only and are not validated.
	APIKey    string `yaml:"-"`
	ProjectID string `yaml:"-"`

	Translation TranslationConfig `yaml:"translation"`
	Generation  GenerationConfig  `yaml:"generation"`
	IAM         IAMConfig         `yaml:"iam"`
	Output      OutputConfig      `yaml:"output"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// TranslationConfig selects the translation backend and language pair.
type TranslationConfig struct {
	Provider       string        `yaml:"provider"` // google or cloud
	SourceLanguage string        `yaml:"source_language"`
	TargetLanguage string        `yaml:"target_language"`
	Endpoint       string        `yaml:"endpoint"`
	Concurrency    int           `yaml:"concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
}

// GenerationConfig holds the inference endpoint and decoding parameters.
type GenerationConfig struct {
	Provider          string        `yaml:"provider"` // watsonx or vertex
	Endpoint          string        `yaml:"endpoint"`
	Version           string        `yaml:"version"`
	ModelID           string        `yaml:"model_id"`
	DecodingMethod    string        `yaml:"decoding_method"`
	MaxNewTokens      int           `yaml:"max_new_tokens"`
	MinNewTokens      int           `yaml:"min_new_tokens"`
	StopSequences     []string      `yaml:"stop_sequences"`
	RepetitionPenalty float64       `yaml:"repetition_penalty"`
	ChunkSize         int           `yaml:"chunk_size"`
	PromptFile        string        `yaml:"prompt_file"`
	Prompt            string        `yaml:"-"`
	VertexRegion      string        `yaml:"vertex_region"`
	VertexModel       string        `yaml:"vertex_model"`
	Timeout           time.Duration `yaml:"timeout"`
}

// IAMConfig points at the identity token endpoint.
type IAMConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// OutputConfig controls where and how the report document is written.
type OutputConfig struct {
	Dir            string `yaml:"dir"`
	Suffix         string `yaml:"suffix"`
	Engine         string `yaml:"engine"` // pandoc or native
	PandocPath     string `yaml:"pandoc_path"`
	PandocVersion  string `yaml:"pandoc_version"`
	PandocCacheDir string `yaml:"pandoc_cache_dir"`
}

// LedgerConfig enables the Firestore run ledger.
type LedgerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Collection string `yaml:"collection"`
}

// ServerConfig holds the web UI settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// LogConfig holds slog settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Default returns the stock settings: Kannada to English, watsonx with the
// llama 3.3 model, chunks of 90 pages and pandoc output.
func Default() *Config {
	return &Config{
		Translation: TranslationConfig{
			Provider:       "google",
			SourceLanguage: "kn",
			TargetLanguage: "en",
			Concurrency:    1,
		},
		Generation: GenerationConfig{
			Provider:          "watsonx",
			Endpoint:          "https://us-south.ml.cloud.ibm.com/ml/v1/text/generation",
			Version:           "2024-01-15",
			ModelID:           "meta-llama/llama-3-3-70b-instruct",
			DecodingMethod:    "greedy",
			MaxNewTokens:      8100,
			MinNewTokens:      0,
			StopSequences:     []string{},
			RepetitionPenalty: 1.0,
			ChunkSize:         90,
			VertexRegion:      "us-central1",
			VertexModel:       "gemini-1.5-pro",
		},
		IAM: IAMConfig{
			Endpoint: "https://iam.cloud.ibm.com/identity/token",
		},
		Output: OutputConfig{
			Suffix:        " AI Summary",
			Engine:        "pandoc",
			PandocVersion: "3.1.11.1",
		},
		Ledger: LedgerConfig{
			Collection: "reportRuns",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 64 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.loadPrompt(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (c *Config) applyEnv() error {
	c.APIKey = GetEnv("API_KEY", c.APIKey)
	c.ProjectID = GetEnv("PROJECT_ID", c.ProjectID)

	c.Translation.Provider = GetEnv("TRANSLATE_PROVIDER", c.Translation.Provider)
	c.Translation.SourceLanguage = GetEnv("TRANSLATE_SOURCE_LANG", c.Translation.SourceLanguage)
	c.Translation.TargetLanguage = GetEnv("TRANSLATE_TARGET_LANG", c.Translation.TargetLanguage)
	c.Generation.Provider = GetEnv("GENERATION_PROVIDER", c.Generation.Provider)
	c.Generation.Endpoint = GetEnv("WATSONX_URL", c.Generation.Endpoint)
	c.Generation.ModelID = GetEnv("WATSONX_MODEL_ID", c.Generation.ModelID)
	c.Generation.PromptFile = GetEnv("PROMPT_FILE", c.Generation.PromptFile)
	c.Generation.VertexRegion = GetEnv("VERTEX_AI_REGION", c.Generation.VertexRegion)
	c.IAM.Endpoint = GetEnv("IAM_URL", c.IAM.Endpoint)
	c.Output.Dir = GetEnv("OUTPUT_DIR", c.Output.Dir)
	c.Output.Engine = GetEnv("CONVERTER_ENGINE", c.Output.Engine)
	c.Output.PandocPath = GetEnv("PANDOC_PATH", c.Output.PandocPath)
	c.Ledger.Collection = GetEnv("FIRESTORE_COLLECTION", c.Ledger.Collection)
	c.Server.Addr = GetEnv("HTTP_ADDR", c.Server.Addr)
	c.Log.Level = GetEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = GetEnv("LOG_FORMAT", c.Log.Format)

	ints := []struct {
		key string
		dst *int
	}{
		{"TRANSLATE_CONCURRENCY", &c.Translation.Concurrency},
		{"CHUNK_SIZE", &c.Generation.ChunkSize},
		{"MAX_NEW_TOKENS", &c.Generation.MaxNewTokens},
	}
	for _, v := range ints {
		raw, ok := os.LookupEnv(v.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", v.key, raw, err)
		}
		*v.dst = n
	}

	if raw, ok := os.LookupEnv("LEDGER_ENABLED"); ok {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_ENABLED %q: %w", raw, err)
		}
		c.Ledger.Enabled = enabled
	}
	return nil
}

func (c *Config) loadPrompt() error {
	if c.Generation.PromptFile == "" {
		c.Generation.Prompt = defaultPrompt
		return nil
	}
	data, err := os.ReadFile(c.Generation.PromptFile)
	if err != nil {
		return fmt.Errorf("failed to read prompt file %s: %w", c.Generation.PromptFile, err)
	}
	c.Generation.Prompt = string(data)
	return nil
}

// Validate checks the settings the pipeline cannot run without. The API key
// and project are checked by the first remote call instead.
func (c *Config) Validate() error {
	if c.Generation.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1, got %d", c.Generation.ChunkSize)
	}
	if c.Translation.Concurrency < 1 {
		return fmt.Errorf("translation concurrency must be at least 1, got %d", c.Translation.Concurrency)
	}
	switch c.Translation.Provider {
	case "google", "cloud":
	default:
		return fmt.Errorf("unknown translation provider %q", c.Translation.Provider)
	}
	switch c.Generation.Provider {
	case "watsonx", "vertex":
	default:
		return fmt.Errorf("unknown generation provider %q", c.Generation.Provider)
	}
	switch c.Output.Engine {
	case "pandoc", "native":
	default:
		return fmt.Errorf("unknown converter engine %q", c.Output.Engine)
	}
	if c.Translation.TargetLanguage == "" {
		return fmt.Errorf("target language must be set")
	}
	return nil
}
