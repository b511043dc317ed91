package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"unlabel/backend/internal/ai"
	"unlabel/backend/internal/archive"
	"unlabel/backend/internal/food"
	"unlabel/backend/internal/telemetry"
)

// ErrNoCredentials is returned when AI is enabled but no provider credential is set.
var ErrNoCredentials = errors.New("no AI credential configured; set GEMINI_API_KEY, OPENAI_API_KEY or BEDROCK_MODEL_ID, or DISABLE_AI=true")

// Config is the full runtime configuration, decoded from the environment.
type Config struct {
	Server    Server
	AI        AI
	Agent     Agent
	Pipeline  Pipeline
	Food      Food
	Archive   Archive
	Log       Log
	Telemetry telemetry.Config
}

type Server struct {
	Port           string   `env:"PORT,default=8000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000;http://127.0.0.1:3000;http://localhost:5173"`
	DBPath         string   `env:"DB_PATH,default=data/unlabel.db"`
	SilentDB       bool     `env:"DB_SILENT,default=true"`
}

// AI selects and tunes the capability providers.
type AI struct {
	Disabled          bool          `env:"DISABLE_AI,default=false"`
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GeminiAPIKeys     string        `env:"GEMINI_API_KEYS"`
	GeminiModel       string        `env:"GEMINI_MODEL"`
	GeminiMaxTokens   int32         `env:"GEMINI_MAX_TOKENS,default=2048"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIModel       string        `env:"OPENAI_MODEL"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAITemperature float64       `env:"OPENAI_TEMPERATURE"`
	OpenAIMaxTokens   int           `env:"OPENAI_MAX_TOKENS"`
	BedrockModelID    string        `env:"BEDROCK_MODEL_ID"`
	BedrockMaxTokens  int32         `env:"BEDROCK_MAX_TOKENS,default=1024"`
	MaxConcurrency    int           `env:"AI_MAX_CONCURRENCY"`
	Timeout           time.Duration `env:"AI_TIMEOUT,default=30s"`
	RetryRounds       int           `env:"AI_RETRY_ROUNDS,default=1"`
}

type Agent struct {
	MaxSteps    int  `env:"AGENT_MAX_STEPS,default=5"`
	EnforcePlan bool `env:"AGENT_ENFORCE_PLAN,default=true"`
}

type Pipeline struct {
	MaxTranslations int `env:"MAX_TRANSLATIONS,default=5"`
}

type Food struct {
	BaseURL   string        `env:"OFF_BASE_URL,default=https://world.openfoodfacts.org"`
	UserAgent string        `env:"OFF_USER_AGENT,default=unlabel-backend/1.0"`
	Timeout   time.Duration `env:"OFF_TIMEOUT,default=20s"`
	CacheTTL  time.Duration `env:"OFF_CACHE_TTL,default=12h"`
	PageSize  int           `env:"OFF_PAGE_SIZE,default=20"`
}

type Archive struct {
	Bucket string `env:"ARCHIVE_S3_BUCKET"`
	Prefix string `env:"ARCHIVE_S3_PREFIX,default=labels"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
}

// Load reads an optional .env file, decodes the environment and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if !c.AI.Disabled && !c.AI.HasCredentials() {
		return ErrNoCredentials
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("AGENT_MAX_STEPS must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Pipeline.MaxTranslations <= 0 {
		return fmt.Errorf("MAX_TRANSLATIONS must be positive, got %d", c.Pipeline.MaxTranslations)
	}
	return nil
}

// GeminiKeys returns GEMINI_API_KEY followed by the GEMINI_API_KEYS list, de-duplicated.
func (c AI) GeminiKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	add(c.GeminiAPIKey)
	for _, k := range strings.FieldsFunc(c.GeminiAPIKeys, func(r rune) bool { return r == ',' || r == ';' }) {
		add(k)
	}
	return keys
}

func (c AI) HasCredentials() bool {
	return len(c.GeminiKeys()) > 0 ||
		strings.TrimSpace(c.OpenAIAPIKey) != "" ||
		strings.TrimSpace(c.BedrockModelID) != ""
}

// NewGateway builds the capability gateway. Providers are ordered Gemini keys,
// then OpenAI, then Bedrock. A disabled config yields a gateway with no providers.
func (c AI) NewGateway(ctx context.Context) (*ai.Gateway, error) {
	gwCfg := ai.GatewayConfig{MaxConcurrency: c.MaxConcurrency, RetryRounds: c.RetryRounds}
	if c.Disabled {
		logrus.Warn("AI disabled; all stages will use their fallbacks")
		return ai.NewGateway(gwCfg), nil
	}

	var providers []ai.Provider
	for i, key := range c.GeminiKeys() {
		p, err := ai.NewGeminiProvider(ctx, ai.GeminiConfig{
			APIKey:    key,
			Model:     c.GeminiModel,
			MaxTokens: c.GeminiMaxTokens,
			Timeout:   c.Timeout,
			Label:     fmt.Sprintf("key%d", i+1),
		})
		if err != nil {
			return nil, fmt.Errorf("gemini key %d: %w", i+1, err)
		}
		providers = append(providers, p)
	}

	if strings.TrimSpace(c.OpenAIAPIKey) != "" {
		p, err := ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:      c.OpenAIAPIKey,
			Model:       c.OpenAIModel,
			BaseURL:     c.OpenAIBaseURL,
			Temperature: c.OpenAITemperature,
			MaxTokens:   c.OpenAIMaxTokens,
			Timeout:     c.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		providers = append(providers, p)
	}

	if model := strings.TrimSpace(c.BedrockModelID); model != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		providers = append(providers, ai.NewBedrockProvider(bedrockruntime.NewFromConfig(awsCfg), ai.BedrockOptions{
			ModelID:   model,
			MaxTokens: c.BedrockMaxTokens,
			Timeout:   c.Timeout,
		}))
	}

	gw := ai.NewGateway(gwCfg, providers...)
	logrus.WithField("providers", gw.Providers()).Info("capability gateway ready")
	return gw, nil
}

func (c Food) ClientConfig() food.Config {
	return food.Config{
		BaseURL:   c.BaseURL,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
		CacheTTL:  c.CacheTTL,
		PageSize:  c.PageSize,
	}
}

// NewArchive returns the S3 image archive, or nil when no bucket is configured.
func (c Archive) NewArchive(ctx context.Context) (*archive.S3Archive, error) {
	bucket := strings.TrimSpace(c.Bucket)
	if bucket == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 3
	})
	return archive.NewS3Archive(client, bucket, c.Prefix), nil
}

// Apply configures the global logrus logger.
func (c Log) Apply() {
	level, err := logrus.ParseLevel(strings.TrimSpace(c.Level))
	if err != nil {
		logrus.WithField("level", c.Level).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if strings.EqualFold(strings.TrimSpace(c.Format), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
