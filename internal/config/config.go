package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName  string
	AppEnv   string
	AppPort  string
	LogLevel string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	GradeEventChannel string
	GradeEventSubject string

	JWTSecret   string
	JWTTokenTTL time.Duration
	SessionTTL  time.Duration

	AI AIConfig

	UploadDir       string
	UploadMaxSizeMB int
	UploadRetention time.Duration

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	AnalyticsCacheTTL time.Duration
	RateLimitMax      int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  string
}

// AIConfig describes the OpenAI-compatible chat completion endpoint used for grading.
type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// UploadMaxBytes returns the upload size limit in bytes.
func (c Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) * 1024 * 1024
}

// CloudinaryEnabled reports whether archive credentials are present.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HOMEWORK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Homework Grader API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("grade_events.channel", "homework:graded")
	v.SetDefault("grade_events.subject", "homework.graded")
	v.SetDefault("jwt.token_ttl", "24h")
	v.SetDefault("session.ttl", "168h")
	v.SetDefault("ai.base_url", "https://api.deepseek.com")
	v.SetDefault("ai.model", "deepseek-chat")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_tokens", 1000)
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("upload.retention", "0s")
	v.SetDefault("cloudinary.folder", "homework/uploads")
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("rate_limit.max", 100)
	v.SetDefault("rate_limit.window", "1h")
	v.SetDefault("cors.allow_origins", "*")

	durations := map[string]time.Duration{}
	for _, key := range []string{"jwt.token_ttl", "session.ttl", "ai.timeout", "upload.retention", "analytics.cache_ttl", "rate_limit.window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		GradeEventChannel: v.GetString("grade_events.channel"),
		GradeEventSubject: v.GetString("grade_events.subject"),
		JWTSecret:         v.GetString("jwt.secret"),
		JWTTokenTTL:       durations["jwt.token_ttl"],
		SessionTTL:        durations["session.ttl"],
		AI: AIConfig{
			APIKey:      v.GetString("ai.api_key"),
			BaseURL:     strings.TrimRight(v.GetString("ai.base_url"), "/"),
			Model:       v.GetString("ai.model"),
			Temperature: float32(v.GetFloat64("ai.temperature")),
			MaxTokens:   v.GetInt("ai.max_tokens"),
			Timeout:     durations["ai.timeout"],
		},
		UploadDir:              v.GetString("upload.dir"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		UploadRetention:        durations["upload.retention"],
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AnalyticsCacheTTL:      durations["analytics.cache_ttl"],
		RateLimitMax:           v.GetInt("rate_limit.max"),
		RateLimitWindow:        durations["rate_limit.window"],
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.AI.APIKey == "" {
		return Config{}, fmt.Errorf("ai api key must be provided")
	}

	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30 * time.Second
	}

	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 1000
	}

	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return Config{}, fmt.Errorf("ai temperature must be between 0 and 2")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 100
	}

	return cfg, nil
}
