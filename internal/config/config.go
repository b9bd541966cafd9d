package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// devSigningKey signs tokens in development when AUTH_SIGNING_KEY is unset.
const devSigningKey = "healthguard-development-signing-key-not-for-prod"

const minSigningKeyLen = 32

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	AuthIssuer        string        `mapstructure:"AUTH_ISSUER"`
	AuthSigningKey    string        `mapstructure:"AUTH_SIGNING_KEY"`
	TokenTTL          time.Duration `mapstructure:"TOKEN_TTL"`
	GeminiAPIKey      string        `mapstructure:"GEMINI_API_KEY"`
	GeminiTextModel   string        `mapstructure:"GEMINI_TEXT_MODEL"`
	GeminiVisionModel string        `mapstructure:"GEMINI_VISION_MODEL"`
	GeminiChatModel   string        `mapstructure:"GEMINI_CHAT_MODEL"`
	BriefCacheTTL     time.Duration `mapstructure:"BRIEF_CACHE_TTL"`
	MaxOpenChats      int           `mapstructure:"MAX_OPEN_CHATS"`
	GrantExpirySweep  string        `mapstructure:"GRANT_EXPIRY_SWEEP"`
	MaxUploadBytes    int64         `mapstructure:"MAX_UPLOAD_BYTES"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CORS_ORIGINS", "AUTH_ISSUER", "AUTH_SIGNING_KEY", "TOKEN_TTL",
	"GEMINI_API_KEY", "GEMINI_TEXT_MODEL", "GEMINI_VISION_MODEL", "GEMINI_CHAT_MODEL",
	"BRIEF_CACHE_TTL", "MAX_OPEN_CHATS", "GRANT_EXPIRY_SWEEP", "MAX_UPLOAD_BYTES", "REQUEST_TIMEOUT",
}

// Load reads configuration from the environment and an optional .env file.
// Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_ISSUER", "healthguard")
	v.SetDefault("TOKEN_TTL", "12h")
	v.SetDefault("GEMINI_TEXT_MODEL", "gemini-3-flash-preview")
	v.SetDefault("GEMINI_VISION_MODEL", "gemini-3-pro-preview")
	v.SetDefault("GEMINI_CHAT_MODEL", "gemini-3-pro-preview")
	v.SetDefault("BRIEF_CACHE_TTL", "10m")
	v.SetDefault("MAX_OPEN_CHATS", 16)
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("REQUEST_TIMEOUT", "60s")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.AuthSigningKey == "" && cfg.IsDev() {
		cfg.AuthSigningKey = devSigningKey
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesDevSigningKey reports whether tokens are signed with the built-in
// development key.
func (c *Config) UsesDevSigningKey() bool {
	return c.AuthSigningKey == devSigningKey
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && c.UsesDevSigningKey() {
		return fmt.Errorf("AUTH_SIGNING_KEY must not be the development key when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < minSigningKeyLen {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.AuthSigningKey))
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.BriefCacheTTL < 0 {
		return fmt.Errorf("BRIEF_CACHE_TTL must not be negative, got %s", c.BriefCacheTTL)
	}
	if c.MaxOpenChats <= 0 {
		return fmt.Errorf("MAX_OPEN_CHATS must be positive, got %d", c.MaxOpenChats)
	}
	if c.GrantExpirySweep != "" {
		if _, err := cron.ParseStandard(c.GrantExpirySweep); err != nil {
			return fmt.Errorf("GRANT_EXPIRY_SWEEP is not a valid schedule: %w", err)
		}
	}
	return nil
}
