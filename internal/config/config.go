// Package config provides configuration management for the giftreco services.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration shared by the ETL and recommendation
// services.
type Config struct {
	Env string

	DatabaseURL string

	RakutenAppID       string
	RakutenAffiliateID string

	AWSRegion   string
	S3RawBucket string

	OpenAIAPIKey         string
	OpenAIEmbeddingModel string

	Port string
}

// Load reads configuration from environment variables with sensible
// defaults. env is used to pick the per-environment S3 bucket variable
// (S3_BUCKET_RAW_<ENV>).
func Load() (*Config, error) {
	env := getEnv("ENV", "dev")

	cfg := &Config{
		Env:                  env,
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RakutenAppID:         getEnv("RAKUTEN_APP_ID", ""),
		RakutenAffiliateID:   getEnv("RAKUTEN_AFFILIATE_ID", ""),
		AWSRegion:            getEnv("AWS_REGION", "ap-northeast-1"),
		S3RawBucket:          getEnv("S3_BUCKET_RAW_"+env, ""),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		Port:                 getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.RakutenAppID == "" {
		return nil, fmt.Errorf("config: RAKUTEN_APP_ID is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("config: OPENAI_API_KEY is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ModeOverrides is an optional modes.yaml shape for overriding a mode's
// default weights without a code change (§4.13's resolved-params table).
type ModeOverrides struct {
	Modes map[string]struct {
		Algorithm string  `yaml:"algorithm"`
		K         int     `yaml:"k"`
		WVec      float64 `yaml:"wVec"`
		WPop      float64 `yaml:"wPop"`
		WRev      float64 `yaml:"wRev"`
		MMRLambda float64 `yaml:"mmrLambda"`
	} `yaml:"modes"`
}

// LoadModeOverrides reads a modes.yaml file if path is nonempty and exists;
// an empty/missing path is not an error, it just means no overrides apply.
func LoadModeOverrides(path string) (*ModeOverrides, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read mode overrides: %w", err)
	}
	var out ModeOverrides
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("config: parse mode overrides: %w", err)
	}
	return &out, nil
}
