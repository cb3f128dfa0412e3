// Package config loads Spotifire configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAddr         = "127.0.0.1:8080"
	DefaultDataDir      = "./data"
	DefaultRegion       = "us-east-1"
	DefaultS3Prefix     = "spotifire"
	DefaultGlueDatabase = "spotify_analytics"
	DefaultModelID      = "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
)

// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")

// ErrMissingBucket is returned when an AWS-backed command runs without SPOTIFIRE_BUCKET set.
var ErrMissingBucket = errors.New("missing SPOTIFIRE_BUCKET environment variable")

// Config holds all runtime configuration for Spotifire.
type Config struct {
	// Spotify application credentials.
	ClientID     string
	ClientSecret string

	// Addr is the listen address for the web server.
	Addr string
	// BaseURL is the externally visible base URL used to build the OAuth
	// redirect URI. Defaults to http://<Addr>.
	BaseURL string

	// DataDir is the root for user tokens and collected snapshots.
	DataDir string

	// AWS settings.
	Region       string
	Bucket       string
	S3Prefix     string
	GlueDatabase string
	AthenaOutput string
	ModelID      string

	// DatabaseURL enables Postgres-backed sessions when set.
	DatabaseURL string
}

// Load reads configuration from a .env file (if present) and the environment.
// It does not validate Spotify credentials; call RequireSpotify where they
// are mandatory.
func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		ClientID:     os.Getenv("SPOTIFY_ID"),
		ClientSecret: os.Getenv("SPOTIFY_SECRET"),
		Addr:         getenv("SPOTIFIRE_ADDR", DefaultAddr),
		BaseURL:      os.Getenv("SPOTIFIRE_BASE_URL"),
		DataDir:      getenv("SPOTIFIRE_DATA_DIR", DefaultDataDir),
		Region:       getenv("AWS_REGION", DefaultRegion),
		Bucket:       os.Getenv("SPOTIFIRE_BUCKET"),
		S3Prefix:     getenv("SPOTIFIRE_S3_PREFIX", DefaultS3Prefix),
		GlueDatabase: getenv("GLUE_DATABASE", DefaultGlueDatabase),
		AthenaOutput: os.Getenv("ATHENA_OUTPUT"),
		ModelID:      getenv("BEDROCK_MODEL_ID", DefaultModelID),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://" + cfg.Addr
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.AthenaOutput == "" && cfg.Bucket != "" {
		cfg.AthenaOutput = fmt.Sprintf("s3://%s/athena-results/", cfg.Bucket)
	}

	return cfg, nil
}

// RedirectURI returns the OAuth callback URI derived from BaseURL.
func (c *Config) RedirectURI() string {
	return c.BaseURL + "/callback"
}

// RequireSpotify returns ErrMissingCredentials unless both Spotify
// credentials are present.
func (c *Config) RequireSpotify() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// RequireBucket returns ErrMissingBucket unless an S3 bucket is configured.
func (c *Config) RequireBucket() error {
	if c.Bucket == "" {
		return ErrMissingBucket
	}
	return nil
}

// RawPrefix returns the S3 key prefix for raw snapshot uploads.
func (c *Config) RawPrefix() string {
	return c.S3Prefix + "/raw"
}

// ProcessedPrefix returns the S3 key prefix for processed Parquet files.
func (c *Config) ProcessedPrefix() string {
	return c.S3Prefix + "/processed/individual"
}

// MLPrefix returns the S3 key prefix for generated profile artifacts.
func (c *Config) MLPrefix() string {
	return c.S3Prefix + "/ml"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
