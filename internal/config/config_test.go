package config

import (
	"errors"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPOTIFY_ID", "id")
	t.Setenv("SPOTIFY_SECRET", "secret")
	t.Setenv("SPOTIFIRE_ADDR", "")
	t.Setenv("SPOTIFIRE_BASE_URL", "")
	t.Setenv("SPOTIFIRE_DATA_DIR", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("SPOTIFIRE_BUCKET", "")
	t.Setenv("SPOTIFIRE_S3_PREFIX", "")
	t.Setenv("GLUE_DATABASE", "")
	t.Setenv("ATHENA_OUTPUT", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.BaseURL != "http://"+DefaultAddr {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "http://"+DefaultAddr)
	}
	if cfg.RedirectURI() != "http://"+DefaultAddr+"/callback" {
		t.Errorf("RedirectURI() = %q", cfg.RedirectURI())
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.Region != DefaultRegion {
		t.Errorf("Region = %q, want %q", cfg.Region, DefaultRegion)
	}
	if cfg.GlueDatabase != DefaultGlueDatabase {
		t.Errorf("GlueDatabase = %q, want %q", cfg.GlueDatabase, DefaultGlueDatabase)
	}
	if cfg.ModelID != DefaultModelID {
		t.Errorf("ModelID = %q, want %q", cfg.ModelID, DefaultModelID)
	}
	if err := cfg.RequireSpotify(); err != nil {
		t.Errorf("RequireSpotify() = %v, want nil", err)
	}
	if err := cfg.RequireBucket(); !errors.Is(err, ErrMissingBucket) {
		t.Errorf("RequireBucket() = %v, want ErrMissingBucket", err)
	}
}

func TestLoadAthenaOutputDerivedFromBucket(t *testing.T) {
	t.Setenv("SPOTIFIRE_BUCKET", "my-bucket")
	t.Setenv("ATHENA_OUTPUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AthenaOutput != "s3://my-bucket/athena-results/" {
		t.Errorf("AthenaOutput = %q", cfg.AthenaOutput)
	}
	if err := cfg.RequireBucket(); err != nil {
		t.Errorf("RequireBucket() = %v, want nil", err)
	}
}

func TestLoadBaseURLTrimsTrailingSlash(t *testing.T) {
	t.Setenv("SPOTIFIRE_BASE_URL", "https://spotifire.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://spotifire.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RedirectURI() != "https://spotifire.example.com/callback" {
		t.Errorf("RedirectURI() = %q", cfg.RedirectURI())
	}
}

func TestRequireSpotifyMissing(t *testing.T) {
	t.Setenv("SPOTIFY_ID", "")
	t.Setenv("SPOTIFY_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.RequireSpotify(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("RequireSpotify() = %v, want ErrMissingCredentials", err)
	}
}

func TestPrefixes(t *testing.T) {
	t.Setenv("SPOTIFIRE_S3_PREFIX", "custom")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.RawPrefix(); got != "custom/raw" {
		t.Errorf("RawPrefix() = %q", got)
	}
	if got := cfg.ProcessedPrefix(); got != "custom/processed/individual" {
		t.Errorf("ProcessedPrefix() = %q", got)
	}
	if got := cfg.MLPrefix(); got != "custom/ml" {
		t.Errorf("MLPrefix() = %q", got)
	}
}
