package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, "room-redesign", cfg.Media.PathPrefix)
	assert.Equal(t, 2048, cfg.Codec.MaxDimension)
	assert.Equal(t, int64(40_000_000), cfg.Codec.MaxPixels)
	assert.Equal(t, "https://api.replicate.com/v1", cfg.Generation.Replicate.BaseURL)
	assert.Equal(t, "replicate", cfg.Generation.Provider)
	assert.Equal(t, 2*time.Second, cfg.Generation.Replicate.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.Guests.Retention)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
media:
  backend: S3
  bucket: rooms
  region: eu-central-1
  path_prefix: /custom/
generation:
  provider: Gemini
analysis:
  cache_ttl: 5m
`), 0o600))

	t.Setenv("ROOMS_LOG_LEVEL", "debug")
	t.Setenv("REPLICATE_API_TOKEN", "r8_env")
	t.Setenv("APP_PORT", "9100")
	t.Setenv("NEXT_PUBLIC_BASE_URL", "https://rooms.example.com/")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "https://rooms.example.com", cfg.PublicURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "s3", cfg.Media.Backend)
	assert.Equal(t, "custom", cfg.Media.PathPrefix)
	assert.Equal(t, "gemini", cfg.Generation.Provider)
	assert.Equal(t, "r8_env", cfg.Generation.Replicate.Token)
	assert.Equal(t, 5*time.Minute, cfg.Analysis.CacheTTL)
}

func TestBackendInference(t *testing.T) {
	cases := map[string]struct {
		media MediaConfig
		want  string
	}{
		"s3":       {MediaConfig{Bucket: "b", Region: "r"}, "s3"},
		"firebase": {MediaConfig{Bucket: "b", CredentialsFile: "sa.json"}, "firebase"},
		"local":    {MediaConfig{}, "local"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Config{Port: "8080", Media: tc.media}
			cfg.normalize()
			assert.Equal(t, tc.want, cfg.Media.Backend)
		})
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsSelfTargetingAnalysis(t *testing.T) {
	t.Setenv("PUBLIC_URL", "https://rooms.example.com")
	t.Setenv("ANALYSIS_BASE_URL", "https://ROOMS.example.com/")

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.base_url")

	t.Setenv("ANALYSIS_BASE_URL", "https://vision.example.com")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "https://vision.example.com", cfg.Analysis.BaseURL)
}

func TestLoadRejectsBucketlessObjectStore(t *testing.T) {
	for _, backend := range []string{"firebase", "s3"} {
		t.Run(backend, func(t *testing.T) {
			t.Setenv("ROOMS_MEDIA_BACKEND", backend)
			_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "media.bucket")
		})
	}
}
