package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime configuration values.
type Config struct {
	Port        string           `mapstructure:"port"`
	PublicURL   string           `mapstructure:"public_url"`
	DatabaseURL string           `mapstructure:"database_url"`
	Log         LogConfig        `mapstructure:"log"`
	Sentry      SentryConfig     `mapstructure:"sentry"`
	Media       MediaConfig      `mapstructure:"media"`
	Codec       CodecConfig      `mapstructure:"codec"`
	Generation  GenerationConfig `mapstructure:"generation"`
	Analysis    AnalysisConfig   `mapstructure:"analysis"`
	Guests      GuestConfig      `mapstructure:"guests"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// MediaConfig describes where generated images are written.
type MediaConfig struct {
	Backend         string        `mapstructure:"backend"`
	PathPrefix      string        `mapstructure:"path_prefix"`
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	PublicURL       string        `mapstructure:"public_url"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	ForcePathStyle  bool          `mapstructure:"force_path_style"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	LocalDir        string        `mapstructure:"local_dir"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// CodecConfig bounds image downloads and normalization.
type CodecConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	MaxDimension int           `mapstructure:"max_dimension"`
	MaxPixels    int64         `mapstructure:"max_pixels"`
	JPEGQuality  int           `mapstructure:"jpeg_quality"`
}

// GenerationConfig selects and configures the image generation backend.
type GenerationConfig struct {
	Provider  string          `mapstructure:"provider"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Replicate ReplicateConfig `mapstructure:"replicate"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Imagen    ImagenConfig    `mapstructure:"imagen"`
}

// ReplicateConfig targets the Replicate predictions API.
type ReplicateConfig struct {
	Token        string        `mapstructure:"token"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// GeminiConfig holds a Gemini API key and model.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ImagenConfig describes how to reach Vertex AI Imagen.
type ImagenConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	Location           string `mapstructure:"location"`
	Model              string `mapstructure:"model"`
	APIKey             string `mapstructure:"api_key"`
	AccessToken        string `mapstructure:"access_token"`
	ServiceAccount     string `mapstructure:"service_account"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
}

// AnalysisConfig configures the vision analysis model.
type AnalysisConfig struct {
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// GuestConfig controls ephemeral guest results.
type GuestConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

// legacyEnv maps keys onto the environment names the service has always read.
var legacyEnv = map[string][]string{
	"port":                         {"APP_PORT"},
	"database_url":                 {"DATABASE_URL"},
	"public_url":                   {"PUBLIC_URL", "NEXT_PUBLIC_BASE_URL"},
	"sentry.dsn":                   {"SENTRY_DSN"},
	"media.bucket":                 {"S3_BUCKET"},
	"media.region":                 {"S3_REGION"},
	"media.endpoint":               {"S3_ENDPOINT"},
	"media.public_url":             {"S3_PUBLIC_URL"},
	"media.key_prefix":             {"S3_KEY_PREFIX"},
	"media.force_path_style":       {"S3_FORCE_PATH_STYLE"},
	"media.access_key_id":          {"S3_ACCESS_KEY_ID"},
	"media.secret_access_key":      {"S3_SECRET_ACCESS_KEY"},
	"media.credentials_file":       {"GOOGLE_APPLICATION_CREDENTIALS"},
	"generation.replicate.token":   {"REPLICATE_API_TOKEN"},
	"generation.gemini.api_key":    {"GEMINI_API_KEY"},
	"generation.imagen.project_id": {"GOOGLE_CLOUD_PROJECT"},
	"analysis.gemini_api_key":      {"GEMINI_API_KEY"},
	"analysis.base_url":            {"ANALYSIS_BASE_URL"},
}

// Load reads an optional config file and overlays environment variables.
// Nested keys are read from env as ROOMS_<SECTION>_<KEY>, e.g. ROOMS_MEDIA_BACKEND.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("rooms")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		input := append([]string{key, "ROOMS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(input...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("public_url", "")
	v.SetDefault("database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("media.backend", "")
	v.SetDefault("media.path_prefix", "room-redesign")
	v.SetDefault("media.bucket", "")
	v.SetDefault("media.region", "")
	v.SetDefault("media.endpoint", "")
	v.SetDefault("media.public_url", "")
	v.SetDefault("media.key_prefix", "")
	v.SetDefault("media.force_path_style", false)
	v.SetDefault("media.access_key_id", "")
	v.SetDefault("media.secret_access_key", "")
	v.SetDefault("media.local_dir", "data/media")
	v.SetDefault("media.credentials_file", "")
	v.SetDefault("media.timeout", 30*time.Second)

	v.SetDefault("codec.timeout", 30*time.Second)
	v.SetDefault("codec.max_bytes", 20<<20)
	v.SetDefault("codec.max_dimension", 2048)
	v.SetDefault("codec.max_pixels", 40_000_000)
	v.SetDefault("codec.jpeg_quality", 90)

	v.SetDefault("generation.provider", "replicate")
	v.SetDefault("generation.timeout", 3*time.Minute)
	v.SetDefault("generation.replicate.token", "")
	v.SetDefault("generation.replicate.model", "")
	v.SetDefault("generation.replicate.base_url", "https://api.replicate.com/v1")
	v.SetDefault("generation.replicate.poll_interval", 2*time.Second)
	v.SetDefault("generation.gemini.api_key", "")
	v.SetDefault("generation.gemini.model", "")
	v.SetDefault("generation.imagen.project_id", "")
	v.SetDefault("generation.imagen.location", "us-central1")
	v.SetDefault("generation.imagen.model", "imagen-3.0-capability-001")
	v.SetDefault("generation.imagen.api_key", "")
	v.SetDefault("generation.imagen.access_token", "")
	v.SetDefault("generation.imagen.service_account", "")
	v.SetDefault("generation.imagen.service_account_json", "")

	v.SetDefault("analysis.gemini_api_key", "")
	v.SetDefault("analysis.model", "")
	v.SetDefault("analysis.base_url", "")
	v.SetDefault("analysis.timeout", 90*time.Second)
	v.SetDefault("analysis.cache_ttl", 30*time.Minute)

	v.SetDefault("guests.retention", 24*time.Hour)
}

func (c *Config) normalize() {
	c.Port = strings.TrimSpace(c.Port)
	c.PublicURL = strings.TrimSuffix(strings.TrimSpace(c.PublicURL), "/")
	c.Media.Backend = strings.ToLower(strings.TrimSpace(c.Media.Backend))
	c.Media.PathPrefix = strings.Trim(c.Media.PathPrefix, "/")
	c.Media.KeyPrefix = strings.Trim(c.Media.KeyPrefix, "/")
	c.Generation.Provider = strings.ToLower(strings.TrimSpace(c.Generation.Provider))
	c.Analysis.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Analysis.BaseURL), "/")
	if c.PublicURL == "" {
		c.PublicURL = "http://localhost:" + c.Port
	}
	if c.Media.Backend == "" {
		switch {
		case c.Media.Bucket != "" && c.Media.Region != "":
			c.Media.Backend = "s3"
		case c.Media.Bucket != "" && c.Media.CredentialsFile != "":
			c.Media.Backend = "firebase"
		default:
			c.Media.Backend = "local"
		}
	}
}

// validate rejects combinations that would only fail once traffic arrives.
func (c Config) validate() error {
	if c.Port == "" {
		return errors.New("port cannot be empty")
	}
	switch c.Media.Backend {
	case "s3", "firebase":
		if strings.TrimSpace(c.Media.Bucket) == "" {
			return fmt.Errorf("media.bucket is required for the %s backend", c.Media.Backend)
		}
	}
	// The analysis base URL is called by the redesign pipeline; pointing it at
	// this instance makes /analyze forward to itself.
	if c.Analysis.BaseURL != "" && strings.EqualFold(c.Analysis.BaseURL, c.PublicURL) {
		return fmt.Errorf("analysis.base_url %q must not equal public_url", c.Analysis.BaseURL)
	}
	return nil
}
