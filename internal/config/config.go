package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

type Config struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ONNXLibraryPath string `yaml:"onnx_library_path"`
	ModelPath       string `yaml:"model_path"`
	MetadataPath    string `yaml:"metadata_path"`

	// When ModelBucket is set the model is fetched from S3 into ModelCacheDir
	// and ModelPath is ignored.
	ModelBucket   string `yaml:"model_bucket"`
	ModelKey      string `yaml:"model_key"`
	ModelCacheDir string `yaml:"model_cache_dir"`
	S3Endpoint    string `yaml:"s3_endpoint"`
	S3Region      string `yaml:"s3_region"`
	S3AccessKey   string `yaml:"s3_access_key"`
	S3SecretKey   string `yaml:"s3_secret_key"`

	Normalizer              string `yaml:"normalizer"`
	ConsistencyMode         string `yaml:"consistency_mode"`
	InferenceTimeoutSeconds int    `yaml:"inference_timeout_seconds"`

	UploadDir   string `yaml:"upload_dir"`
	DBPath      string `yaml:"db_path"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// Load reads .env, then the YAML file named by CONFIG_PATH (default
// config.yaml), then environment overrides. Missing files are fine.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env", "err", err)
	}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	return LoadFile(configPath)
}

func LoadFile(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	envOverrideInt(&cfg.Port, "PORT")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")
	envOverride(&cfg.ONNXLibraryPath, "ONNX_LIBRARY_PATH")
	envOverride(&cfg.ModelPath, "MODEL_PATH")
	envOverride(&cfg.MetadataPath, "METADATA_PATH")
	envOverride(&cfg.ModelBucket, "MODEL_BUCKET")
	envOverride(&cfg.ModelKey, "MODEL_KEY")
	envOverride(&cfg.ModelCacheDir, "MODEL_CACHE_DIR")
	envOverride(&cfg.S3Endpoint, "S3_ENDPOINT")
	envOverride(&cfg.S3Region, "S3_REGION")
	envOverride(&cfg.S3AccessKey, "S3_ACCESS_KEY")
	envOverride(&cfg.S3SecretKey, "S3_SECRET_KEY")
	envOverride(&cfg.Normalizer, "NORMALIZER")
	envOverride(&cfg.ConsistencyMode, "CONSISTENCY_MODE")
	envOverrideInt(&cfg.InferenceTimeoutSeconds, "INFERENCE_TIMEOUT_SECONDS")
	envOverride(&cfg.UploadDir, "UPLOAD_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverrideInt(&cfg.MaxUploadMB, "MAX_UPLOAD_MB")

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join(".", "models", "hierarchical_main_severity_model.onnx")
	}
	if c.ModelCacheDir == "" {
		c.ModelCacheDir = filepath.Join(".", "models", "cache")
	}
	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}
	if c.Normalizer == "" {
		c.Normalizer = "std"
	}
	if c.ConsistencyMode == "" {
		c.ConsistencyMode = string(triage.ModeSeverity)
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join(".", "smartseva_uploaded")
	}
	if c.DBPath == "" {
		c.DBPath = "./smartseva.db"
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 10
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Normalizer {
	case "std", "opencv":
	default:
		return fmt.Errorf("unknown normalizer %q (want std or opencv)", c.Normalizer)
	}
	if _, err := triage.ParseMode(c.ConsistencyMode); err != nil {
		return err
	}
	if c.ModelBucket != "" && c.ModelKey == "" {
		return fmt.Errorf("model_key is required when model_bucket is set")
	}
	if c.InferenceTimeoutSeconds < 0 {
		return fmt.Errorf("inference_timeout_seconds must not be negative")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func envOverride(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			slog.Warn("ignoring non-numeric env value", "key", key, "value", v)
		}
	}
}
