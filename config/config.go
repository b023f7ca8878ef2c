package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration decodes TOML strings such as "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	HTTP      HTTPConfig      `toml:"http"`
	DB        DBConfig        `toml:"db"`
	Auth      AuthConfig      `toml:"auth"`
	Storage   StorageConfig   `toml:"storage"`
	Lifecycle LifecycleConfig `toml:"lifecycle"`
	Log       LogConfig       `toml:"log"`
}

type HTTPConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	BodyLimit    int      `toml:"body_limit"`
}

type DBConfig struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
}

type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

const (
	StorageDisk = "disk"
	StorageS3   = "s3"
)

type StorageConfig struct {
	Driver    string `toml:"driver"`
	Dir       string `toml:"dir"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

type LifecycleConfig struct {
	MaxAttempts     int `toml:"max_attempts"`
	BulkConcurrency int `toml:"bulk_concurrency"`
	LecturerCache   int `toml:"lecturer_cache"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// Default returns the configuration used when neither file nor environment
// sets a value.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			BodyLimit:    6 * 1024 * 1024,
		},
		DB:   DBConfig{MaxConns: 10},
		Auth: AuthConfig{TokenTTL: Duration{24 * time.Hour}},
		Storage: StorageConfig{
			Driver: StorageDisk,
			Dir:    "uploads",
			Region: "us-east-1",
		},
		Lifecycle: LifecycleConfig{
			MaxAttempts:     3,
			BulkConcurrency: 4,
			LecturerCache:   256,
		},
		Log: LogConfig{Level: slog.LevelInfo, Format: "text"},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides and validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HTTP_ADDR":             &c.HTTP.Addr,
		"DATABASE_URL":          &c.DB.URL,
		"JWT_SECRET":            &c.Auth.JWTSecret,
		"STORAGE_DRIVER":        &c.Storage.Driver,
		"STORAGE_DIR":           &c.Storage.Dir,
		"S3_BUCKET":             &c.Storage.Bucket,
		"AWS_REGION":            &c.Storage.Region,
		"AWS_ENDPOINT_URL":      &c.Storage.Endpoint,
		"AWS_ACCESS_KEY_ID":     &c.Storage.AccessKey,
		"AWS_SECRET_ACCESS_KEY": &c.Storage.SecretKey,
		"LOG_FORMAT":            &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := c.Log.Level.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: LOG_LEVEL: %w", err)
		}
	}
	if v, ok := lookup("CLAIM_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: CLAIM_MAX_ATTEMPTS: %w", err)
		}
		c.Lifecycle.MaxAttempts = n
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.DB.URL == "" {
		errs = append(errs, errors.New("config: db.url (DATABASE_URL) is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("config: auth.jwt_secret (JWT_SECRET) is required"))
	}
	switch c.Storage.Driver {
	case StorageDisk:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("config: storage.dir is required for the disk driver"))
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("config: storage.bucket (S3_BUCKET) is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver))
	}
	if c.Lifecycle.MaxAttempts < 1 {
		errs = append(errs, errors.New("config: lifecycle.max_attempts must be at least 1"))
	}
	if c.Lifecycle.BulkConcurrency < 1 {
		errs = append(errs, errors.New("config: lifecycle.bulk_concurrency must be at least 1"))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
