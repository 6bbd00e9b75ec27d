package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/cashier/internal/constants"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Backend    BackendConfig
	TokenStore TokenStoreConfig
	Database   DatabaseConfig
	Capture    CaptureConfig
	Enrollment EnrollmentConfig
	LogLevel   string
}

type BackendConfig struct {
	URL              string        // cashier backend base URL (e.g., http://localhost:8002)
	RecogniseTimeout time.Duration // upper bound for a single recognition upload
}

// TokenStoreConfig selects where the operator token is persisted between runs.
type TokenStoreConfig struct {
	Backend    string // file, redis, postgres, mariadb or memory
	Path       string // file backend location
	RedisURL   string
	MariaDBDSN string // e.g. cashier:cashier@tcp(mariadb:3306)/cashier
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 5)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type CaptureConfig struct {
	FramesDir   string        `yaml:"-"` // directory the camera writes frames into
	DetectorURL string        `yaml:"-"` // expression scoring service
	Interval    time.Duration `yaml:"interval"`
	Threshold   float64       `yaml:"threshold"`
	JPEGQuality int           `yaml:"jpeg_quality"`
	Expression  string        `yaml:"expression"`
}

type EnrollmentConfig struct {
	UserAppURL string
}

// Enabled reports whether both a camera source and a detector are configured.
func (c *CaptureConfig) Enabled() bool {
	return c.FramesDir != "" && c.DetectorURL != ""
}

type defaultsFile struct {
	Capture CaptureConfig `yaml:"capture"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a float in (0, 1]; anything else yields the default.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// defaultTokenPath returns $HOME/.cashier/token.yaml, or a relative path when HOME is unknown.
func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cashier", "token.yaml")
	}
	return filepath.Join(home, ".cashier", "token.yaml")
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	capture := defaults.Capture
	if capture.Interval <= 0 {
		capture.Interval = constants.CaptureInterval
	}
	if capture.Threshold <= 0 {
		capture.Threshold = constants.SmileThreshold
	}
	if capture.JPEGQuality <= 0 {
		capture.JPEGQuality = constants.JPEGQuality
	}

	return &Config{
		Backend: BackendConfig{
			URL:              envString("CASHIER_API_URL", constants.DefaultAPIURL),
			RecogniseTimeout: envDuration("CASHIER_RECOGNISE_TIMEOUT", constants.RecogniseTimeout),
		},
		TokenStore: TokenStoreConfig{
			Backend:    envString("TOKEN_STORE", "file"),
			Path:       envString("TOKEN_FILE", defaultTokenPath()),
			RedisURL:   os.Getenv("REDIS_URL"),
			MariaDBDSN: os.Getenv("MARIADB_DSN"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 5),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Capture: CaptureConfig{
			FramesDir:   os.Getenv("CAPTURE_FRAMES_DIR"),
			DetectorURL: os.Getenv("CAPTURE_DETECTOR_URL"),
			Interval:    envDuration("CAPTURE_INTERVAL", capture.Interval),
			Threshold:   envFloat("CAPTURE_THRESHOLD", capture.Threshold),
			JPEGQuality: min(envInt("CAPTURE_JPEG_QUALITY", capture.JPEGQuality), 100),
			Expression:  envString("CAPTURE_EXPRESSION", capture.Expression),
		},
		Enrollment: EnrollmentConfig{
			UserAppURL: envString("USER_APP_URL", constants.DefaultUserAppURL),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}
}
