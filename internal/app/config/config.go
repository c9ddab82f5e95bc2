package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, loaded once at startup from
// environment variables (optionally via a .env file) per §6/§10.2.
type Config struct {
	App struct {
		Env  string
		Port string
		Host string
	}

	Edge struct {
		BaseURL      string
		WorkerSecret string
		HTTPTimeout  time.Duration
	}

	Discovery struct {
		PollInterval      time.Duration
		FallbackMaxActive int
		ListEligibleLimit int
	}

	Outbound struct {
		PollInterval time.Duration
	}

	Paths struct {
		AuthBase  string
		MediaBase string
	}

	Lock struct {
		TTL        time.Duration
		RenewEvery time.Duration
	}

	BadMac struct {
		Window    time.Duration
		Threshold int
		Cooldown  time.Duration
	}

	ContactCache struct {
		ErrorCooldown     time.Duration
		DuplicateCooldown time.Duration
	}

	Shutdown struct {
		StopCooldown time.Duration
		Timeout      time.Duration
	}

	Logging struct {
		Level         string
		Format        string
		FileEnabled   bool
		FilePath      string
		ConsoleColors bool
	}

	Journal struct {
		DSN string
	}

	ProcessOwnerID string
}

// LoadConfig reads .env (if present) then the environment, applying defaults
// and validating the fields that have no safe default (§10.2). It fails fast
// on a missing EDGE_BASE_URL or WORKER_SECRET, matching the teacher's
// fail-fast LoadConfig contract.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.Env = getEnv("APP_ENV", "development")
	cfg.App.Port = getEnv("PORT", "3000")
	cfg.App.Host = getEnv("APP_HOST", "0.0.0.0")

	cfg.Edge.BaseURL = getEnv("EDGE_BASE_URL", "")
	cfg.Edge.WorkerSecret = getEnv("WORKER_SECRET", "")
	cfg.Edge.HTTPTimeout = getEnvAsDuration("HTTP_TIMEOUT_MS", 10_000*time.Millisecond)

	if cfg.Edge.BaseURL == "" {
		return nil, fmt.Errorf("EDGE_BASE_URL is required")
	}
	if cfg.Edge.WorkerSecret == "" {
		return nil, fmt.Errorf("WORKER_SECRET is required")
	}

	cfg.Discovery.PollInterval = getEnvAsDuration("DISCOVERY_POLL_MS", 10_000*time.Millisecond)
	cfg.Discovery.FallbackMaxActive = getEnvAsInt("MAX_ACTIVE_INSTANCES", 0)
	cfg.Discovery.ListEligibleLimit = 50

	cfg.Outbound.PollInterval = getEnvAsDuration("QUEUE_POLL_MS", 2_000*time.Millisecond)

	cfg.Paths.AuthBase = getEnv("AUTH_BASE", "/data/auth")
	cfg.Paths.MediaBase = getEnv("MEDIA_BASE", "/data/media")

	lockTTL := getEnvAsDuration("INSTANCE_LOCK_TTL_MS", 30_000*time.Millisecond)
	if lockTTL < 5*time.Second {
		lockTTL = 5 * time.Second
	}
	cfg.Lock.TTL = lockTTL
	renew := getEnvAsDuration("INSTANCE_LOCK_RENEW_MS", lockTTL/2)
	if renew < 2*time.Second {
		renew = 2 * time.Second
	}
	cfg.Lock.RenewEvery = renew

	cfg.BadMac.Window = getEnvAsDuration("BAD_MAC_WINDOW_MS", 60_000*time.Millisecond)
	cfg.BadMac.Threshold = getEnvAsInt("BAD_MAC_THRESHOLD", 20)
	cfg.BadMac.Cooldown = getEnvAsDuration("BAD_MAC_COOLDOWN_MS", 300_000*time.Millisecond)

	cfg.ContactCache.ErrorCooldown = getEnvAsDuration("CONTACT_RESOLVE_ERROR_COOLDOWN_MS", 60_000*time.Millisecond)
	cfg.ContactCache.DuplicateCooldown = getEnvAsDuration("CONTACT_RESOLVE_DUPLICATE_COOLDOWN_MS", 300_000*time.Millisecond)

	cfg.Shutdown.StopCooldown = getEnvAsDuration("STOP_COOLDOWN_MS", 60_000*time.Millisecond)
	cfg.Shutdown.Timeout = getEnvAsDuration("SHUTDOWN_TIMEOUT_MS", 10_000*time.Millisecond)

	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	defaultFormat := "console"
	if cfg.App.Env == "production" || cfg.App.Env == "staging" {
		defaultFormat = "json"
	}
	cfg.Logging.Format = getEnv("LOG_FORMAT", defaultFormat)
	cfg.Logging.FileEnabled = getEnvAsBool("LOG_FILE_ENABLED", false)
	cfg.Logging.FilePath = getEnv("LOG_FILE_PATH", "/data/logs/waworker.log")
	cfg.Logging.ConsoleColors = cfg.App.Env != "production"

	cfg.Journal.DSN = getEnv("JOURNAL_DSN", "")

	hostname, _ := os.Hostname()
	cfg.ProcessOwnerID = getEnv("PROCESS_OWNER_ID", fmt.Sprintf("%s:%d", hostname, os.Getpid()))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads key as a millisecond integer (the env surface is
// specified in *_MS names throughout §6) and returns it as a time.Duration.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// GetLogLevel and friends implement the logger package's ConfigProvider
// interface (see pkg/logger/logger.go), the same seam the teacher uses to
// keep logger setup decoupled from the Config struct's shape.
func (c *Config) GetLogLevel() string  { return c.Logging.Level }
func (c *Config) GetLogOutput() string {
	if c.Logging.FileEnabled {
		return "dual"
	}
	return "console"
}
func (c *Config) GetLogConsoleFormat() string {
	if c.Logging.Format == "json" {
		return "json"
	}
	return "console"
}
func (c *Config) GetLogFileFormat() string     { return "json" }
func (c *Config) GetLogFilePath() string       { return c.Logging.FilePath }
func (c *Config) GetLogFileMaxSize() int       { return 100 }
func (c *Config) GetLogFileMaxBackups() int    { return 3 }
func (c *Config) GetLogFileMaxAge() int        { return 28 }
func (c *Config) GetLogFileCompress() bool     { return true }
func (c *Config) GetLogConsoleColors() bool    { return c.Logging.ConsoleColors }
func (c *Config) GetLogAppName() string        { return "waworker" }
func (c *Config) GetLogEnvironment() string     { return c.App.Env }
func (c *Config) GetLogVersion() string        { return "1.0.0" }
func (c *Config) GetLogServiceName() string    { return "waworker" }
func (c *Config) GetLogEnableCaller() bool     { return c.App.Env != "production" }
func (c *Config) GetLogEnableStackTrace() bool { return c.App.Env == "development" }
func (c *Config) GetLogEnableSampling() bool   { return c.App.Env == "production" }
func (c *Config) GetLogSampleRate() int        { return 100 }
func (c *Config) GetLogEnableMetrics() bool    { return false }
