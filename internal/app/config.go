package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":3000"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat     string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"50"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"14"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SessionSecret        string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionIdleEvict     time.Duration `envconfig:"SESSION_IDLE_EVICT" default:"30m"`
	SessionHydrationWait time.Duration `envconfig:"SESSION_HYDRATION_WAIT" default:"500ms"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:8080/api"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"10s"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	LoginRateLimit     int      `envconfig:"LOGIN_RATE_LIMIT" default:"10"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if len(cfg.SessionSecret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("api base url must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
