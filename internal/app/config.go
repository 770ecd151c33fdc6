package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the portal.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppSiteURL        string        `envconfig:"APP_SITE_URL" default:"http://localhost:8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat     string `envconfig:"LOG_FORMAT" default:"pretty"`
	DefaultLocale string `envconfig:"DEFAULT_LOCALE" default:"pt-BR"`

	SupabaseURL       string `envconfig:"SUPABASE_URL" required:"true"`
	SupabaseAnonKey   string `envconfig:"SUPABASE_ANON_KEY" required:"true"`
	SupabaseJWTSecret string `envconfig:"SUPABASE_JWT_SECRET"`

	BackendDriver      string `envconfig:"BACKEND_DRIVER" default:"supabase"`
	BackendSeedFile    string `envconfig:"BACKEND_SEED_FILE"`
	BackendAutoConfirm bool   `envconfig:"BACKEND_AUTO_CONFIRM" default:"false"`
	BackendFlowType    string `envconfig:"BACKEND_FLOW_TYPE" default:"pkce"`
	RecordsDriver      string `envconfig:"RECORDS_DRIVER" default:"rest"`

	PGDSN              string        `envconfig:"PG_DSN"`
	PGMaxConns         int32         `envconfig:"PG_MAX_CONNS" default:"4"`
	PGStatementTimeout time.Duration `envconfig:"PG_STATEMENT_TIMEOUT" default:"5s"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"cooarq_session"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	RateLimitGlobal int `envconfig:"RATE_LIMIT_GLOBAL" default:"120"`
	RateLimitAuth   int `envconfig:"RATE_LIMIT_AUTH" default:"10"`

	ProfileTTL         time.Duration `envconfig:"PROFILE_TTL" default:"5m"`
	TokenRefreshMargin time.Duration `envconfig:"TOKEN_REFRESH_MARGIN" default:"60s"`
	ResetRedirectDelay time.Duration `envconfig:"RESET_REDIRECT_DELAY" default:"2s"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SupabaseURL) == "" {
		return errors.New("missing env SUPABASE_URL")
	}
	if strings.TrimSpace(c.SupabaseAnonKey) == "" {
		return errors.New("missing env SUPABASE_ANON_KEY")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	switch c.BackendDriver {
	case "supabase":
	case "memory":
		if c.IsProduction() {
			return errors.New("BACKEND_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown backend driver %q", c.BackendDriver)
	}
	switch c.BackendFlowType {
	case "", "pkce", "implicit":
	default:
		return fmt.Errorf("unknown backend flow type %q", c.BackendFlowType)
	}
	switch c.RecordsDriver {
	case "rest":
	case "postgres":
		if c.PGDSN == "" {
			return errors.New("PG_DSN is required when RECORDS_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown records driver %q", c.RecordsDriver)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// SiteURL joins the configured site base with path.
func (c *Config) SiteURL(path string) string {
	return strings.TrimRight(c.AppSiteURL, "/") + path
}
