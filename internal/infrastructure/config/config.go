package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Identity strategies
const (
	IdentityStrategySDK   = "sdk"
	IdentityStrategyPopup = "popup"
)

// Popup login URL sources
const (
	URLSourceBackend = "backend"
	URLSourceLine    = "line"
)

// Cache drivers
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Session   SessionConfig
	Cookie    CookieConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
	Swagger   SwaggerConfig
	Backend   BackendConfig
	Line      LineConfig
	Identity  IdentityConfig
	Catalog   CatalogConfig
	Order     OrderConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// PublicURL is where browsers reach this service, e.g. https://shop.example.com
	PublicURL string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig selects where session identities, popup tickets and
// idempotency keys are kept
type CacheConfig struct {
	Driver string // memory or redis
	// AllowFallback uses memory stores when redis is unreachable
	AllowFallback bool
	KeyPrefix     string
}

// SessionConfig holds browser session settings
type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	Issuer     string
	CookieName string
}

// CookieConfig holds cookie settings for the session cookie
type CookieConfig struct {
	Domain   string // Domain for cookies (empty = current domain)
	Path     string // Path for cookies
	Secure   bool   // Secure flag (should be true in production for HTTPS)
	SameSite string // SameSite policy: "strict", "lax", or "none"
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	MaxHeaderBytes          int
	MaxBodySize             int64
	RateLimitEnabled        bool
	RateLimitRequests       int
	RateLimitWindow         time.Duration
	SessionRateLimitEnabled bool          // Stricter rate limiting for login and submit endpoints
	SessionRateLimitRequest int           // Max attempts per window (default: 10)
	SessionRateLimitWindow  time.Duration // Window (default: 1 minute)
	CORSAllowOrigins        []string
	CORSAllowMethods        []string
	CORSAllowHeaders        []string
	TrustedProxies          []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)

	MetricsEnabled  bool          // Export metrics over OTLP
	MetricsInterval time.Duration // Metrics export interval
	LogsEnabled     bool          // Mirror zap logs into OTLP
}

// SwaggerConfig holds the API docs endpoint settings
type SwaggerConfig struct {
	Enabled    bool
	AllowedIPs []string // IP or CIDR allow list (empty = allow all)
}

// ProfilingConfig holds continuous profiling configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string // Pyroscope server (e.g., "http://localhost:4040")
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	Allocations       bool // Also collect allocation and in-use heap profiles
	SpanProfiles      bool // Link profiles to trace spans
}

// BackendConfig holds the order backend settings
type BackendConfig struct {
	BaseURL          string
	Timeout          time.Duration
	MaxResponseBytes int64
}

// LineConfig holds the LINE Login channel settings
type LineConfig struct {
	ChannelID     string
	ChannelSecret string
	// CallbackURL defaults to <app.public_url>/api/v1/session/popup/callback
	CallbackURL    string
	APIBaseURL     string
	AuthBaseURL    string
	BotPrompt      string
	TimeoutSeconds int
}

// IdentityConfig selects how a browser session obtains its LINE identity
type IdentityConfig struct {
	Strategy string // sdk or popup
	Popup    PopupConfig
}

// PopupConfig holds popup handshake settings
type PopupConfig struct {
	URLSource string // backend or line
	TicketTTL time.Duration
	// AssertionTTL bounds how long a signed popup login result stays valid
	AssertionTTL time.Duration
}

// CatalogConfig holds catalog display settings
type CatalogConfig struct {
	CollationLocale string
}

// OrderConfig holds order submission settings
type OrderConfig struct {
	IdempotencyTTL time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g., STOREFRONT_BACKEND_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return load(v)
}

// LoadFile loads configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:      v.GetString("app.name"),
			Env:       v.GetString("app.env"),
			Port:      v.GetString("app.port"),
			PublicURL: v.GetString("app.public_url"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Driver:        v.GetString("cache.driver"),
			AllowFallback: v.GetBool("cache.allow_fallback"),
			KeyPrefix:     v.GetString("cache.key_prefix"),
		},
		Session: SessionConfig{
			Secret:     v.GetString("session.secret"),
			TTL:        v.GetDuration("session.ttl"),
			Issuer:     v.GetString("session.issuer"),
			CookieName: v.GetString("session.cookie_name"),
		},
		Cookie: CookieConfig{
			Domain:   v.GetString("cookie.domain"),
			Path:     v.GetString("cookie.path"),
			Secure:   v.GetBool("cookie.secure"),
			SameSite: v.GetString("cookie.same_site"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:             v.GetDuration("http.read_timeout"),
			WriteTimeout:            v.GetDuration("http.write_timeout"),
			IdleTimeout:             v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:          v.GetInt("http.max_header_bytes"),
			MaxBodySize:             v.GetInt64("http.max_body_size"),
			RateLimitEnabled:        v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests:       v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:         v.GetDuration("http.rate_limit_window"),
			SessionRateLimitEnabled: v.GetBool("http.session_rate_limit_enabled"),
			SessionRateLimitRequest: v.GetInt("http.session_rate_limit_requests"),
			SessionRateLimitWindow:  v.GetDuration("http.session_rate_limit_window"),
			CORSAllowOrigins:        v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:        v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:        v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:          v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
		Swagger: SwaggerConfig{
			Enabled:    v.GetBool("swagger.enabled"),
			AllowedIPs: v.GetStringSlice("swagger.allowed_ips"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			ApplicationName:   v.GetString("profiling.application_name"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			Allocations:       v.GetBool("profiling.allocations"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
		Backend: BackendConfig{
			BaseURL:          v.GetString("backend.base_url"),
			Timeout:          v.GetDuration("backend.timeout"),
			MaxResponseBytes: v.GetInt64("backend.max_response_bytes"),
		},
		Line: LineConfig{
			ChannelID:      v.GetString("line.channel_id"),
			ChannelSecret:  v.GetString("line.channel_secret"),
			CallbackURL:    v.GetString("line.callback_url"),
			APIBaseURL:     v.GetString("line.api_base_url"),
			AuthBaseURL:    v.GetString("line.auth_base_url"),
			BotPrompt:      v.GetString("line.bot_prompt"),
			TimeoutSeconds: v.GetInt("line.timeout_seconds"),
		},
		Identity: IdentityConfig{
			Strategy: v.GetString("identity.strategy"),
			Popup: PopupConfig{
				URLSource:    v.GetString("identity.popup.url_source"),
				TicketTTL:    v.GetDuration("identity.popup.ticket_ttl"),
				AssertionTTL: v.GetDuration("identity.popup.assertion_ttl"),
			},
		},
		Catalog: CatalogConfig{
			CollationLocale: v.GetString("catalog.collation_locale"),
		},
		Order: OrderConfig{
			IdempotencyTTL: v.GetDuration("order.idempotency_ttl"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.PublicURL == "" {
		cfg.App.PublicURL = "http://localhost:" + cfg.App.Port
	}
	cfg.App.PublicURL = strings.TrimRight(cfg.App.PublicURL, "/")
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = CacheDriverMemory
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "storefront:"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 12 * time.Hour
	}
	if cfg.Session.Issuer == "" {
		cfg.Session.Issuer = "storefront"
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "storefront_session"
	}
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = "/"
	}
	if cfg.Cookie.SameSite == "" {
		cfg.Cookie.SameSite = "lax"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// must outlive a backend call
		cfg.HTTP.WriteTimeout = 45 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.SessionRateLimitRequest == 0 {
		cfg.HTTP.SessionRateLimitRequest = 10
	}
	if cfg.HTTP.SessionRateLimitWindow == 0 {
		cfg.HTTP.SessionRateLimitWindow = time.Minute
	}
	// CORS origins get no wildcard default; an empty list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "Idempotency-Key"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storefront"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.App.Name
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Backend.MaxResponseBytes == 0 {
		cfg.Backend.MaxResponseBytes = 5 << 20 // 5MB
	}
	if cfg.Line.CallbackURL == "" {
		cfg.Line.CallbackURL = cfg.App.PublicURL + "/api/v1/session/popup/callback"
	}
	if cfg.Line.BotPrompt == "" {
		cfg.Line.BotPrompt = "normal"
	}
	if cfg.Identity.Strategy == "" {
		cfg.Identity.Strategy = IdentityStrategyPopup
	}
	if cfg.Identity.Popup.URLSource == "" {
		cfg.Identity.Popup.URLSource = URLSourceBackend
	}
	if cfg.Identity.Popup.TicketTTL == 0 {
		cfg.Identity.Popup.TicketTTL = 10 * time.Minute
	}
	if cfg.Identity.Popup.AssertionTTL == 0 {
		cfg.Identity.Popup.AssertionTTL = 2 * time.Minute
	}
	if cfg.Catalog.CollationLocale == "" {
		cfg.Catalog.CollationLocale = "zh"
	}
	if cfg.Order.IdempotencyTTL == 0 {
		cfg.Order.IdempotencyTTL = 24 * time.Hour
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if u, err := url.Parse(c.App.PublicURL); err != nil || u.Host == "" {
		return fmt.Errorf("app.public_url must be an absolute URL, got %q", c.App.PublicURL)
	}

	switch c.Cache.Driver {
	case CacheDriverMemory, CacheDriverRedis:
	default:
		return fmt.Errorf("cache.driver must be %q or %q, got %q", CacheDriverMemory, CacheDriverRedis, c.Cache.Driver)
	}

	switch c.Identity.Strategy {
	case IdentityStrategySDK:
		if c.Line.ChannelID == "" {
			return fmt.Errorf("line.channel_id is required for identity.strategy=sdk")
		}
	case IdentityStrategyPopup:
		switch c.Identity.Popup.URLSource {
		case URLSourceBackend:
		case URLSourceLine:
			if c.Line.ChannelID == "" || c.Line.ChannelSecret == "" {
				return fmt.Errorf("line.channel_id and line.channel_secret are required for identity.popup.url_source=line")
			}
		default:
			return fmt.Errorf("identity.popup.url_source must be %q or %q, got %q", URLSourceBackend, URLSourceLine, c.Identity.Popup.URLSource)
		}
	default:
		return fmt.Errorf("identity.strategy must be %q or %q, got %q", IdentityStrategySDK, IdentityStrategyPopup, c.Identity.Strategy)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Session.Secret == "" {
			return fmt.Errorf("session.secret is required in production")
		}
		if len(c.Session.Secret) < 32 {
			return fmt.Errorf("session.secret must be at least 32 characters in production")
		}
		if !c.Cookie.Secure {
			return fmt.Errorf("cookie.secure must be true in production (HTTPS required for secure cookies)")
		}
		if c.Swagger.Enabled && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled or restricted by swagger.allowed_ips in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	// SameSite=None requires Secure flag
	if c.Cookie.SameSite == "none" && !c.Cookie.Secure {
		return fmt.Errorf("cookie.same_site=none requires cookie.secure=true")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.MetricsInterval < 0 {
		return fmt.Errorf("telemetry.metrics_interval must not be negative")
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	return nil
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IsProduction reports whether the service runs in production mode
func (a *AppConfig) IsProduction() bool {
	return a.Env == "production"
}
