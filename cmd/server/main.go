package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	_ "github.com/erp/storefront/docs"
	appidentity "github.com/erp/storefront/internal/application/identity"
	"github.com/erp/storefront/internal/application/storefront"
	"github.com/erp/storefront/internal/domain/shared"
	"github.com/erp/storefront/internal/infrastructure/auth"
	"github.com/erp/storefront/internal/infrastructure/backend"
	"github.com/erp/storefront/internal/infrastructure/cache"
	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/erp/storefront/internal/infrastructure/line"
	"github.com/erp/storefront/internal/infrastructure/logger"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
	"github.com/erp/storefront/internal/interfaces/http/handler"
	"github.com/erp/storefront/internal/interfaces/http/middleware"
	"github.com/erp/storefront/internal/interfaces/http/router"
)

//	@title			Storefront API
//	@version		1.0
//	@description	Ordering page backend: catalog, cart, order review and LINE login.
//	@BasePath		/api/v1

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
		zap.String("login_strategy", cfg.Identity.Strategy),
	)

	// Tracing
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// OTLP log export; everything below logs through the bridged logger
	lp, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = lp.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	metrics, err := telemetry.NewStorefrontMetrics(mp.Meter(telemetry.MeterName))
	if err != nil {
		log.Fatal("Failed to create storefront metrics", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:            cfg.Profiling.Enabled,
		ServerAddress:      cfg.Profiling.ServerAddress,
		ApplicationName:    cfg.Profiling.ApplicationName,
		BasicAuthUser:      cfg.Profiling.BasicAuthUser,
		BasicAuthPassword:  cfg.Profiling.BasicAuthPassword,
		ProfileAllocations: cfg.Profiling.Allocations,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles {
		tp.EnableSpanProfiles()
	}

	// Session-scoped stores
	stores, err := cache.NewStoreFactory(cfg.Cache, cfg.Redis, cache.WithLogger(log)).CreateStores()
	if err != nil {
		log.Fatal("Failed to create session stores", zap.Error(err))
	}

	backendClient, err := backend.NewClient(&backend.Config{
		BaseURL:          cfg.Backend.BaseURL,
		Timeout:          cfg.Backend.Timeout,
		MaxResponseBytes: cfg.Backend.MaxResponseBytes,
	}, log.Named("backend"))
	if err != nil {
		log.Fatal("Failed to create backend client", zap.Error(err))
	}
	backendClient.WithMetrics(metrics)

	if cfg.Session.Secret == "" {
		cfg.Session.Secret = randomSecret()
		log.Warn("session.secret is not set; using a random secret, sessions will not survive a restart")
	}
	tokens := auth.NewJWTService(cfg.Session, cfg.Identity.Popup.AssertionTTL)

	resolver, err := newResolver(cfg, stores, backendClient, tokens, log)
	if err != nil {
		log.Fatal("Failed to configure login", zap.Error(err))
	}
	sessions := appidentity.NewSessionService(stores.Identities, resolver, cfg.Session.TTL, log.Named("session")).
		WithMetrics(metrics)

	registry := storefront.NewRegistry(storefront.Dependencies{
		Backend:     backendClient,
		Identities:  sessions,
		Idempotency: stores.Idempotency,
		IdempotencyConfig: shared.IdempotencyConfig{
			TTL:     cfg.Order.IdempotencyTTL,
			Enabled: true,
		},
		CollationLocale: cfg.Catalog.CollationLocale,
		Logger:          log.Named("workspace"),
		Metrics:         metrics,
	}, cfg.Session.TTL)

	// Set Gin mode based on environment
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Use json tag names in validation errors
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.HSTSEnabled = cfg.App.IsProduction()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			Enabled:        cfg.Telemetry.Enabled,
			TracerProvider: otel.GetTracerProvider(),
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(mp),
		middleware.SecureWithConfig(securityCfg),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	var limiters []*middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		ipLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiters = append(limiters, ipLimiter)
		engine.Use(middleware.RateLimit(ipLimiter))
	}

	engine.Use(
		middleware.Session(middleware.SessionConfig{
			Tokens:     tokens,
			CookieName: cfg.Session.CookieName,
			Domain:     cfg.Cookie.Domain,
			Path:       cfg.Cookie.Path,
			Secure:     cfg.Cookie.Secure,
			SameSite:   middleware.ParseSameSite(cfg.Cookie.SameSite),
			Logger:     log,
		}),
		middleware.TracingAttributeInjector(),
	)

	guards := router.Guards{RequireIdentity: middleware.RequireIdentity(sessions)}
	if cfg.HTTP.SessionRateLimitEnabled {
		loginLimiter := middleware.NewRateLimiter(cfg.HTTP.SessionRateLimitRequest, cfg.HTTP.SessionRateLimitWindow)
		submitLimiter := middleware.NewRateLimiter(cfg.HTTP.SessionRateLimitRequest, cfg.HTTP.SessionRateLimitWindow)
		limiters = append(limiters, loginLimiter, submitLimiter)
		guards.SessionLimit = middleware.RateLimitBySession(loginLimiter)
		guards.SubmitLimit = middleware.RateLimitBySession(submitLimiter)
	}

	handlers := router.Handlers{
		System:  handler.NewSystemHandler(version, sessions.Strategy()),
		Session: handler.NewSessionHandler(sessions, registry),
		Catalog: handler.NewCatalogHandler(registry),
		Cart:    handler.NewCartHandler(registry),
		Order:   handler.NewOrderHandler(registry),
	}
	router.NewRouter(engine).Register(router.Storefront(handlers, guards)...).Setup()
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr), zap.String("public_url", cfg.App.PublicURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	for _, l := range limiters {
		l.Close()
	}
	if err := registry.Close(); err != nil {
		log.Warn("Failed to close workspaces", zap.Error(err))
	}
	if err := stores.Close(); err != nil {
		log.Warn("Failed to close session stores", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush metrics", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := lp.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush logs", zap.Error(err))
	}
}

// newResolver builds the login strategy selected by identity.strategy
func newResolver(
	cfg *config.Config,
	stores *cache.Stores,
	backendClient *backend.Client,
	tokens *auth.JWTService,
	log *zap.Logger,
) (appidentity.Resolver, error) {
	var platform appidentity.Platform
	if cfg.Line.ChannelID != "" {
		lineCfg := line.NewConfig(cfg.Line.ChannelID, cfg.Line.ChannelSecret, cfg.Line.CallbackURL)
		if cfg.Line.APIBaseURL != "" {
			lineCfg.APIBaseURL = cfg.Line.APIBaseURL
		}
		if cfg.Line.AuthBaseURL != "" {
			lineCfg.AuthBaseURL = cfg.Line.AuthBaseURL
		}
		lineCfg.BotPrompt = cfg.Line.BotPrompt
		if cfg.Line.TimeoutSeconds > 0 {
			lineCfg.TimeoutSeconds = cfg.Line.TimeoutSeconds
		}
		client, err := line.NewClient(lineCfg)
		if err != nil {
			return nil, err
		}
		platform = client
	}

	if cfg.Identity.Strategy == config.IdentityStrategySDK {
		return appidentity.NewSDKResolver(platform, log.Named("login")), nil
	}

	popupCfg := appidentity.PopupConfig{
		PublicOrigin: cfg.App.PublicURL,
		TicketTTL:    cfg.Identity.Popup.TicketTTL,
	}
	var source appidentity.LoginURLSource = backendClient
	if cfg.Identity.Popup.URLSource == config.URLSourceLine {
		source = appidentity.AuthorizeURLSource(platform)
	} else {
		popupCfg.BackendOrigin = backendClient.Origin()
		if platform == nil {
			log.Warn("line.channel_id is not set, backend-hosted logins cannot be verified and will be refused")
		}
	}
	return appidentity.NewPopupResolver(
		stores.Tickets,
		source,
		platform,
		tokens,
		popupCfg,
		log.Named("login"),
	), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
