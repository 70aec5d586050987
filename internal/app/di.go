// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	activityHTTP "github.com/alexfok/gate-controller/internal/activity/http"
	activityUsecase "github.com/alexfok/gate-controller/internal/activity/usecase"
	"github.com/alexfok/gate-controller/internal/ble"
	"github.com/alexfok/gate-controller/internal/config"
	"github.com/alexfok/gate-controller/internal/gate/actuator"
	gateDomain "github.com/alexfok/gate-controller/internal/gate/domain"
	gateHTTP "github.com/alexfok/gate-controller/internal/gate/http"
	gateUsecase "github.com/alexfok/gate-controller/internal/gate/usecase"
	"github.com/alexfok/gate-controller/internal/http"
	"github.com/alexfok/gate-controller/internal/metrics"
	"github.com/alexfok/gate-controller/internal/storage"
	tokenDomain "github.com/alexfok/gate-controller/internal/token/domain"
	tokenHTTP "github.com/alexfok/gate-controller/internal/token/http"
	tokenRepository "github.com/alexfok/gate-controller/internal/token/repository"
	tokenUsecase "github.com/alexfok/gate-controller/internal/token/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	store  *storage.FileStore

	// Observability
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Use Cases
	tokenUseCase tokenUsecase.UseCase
	recorder     *activityUsecase.Recorder
	sessionGate  *gateUsecase.SessionGate
	engine       *gateUsecase.Engine

	// Hardware adapters
	actuator gateDomain.Actuator
	scanner  ble.Scanner

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	storeInit           sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	tokenUseCaseInit    sync.Once
	recorderInit        sync.Once
	actuatorInit        sync.Once
	scannerInit         sync.Once
	sessionGateInit     sync.Once
	engineInit          sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// Store returns the flat-file store with settings and tokens loaded.
// An unreadable or unparsable store file is a fatal startup error.
func (c *Container) Store() (*storage.FileStore, error) {
	var err error
	c.storeInit.Do(func() {
		c.store, err = c.initStore()
		if err != nil {
			c.initErrors["store"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["store"]; exists {
		return nil, storedErr
	}
	return c.store, nil
}

// MetricsProvider returns the metrics provider instance.
// Returns nil when metrics are disabled in configuration.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
// Returns a no-op implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// TokenUseCase returns the token registry use case instance.
func (c *Container) TokenUseCase() (tokenUsecase.UseCase, error) {
	var err error
	c.tokenUseCaseInit.Do(func() {
		c.tokenUseCase, err = c.initTokenUseCase()
		if err != nil {
			c.initErrors["tokenUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["tokenUseCase"]; exists {
		return nil, storedErr
	}
	return c.tokenUseCase, nil
}

// Recorder returns the activity recorder instance.
func (c *Container) Recorder() (*activityUsecase.Recorder, error) {
	var err error
	c.recorderInit.Do(func() {
		c.recorder, err = c.initRecorder()
		if err != nil {
			c.initErrors["recorder"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recorder"]; exists {
		return nil, storedErr
	}
	return c.recorder, nil
}

// Actuator returns the remote controller client.
func (c *Container) Actuator() (gateDomain.Actuator, error) {
	var err error
	c.actuatorInit.Do(func() {
		c.actuator, err = c.initActuator()
		if err != nil {
			c.initErrors["actuator"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["actuator"]; exists {
		return nil, storedErr
	}
	return c.actuator, nil
}

// Scanner returns the BLE scanner instance.
func (c *Container) Scanner() (ble.Scanner, error) {
	var err error
	c.scannerInit.Do(func() {
		c.scanner, err = c.initScanner()
		if err != nil {
			c.initErrors["scanner"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["scanner"]; exists {
		return nil, storedErr
	}
	return c.scanner, nil
}

// SessionGate returns the gate decision engine instance.
func (c *Container) SessionGate() (*gateUsecase.SessionGate, error) {
	var err error
	c.sessionGateInit.Do(func() {
		c.sessionGate, err = c.initSessionGate()
		if err != nil {
			c.initErrors["sessionGate"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sessionGate"]; exists {
		return nil, storedErr
	}
	return c.sessionGate, nil
}

// Engine returns the control loop engine instance.
func (c *Container) Engine() (*gateUsecase.Engine, error) {
	var err error
	c.engineInit.Do(func() {
		c.engine, err = c.initEngine()
		if err != nil {
			c.initErrors["engine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["engine"]; exists {
		return nil, storedErr
	}
	return c.engine, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance.
// Returns nil when metrics are disabled in configuration.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Disconnect from the controller if initialized
	if c.actuator != nil {
		if err := c.actuator.Disconnect(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("actuator disconnect: %w", err))
		}
	}

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initStore creates the flat-file store and loads its contents.
func (c *Container) initStore() (*storage.FileStore, error) {
	store := storage.NewFileStore(c.config.StorePath)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load store from %s: %w", c.config.StorePath, err)
	}
	return store, nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}

	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return businessMetrics, nil
}

// initTokenUseCase creates the token registry use case with its repository.
func (c *Container) initTokenUseCase() (tokenUsecase.UseCase, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for token use case: %w", err)
	}

	return tokenUsecase.NewTokenUseCase(tokenRepository.NewFileStoreTokenRepository(store)), nil
}

// initRecorder creates the activity recorder.
// The suppress flag is seeded from the persisted logging settings.
func (c *Container) initRecorder() (*activityUsecase.Recorder, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for activity recorder: %w", err)
	}

	return activityUsecase.NewRecorder(
		c.config.ActivityLogPath,
		c.config.ActivityMaxEntries,
		store.LoggingSettings().SuppressDetections,
		c.Logger(),
	), nil
}

// initActuator creates the remote controller client.
func (c *Container) initActuator() (gateDomain.Actuator, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for actuator: %w", err)
	}

	return actuator.NewControllerClient(c.Logger(), store.ActuatorSettings()), nil
}

// initScanner creates the BLE scanner.
// The registered-identifier callback reads the store on every scan so the
// wanted set always reflects the current registry.
func (c *Container) initScanner() (ble.Scanner, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for scanner: %w", err)
	}

	registered := func() []string {
		records := store.Tokens()
		ids := make([]string, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.ID)
		}
		return ids
	}

	return ble.NewGattScanner(c.Logger(), registered, tokenDomain.NormalizeID), nil
}

// initSessionGate creates the gate decision engine with all its dependencies.
func (c *Container) initSessionGate() (*gateUsecase.SessionGate, error) {
	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for session gate: %w", err)
	}

	act, err := c.Actuator()
	if err != nil {
		return nil, fmt.Errorf("failed to get actuator for session gate: %w", err)
	}

	tokens, err := c.TokenUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get token use case for session gate: %w", err)
	}

	recorder, err := c.Recorder()
	if err != nil {
		return nil, fmt.Errorf("failed to get recorder for session gate: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for session gate: %w", err)
	}

	return gateUsecase.NewSessionGate(
		c.Logger(),
		act,
		tokens,
		recorder,
		store.GateSettings,
		businessMetrics,
	), nil
}

// initEngine creates the control loop engine with all its dependencies.
func (c *Container) initEngine() (*gateUsecase.Engine, error) {
	gate, err := c.SessionGate()
	if err != nil {
		return nil, fmt.Errorf("failed to get session gate for engine: %w", err)
	}

	scanner, err := c.Scanner()
	if err != nil {
		return nil, fmt.Errorf("failed to get scanner for engine: %w", err)
	}

	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for engine: %w", err)
	}

	return gateUsecase.NewEngine(c.Logger(), gate, scanner, store.GateSettings), nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for http server: %w", err)
	}

	tokens, err := c.TokenUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get token use case for http server: %w", err)
	}

	recorder, err := c.Recorder()
	if err != nil {
		return nil, fmt.Errorf("failed to get recorder for http server: %w", err)
	}

	gate, err := c.SessionGate()
	if err != nil {
		return nil, fmt.Errorf("failed to get session gate for http server: %w", err)
	}

	scanner, err := c.Scanner()
	if err != nil {
		return nil, fmt.Errorf("failed to get scanner for http server: %w", err)
	}

	handlers := http.Handlers{
		Token:    tokenHTTP.NewTokenHandler(tokens, recorder, gate, logger),
		Gate:     gateHTTP.NewGateHandler(gate, scanner, tokens, store.GateSettings, logger),
		Activity: activityHTTP.NewActivityHandler(recorder, store, logger),
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	if provider != nil {
		metricsMiddleware := metrics.HTTPMetricsMiddleware(provider.MeterProvider(), c.config.MetricsNamespace)
		return http.NewServer(c.config, logger, handlers, metricsMiddleware), nil
	}

	return http.NewServer(c.config, logger, handlers, nil), nil
}

// initMetricsServer creates the metrics server.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
