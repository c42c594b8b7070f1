// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gin-gonic/gin"

	alertHTTP "github.com/allisson/notifier/internal/alert/http"
	alertRepository "github.com/allisson/notifier/internal/alert/repository"
	alertUsecase "github.com/allisson/notifier/internal/alert/usecase"
	businessRepository "github.com/allisson/notifier/internal/business/repository"
	"github.com/allisson/notifier/internal/config"
	"github.com/allisson/notifier/internal/database"
	"github.com/allisson/notifier/internal/http"
	messageHTTP "github.com/allisson/notifier/internal/message/http"
	messageRepository "github.com/allisson/notifier/internal/message/repository"
	"github.com/allisson/notifier/internal/message/sender"
	messageUsecase "github.com/allisson/notifier/internal/message/usecase"
	"github.com/allisson/notifier/internal/metrics"
)

// BusinessRepository aggregates the read-only business state sources scanned
// by the alert rules.
type BusinessRepository interface {
	alertUsecase.ProductSource
	alertUsecase.OrderSource
	alertUsecase.ClientSource
}

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger *slog.Logger
	db     *sql.DB

	// Managers
	txManager database.TxManager

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Repositories
	alertRepo    alertUsecase.AlertRepository
	messageRepo  messageUsecase.MessageRepository
	businessRepo BusinessRepository

	// Senders
	channelSender messageUsecase.ChannelSender

	// Use Cases
	alertUseCase   alertUsecase.UseCase
	messageUseCase messageUsecase.UseCase

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                 sync.Mutex
	loggerInit         sync.Once
	dbInit             sync.Once
	txManagerInit      sync.Once
	metricsInit        sync.Once
	alertRepoInit      sync.Once
	messageRepoInit    sync.Once
	businessRepoInit   sync.Once
	channelSenderInit  sync.Once
	alertUseCaseInit   sync.Once
	messageUseCaseInit sync.Once
	httpServerInit     sync.Once
	metricsServerInit  sync.Once
	initErrors         map[string]error
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

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the metrics provider instance.
// Returns nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
// Returns a no-op implementation when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// AlertRepository returns the alert repository instance.
func (c *Container) AlertRepository() (alertUsecase.AlertRepository, error) {
	var err error
	c.alertRepoInit.Do(func() {
		c.alertRepo, err = c.initAlertRepository()
		if err != nil {
			c.initErrors["alertRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["alertRepo"]; exists {
		return nil, storedErr
	}
	return c.alertRepo, nil
}

// MessageRepository returns the outbound message repository instance.
func (c *Container) MessageRepository() (messageUsecase.MessageRepository, error) {
	var err error
	c.messageRepoInit.Do(func() {
		c.messageRepo, err = c.initMessageRepository()
		if err != nil {
			c.initErrors["messageRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messageRepo"]; exists {
		return nil, storedErr
	}
	return c.messageRepo, nil
}

// BusinessRepository returns the business state repository instance.
func (c *Container) BusinessRepository() (BusinessRepository, error) {
	var err error
	c.businessRepoInit.Do(func() {
		c.businessRepo, err = c.initBusinessRepository()
		if err != nil {
			c.initErrors["businessRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessRepo"]; exists {
		return nil, storedErr
	}
	return c.businessRepo, nil
}

// ChannelSender returns the outbound channel sender.
// It selects the whatsapp provider when configured and a log-only sender otherwise.
func (c *Container) ChannelSender() (messageUsecase.ChannelSender, error) {
	c.channelSenderInit.Do(func() {
		c.channelSender = c.initChannelSender()
	})
	return c.channelSender, nil
}

// MessageUseCase returns the message use case instance.
func (c *Container) MessageUseCase() (messageUsecase.UseCase, error) {
	var err error
	c.messageUseCaseInit.Do(func() {
		c.messageUseCase, err = c.initMessageUseCase()
		if err != nil {
			c.initErrors["messageUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["messageUseCase"]; exists {
		return nil, storedErr
	}
	return c.messageUseCase, nil
}

// AlertUseCase returns the alert use case instance.
func (c *Container) AlertUseCase() (alertUsecase.UseCase, error) {
	var err error
	c.alertUseCaseInit.Do(func() {
		c.alertUseCase, err = c.initAlertUseCase()
		if err != nil {
			c.initErrors["alertUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["alertUseCase"]; exists {
		return nil, storedErr
	}
	return c.alertUseCase, nil
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
// Returns nil when metrics are disabled.
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

	// Shutdown metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
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

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initMetrics creates the metrics provider and business metrics recorder.
// When metrics are disabled the provider stays nil and a no-op recorder is used.
func (c *Container) initMetrics() error {
	var err error
	c.metricsInit.Do(func() {
		if !c.config.MetricsEnabled {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}

		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			err = fmt.Errorf("failed to create metrics provider: %w", err)
			c.initErrors["metrics"] = err
			return
		}

		c.businessMetrics, err = metrics.NewBusinessMetrics(
			c.metricsProvider.MeterProvider(),
			c.config.MetricsNamespace,
		)
		if err != nil {
			err = fmt.Errorf("failed to create business metrics: %w", err)
			c.initErrors["metrics"] = err
		}
	})
	if err != nil {
		return err
	}
	if storedErr, exists := c.initErrors["metrics"]; exists {
		return storedErr
	}
	return nil
}

// initAlertRepository creates the alert repository instance.
func (c *Container) initAlertRepository() (alertUsecase.AlertRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for alert repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return alertRepository.NewMySQLAlertRepository(db), nil
	case "postgres":
		return alertRepository.NewPostgreSQLAlertRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initMessageRepository creates the outbound message repository instance.
func (c *Container) initMessageRepository() (messageUsecase.MessageRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for message repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return messageRepository.NewMySQLMessageRepository(db), nil
	case "postgres":
		return messageRepository.NewPostgreSQLMessageRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initBusinessRepository creates the business state repository instance.
func (c *Container) initBusinessRepository() (BusinessRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for business repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return businessRepository.NewMySQLBusinessRepository(db), nil
	case "postgres":
		return businessRepository.NewPostgreSQLBusinessRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initChannelSender selects the outbound channel sender based on configuration.
func (c *Container) initChannelSender() messageUsecase.ChannelSender {
	logger := c.Logger()

	if c.config.WhatsAppAPIURL != "" {
		return sender.NewWhatsAppSender(c.config.WhatsAppAPIURL, c.config.WhatsAppAPIToken, logger)
	}

	logger.Warn("whatsapp api url not configured, outbound messages will be logged only")
	return sender.NewLogSender(logger)
}

// initMessageUseCase creates the message use case with all its dependencies.
func (c *Container) initMessageUseCase() (messageUsecase.UseCase, error) {
	logger := c.Logger()

	messageRepo, err := c.MessageRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get message repository for message use case: %w", err)
	}

	channelSender, err := c.ChannelSender()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel sender for message use case: %w", err)
	}

	useCaseConfig := messageUsecase.Config{
		BatchSize:   c.config.DispatchBatchSize,
		SendTimeout: c.config.DispatchSendTimeout,
		ClaimLease:  c.config.DispatchClaimLease,
	}

	var useCase messageUsecase.UseCase = messageUsecase.NewMessageUseCase(
		useCaseConfig,
		messageRepo,
		channelSender,
		logger,
	)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for message use case: %w", err)
	}
	useCase = messageUsecase.NewUseCaseWithMetrics(useCase, businessMetrics)

	return useCase, nil
}

// initAlertUseCase creates the alert engine with all its dependencies.
func (c *Container) initAlertUseCase() (alertUsecase.UseCase, error) {
	logger := c.Logger()

	alertRepo, err := c.AlertRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get alert repository for alert use case: %w", err)
	}

	businessRepo, err := c.BusinessRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get business repository for alert use case: %w", err)
	}

	messageUseCase, err := c.MessageUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get message use case for alert use case: %w", err)
	}

	useCaseConfig := alertUsecase.Config{
		LowStockThreshold:    c.config.LowStockThreshold,
		OverdueGraceDays:     c.config.OverdueGraceDays,
		StaleReservationDays: c.config.StaleReservationDays,
		AdminPhone:           c.config.AdminPhone,
	}

	var useCase alertUsecase.UseCase = alertUsecase.NewEngine(
		useCaseConfig,
		alertRepo,
		messageUseCase,
		businessRepo,
		businessRepo,
		businessRepo,
		logger,
	)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for alert use case: %w", err)
	}
	useCase = alertUsecase.NewUseCaseWithMetrics(useCase, businessMetrics)

	return useCase, nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	alertUseCase, err := c.AlertUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get alert use case for http server: %w", err)
	}

	messageUseCase, err := c.MessageUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get message use case for http server: %w", err)
	}

	serverConfig := http.Config{
		Host:             c.config.ServerHost,
		Port:             c.config.ServerPort,
		AdminAPIToken:    c.config.AdminAPIToken,
		RateLimitEnabled: c.config.RateLimitEnabled,
		RateLimitRPS:     c.config.RateLimitRequestsPerSec,
		RateLimitBurst:   c.config.RateLimitBurst,
		CORSEnabled:      c.config.CORSEnabled,
		CORSAllowOrigins: c.config.CORSAllowOrigins,
	}

	var metricsMiddleware gin.HandlerFunc
	if c.config.MetricsEnabled {
		metricsProvider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		metricsMiddleware = metrics.HTTPMetricsMiddleware(
			metricsProvider.MeterProvider(),
			c.config.MetricsNamespace,
		)
	}

	server := http.NewServer(
		serverConfig,
		db,
		alertHTTP.NewAlertHandler(alertUseCase, logger),
		messageHTTP.NewMessageHandler(messageUseCase, logger),
		metricsMiddleware,
		logger,
	)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		metricsProvider,
	), nil
}
