package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staff_srv/internal/config"
	"staff_srv/internal/database"
	"staff_srv/internal/docgen"
	"staff_srv/internal/metrics"
	"staff_srv/internal/notify"
	"staff_srv/internal/server"
	"staff_srv/internal/service"
	"staff_srv/internal/storage"
	"staff_srv/internal/templates"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		// Поставщики зависимостей
		fx.Provide(
			provideConfig,
			provideLogger,
			provideRegistry,
			provideMetrics,
			database.NewFromConfig,
			storage.NewStorageFromConfig,
			notify.NewPublisherFromConfig,
			provideGenerator,
			templates.NewStoreFromDB,
			service.NewEmployeeRepository,
			service.NewRequestRepository,
			service.NewEmployeeService,
			service.NewRequestService,
			service.NewDashboardService,
			provideDocumentService,
			provideServer,
		),

		// Хуки жизненного цикла
		fx.Invoke(registerLifecycleHooks),
		fx.NopLogger,
	)

	// Запуск приложения с остановкой
	runWithGracefulShutdown(app)
}

// provideConfig загружает и предоставляет конфигурацию приложения
func provideConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// provideLogger создает и настраивает логгер на основе конфигурации
func provideLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()

	// Устанавливаем уровень логирования
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Неверный уровень логирования, используется info")
	}
	logger.SetLevel(level)

	// Устанавливаем формат вывода
	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.WithField("config", cfg.String()).Info("Запуск сервиса учета сотрудников")
	return logger
}

// provideRegistry создает реестр метрик со стандартными коллекторами процесса
func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.NewMetrics(reg)
}

func provideGenerator(cfg config.Config, m *metrics.Metrics, logger *logrus.Logger) *docgen.Generator {
	return docgen.NewGenerator(logger,
		docgen.WithRecorder(m),
		docgen.WithMaxEmployees(cfg.Generation.MaxEmployees),
	)
}

func provideDocumentService(
	store *templates.Store,
	employees service.EmployeeRepository,
	generator *docgen.Generator,
	logger *logrus.Logger,
) *service.DocumentService {
	return service.NewDocumentService(store, employees, generator, logger)
}

func provideServer(
	cfg config.Config,
	employees *service.EmployeeService,
	requests *service.RequestService,
	documents *service.DocumentService,
	dashboard *service.DashboardService,
	store *templates.Store,
	reg *prometheus.Registry,
	logger *logrus.Logger,
) *server.Server {
	return server.NewServer(cfg, server.Services{
		Employees: employees,
		Requests:  requests,
		Documents: documents,
		Dashboard: dashboard,
		Templates: store,
	}, reg, logger)
}

// registerLifecycleHooks настраивает хуки жизненного цикла приложения
func registerLifecycleHooks(
	srv *server.Server,
	db *gorm.DB,
	publisher notify.Publisher,
	cfg config.Config,
	logger *logrus.Logger,
	lc fx.Lifecycle,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// для sqlite схема создается сразу, postgres мигрируется cmd/migrate
			if cfg.DB.Driver == database.DriverSQLite {
				if err := database.AutoMigrate(db, logger); err != nil {
					return err
				}
			}

			logger.Info("Запуск HTTP сервера")
			go func() {
				if err := srv.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.WithError(err).Error("Не удалось запустить HTTP сервер")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Завершение работы HTTP сервера")
			if err := srv.Shutdown(ctx); err != nil {
				logger.WithError(err).Error("Ошибка остановки HTTP сервера")
			}
			if err := publisher.Close(); err != nil {
				logger.WithError(err).Warn("Ошибка закрытия соединения с брокером")
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}

// runWithGracefulShutdown обрабатывает жизненный цикл приложения с обработкой сигналов
func runWithGracefulShutdown(app *fx.App) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Настраиваем обработку сигналов
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		logrus.WithError(err).Fatal("Не удалось запустить приложение")
	}

	<-quit
	logrus.Info("Получен сигнал завершения работы")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		logrus.WithError(err).Error("Ошибка при завершении работы")
		os.Exit(1)
	}

	logrus.Info("Сервис остановлен корректно")
}
