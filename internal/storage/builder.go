package storage

import (
	"context"
	"fmt"

	"staff_srv/internal/config"
	"staff_srv/internal/metrics"

	"github.com/sirupsen/logrus"
)

// StorageBuilder строитель для конфигурации хранилища
type StorageBuilder struct {
	config   config.Config
	logger   *logrus.Logger
	observer Observer
}

// NewStorageBuilder создает новый строитель хранилища
func NewStorageBuilder(cfg config.Config, logger *logrus.Logger) *StorageBuilder {
	return &StorageBuilder{
		config: cfg,
		logger: logger,
	}
}

// WithObserver включает учет операций в метриках
func (b *StorageBuilder) WithObserver(observer Observer) *StorageBuilder {
	b.observer = observer
	return b
}

// Build создает хранилище на основе конфигурации
func (b *StorageBuilder) Build(ctx context.Context) (Storage, error) {
	var (
		storage Storage
		err     error
	)

	switch b.config.Storage.Type {
	case StorageTypeS3:
		storage, err = NewS3Storage(ctx, S3Config{
			Region:         b.config.Storage.S3.Region,
			Bucket:         b.config.Storage.S3.Bucket,
			Endpoint:       b.config.Storage.S3.Endpoint,
			AccessKey:      b.config.Storage.S3.AccessKey,
			SecretKey:      b.config.Storage.S3.SecretKey,
			ForcePathStyle: b.config.Storage.S3.Endpoint != "",
		}, b.logger)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания S3 хранилища: %w", err)
		}

	case StorageTypeLocal:
		storage, err = NewLocalStorage(LocalConfig{
			BasePath:    b.config.Storage.BasePath,
			Permissions: 0o755,
		}, b.logger)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания локального хранилища: %w", err)
		}

	default:
		return nil, fmt.Errorf("неподдерживаемый тип хранилища: %s", b.config.Storage.Type)
	}

	return b.wrapWithMiddleware(storage), nil
}

// wrapWithMiddleware: валидация снаружи, затем метрики, логирование и retry
func (b *StorageBuilder) wrapWithMiddleware(storage Storage) Storage {
	storage = NewRetryMiddleware(storage, DefaultMaxRetries, DefaultRetryDelay, b.logger)

	if b.logger != nil {
		storage = NewLoggingMiddleware(storage, b.logger)
	}

	if b.observer != nil {
		storage = NewMetricsMiddleware(storage, b.observer)
	}

	return NewValidationMiddleware(storage)
}

// NewStorageFromConfig создает хранилище из конфигурации приложения
func NewStorageFromConfig(cfg config.Config, logger *logrus.Logger, m *metrics.Metrics) (Storage, error) {
	builder := NewStorageBuilder(cfg, logger)
	if m != nil {
		builder.WithObserver(m)
	}
	return builder.Build(context.Background())
}
