package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// base делегирует все методы обернутому хранилищу; middleware переопределяют нужные.
type base struct {
	storage Storage
}

func (b base) Save(ctx context.Context, key string, reader io.Reader) error {
	return b.storage.Save(ctx, key, reader)
}

func (b base) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.storage.Get(ctx, key)
}

func (b base) Delete(ctx context.Context, key string) error {
	return b.storage.Delete(ctx, key)
}

func (b base) Exists(ctx context.Context, key string) (bool, error) {
	return b.storage.Exists(ctx, key)
}

func (b base) GetMetadata(ctx context.Context, key string) (*FileMetadata, error) {
	return b.storage.GetMetadata(ctx, key)
}

func (b base) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	return b.storage.List(ctx, prefix)
}

func (b base) JoinPath(elem ...string) string {
	return b.storage.JoinPath(elem...)
}

func (b base) ValidateKey(key string) error {
	return b.storage.ValidateKey(key)
}

// LoggingMiddleware добавляет логирование к операциям хранилища
type LoggingMiddleware struct {
	base
	logger *logrus.Logger
}

// NewLoggingMiddleware создает новый logging middleware
func NewLoggingMiddleware(storage Storage, logger *logrus.Logger) Storage {
	return &LoggingMiddleware{base: base{storage}, logger: logger}
}

func (m *LoggingMiddleware) log(operation, key string, start time.Time, err error) {
	entry := m.logger.WithFields(logrus.Fields{
		"operation": operation,
		"key":       key,
		"duration":  time.Since(start),
	})
	switch {
	case err == nil:
		entry.Debug("Операция с файлом выполнена")
	case errors.Is(err, ErrNotFound):
		entry.Warn("Файл не найден")
	default:
		entry.WithError(err).Error("Ошибка операции с файлом")
	}
}

// Save логирует операцию сохранения
func (m *LoggingMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	start := time.Now()
	err := m.storage.Save(ctx, key, reader)
	m.log("save", key, start, err)
	return err
}

// Get логирует операцию получения
func (m *LoggingMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	reader, err := m.storage.Get(ctx, key)
	m.log("get", key, start, err)
	return reader, err
}

// Delete логирует операцию удаления
func (m *LoggingMiddleware) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := m.storage.Delete(ctx, key)
	m.log("delete", key, start, err)
	return err
}

// RetryMiddleware повторяет чтение и удаление при временных ошибках.
// Save не повторяется: reader к этому моменту уже может быть прочитан.
type RetryMiddleware struct {
	base
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

// NewRetryMiddleware создает новый retry middleware
func NewRetryMiddleware(storage Storage, maxRetries int, retryDelay time.Duration, logger *logrus.Logger) Storage {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetryMiddleware{
		base:       base{storage},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Get выполняет операцию получения с retry
func (m *RetryMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var result io.ReadCloser
	err := m.retryOperation(ctx, "get", func() error {
		var err error
		result, err = m.storage.Get(ctx, key)
		return err
	})
	return result, err
}

// Delete выполняет операцию удаления с retry
func (m *RetryMiddleware) Delete(ctx context.Context, key string) error {
	return m.retryOperation(ctx, "delete", func() error {
		return m.storage.Delete(ctx, key)
	})
}

// GetMetadata выполняет запрос метаданных с retry
func (m *RetryMiddleware) GetMetadata(ctx context.Context, key string) (*FileMetadata, error) {
	var result *FileMetadata
	err := m.retryOperation(ctx, "metadata", func() error {
		var err error
		result, err = m.storage.GetMetadata(ctx, key)
		return err
	})
	return result, err
}

func (m *RetryMiddleware) retryOperation(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !shouldRetry(lastErr) {
			return lastErr
		}

		if attempt < m.maxRetries {
			m.logger.WithFields(logrus.Fields{
				"operation":   operation,
				"attempt":     attempt + 1,
				"max_retries": m.maxRetries,
			}).WithError(lastErr).Warn("Повтор операции после ошибки")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retryDelay):
			}
		}
	}

	return lastErr
}

// shouldRetry: отсутствие файла и отмена контекста не лечатся повтором
func shouldRetry(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// ValidationMiddleware проверяет ключи до обращения к хранилищу
type ValidationMiddleware struct {
	base
}

// NewValidationMiddleware создает новый validation middleware
func NewValidationMiddleware(storage Storage) Storage {
	return &ValidationMiddleware{base: base{storage}}
}

// Save выполняет валидацию перед сохранением
func (m *ValidationMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := m.storage.ValidateKey(key); err != nil {
		return err
	}
	return m.storage.Save(ctx, key, reader)
}

// Get выполняет валидацию перед получением
func (m *ValidationMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := m.storage.ValidateKey(key); err != nil {
		return nil, err
	}
	return m.storage.Get(ctx, key)
}

// Delete выполняет валидацию перед удалением
func (m *ValidationMiddleware) Delete(ctx context.Context, key string) error {
	if err := m.storage.ValidateKey(key); err != nil {
		return err
	}
	return m.storage.Delete(ctx, key)
}

// Observer получает результат каждой операции; реализуется metrics.Metrics.
type Observer interface {
	ObserveStorage(operation string, err error)
}

// MetricsMiddleware считает операции хранилища
type MetricsMiddleware struct {
	base
	observer Observer
}

// NewMetricsMiddleware создает новый metrics middleware
func NewMetricsMiddleware(storage Storage, observer Observer) Storage {
	return &MetricsMiddleware{base: base{storage}, observer: observer}
}

func (m *MetricsMiddleware) Save(ctx context.Context, key string, reader io.Reader) error {
	err := m.storage.Save(ctx, key, reader)
	m.observer.ObserveStorage("save", err)
	return err
}

func (m *MetricsMiddleware) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := m.storage.Get(ctx, key)
	m.observer.ObserveStorage("get", err)
	return reader, err
}

func (m *MetricsMiddleware) Delete(ctx context.Context, key string) error {
	err := m.storage.Delete(ctx, key)
	m.observer.ObserveStorage("delete", err)
	return err
}
