package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// Типы хранилищ
	StorageTypeLocal = "local"
	StorageTypeS3    = "s3"

	// Настройки retry
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second

	maxKeyLength = 1024
)

// ErrNotFound возвращается, когда файла с таким ключом нет.
var ErrNotFound = errors.New("файл не найден")

// Storage интерфейс для работы с файлами шаблонов
type Storage interface {
	// Save сохраняет содержимое reader под ключом key, перезаписывая существующее
	Save(ctx context.Context, key string, reader io.Reader) error

	// Get открывает файл на чтение; отсутствие файла дает ErrNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete удаляет файл; удаление несуществующего файла не ошибка
	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
	GetMetadata(ctx context.Context, key string) (*FileMetadata, error)

	// List возвращает файлы, ключ которых начинается с prefix
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	JoinPath(elem ...string) string
	ValidateKey(key string) error
}

// FileMetadata метаданные файла
type FileMetadata struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ContentType  string            `json:"content_type"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// FileInfo информация о файле
type FileInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ReadAll читает файл целиком.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", key, err)
	}
	return data, nil
}

// validateKey общие правила для ключей всех хранилищ
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("ключ файла не может быть пустым")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("ключ файла слишком длинный: %d символов (максимум %d)", len(key), maxKeyLength)
	}
	if key[0] == '/' || key[0] == '\\' {
		return fmt.Errorf("ключ файла не может начинаться с разделителя")
	}
	for _, part := range strings.Split(strings.ReplaceAll(key, "\\", "/"), "/") {
		if part == ".." {
			return fmt.Errorf("ключ файла не может содержать '..'")
		}
	}
	return nil
}
