package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalConfig конфигурация локального хранилища
type LocalConfig struct {
	BasePath    string      `json:"base_path"`
	Permissions os.FileMode `json:"permissions"`
}

// LocalStorage хранит файлы в каталоге на диске. Ключи всегда через '/'.
type LocalStorage struct {
	basePath    string
	permissions os.FileMode
	logger      *logrus.Logger
}

// NewLocalStorage создает новое локальное хранилище
func NewLocalStorage(cfg LocalConfig, logger *logrus.Logger) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("неверная конфигурация локального хранилища: базовый путь не может быть пустым")
	}
	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("неверный базовый путь %s: %w", cfg.BasePath, err)
	}
	if cfg.Permissions == 0 {
		cfg.Permissions = 0o755
	}

	if err := os.MkdirAll(base, cfg.Permissions); err != nil {
		return nil, fmt.Errorf("ошибка создания базовой директории: %w", err)
	}

	return &LocalStorage{
		basePath:    base,
		permissions: cfg.Permissions,
		logger:      logger,
	}, nil
}

// Save сохраняет файл через временный файл и rename
func (l *LocalStorage) Save(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath := l.getFullPath(key)

	if err := os.MkdirAll(filepath.Dir(fullPath), l.permissions); err != nil {
		return fmt.Errorf("ошибка создания директории: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка записи файла: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ошибка записи файла: %w", err)
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	return nil
}

// Get получает файл локально
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(l.getFullPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла: %w", err)
	}
	return file, nil
}

// Delete удаляет файл и пустые каталоги над ним
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath := l.getFullPath(key)
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}

	for dir := filepath.Dir(fullPath); dir != l.basePath && strings.HasPrefix(dir, l.basePath); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Exists проверяет существование файла
func (l *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.getFullPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки существования файла: %w", err)
	}
	return true, nil
}

// GetMetadata получает метаданные файла
func (l *LocalStorage) GetMetadata(ctx context.Context, key string) (*FileMetadata, error) {
	info, err := os.Stat(l.getFullPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка получения информации о файле: %w", err)
	}

	return &FileMetadata{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		ContentType:  contentTypeByKey(key),
	}, nil
}

// List возвращает список файлов с ключами через '/'
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(l.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(l.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) || strings.HasPrefix(path.Base(key), ".upload-") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	return files, nil
}

// JoinPath объединяет элементы ключа
func (l *LocalStorage) JoinPath(elem ...string) string {
	return path.Join(elem...)
}

// ValidateKey валидирует ключ файла
func (l *LocalStorage) ValidateKey(key string) error {
	return validateKey(key)
}

func (l *LocalStorage) getFullPath(key string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(key))
}

func contentTypeByKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	}
	return "application/octet-stream"
}
