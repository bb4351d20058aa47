package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"staff_srv/internal/docgen"
	"staff_srv/internal/models"
	"staff_srv/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrNotFound шаблон с таким id не существует
	ErrNotFound = errors.New("шаблон не найден")
	// ErrValidation параметры шаблона некорректны
	ErrValidation = errors.New("некорректные параметры шаблона")
)

// Repository defines the interface for template rows
type Repository interface {
	Create(ctx context.Context, t *models.Template) error
	List(ctx context.Context, requestType string) ([]models.Template, error)
	Get(ctx context.Context, id string) (*models.Template, error)
	Update(ctx context.Context, t *models.Template) error
	Delete(ctx context.Context, id string) error
}

// GormRepository хранит шаблоны в БД через gorm
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new template repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, t *models.Template) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *GormRepository) List(ctx context.Context, requestType string) ([]models.Template, error) {
	var list []models.Template
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if requestType != "" {
		q = q.Where("request_type = ?", requestType)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *GormRepository) Get(ctx context.Context, id string) (*models.Template, error) {
	var t models.Template
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *GormRepository) Update(ctx context.Context, t *models.Template) error {
	return r.db.WithContext(ctx).Save(t).Error
}

func (r *GormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Template{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateParams параметры нового шаблона
type CreateParams struct {
	Name        string
	RequestType string
	Mapping     json.RawMessage
	StartRow    int
	FileName    string
	File        []byte
}

// UpdateParams изменения шаблона; nil поля не меняются
type UpdateParams struct {
	Name        *string
	RequestType *string
	Mapping     json.RawMessage
	StartRow    *int
	FileName    string
	File        []byte
}

// Store хранит настройки шаблонов в БД, а файлы в storage.Storage
type Store struct {
	repo   Repository
	files  storage.Storage
	logger *logrus.Logger
}

// NewStore creates a new template store
func NewStore(repo Repository, files storage.Storage, logger *logrus.Logger) *Store {
	return &Store{repo: repo, files: files, logger: logger}
}

// NewStoreFromDB собирает Store поверх gorm
func NewStoreFromDB(db *gorm.DB, files storage.Storage, logger *logrus.Logger) *Store {
	return NewStore(NewGormRepository(db), files, logger)
}

// Create проверяет файл и настройки, сохраняет файл и запись
func (s *Store) Create(ctx context.Context, p CreateParams) (*models.Template, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: не указано название", ErrValidation)
	}
	if len(p.File) == 0 {
		return nil, fmt.Errorf("%w: не загружен файл шаблона", ErrValidation)
	}

	category, err := categoryOf(p.RequestType)
	if err != nil {
		return nil, err
	}
	mapping, err := NormalizeMapping(p.Mapping)
	if err != nil {
		return nil, err
	}
	if err := validateWorkbook(p.File, mapping, p.StartRow); err != nil {
		return nil, err
	}

	t := &models.Template{
		ID:              uuid.NewString(),
		Name:            name,
		RequestType:     p.RequestType,
		RequestCategory: category,
		FieldMapping:    models.RawJSON(mapping),
		StartRow:        p.StartRow,
		FileName:        cleanFileName(p.FileName),
		FileSize:        int64(len(p.File)),
	}
	t.FileKey = s.files.JoinPath("templates", t.ID, t.FileName)

	if err := s.files.Save(ctx, t.FileKey, bytes.NewReader(p.File)); err != nil {
		return nil, fmt.Errorf("ошибка сохранения файла шаблона: %w", err)
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if delErr := s.files.Delete(ctx, t.FileKey); delErr != nil {
			s.logger.WithError(delErr).WithField("key", t.FileKey).Warn("Не удалось удалить файл шаблона после ошибки")
		}
		return nil, fmt.Errorf("ошибка сохранения шаблона: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"template_id":  t.ID,
		"name":         t.Name,
		"request_type": t.RequestType,
	}).Info("Шаблон создан")
	return t, nil
}

// List returns templates, optionally for one request type
func (s *Store) List(ctx context.Context, requestType string) ([]models.Template, error) {
	list, err := s.repo.List(ctx, requestType)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка шаблонов: %w", err)
	}
	return list, nil
}

// Get returns a template by id
func (s *Store) Get(ctx context.Context, id string) (*models.Template, error) {
	return s.repo.Get(ctx, id)
}

// Update меняет настройки и/или файл. Старый файл удаляется после записи новой версии.
func (s *Store) Update(ctx context.Context, id string, p UpdateParams) (*models.Template, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: не указано название", ErrValidation)
		}
		t.Name = name
	}
	if p.RequestType != nil {
		category, err := categoryOf(*p.RequestType)
		if err != nil {
			return nil, err
		}
		t.RequestType, t.RequestCategory = *p.RequestType, category
	}
	if p.Mapping != nil {
		mapping, err := NormalizeMapping(p.Mapping)
		if err != nil {
			return nil, err
		}
		t.FieldMapping = models.RawJSON(mapping)
	}
	if p.StartRow != nil {
		t.StartRow = *p.StartRow
	}

	oldKey := t.FileKey
	workbook := p.File
	if len(workbook) == 0 {
		if workbook, err = s.readFile(ctx, t); err != nil {
			return nil, err
		}
	}
	if err := validateWorkbook(workbook, t.FieldMapping, t.StartRow); err != nil {
		return nil, err
	}

	if len(p.File) > 0 {
		if p.FileName != "" {
			t.FileName = cleanFileName(p.FileName)
		}
		t.FileKey = s.files.JoinPath("templates", t.ID, t.FileName)
		// прежний файл нужен до коммита записи, поэтому имя не переиспользуем
		if t.FileKey == oldKey {
			t.FileKey = s.files.JoinPath("templates", t.ID, uuid.NewString()[:8]+"_"+t.FileName)
		}
		t.FileSize = int64(len(p.File))
		if err := s.files.Save(ctx, t.FileKey, bytes.NewReader(p.File)); err != nil {
			return nil, fmt.Errorf("ошибка сохранения файла шаблона: %w", err)
		}
	}

	if err := s.repo.Update(ctx, t); err != nil {
		if t.FileKey != oldKey {
			if delErr := s.files.Delete(ctx, t.FileKey); delErr != nil {
				s.logger.WithError(delErr).WithField("key", t.FileKey).Warn("Не удалось удалить файл шаблона после ошибки")
			}
		}
		return nil, fmt.Errorf("ошибка обновления шаблона: %w", err)
	}

	if oldKey != "" && oldKey != t.FileKey {
		if err := s.files.Delete(ctx, oldKey); err != nil {
			s.logger.WithError(err).WithField("key", oldKey).Warn("Не удалось удалить прежний файл шаблона")
		}
	}

	s.logger.WithField("template_id", t.ID).Info("Шаблон обновлен")
	return t, nil
}

// Delete удаляет запись и файл шаблона
func (s *Store) Delete(ctx context.Context, id string) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	files, err := s.files.List(ctx, s.files.JoinPath("templates", id)+"/")
	if err != nil {
		s.logger.WithError(err).WithField("template_id", id).Warn("Не удалось получить файлы шаблона")
		files = []storage.FileInfo{{Key: t.FileKey}}
	}
	for _, f := range files {
		if f.Key == "" {
			continue
		}
		if err := s.files.Delete(ctx, f.Key); err != nil {
			s.logger.WithError(err).WithField("key", f.Key).Warn("Не удалось удалить файл шаблона")
		}
	}

	s.logger.WithField("template_id", id).Info("Шаблон удален")
	return nil
}

// File возвращает запись и содержимое файла шаблона
func (s *Store) File(ctx context.Context, id string) (*models.Template, []byte, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.readFile(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return t, data, nil
}

// Definition собирает все, что нужно генератору: файл и настройки в текущем виде
func (s *Store) Definition(ctx context.Context, id string) (docgen.TemplateDefinition, error) {
	t, data, err := s.File(ctx, id)
	if err != nil {
		return docgen.TemplateDefinition{}, err
	}

	mappings, version, err := UpgradeMapping(t.FieldMapping)
	if err != nil {
		return docgen.TemplateDefinition{}, fmt.Errorf("шаблон %s: %w", id, err)
	}
	if version != CurrentMappingVersion {
		s.logger.WithFields(logrus.Fields{
			"template_id": id,
			"version":     version,
		}).Debug("Настройки шаблона в старом формате")
	}

	return docgen.TemplateDefinition{
		ID:              t.ID,
		Name:            t.Name,
		RequestType:     t.RequestType,
		RequestCategory: t.RequestCategory,
		FileName:        t.FileName,
		Workbook:        data,
		Mapping:         mappings,
		StartRow:        t.StartRow,
	}, nil
}

func (s *Store) readFile(ctx context.Context, t *models.Template) ([]byte, error) {
	if !t.HasFile() {
		return nil, fmt.Errorf("шаблон %s: %w", t.ID, docgen.ErrTemplateFileMissing)
	}
	data, err := storage.ReadAll(ctx, s.files, t.FileKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("шаблон %s: %w", t.ID, docgen.ErrTemplateFileMissing)
		}
		return nil, fmt.Errorf("ошибка чтения файла шаблона: %w", err)
	}
	return data, nil
}

// validateWorkbook открывает файл и ищет в нем блок строк, как это сделает генератор
func validateWorkbook(data []byte, mapping []byte, startRow int) error {
	if startRow < 0 {
		return fmt.Errorf("%w: начальная строка не может быть отрицательной", ErrValidation)
	}
	mappings, _, err := UpgradeMapping(mapping)
	if err != nil {
		return err
	}

	f, err := docgen.LoadWorkbook(data)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = docgen.Scan(f, mappings, startRow)
	return err
}

func categoryOf(requestType string) (string, error) {
	if requestType == "" {
		return "", nil
	}
	category, ok := models.CategoryOf(requestType)
	if !ok {
		return "", fmt.Errorf("%w: неизвестный тип заявки %q", ErrValidation, requestType)
	}
	return category, nil
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "template.xlsx"
	}
	if !strings.EqualFold(path.Ext(name), ".xlsx") {
		name += ".xlsx"
	}
	return name
}
