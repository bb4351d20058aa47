package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"staff_srv/internal/importer"
	"staff_srv/internal/metrics"
	"staff_srv/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("запись не найдена")
	ErrValidation = errors.New("ошибка валидации")
)

// EmployeeFilter параметры выборки сотрудников
type EmployeeFilter struct {
	Search string `query:"search"`
	Status string `query:"status"`
}

// EmployeeRepository интерфейс для работы с таблицей сотрудников
type EmployeeRepository interface {
	Create(ctx context.Context, e *models.Employee) error
	CreateBatch(ctx context.Context, employees []models.Employee) error
	GetByID(ctx context.Context, id uint) (*models.Employee, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Employee, error)
	List(ctx context.Context, filter EmployeeFilter) ([]models.Employee, error)
	Update(ctx context.Context, e *models.Employee) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context, status string) (int64, error)
}

type gormEmployeeRepository struct {
	db *gorm.DB
}

// NewEmployeeRepository создает репозиторий сотрудников поверх gorm
func NewEmployeeRepository(db *gorm.DB) EmployeeRepository {
	return &gormEmployeeRepository{db: db}
}

func (r *gormEmployeeRepository) Create(ctx context.Context, e *models.Employee) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *gormEmployeeRepository) CreateBatch(ctx context.Context, employees []models.Employee) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(employees, 100).Error
	})
}

func (r *gormEmployeeRepository) GetByID(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("сотрудник %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

func (r *gormEmployeeRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Employee, error) {
	var employees []models.Employee
	if len(ids) == 0 {
		return employees, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&employees).Error
	return employees, err
}

func (r *gormEmployeeRepository) List(ctx context.Context, filter EmployeeFilter) ([]models.Employee, error) {
	query := r.db.WithContext(ctx).Model(&models.Employee{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where(
			"LOWER(last_name) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(middle_name) LIKE ? OR LOWER(sudis_login) LIKE ? OR LOWER(department) LIKE ?",
			like, like, like, like, like,
		)
	}

	var employees []models.Employee
	err := query.Order("id").Find(&employees).Error
	return employees, err
}

func (r *gormEmployeeRepository) Update(ctx context.Context, e *models.Employee) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *gormEmployeeRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("employee_id = ?", id).Delete(&models.Request{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Employee{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("сотрудник %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (r *gormEmployeeRepository) Count(ctx context.Context, status string) (int64, error) {
	var n int64
	query := r.db.WithContext(ctx).Model(&models.Employee{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Count(&n).Error
	return n, err
}

// EmployeeInput поля сотрудника, которые принимает API
type EmployeeInput struct {
	LastName      string `json:"last_name" validate:"required,max=100"`
	FirstName     string `json:"first_name" validate:"required,max=100"`
	MiddleName    string `json:"middle_name" validate:"max=100"`
	Position      string `json:"position" validate:"max=255"`
	Rank          string `json:"rank" validate:"max=100"`
	Service       string `json:"service" validate:"max=255"`
	Department    string `json:"department" validate:"max=255"`
	Address       string `json:"address" validate:"max=500"`
	Office        string `json:"office" validate:"max=50"`
	Phone         string `json:"phone" validate:"max=50"`
	SudisLogin    string `json:"sudis_login" validate:"max=100"`
	OfficialEmail string `json:"official_email" validate:"omitempty,email,max=255"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (in EmployeeInput) apply(e *models.Employee) {
	e.LastName = in.LastName
	e.FirstName = in.FirstName
	e.MiddleName = in.MiddleName
	e.Position = in.Position
	e.Rank = in.Rank
	e.Service = in.Service
	e.Department = in.Department
	e.Address = in.Address
	e.Office = in.Office
	e.Phone = in.Phone
	e.SudisLogin = in.SudisLogin
	e.OfficialEmail = in.OfficialEmail
	e.Status = in.Status
}

// EmployeeService управляет списком сотрудников
type EmployeeService struct {
	repo    EmployeeRepository
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewEmployeeService создает сервис сотрудников. m может быть nil.
func NewEmployeeService(repo EmployeeRepository, m *metrics.Metrics, logger *logrus.Logger) *EmployeeService {
	return &EmployeeService{repo: repo, metrics: m, logger: logger}
}

// List возвращает сотрудников по возрастанию id
func (s *EmployeeService) List(ctx context.Context, filter EmployeeFilter) ([]models.Employee, error) {
	employees, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения списка сотрудников")
		return nil, fmt.Errorf("ошибка получения списка сотрудников: %w", err)
	}
	return employees, nil
}

// Get возвращает сотрудника по id
func (s *EmployeeService) Get(ctx context.Context, id uint) (*models.Employee, error) {
	return s.repo.GetByID(ctx, id)
}

// Create добавляет сотрудника
func (s *EmployeeService) Create(ctx context.Context, in EmployeeInput) (*models.Employee, error) {
	var e models.Employee
	in.apply(&e)
	e.Normalize()
	if e.LastName == "" || e.FirstName == "" {
		return nil, fmt.Errorf("%w: фамилия и имя обязательны", ErrValidation)
	}

	if err := s.repo.Create(ctx, &e); err != nil {
		s.logger.WithError(err).Error("Ошибка сохранения сотрудника")
		return nil, fmt.Errorf("ошибка создания сотрудника: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"employee_id": e.ID,
		"name":        e.FullName(),
	}).Info("Сотрудник добавлен")
	return &e, nil
}

// Update заменяет поля сотрудника
func (s *EmployeeService) Update(ctx context.Context, id uint, in EmployeeInput) (*models.Employee, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	in.apply(e)
	e.Normalize()
	if e.LastName == "" || e.FirstName == "" {
		return nil, fmt.Errorf("%w: фамилия и имя обязательны", ErrValidation)
	}

	if err := s.repo.Update(ctx, e); err != nil {
		s.logger.WithError(err).WithField("employee_id", id).Error("Ошибка обновления сотрудника")
		return nil, fmt.Errorf("ошибка обновления сотрудника: %w", err)
	}
	return e, nil
}

// Delete удаляет сотрудника вместе с его заявками
func (s *EmployeeService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("employee_id", id).Info("Сотрудник удален")
	return nil
}

// Import создает сотрудников из таблицы .xlsx или .xls
func (s *EmployeeService) Import(ctx context.Context, r io.Reader, filename string) (*importer.Result, error) {
	logger := s.logger.WithField("file", filename)

	res, err := importer.Read(r, filename)
	if err != nil {
		logger.WithError(err).Warn("Файл сотрудников не разобран")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(res.Employees) == 0 {
		return nil, fmt.Errorf("%w: в файле нет ни одного сотрудника", ErrValidation)
	}

	if err := s.repo.CreateBatch(ctx, res.Employees); err != nil {
		logger.WithError(err).Error("Ошибка сохранения импортированных сотрудников")
		return nil, fmt.Errorf("ошибка импорта сотрудников: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EmployeesImported.Add(float64(len(res.Employees)))
	}
	logger.WithFields(logrus.Fields{
		"created": len(res.Employees),
		"skipped": len(res.Skipped),
	}).Info("Импорт сотрудников завершен")
	return res, nil
}
