package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staff_srv/internal/metrics"
	"staff_srv/internal/models"
	"staff_srv/internal/notify"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	groupIDPrefix = "group_"
	groupIDLength = 12

	// формат даты исходящего письма в API
	outgoingDateLayout = "2006-01-02"
)

// RequestRepository интерфейс для работы с таблицей заявок
type RequestRepository interface {
	CreateGroup(ctx context.Context, rows []models.Request) error
	List(ctx context.Context, status models.RequestStatus) ([]models.Request, error)
	GetGroup(ctx context.Context, groupID string) ([]models.Request, error)
	UpdateGroup(ctx context.Context, groupID string, updates map[string]interface{}) error
	CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
}

type gormRequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository создает репозиторий заявок поверх gorm
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &gormRequestRepository{db: db}
}

func (r *gormRequestRepository) CreateGroup(ctx context.Context, rows []models.Request) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Employee").Create(&rows).Error
	})
}

func (r *gormRequestRepository) List(ctx context.Context, status models.RequestStatus) ([]models.Request, error) {
	query := r.db.WithContext(ctx).Preload("Employee")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var rows []models.Request
	err := query.Order("created_at DESC").Order("id").Find(&rows).Error
	return rows, err
}

func (r *gormRequestRepository) GetGroup(ctx context.Context, groupID string) ([]models.Request, error) {
	var rows []models.Request
	err := r.db.WithContext(ctx).Preload("Employee").
		Where("request_group_id = ?", groupID).Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("заявка %s: %w", groupID, ErrNotFound)
	}
	return rows, nil
}

func (r *gormRequestRepository) UpdateGroup(ctx context.Context, groupID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Request{}).
		Where("request_group_id = ?", groupID).Updates(updates).Error
}

func (r *gormRequestRepository) CountByStatus(ctx context.Context, status models.RequestStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Request{}).
		Where("status = ?", status).
		Distinct("request_group_id").Count(&n).Error
	return n, err
}

func (r *gormRequestRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		RequestCategory string
		Total           int64
	}
	err := r.db.WithContext(ctx).Model(&models.Request{}).
		Select("request_category, COUNT(DISTINCT request_group_id) AS total").
		Group("request_category").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.RequestCategory] = row.Total
	}
	return out, nil
}

// CreateRequestInput заявка на одного или нескольких сотрудников
type CreateRequestInput struct {
	EmployeeIDs     []uint `json:"employee_ids" validate:"required,min=1,dive,gt=0"`
	RequestType     string `json:"request_type" validate:"required"`
	RequestCategory string `json:"request_category"`
	Notes           string `json:"notes" validate:"max=2000"`
}

// StatusUpdateInput смена статуса группы заявок
type StatusUpdateInput struct {
	Status         models.RequestStatus `json:"status" validate:"required"`
	OutgoingNumber string               `json:"outgoing_number" validate:"max=100"`
	OutgoingDate   string               `json:"outgoing_date"`
}

// RequestGroup заявка в том виде, как ее видит пользователь
type RequestGroup struct {
	RequestGroupID   string                   `json:"request_group_id"`
	RequestType      string                   `json:"request_type"`
	RequestTypeLabel string                   `json:"request_type_label"`
	RequestCategory  string                   `json:"request_category"`
	Status           models.RequestStatus     `json:"status"`
	Notes            string                   `json:"notes"`
	OutgoingNumber   string                   `json:"outgoing_number,omitempty"`
	OutgoingDate     *time.Time               `json:"outgoing_date,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	ApprovedAt       *time.Time               `json:"approved_at,omitempty"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty"`
	Employees        []models.EmployeeSummary `json:"employees"`
}

// RequestService ведет заявки и их статусы
type RequestService struct {
	requests  RequestRepository
	employees EmployeeRepository
	publisher notify.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	now       func() time.Time
}

// NewRequestService создает сервис заявок. m может быть nil.
func NewRequestService(
	requests RequestRepository,
	employees EmployeeRepository,
	publisher notify.Publisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *RequestService {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &RequestService{
		requests:  requests,
		employees: employees,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// NewGroupID returns "group_" followed by 12 hex chars.
func NewGroupID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return groupIDPrefix + id[:groupIDLength]
}

// Create создает по строке на каждого сотрудника с общим идентификатором группы
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*RequestGroup, error) {
	category, ok := models.CategoryOf(in.RequestType)
	if !ok {
		return nil, fmt.Errorf("%w: неизвестный тип заявки %q", ErrValidation, in.RequestType)
	}
	if in.RequestCategory != "" && in.RequestCategory != category {
		return nil, fmt.Errorf("%w: тип %q не относится к категории %q", ErrValidation, in.RequestType, in.RequestCategory)
	}

	ids := uniqueIDs(in.EmployeeIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: не выбраны сотрудники", ErrValidation)
	}

	found, err := s.employees.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сотрудников: %w", err)
	}
	if len(found) != len(ids) {
		return nil, fmt.Errorf("%w: часть сотрудников не существует", ErrValidation)
	}

	groupID := NewGroupID()
	rows := make([]models.Request, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.Request{
			RequestGroupID:  groupID,
			EmployeeID:      id,
			RequestType:     in.RequestType,
			RequestCategory: category,
			Status:          models.StatusPending,
			Notes:           strings.TrimSpace(in.Notes),
		})
	}

	if err := s.requests.CreateGroup(ctx, rows); err != nil {
		s.logger.WithError(err).Error("Ошибка сохранения заявки")
		return nil, fmt.Errorf("ошибка создания заявки: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RequestsCreated.WithLabelValues(category).Add(float64(len(rows)))
	}
	s.logger.WithFields(logrus.Fields{
		"request_group_id": groupID,
		"request_type":     in.RequestType,
		"employees":        len(rows),
	}).Info("Заявка создана")

	created, err := s.requests.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &groupRows(created)[0], nil
}

// List возвращает заявки, сгруппированные по request_group_id, новые первыми
func (s *RequestService) List(ctx context.Context, status models.RequestStatus) ([]RequestGroup, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: неизвестный статус %q", ErrValidation, status)
	}

	rows, err := s.requests.List(ctx, status)
	if err != nil {
		s.logger.WithError(err).Error("Ошибка получения списка заявок")
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	return groupRows(rows), nil
}

// Get возвращает одну группу заявок
func (s *RequestService) Get(ctx context.Context, groupID string) (*RequestGroup, error) {
	rows, err := s.requests.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &groupRows(rows)[0], nil
}

// UpdateStatus переводит всю группу в новый статус и публикует событие
func (s *RequestService) UpdateStatus(ctx context.Context, groupID string, in StatusUpdateInput) (*RequestGroup, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"request_group_id": groupID,
		"status":           in.Status,
	})

	if !in.Status.IsValid() {
		return nil, fmt.Errorf("%w: неизвестный статус %q", ErrValidation, in.Status)
	}

	rows, err := s.requests.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	current := rows[0].Status
	if !current.CanTransitionTo(in.Status) {
		return nil, fmt.Errorf("%w: невозможен переход со статуса %s на %s", ErrValidation, current, in.Status)
	}

	now := s.now().UTC()
	updates := map[string]interface{}{
		"status":     in.Status,
		"updated_at": now,
	}
	if in.Status == models.StatusApproved || in.Status == models.StatusCompleted {
		if rows[0].ApprovedAt == nil {
			updates["approved_at"] = now
		}
	}
	if in.Status == models.StatusCompleted {
		updates["completed_at"] = now
	}
	if n := strings.TrimSpace(in.OutgoingNumber); n != "" {
		updates["outgoing_number"] = n
	}
	if in.OutgoingDate != "" {
		date, err := time.Parse(outgoingDateLayout, in.OutgoingDate)
		if err != nil {
			return nil, fmt.Errorf("%w: дата исходящего должна быть в формате ГГГГ-ММ-ДД", ErrValidation)
		}
		updates["outgoing_date"] = date
	}

	if err := s.requests.UpdateGroup(ctx, groupID, updates); err != nil {
		logger.WithError(err).Error("Ошибка обновления статуса заявки")
		return nil, fmt.Errorf("ошибка обновления статуса заявки: %w", err)
	}

	updated, err := s.requests.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	group := groupRows(updated)[0]

	if s.metrics != nil {
		s.metrics.StatusChanges.WithLabelValues(string(in.Status)).Inc()
	}

	event := notify.StatusEvent{
		RequestGroupID:  groupID,
		RequestType:     group.RequestType,
		RequestCategory: group.RequestCategory,
		PreviousStatus:  string(current),
		Status:          string(group.Status),
		OutgoingNumber:  group.OutgoingNumber,
		OutgoingDate:    group.OutgoingDate,
		ChangedAt:       now,
	}
	for _, e := range group.Employees {
		event.EmployeeIDs = append(event.EmployeeIDs, e.ID)
	}
	// статус уже сохранен, ошибка брокера только логируется
	if err := s.publisher.PublishStatusChanged(ctx, event); err != nil {
		logger.WithError(err).Warn("Не удалось опубликовать событие о смене статуса")
	}

	logger.WithField("previous_status", current).Info("Статус заявки изменен")
	return &group, nil
}

// groupRows собирает строки в группы, сохраняя порядок первого появления группы
func groupRows(rows []models.Request) []RequestGroup {
	groups := make([]RequestGroup, 0)
	index := make(map[string]int)

	for _, r := range rows {
		i, ok := index[r.RequestGroupID]
		if !ok {
			groups = append(groups, RequestGroup{
				RequestGroupID:   r.RequestGroupID,
				RequestType:      r.RequestType,
				RequestTypeLabel: models.RequestTypeLabel(r.RequestType),
				RequestCategory:  r.RequestCategory,
				Status:           r.Status,
				Notes:            r.Notes,
				OutgoingNumber:   r.OutgoingNumber,
				OutgoingDate:     r.OutgoingDate,
				CreatedAt:        r.CreatedAt,
				ApprovedAt:       r.ApprovedAt,
				CompletedAt:      r.CompletedAt,
				Employees:        []models.EmployeeSummary{},
			})
			i = len(groups) - 1
			index[r.RequestGroupID] = i
		}
		if r.Employee.ID != 0 {
			groups[i].Employees = append(groups[i].Employees, r.Employee.Summary())
		}
	}
	return groups
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
