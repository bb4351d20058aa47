package service

import (
	"context"
	"errors"
	"fmt"

	"staff_srv/internal/docgen"
	"staff_srv/internal/templates"

	"github.com/sirupsen/logrus"
)

// TemplateSource отдает шаблон в виде, готовом для генератора
type TemplateSource interface {
	Definition(ctx context.Context, id string) (docgen.TemplateDefinition, error)
}

// GenerateInput запрос на формирование документа
type GenerateInput struct {
	EmployeeIDs []uint `json:"employee_ids" validate:"required,min=1,dive,gt=0"`
}

// DocumentService формирует документы по шаблонам
type DocumentService struct {
	templates TemplateSource
	employees EmployeeRepository
	generator *docgen.Generator
	logger    *logrus.Logger
}

// NewDocumentService создает сервис документов
func NewDocumentService(
	templates TemplateSource,
	employees EmployeeRepository,
	generator *docgen.Generator,
	logger *logrus.Logger,
) *DocumentService {
	return &DocumentService{
		templates: templates,
		employees: employees,
		generator: generator,
		logger:    logger,
	}
}

// Generate заполняет шаблон сотрудниками в том порядке, в котором пришли их id
func (s *DocumentService) Generate(ctx context.Context, templateID string, employeeIDs []uint) (*docgen.Document, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"template_id": templateID,
		"employees":   len(employeeIDs),
	})

	ids := uniqueIDs(employeeIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: не выбраны сотрудники", ErrValidation)
	}

	def, err := s.templates.Definition(ctx, templateID)
	if err != nil {
		if errors.Is(err, templates.ErrNotFound) {
			return nil, fmt.Errorf("шаблон %s: %w", templateID, ErrNotFound)
		}
		return nil, err
	}

	rows, err := s.employees.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сотрудников: %w", err)
	}
	byID := make(map[uint]int, len(rows))
	for i := range rows {
		byID[rows[i].ID] = i
	}

	records := make([]docgen.Employee, 0, len(ids))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("сотрудник %d: %w", id, ErrNotFound)
		}
		records = append(records, rows[i].Record())
	}

	doc, err := s.generator.Generate(ctx, docgen.GenerationRequest{
		Template:  def,
		Employees: records,
	})
	if err != nil {
		logger.WithError(err).Warn("Документ не сформирован")
		return nil, err
	}
	return doc, nil
}
