package docgen

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TemplateDefinition is everything the generator needs to know about a template.
type TemplateDefinition struct {
	ID              string
	Name            string
	RequestType     string
	RequestCategory string
	FileName        string
	Workbook        []byte
	Mapping         []FieldMapping
	StartRow        int
}

// GenerationRequest carries one generation run. Employees are written in order.
type GenerationRequest struct {
	Template    TemplateDefinition
	Employees   []Employee
	GeneratedAt time.Time
}

// Document is a generated spreadsheet.
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
	Strategy    Strategy
	Rows        int
}

// Recorder receives the outcome of every run.
type Recorder interface {
	ObserveGeneration(strategy string, employees int, elapsed time.Duration, err error)
}

// Generator runs load, scan, expand and serialize for a request.
// It holds no per-run state and is safe for concurrent use.
type Generator struct {
	logger       *logrus.Logger
	recorder     Recorder
	maxEmployees int
	now          func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithMaxEmployees limits employees per document. Zero means no limit.
func WithMaxEmployees(n int) Option {
	return func(g *Generator) { g.maxEmployees = n }
}

// NewGenerator создает генератор документов.
func NewGenerator(logger *logrus.Logger, opts ...Option) *Generator {
	g := &Generator{
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the document for req. Nothing is returned on failure.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (doc *Document, err error) {
	start := time.Now()
	strategy := "unknown"
	defer func() {
		if g.recorder != nil {
			g.recorder.ObserveGeneration(strategy, len(req.Employees), time.Since(start), err)
		}
	}()

	logger := g.logger.WithFields(logrus.Fields{
		"template_id": req.Template.ID,
		"template":    req.Template.Name,
		"employees":   len(req.Employees),
	})

	if len(req.Employees) == 0 {
		return nil, newError("generate", ErrEmptyEmployeeList)
	}
	if g.maxEmployees > 0 && len(req.Employees) > g.maxEmployees {
		return nil, newError("generate", ErrTooManyEmployees)
	}

	s, err := SelectStrategy(req.Template.Mapping)
	if err != nil {
		return nil, err
	}
	strategy = s.String()

	f, err := LoadWorkbook(req.Template.Workbook)
	if err != nil {
		logger.WithError(err).Warn("Не удалось открыть файл шаблона")
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.WithError(cerr).Debug("Ошибка закрытия книги")
		}
	}()

	block, err := Scan(f, req.Template.Mapping, req.Template.StartRow)
	if err != nil {
		logger.WithError(err).Warn("Шаблон не прошел разбор")
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := Expand(f, block, req.Employees); err != nil {
		logger.WithError(err).Error("Ошибка заполнения шаблона")
		return nil, err
	}

	content, err := Serialize(f)
	if err != nil {
		logger.WithError(err).Error("Ошибка записи документа")
		return nil, err
	}

	at := req.GeneratedAt
	if at.IsZero() {
		at = g.now()
	}

	doc = &Document{
		FileName:    FileName(req.Template.Name, at),
		ContentType: ContentTypeXLSX,
		Content:     content,
		Strategy:    s,
		Rows:        block.Height() * len(req.Employees),
	}

	logger.WithFields(logrus.Fields{
		"strategy":  strategy,
		"start_row": block.StartRow,
		"rows":      doc.Rows,
		"size":      len(content),
	}).Info("Документ сформирован")
	return doc, nil
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// FileName builds "<template name>_<YYYY-MM-DD>.xlsx".
func FileName(templateName string, at time.Time) string {
	name := strings.TrimSpace(fileNameReplacer.Replace(templateName))
	if name == "" {
		name = "document"
	}
	return name + "_" + at.Format("2006-01-02") + ".xlsx"
}
