package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"staff_srv/internal/config"
	"staff_srv/internal/docgen"
	"staff_srv/internal/service"
	"staff_srv/internal/templates"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// maxUploadSize ограничивает тело запроса с файлом шаблона или списка сотрудников
const maxUploadSize = "20M"

// Services набор сервисов, которые обслуживает API
type Services struct {
	Employees *service.EmployeeService
	Requests  *service.RequestService
	Documents *service.DocumentService
	Dashboard *service.DashboardService
	Templates *templates.Store
}

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	services Services
	logger   *logrus.Logger
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", service.ErrValidation, err)
	}
	return nil
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, services Services, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	e := echo.New()
	e.Debug = cfg.Server.Debug
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxUploadSize))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	}))

	server := &Server{
		echo:     e,
		services: services,
		logger:   logger,
	}

	server.setupRoutes(gatherer)
	return server
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.WithField("address", address).Info("Starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Handler returns the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.healthCheck)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := s.echo.Group("/api/v1")
	{
		employees := api.Group("/employees")
		{
			employees.GET("", s.listEmployees)
			employees.POST("", s.createEmployee)
			employees.POST("/import", s.importEmployees)
			employees.GET("/:id", s.getEmployee)
			employees.PUT("/:id", s.updateEmployee)
			employees.DELETE("/:id", s.deleteEmployee)
		}

		requests := api.Group("/requests")
		{
			requests.GET("", s.listRequests)
			requests.POST("", s.createRequest)
			requests.GET("/:group_id", s.getRequest)
			requests.PATCH("/:group_id/status", s.updateRequestStatus)
		}

		api.GET("/request-types", s.listRequestTypes)
		api.GET("/dashboard", s.dashboard)

		tpl := api.Group("/templates")
		{
			tpl.GET("", s.listTemplates)
			tpl.POST("", s.createTemplate)
			tpl.GET("/:id", s.getTemplate)
			tpl.PUT("/:id", s.updateTemplate)
			tpl.DELETE("/:id", s.deleteTemplate)
			tpl.GET("/:id/file", s.downloadTemplate)
			tpl.POST("/:id/generate", s.generateDocument)
		}
	}
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "staff-service",
	})
}

// success пишет {"success": true, key: payload}
func success(c echo.Context, status int, key string, payload interface{}) error {
	body := map[string]interface{}{"success": true}
	if key != "" {
		body[key] = payload
	}
	return c.JSON(status, body)
}

func failure(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// errorStatus сопоставляет ошибку сервисов с кодом ответа
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation), errors.Is(err, templates.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, docgen.ErrSerializationFailed):
		return http.StatusInternalServerError
	}

	for _, kind := range []error{
		docgen.ErrUnknownFieldKey,
		docgen.ErrTemplateHasNoPlaceholders,
		docgen.ErrWorksheetMissing,
		docgen.ErrEmptyEmployeeList,
		docgen.ErrTooManyEmployees,
		docgen.ErrTemplateFileMissing,
		docgen.ErrInvalidCellAddress,
		docgen.ErrConflictingMapping,
		docgen.ErrInvalidMapping,
	} {
		if errors.Is(err, kind) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(c echo.Context, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("uri", c.Request().RequestURI).Error("Ошибка обработки запроса")
		return failure(c, status, "внутренняя ошибка сервера")
	}
	return failure(c, status, err.Error())
}

// bind разбирает тело и проверяет его валидатором
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: неверный формат запроса", service.ErrValidation)
	}
	return c.Validate(req)
}
