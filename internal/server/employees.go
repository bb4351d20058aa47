package server

import (
	"fmt"
	"net/http"
	"strconv"

	"staff_srv/internal/models"
	"staff_srv/internal/service"

	"github.com/labstack/echo/v4"
)

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: неверный идентификатор", service.ErrValidation)
	}
	return uint(id), nil
}

func (s *Server) listEmployees(c echo.Context) error {
	filter := service.EmployeeFilter{
		Search: c.QueryParam("search"),
		Status: c.QueryParam("status"),
	}
	employees, err := s.services.Employees.List(c.Request().Context(), filter)
	if err != nil {
		return s.respondError(c, err)
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"employees": employees,
		"count":     len(employees),
	})
}

func (s *Server) getEmployee(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	e, err := s.services.Employees.Get(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "employee", e)
}

func (s *Server) createEmployee(c echo.Context) error {
	var req service.EmployeeInput
	if err := bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	e, err := s.services.Employees.Create(c.Request().Context(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusCreated, "employee", e)
}

func (s *Server) updateEmployee(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	var req service.EmployeeInput
	if err := bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	e, err := s.services.Employees.Update(c.Request().Context(), id, req)
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "employee", e)
}

func (s *Server) deleteEmployee(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	if err := s.services.Employees.Delete(c.Request().Context(), id); err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "", nil)
}

// importEmployees принимает файл в поле "file"
func (s *Server) importEmployees(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return failure(c, http.StatusBadRequest, "файл не передан")
	}
	src, err := fh.Open()
	if err != nil {
		return s.respondError(c, err)
	}
	defer src.Close()

	res, err := s.services.Employees.Import(c.Request().Context(), src, fh.Filename)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success":  true,
		"imported": len(res.Employees),
		"skipped":  res.Skipped,
	})
}

func (s *Server) dashboard(c echo.Context) error {
	stats, err := s.services.Dashboard.Stats(c.Request().Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "stats", stats)
}
