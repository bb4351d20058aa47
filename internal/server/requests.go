package server

import (
	"net/http"

	"staff_srv/internal/models"
	"staff_srv/internal/service"

	"github.com/labstack/echo/v4"
)

func (s *Server) listRequests(c echo.Context) error {
	status := models.RequestStatus(c.QueryParam("status"))
	groups, err := s.services.Requests.List(c.Request().Context(), status)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"requests": groups,
		"count":    len(groups),
	})
}

func (s *Server) getRequest(c echo.Context) error {
	group, err := s.services.Requests.Get(c.Request().Context(), c.Param("group_id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "request", group)
}

func (s *Server) createRequest(c echo.Context) error {
	var req service.CreateRequestInput
	if err := bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	group, err := s.services.Requests.Create(c.Request().Context(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusCreated, "request", group)
}

func (s *Server) updateRequestStatus(c echo.Context) error {
	var req service.StatusUpdateInput
	if err := bind(c, &req); err != nil {
		return s.respondError(c, err)
	}
	group, err := s.services.Requests.UpdateStatus(c.Request().Context(), c.Param("group_id"), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "request", group)
}

func (s *Server) listRequestTypes(c echo.Context) error {
	return success(c, http.StatusOK, "categories", models.RequestCategories)
}
