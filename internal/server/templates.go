package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"staff_srv/internal/docgen"
	"staff_srv/internal/models"
	"staff_srv/internal/service"
	"staff_srv/internal/templates"

	"github.com/labstack/echo/v4"
)

// Поля multipart формы шаблона
const (
	formName        = "name"
	formRequestType = "request_type"
	formMapping     = "field_mapping"
	formStartRow    = "start_row"
	formFile        = "file"
)

// templateForm разбирает форму; присутствие полей важно для обновления
type templateForm struct {
	name        *string
	requestType *string
	mapping     json.RawMessage
	startRow    *int
	fileName    string
	file        []byte
}

func readTemplateForm(c echo.Context) (*templateForm, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: ожидается multipart/form-data", service.ErrValidation)
	}

	var f templateForm
	if v, ok := form.Value[formName]; ok && len(v) > 0 {
		f.name = &v[0]
	}
	if v, ok := form.Value[formRequestType]; ok && len(v) > 0 {
		f.requestType = &v[0]
	}
	if v, ok := form.Value[formMapping]; ok && len(v) > 0 && v[0] != "" {
		f.mapping = json.RawMessage(v[0])
	}
	if v, ok := form.Value[formStartRow]; ok && len(v) > 0 && v[0] != "" {
		n, err := strconv.Atoi(v[0])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: start_row должен быть неотрицательным числом", service.ErrValidation)
		}
		f.startRow = &n
	}

	if files := form.File[formFile]; len(files) > 0 {
		src, err := files[0].Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		if f.file, err = io.ReadAll(src); err != nil {
			return nil, err
		}
		f.fileName = files[0].Filename
	}
	return &f, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (s *Server) listTemplates(c echo.Context) error {
	list, err := s.services.Templates.List(c.Request().Context(), c.QueryParam("request_type"))
	if err != nil {
		return s.respondError(c, err)
	}
	if list == nil {
		list = []models.Template{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"templates": list,
		"count":     len(list),
	})
}

func (s *Server) getTemplate(c echo.Context) error {
	t, err := s.services.Templates.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "template", t)
}

func (s *Server) createTemplate(c echo.Context) error {
	form, err := readTemplateForm(c)
	if err != nil {
		return s.respondError(c, err)
	}

	t, err := s.services.Templates.Create(c.Request().Context(), templates.CreateParams{
		Name:        deref(form.name),
		RequestType: deref(form.requestType),
		Mapping:     form.mapping,
		StartRow:    deref(form.startRow),
		FileName:    form.fileName,
		File:        form.file,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusCreated, "template", t)
}

func (s *Server) updateTemplate(c echo.Context) error {
	form, err := readTemplateForm(c)
	if err != nil {
		return s.respondError(c, err)
	}

	t, err := s.services.Templates.Update(c.Request().Context(), c.Param("id"), templates.UpdateParams{
		Name:        form.name,
		RequestType: form.requestType,
		Mapping:     form.mapping,
		StartRow:    form.startRow,
		FileName:    form.fileName,
		File:        form.file,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "template", t)
}

func (s *Server) deleteTemplate(c echo.Context) error {
	if err := s.services.Templates.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.respondError(c, err)
	}
	return success(c, http.StatusOK, "", nil)
}

func (s *Server) downloadTemplate(c echo.Context) error {
	t, data, err := s.services.Templates.File(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return attachment(c, t.FileName, data)
}

func (s *Server) generateDocument(c echo.Context) error {
	var req service.GenerateInput
	if err := bind(c, &req); err != nil {
		return s.respondError(c, err)
	}

	doc, err := s.services.Documents.Generate(c.Request().Context(), c.Param("id"), req.EmployeeIDs)
	if err != nil {
		return s.respondError(c, err)
	}
	return attachment(c, doc.FileName, doc.Content)
}

func attachment(c echo.Context, name string, data []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name)))
	return c.Blob(http.StatusOK, docgen.ContentTypeXLSX, data)
}
