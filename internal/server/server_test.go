package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"staff_srv/internal/config"
	"staff_srv/internal/database"
	"staff_srv/internal/docgen"
	"staff_srv/internal/metrics"
	"staff_srv/internal/service"
	"staff_srv/internal/storage"
	"staff_srv/internal/templates"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.NewDatabase(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, logger))

	files, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, logger)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	employees := service.NewEmployeeRepository(db)
	requests := service.NewRequestRepository(db)
	store := templates.NewStoreFromDB(db, files, logger)

	return NewServer(config.Config{}, Services{
		Employees: service.NewEmployeeService(employees, m, logger),
		Requests:  service.NewRequestService(requests, employees, nil, m, logger),
		Documents: service.NewDocumentService(store, employees, docgen.NewGenerator(logger, docgen.WithRecorder(m)), logger),
		Dashboard: service.NewDashboardService(employees, requests),
		Templates: store,
	}, reg, logger)
}

func doJSON(t *testing.T, s *Server, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func createEmployee(t *testing.T, s *Server, last string) uint {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/employees", map[string]string{
		"last_name":  last,
		"first_name": "Иван",
		"position":   "Инспектор",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	emp := decode(t, rec)["employee"].(map[string]interface{})
	return uint(emp["id"].(float64))
}

func TestHealthCheck(t *testing.T) {
	s := setupTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "staff_document_generations_total")
}

func TestEmployeeEndpoints(t *testing.T) {
	s := setupTestServer(t)
	id := createEmployee(t, s, "Иванов")

	rec := doJSON(t, s, http.MethodGet, "/api/v1/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["count"])

	rec = doJSON(t, s, http.MethodPost, "/api/v1/employees", map[string]string{"first_name": "Без фамилии"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = doJSON(t, s, http.MethodPut, "/api/v1/employees/1", map[string]string{
		"last_name":  "Иванов",
		"first_name": "Иван",
		"status":     "inactive",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/v1/employees?status=active", nil)
	assert.EqualValues(t, 0, decode(t, rec)["count"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/employees/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/employees/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/employees/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotZero(t, id)
}

func TestRequestEndpoints(t *testing.T) {
	s := setupTestServer(t)
	a := createEmployee(t, s, "Иванов")
	b := createEmployee(t, s, "Петров")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/requests", map[string]interface{}{
		"employee_ids": []uint{a, b},
		"request_type": "visp-create",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	group := decode(t, rec)["request"].(map[string]interface{})
	groupID := group["request_group_id"].(string)
	assert.Len(t, group["employees"], 2)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/requests", map[string]interface{}{
		"employee_ids": []uint{},
		"request_type": "visp-create",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPatch, "/api/v1/requests/"+groupID+"/status", map[string]string{
		"status":          "approved",
		"outgoing_number": "1/23",
		"outgoing_date":   "2024-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decode(t, rec)["request"].(map[string]interface{})["status"])

	rec = doJSON(t, s, http.MethodPatch, "/api/v1/requests/"+groupID+"/status", map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPatch, "/api/v1/requests/group_nope/status", map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/requests?status=approved", nil)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)["stats"].(map[string]interface{})
	assert.EqualValues(t, 2, stats["total_employees"])
	assert.EqualValues(t, 0, stats["pending_requests"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/request-types", nil)
	assert.Len(t, decode(t, rec)["categories"], 3)
}

func templateWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Заявка"))
	require.NoError(t, f.SetCellValue("Sheet1", "B15", "#surname #name"))
	require.NoError(t, f.SetCellValue("Sheet1", "C15", "#position"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestTemplateLifecycleAndGeneration(t *testing.T) {
	s := setupTestServer(t)
	a := createEmployee(t, s, "Иванов")
	b := createEmployee(t, s, "Петров")

	body, contentType := multipartBody(t, map[string]string{
		"name":         "Заявка ВИСП",
		"request_type": "visp-create",
	}, "visp.xlsx", templateWorkbook(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tpl := decode(t, rec)["template"].(map[string]interface{})
	id := tpl["id"].(string)
	assert.Equal(t, "visp", tpl["request_category"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/templates?request_type=visp-create", nil)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/templates/"+id+"/file", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, docgen.ContentTypeXLSX, rec.Header().Get(echo.HeaderContentType))

	rec = doJSON(t, s, http.MethodPost, "/api/v1/templates/"+id+"/generate", map[string]interface{}{
		"employee_ids": []uint{b, a},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentDisposition), "attachment;"))

	out, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer out.Close()
	first, err := out.GetCellValue("Sheet1", "B15")
	require.NoError(t, err)
	second, err := out.GetCellValue("Sheet1", "B16")
	require.NoError(t, err)
	assert.Equal(t, "Петров Иван", first)
	assert.Equal(t, "Иванов Иван", second)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/templates/"+id+"/generate", map[string]interface{}{
		"employee_ids": []uint{999},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/api/v1/templates/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/templates/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTemplateRejectsUnknownMarker(t *testing.T) {
	s := setupTestServer(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "#surname"))
	require.NoError(t, f.SetCellValue("Sheet1", "C2", "#salary"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	body, contentType := multipartBody(t, map[string]string{"name": "Плохой"}, "bad.xlsx", buf.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "salary")
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, errorStatus(templates.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, errorStatus(service.ErrValidation))
	assert.Equal(t, http.StatusUnprocessableEntity, errorStatus(&docgen.Error{Op: "scan", EmployeeIndex: -1, Err: docgen.ErrWorksheetMissing}))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(docgen.ErrSerializationFailed))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(io.ErrUnexpectedEOF))
}
