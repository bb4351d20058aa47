package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors exported by the service: document generation
// runs and their duration, rows produced, request workflow, employee imports
// and template storage operations.
type Metrics struct {
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	GeneratedEmployees prometheus.Counter
	RequestsCreated    *prometheus.CounterVec
	StatusChanges      *prometheus.CounterVec
	EmployeesImported  prometheus.Counter
	StorageOperations  *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Generations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "staff_document_generations_total",
			Help: "Total document generation runs by strategy and outcome.",
		}, []string{"strategy", "status"}),
		GenerationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staff_document_generation_duration_seconds",
			Help:    "Time spent generating one document.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		GeneratedEmployees: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "staff_document_employees_total",
			Help: "Employees written into successfully generated documents.",
		}),
		RequestsCreated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "staff_requests_created_total",
			Help: "Request rows created, by category.",
		}, []string{"category"}),
		StatusChanges: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "staff_request_status_changes_total",
			Help: "Request group status changes, by target status.",
		}, []string{"status"}),
		EmployeesImported: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "staff_employees_imported_total",
			Help: "Employees created from uploaded spreadsheets.",
		}),
		StorageOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "staff_storage_operations_total",
			Help: "Template storage operations by operation and outcome.",
		}, []string{"operation", "status"}),
	}

	m.Generations.WithLabelValues("markers", "success")
	m.Generations.WithLabelValues("explicit", "success")

	return m
}

// ObserveGeneration records one generator run.
func (m *Metrics) ObserveGeneration(strategy string, employees int, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.Generations.WithLabelValues(strategy, status).Inc()
	m.GenerationDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err == nil {
		m.GeneratedEmployees.Add(float64(employees))
	}
}

// ObserveStorage records one storage operation.
func (m *Metrics) ObserveStorage(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.StorageOperations.WithLabelValues(operation, status).Inc()
}
