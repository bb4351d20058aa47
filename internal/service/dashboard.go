package service

import (
	"context"
	"fmt"

	"staff_srv/internal/models"
)

// DashboardStats сводка для главной страницы
type DashboardStats struct {
	TotalEmployees     int64            `json:"total_employees"`
	ActiveEmployees    int64            `json:"active_employees"`
	PendingRequests    int64            `json:"pending_requests"`
	RequestsByCategory map[string]int64 `json:"requests_by_category"`
}

// DashboardService считает сводку по сотрудникам и заявкам
type DashboardService struct {
	employees EmployeeRepository
	requests  RequestRepository
}

func NewDashboardService(employees EmployeeRepository, requests RequestRepository) *DashboardService {
	return &DashboardService{employees: employees, requests: requests}
}

// Stats заявки считаются по группам, а не по строкам
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	var (
		stats DashboardStats
		err   error
	)

	if stats.TotalEmployees, err = s.employees.Count(ctx, ""); err != nil {
		return nil, fmt.Errorf("ошибка подсчета сотрудников: %w", err)
	}
	if stats.ActiveEmployees, err = s.employees.Count(ctx, models.EmployeeActive); err != nil {
		return nil, fmt.Errorf("ошибка подсчета сотрудников: %w", err)
	}
	if stats.PendingRequests, err = s.requests.CountByStatus(ctx, models.StatusPending); err != nil {
		return nil, fmt.Errorf("ошибка подсчета заявок: %w", err)
	}
	if stats.RequestsByCategory, err = s.requests.CountByCategory(ctx); err != nil {
		return nil, fmt.Errorf("ошибка подсчета заявок: %w", err)
	}

	for _, c := range models.RequestCategories {
		if _, ok := stats.RequestsByCategory[c.Value]; !ok {
			stats.RequestsByCategory[c.Value] = 0
		}
	}
	return &stats, nil
}
