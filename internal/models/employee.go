package models

import (
	"strings"
	"time"

	"staff_srv/internal/docgen"
)

// Статусы сотрудника
const (
	EmployeeActive   = "active"
	EmployeeInactive = "inactive"
)

// OfficialEmailDomain подставляется, когда служебная почта не указана.
const OfficialEmailDomain = "mvd.ru"

// Employee представляет запись о сотруднике
type Employee struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastName      string    `json:"last_name" gorm:"size:100;not null;index"`
	FirstName     string    `json:"first_name" gorm:"size:100;not null"`
	MiddleName    string    `json:"middle_name" gorm:"size:100"`
	Position      string    `json:"position" gorm:"size:255"`
	Rank          string    `json:"rank" gorm:"size:100"`
	Service       string    `json:"service" gorm:"size:255"`
	Department    string    `json:"department" gorm:"size:255"`
	Address       string    `json:"address" gorm:"size:500"`
	Office        string    `json:"office" gorm:"size:50"`
	Phone         string    `json:"phone" gorm:"size:50"`
	SudisLogin    string    `json:"sudis_login" gorm:"size:100;index"`
	OfficialEmail string    `json:"official_email" gorm:"size:255"`
	Status        string    `json:"status" gorm:"size:20;not null;default:'active'"`
}

// TableName specifies the table name for the Employee model
func (Employee) TableName() string {
	return "employees"
}

// FullName returns "last first middle" without trailing spaces.
func (e *Employee) FullName() string {
	return strings.Join(strings.Fields(e.LastName+" "+e.FirstName+" "+e.MiddleName), " ")
}

// IsActive returns true if the employee is active
func (e *Employee) IsActive() bool {
	return e.Status == EmployeeActive
}

// Normalize обрезает пробелы, выставляет статус и служебную почту по логину.
func (e *Employee) Normalize() {
	for _, p := range []*string{
		&e.LastName, &e.FirstName, &e.MiddleName, &e.Position, &e.Rank, &e.Service,
		&e.Department, &e.Address, &e.Office, &e.Phone, &e.SudisLogin, &e.OfficialEmail,
	} {
		*p = strings.TrimSpace(*p)
	}
	if e.Status == "" {
		e.Status = EmployeeActive
	}
	if e.OfficialEmail == "" && e.SudisLogin != "" {
		e.OfficialEmail = e.SudisLogin + "@" + OfficialEmailDomain
	}
}

// Record converts the row into the generator's employee record.
func (e *Employee) Record() docgen.Employee {
	return docgen.Employee{
		ID:         int(e.ID),
		Surname:    e.LastName,
		Name:       e.FirstName,
		Patronymic: e.MiddleName,
		Position:   e.Position,
		Rank:       e.Rank,
		Service:    e.Service,
		Department: e.Department,
		Address:    e.Address,
		Office:     e.Office,
		Phone:      e.Phone,
		Login:      e.SudisLogin,
		Email:      e.OfficialEmail,
	}
}

// EmployeeSummary is the short form embedded into requests.
type EmployeeSummary struct {
	ID         uint   `json:"id"`
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	Position   string `json:"position"`
	Rank       string `json:"rank"`
	Service    string `json:"service"`
	Department string `json:"department"`
}

// Summary returns the short form of the employee.
func (e *Employee) Summary() EmployeeSummary {
	return EmployeeSummary{
		ID:         e.ID,
		LastName:   e.LastName,
		FirstName:  e.FirstName,
		MiddleName: e.MiddleName,
		Position:   e.Position,
		Rank:       e.Rank,
		Service:    e.Service,
		Department: e.Department,
	}
}
