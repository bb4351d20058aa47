package models

import (
	"time"
)

// RequestStatus статус заявки
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusCompleted RequestStatus = "completed"
	StatusRejected  RequestStatus = "rejected"
)

// IsValid reports whether s is a known status.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IsFinal returns true for statuses that cannot change anymore.
func (s RequestStatus) IsFinal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransitionTo проверяет допустимость перехода между статусами
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	if !next.IsValid() || s == next {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected || next == StatusCompleted
	case StatusApproved:
		return next == StatusCompleted || next == StatusRejected
	}
	return false
}

// Request одна строка заявки. Заявка на несколько сотрудников хранится
// несколькими строками с общим RequestGroupID.
type Request struct {
	ID              uint          `json:"id" gorm:"primarykey"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	RequestGroupID  string        `json:"request_group_id" gorm:"size:64;not null;index"`
	EmployeeID      uint          `json:"employee_id" gorm:"not null;index"`
	Employee        Employee      `json:"-" gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"`
	RequestType     string        `json:"request_type" gorm:"size:50;not null"`
	RequestCategory string        `json:"request_category" gorm:"size:50;not null;index"`
	Status          RequestStatus `json:"status" gorm:"size:20;not null;default:'pending';index"`
	Notes           string        `json:"notes" gorm:"size:2000"`
	OutgoingNumber  string        `json:"outgoing_number,omitempty" gorm:"size:100"`
	OutgoingDate    *time.Time    `json:"outgoing_date,omitempty"`
	ApprovedAt      *time.Time    `json:"approved_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// TableName specifies the table name for the Request model
func (Request) TableName() string {
	return "requests"
}
