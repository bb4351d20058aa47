package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Template настройки шаблона документа. Сам файл лежит в хранилище по FileKey.
type Template struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Name            string    `json:"name" gorm:"size:255;not null"`
	RequestType     string    `json:"request_type" gorm:"size:50;index"`
	RequestCategory string    `json:"request_category" gorm:"size:50"`
	FieldMapping    RawJSON   `json:"field_mapping" gorm:"type:jsonb"`
	StartRow        int       `json:"start_row" gorm:"not null;default:0"`
	FileKey         string    `json:"-" gorm:"size:500"`
	FileName        string    `json:"file_name" gorm:"size:255"`
	FileSize        int64     `json:"file_size"`
}

// TableName specifies the table name for the Template model
func (Template) TableName() string {
	return "templates"
}

// HasFile returns true if the template file was uploaded
func (t *Template) HasFile() bool {
	return t.FileKey != ""
}

// RawJSON is a JSON document stored as-is in a jsonb column.
type RawJSON json.RawMessage

// Value implements the driver.Valuer interface for RawJSON
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface for RawJSON
func (j *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(RawJSON(nil), v...)
	case string:
		*j = RawJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into RawJSON", value)
	}
	return nil
}

// MarshalJSON keeps the stored document unchanged in API responses.
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores a copy of data.
func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append(RawJSON(nil), data...)
	return nil
}
