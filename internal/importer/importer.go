// Package importer reads employee lists from uploaded spreadsheets.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"staff_srv/internal/docgen"
	"staff_srv/internal/models"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// maxRows ограничивает чтение .xls: книга читается в память целиком
const maxRows = 100000

var (
	ErrUnsupportedFormat = errors.New("поддерживаются только файлы .xlsx и .xls")
	ErrEmptySheet        = errors.New("лист пуст")
	ErrNoHeader          = errors.New("в первой строке нет ни одной известной колонки")
	ErrNoNameColumns     = errors.New("нужны колонки с фамилией и именем или колонка ФИО")
	ErrMultipleSheets    = errors.New("в файле .xls должен быть один лист")
)

// колонка "ФИО" раскладывается на фамилию, имя и отчество
const fullNameColumn docgen.FieldKey = "full_name"

var headerNames = map[string]docgen.FieldKey{
	"фамилия":         docgen.FieldSurname,
	"имя":             docgen.FieldName,
	"отчество":        docgen.FieldPatronymic,
	"должность":       docgen.FieldPosition,
	"звание":          docgen.FieldRank,
	"служба":          docgen.FieldService,
	"подразделение":   docgen.FieldDepartment,
	"адрес":           docgen.FieldAddress,
	"кабинет":         docgen.FieldOffice,
	"телефон":         docgen.FieldPhone,
	"логин":           docgen.FieldLogin,
	"логин судис":     docgen.FieldLogin,
	"почта":           docgen.FieldEmail,
	"служебная почта": docgen.FieldEmail,
	"e-mail":          docgen.FieldEmail,
	"фио":             fullNameColumn,
	"ф.и.о.":          fullNameColumn,
	"full_name":       fullNameColumn,
}

// RowError строка, которую не удалось превратить в сотрудника
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result результат разбора файла
type Result struct {
	Employees []models.Employee `json:"employees"`
	Skipped   []RowError        `json:"skipped,omitempty"`
}

// Read читает файл целиком и разбирает первый лист.
func Read(r io.Reader, filename string) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	rows, err := ReadRows(data, filename)
	if err != nil {
		return nil, err
	}
	return Parse(rows)
}

// ReadRows возвращает строки первого листа; формат определяется по расширению.
func ReadRows(data []byte, filename string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия .xls: %w", err)
		}
		if workbook.NumSheets() == 0 {
			return nil, ErrEmptySheet
		}
		if workbook.NumSheets() > 1 {
			return nil, ErrMultipleSheets
		}
		return workbook.ReadAllCells(maxRows), nil

	case ".xlsx":
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия .xlsx: %w", err)
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, ErrEmptySheet
		}
		return file.GetRows(sheetName)
	}
	return nil, ErrUnsupportedFormat
}

// Parse сопоставляет заголовки первой непустой строки с полями сотрудника
// и собирает записи из остальных строк. Неизвестные колонки пропускаются.
func Parse(rows [][]string) (*Result, error) {
	headerIdx := -1
	for i, row := range rows {
		if !isBlank(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, ErrEmptySheet
	}

	columns := make(map[int]docgen.FieldKey)
	seen := make(map[docgen.FieldKey]bool)
	for i, h := range rows[headerIdx] {
		key, ok := headerKey(h)
		if !ok || seen[key] {
			continue
		}
		columns[i] = key
		seen[key] = true
	}
	if len(columns) == 0 {
		return nil, ErrNoHeader
	}
	if !seen[fullNameColumn] && !(seen[docgen.FieldSurname] && seen[docgen.FieldName]) {
		return nil, ErrNoNameColumns
	}

	res := &Result{}
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}

		var emp models.Employee
		for idx, key := range columns {
			if idx < len(row) {
				assign(&emp, key, strings.TrimSpace(row[idx]))
			}
		}
		emp.Normalize()

		if emp.LastName == "" || emp.FirstName == "" {
			res.Skipped = append(res.Skipped, RowError{Row: i + 1, Reason: "не указаны фамилия или имя"})
			continue
		}
		res.Employees = append(res.Employees, emp)
	}
	return res, nil
}

func headerKey(h string) (docgen.FieldKey, bool) {
	name := strings.ToLower(strings.Join(strings.Fields(h), " "))
	if name == "" {
		return "", false
	}
	if key, ok := headerNames[name]; ok {
		return key, true
	}
	if key, err := docgen.ParseFieldKey(name); err == nil {
		return key, true
	}
	return "", false
}

func assign(e *models.Employee, key docgen.FieldKey, v string) {
	switch key {
	case fullNameColumn:
		parts := strings.Fields(v)
		if len(parts) > 0 {
			e.LastName = parts[0]
		}
		if len(parts) > 1 {
			e.FirstName = parts[1]
		}
		if len(parts) > 2 {
			e.MiddleName = strings.Join(parts[2:], " ")
		}
	case docgen.FieldSurname:
		e.LastName = v
	case docgen.FieldName:
		e.FirstName = v
	case docgen.FieldPatronymic:
		e.MiddleName = v
	case docgen.FieldPosition:
		e.Position = v
	case docgen.FieldRank:
		e.Rank = v
	case docgen.FieldService:
		e.Service = v
	case docgen.FieldDepartment:
		e.Department = v
	case docgen.FieldAddress:
		e.Address = v
	case docgen.FieldOffice:
		e.Office = v
	case docgen.FieldPhone:
		e.Phone = v
	case docgen.FieldLogin:
		e.SudisLogin = v
	case docgen.FieldEmail:
		e.OfficialEmail = v
	}
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
