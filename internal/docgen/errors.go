package docgen

import (
	"errors"
	"fmt"
	"strings"
)

// Виды ошибок генерации. Все они терминальные: генерацию нужно запускать заново.
var (
	ErrUnknownFieldKey           = errors.New("неизвестный ключ поля")
	ErrTemplateHasNoPlaceholders = errors.New("шаблон не содержит полей для заполнения")
	ErrWorksheetMissing          = errors.New("лист Excel не найден")
	ErrEmptyEmployeeList         = errors.New("список сотрудников пуст")
	ErrTooManyEmployees          = errors.New("слишком много сотрудников для одного документа")
	ErrSerializationFailed       = errors.New("ошибка записи книги Excel")
	ErrTemplateFileMissing       = errors.New("файл шаблона не найден")
	ErrInvalidCellAddress        = errors.New("неверный адрес ячейки")
	ErrConflictingMapping        = errors.New("маркерный режим нельзя сочетать с явными ячейками")
	ErrInvalidMapping            = errors.New("неверная настройка полей шаблона")
)

// Error wraps a generation failure with the cell, key and employee it happened on.
// EmployeeIndex is -1 when the failure is not tied to a particular employee.
type Error struct {
	Op            string
	Cell          string
	Key           string
	EmployeeIndex int
	Err           error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("docgen: ")
	b.WriteString(e.Op)
	if e.Cell != "" {
		fmt.Fprintf(&b, ": ячейка %s", e.Cell)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": ключ %q", e.Key)
	}
	if e.EmployeeIndex >= 0 {
		fmt.Fprintf(&b, ": сотрудник #%d", e.EmployeeIndex)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, err error) *Error {
	return &Error{Op: op, EmployeeIndex: -1, Err: err}
}

// withContext дополняет ошибку адресом ячейки и номером сотрудника,
// не теряя уже известный ключ.
func withContext(op, cell string, employee int, err error) error {
	var ge *Error
	if errors.As(err, &ge) {
		out := *ge
		if out.Op == "" {
			out.Op = op
		}
		if out.Cell == "" {
			out.Cell = cell
		}
		if out.EmployeeIndex < 0 {
			out.EmployeeIndex = employee
		}
		return &out
	}
	return &Error{Op: op, Cell: cell, EmployeeIndex: employee, Err: err}
}
