package docgen

import (
	"strings"
)

// Employee is the fixed record the generator reads values from.
type Employee struct {
	ID         int    `json:"id"`
	Surname    string `json:"surname"`
	Name       string `json:"name"`
	Patronymic string `json:"patronymic"`
	Position   string `json:"position"`
	Rank       string `json:"rank"`
	Service    string `json:"service"`
	Department string `json:"department"`
	Address    string `json:"address"`
	Office     string `json:"office"`
	Phone      string `json:"phone"`
	Login      string `json:"sudis_login"`
	Email      string `json:"email"`
}

// FieldKey identifies one employee attribute.
type FieldKey string

const (
	FieldSurname    FieldKey = "surname"
	FieldName       FieldKey = "name"
	FieldPatronymic FieldKey = "patronymic"
	FieldPosition   FieldKey = "position"
	FieldRank       FieldKey = "rank"
	FieldService    FieldKey = "service"
	FieldDepartment FieldKey = "department"
	FieldAddress    FieldKey = "address"
	FieldOffice     FieldKey = "office"
	FieldPhone      FieldKey = "phone"
	FieldLogin      FieldKey = "sudis_login"
	FieldEmail      FieldKey = "email"
)

// Vocabulary lists every key in display order.
var Vocabulary = []FieldKey{
	FieldSurname,
	FieldName,
	FieldPatronymic,
	FieldPosition,
	FieldRank,
	FieldService,
	FieldDepartment,
	FieldAddress,
	FieldOffice,
	FieldPhone,
	FieldLogin,
	FieldEmail,
}

// В сопоставлениях и заголовках кроме словаря принимаются имена колонок БД
// и короткий login. Маркеры шаблона их не понимают.
var fieldAliases = map[string]FieldKey{
	"last_name":      FieldSurname,
	"first_name":     FieldName,
	"middle_name":    FieldPatronymic,
	"login":          FieldLogin,
	"official_email": FieldEmail,
}

// ParseFieldKey normalizes a key name, case-insensitively.
func ParseFieldKey(s string) (FieldKey, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Vocabulary {
		if string(k) == name {
			return k, nil
		}
	}
	if k, ok := fieldAliases[name]; ok {
		return k, nil
	}
	return "", &Error{Op: "parse key", Key: s, EmployeeIndex: -1, Err: ErrUnknownFieldKey}
}

// Resolve returns the value of key for e. Empty fields resolve to "".
func Resolve(e Employee, key FieldKey) (string, error) {
	k, err := ParseFieldKey(string(key))
	if err != nil {
		return "", err
	}

	switch k {
	case FieldSurname:
		return e.Surname, nil
	case FieldName:
		return e.Name, nil
	case FieldPatronymic:
		return e.Patronymic, nil
	case FieldPosition:
		return e.Position, nil
	case FieldRank:
		return e.Rank, nil
	case FieldService:
		return e.Service, nil
	case FieldDepartment:
		return e.Department, nil
	case FieldAddress:
		return e.Address, nil
	case FieldOffice:
		return e.Office, nil
	case FieldPhone:
		return e.Phone, nil
	case FieldLogin:
		return e.Login, nil
	case FieldEmail:
		return e.Email, nil
	}
	return "", &Error{Op: "resolve", Key: string(key), EmployeeIndex: -1, Err: ErrUnknownFieldKey}
}
