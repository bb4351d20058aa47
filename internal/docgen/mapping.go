package docgen

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FieldMapping is one entry of a template's field configuration.
// Implemented by ExplicitSingleField, ExplicitMultiField, Literal and MarkerBased.
type FieldMapping interface {
	fieldMapping()
}

// ExplicitSingleField writes one employee field into Cell.
type ExplicitSingleField struct {
	Cell  string
	Field FieldKey
}

// ExplicitMultiField joins several fields with Separator. Empty values are skipped.
type ExplicitMultiField struct {
	Cell      string
	Fields    []FieldKey
	Separator string
}

// Literal writes the same text for every employee.
type Literal struct {
	Cell string
	Text string
}

// MarkerBased switches the template to #key detection. It must be the only entry.
type MarkerBased struct{}

func (ExplicitSingleField) fieldMapping() {}
func (ExplicitMultiField) fieldMapping()  {}
func (Literal) fieldMapping()             {}
func (MarkerBased) fieldMapping()         {}

// Strategy is the resolution strategy picked for a template.
type Strategy int

const (
	StrategyMarkers Strategy = iota
	StrategyExplicit
)

func (s Strategy) String() string {
	switch s {
	case StrategyMarkers:
		return "markers"
	case StrategyExplicit:
		return "explicit"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// SelectStrategy picks exactly one strategy for the mapping list.
// An empty list means marker detection.
func SelectStrategy(mappings []FieldMapping) (Strategy, error) {
	markers, explicit := 0, 0
	for _, m := range mappings {
		switch m.(type) {
		case MarkerBased, *MarkerBased:
			markers++
		case nil:
			return 0, newError("select strategy", ErrInvalidMapping)
		default:
			explicit++
		}
	}

	switch {
	case markers > 0 && explicit > 0:
		return 0, newError("select strategy", ErrConflictingMapping)
	case explicit > 0:
		return StrategyExplicit, nil
	default:
		return StrategyMarkers, nil
	}
}

// cellRule - нормализованная запись явного режима.
type cellRule struct {
	cell      string
	column    int
	row       int
	fields    []FieldKey
	separator string
	literal   string
	isLiteral bool
}

func (r cellRule) value(e Employee) (string, error) {
	if r.isLiteral {
		return r.literal, nil
	}
	parts := make([]string, 0, len(r.fields))
	for _, k := range r.fields {
		v, err := Resolve(e, k)
		if err != nil {
			return "", err
		}
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, r.separator), nil
}

func parseCell(cell string) (col, row int, err error) {
	name := strings.ToUpper(strings.TrimSpace(cell))
	col, row, err = excelize.CellNameToCoordinates(name)
	if err != nil {
		return 0, 0, &Error{Op: "parse cell", Cell: cell, EmployeeIndex: -1, Err: ErrInvalidCellAddress}
	}
	return col, row, nil
}

func explicitRules(mappings []FieldMapping) ([]cellRule, error) {
	rules := make([]cellRule, 0, len(mappings))
	for _, m := range mappings {
		var r cellRule
		switch v := m.(type) {
		case ExplicitSingleField:
			r = cellRule{cell: v.Cell, fields: []FieldKey{v.Field}}
		case *ExplicitSingleField:
			r = cellRule{cell: v.Cell, fields: []FieldKey{v.Field}}
		case ExplicitMultiField:
			r = cellRule{cell: v.Cell, fields: v.Fields, separator: v.Separator}
		case *ExplicitMultiField:
			r = cellRule{cell: v.Cell, fields: v.Fields, separator: v.Separator}
		case Literal:
			r = cellRule{cell: v.Cell, literal: v.Text, isLiteral: true}
		case *Literal:
			r = cellRule{cell: v.Cell, literal: v.Text, isLiteral: true}
		default:
			return nil, newError("explicit mapping", fmt.Errorf("%w: %T", ErrInvalidMapping, m))
		}

		col, row, err := parseCell(r.cell)
		if err != nil {
			return nil, err
		}
		r.column, r.row = col, row
		r.cell = strings.ToUpper(strings.TrimSpace(r.cell))

		if !r.isLiteral {
			if len(r.fields) == 0 {
				return nil, &Error{Op: "explicit mapping", Cell: r.cell, EmployeeIndex: -1, Err: ErrInvalidMapping}
			}
			keys := make([]FieldKey, len(r.fields))
			for i, f := range r.fields {
				k, err := ParseFieldKey(string(f))
				if err != nil {
					return nil, withContext("explicit mapping", r.cell, -1, err)
				}
				keys[i] = k
			}
			r.fields = keys
		}
		rules = append(rules, r)
	}
	return rules, nil
}
