package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"staff_srv/internal/docgen"
)

// CurrentMappingVersion версия документа настроек, который пишет сервис.
const CurrentMappingVersion = 2

const (
	modeExplicit = "explicit"
	modeMarkers  = "markers"
)

// mappingDocument сохраняемая форма настроек ячеек (версия 2).
type mappingDocument struct {
	Version int           `json:"version"`
	Mode    string        `json:"mode"`
	Cells   []cellMapping `json:"cells,omitempty"`
}

type cellMapping struct {
	Cell      string   `json:"cell"`
	Fields    []string `json:"fields,omitempty"`
	Separator *string  `json:"separator,omitempty"`
	Text      *string  `json:"text,omitempty"`
}

// legacyEntry элемент массива настроек версии 1. Встречались все четыре формы:
// {fieldType, employeeField}, {fieldType, employeeFields}, {fields} и
// {fieldType: "custom", customText}.
type legacyEntry struct {
	ID             string   `json:"id"`
	Cell           string   `json:"cell"`
	FieldType      string   `json:"fieldType"`
	EmployeeField  string   `json:"employeeField"`
	EmployeeFields []string `json:"employeeFields"`
	Fields         []string `json:"fields"`
	Separator      *string  `json:"separator"`
	CustomText     *string  `json:"customText"`
}

// Порядок колонок первого генератора: ФИО, должность, подразделение, адрес, кабинет, логин.
var legacyObjectKeys = []string{"fullName", "position", "department", "address", "office", "sudisLogin"}

// UpgradeMapping разбирает сохраненные настройки любой версии и возвращает их
// в виде docgen.FieldMapping вместе с версией исходного документа.
// Пустой документ означает поиск #меток.
func UpgradeMapping(raw []byte) ([]docgen.FieldMapping, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, CurrentMappingVersion, nil
	}

	switch trimmed[0] {
	case '[':
		mappings, err := upgradeV1(trimmed)
		return mappings, 1, err
	case '{':
		var head struct {
			Version *int `json:"version"`
		}
		if err := json.Unmarshal(trimmed, &head); err != nil {
			return nil, 0, invalidMapping("документ не разбирается: %v", err)
		}
		if head.Version == nil {
			mappings, err := upgradeV0(trimmed)
			return mappings, 0, err
		}
		if *head.Version != CurrentMappingVersion {
			return nil, *head.Version, invalidMapping("неизвестная версия настроек: %d", *head.Version)
		}
		mappings, err := decodeV2(trimmed)
		return mappings, CurrentMappingVersion, err
	}

	return nil, 0, invalidMapping("ожидался объект или массив")
}

// EncodeMapping сериализует настройки в текущую версию документа.
func EncodeMapping(mappings []docgen.FieldMapping) ([]byte, error) {
	strategy, err := docgen.SelectStrategy(mappings)
	if err != nil {
		return nil, err
	}

	doc := mappingDocument{Version: CurrentMappingVersion, Mode: modeMarkers}
	if strategy == docgen.StrategyMarkers {
		return json.Marshal(doc)
	}

	doc.Mode = modeExplicit
	for _, m := range mappings {
		var cm cellMapping
		switch v := m.(type) {
		case docgen.ExplicitSingleField:
			cm = cellMapping{Cell: v.Cell, Fields: []string{string(v.Field)}}
		case *docgen.ExplicitSingleField:
			cm = cellMapping{Cell: v.Cell, Fields: []string{string(v.Field)}}
		case docgen.ExplicitMultiField:
			cm = multiCell(v)
		case *docgen.ExplicitMultiField:
			cm = multiCell(*v)
		case docgen.Literal:
			cm = cellMapping{Cell: v.Cell, Text: &v.Text}
		case *docgen.Literal:
			text := v.Text
			cm = cellMapping{Cell: v.Cell, Text: &text}
		default:
			return nil, invalidMapping("неподдерживаемый тип настройки %T", m)
		}
		doc.Cells = append(doc.Cells, cm)
	}
	return json.Marshal(doc)
}

// NormalizeMapping приводит присланный документ любой версии к текущей.
func NormalizeMapping(raw []byte) ([]byte, error) {
	mappings, _, err := UpgradeMapping(raw)
	if err != nil {
		return nil, err
	}
	return EncodeMapping(mappings)
}

func multiCell(v docgen.ExplicitMultiField) cellMapping {
	fields := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		fields[i] = string(f)
	}
	sep := v.Separator
	return cellMapping{Cell: v.Cell, Fields: fields, Separator: &sep}
}

func decodeV2(raw []byte) ([]docgen.FieldMapping, error) {
	var doc mappingDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, invalidMapping("документ не разбирается: %v", err)
	}

	switch doc.Mode {
	case modeMarkers, "":
		if len(doc.Cells) > 0 {
			return nil, fmt.Errorf("%w: режим меток не допускает явных ячеек", docgen.ErrConflictingMapping)
		}
		return nil, nil
	case modeExplicit:
	default:
		return nil, invalidMapping("неизвестный режим %q", doc.Mode)
	}

	if len(doc.Cells) == 0 {
		return nil, invalidMapping("явный режим без ячеек")
	}

	mappings := make([]docgen.FieldMapping, 0, len(doc.Cells))
	for i, c := range doc.Cells {
		if c.Cell == "" {
			return nil, invalidMapping("ячейка %d: адрес не указан", i+1)
		}
		if c.Text != nil && len(c.Fields) == 0 {
			mappings = append(mappings, docgen.Literal{Cell: c.Cell, Text: *c.Text})
			continue
		}
		m, err := fieldsMapping(c.Cell, c.Fields, c.Separator)
		if err != nil {
			return nil, fmt.Errorf("ячейка %s: %w", c.Cell, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func upgradeV1(raw []byte) ([]docgen.FieldMapping, error) {
	var entries []legacyEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, invalidMapping("массив настроек не разбирается: %v", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	mappings := make([]docgen.FieldMapping, 0, len(entries))
	for i, e := range entries {
		if e.Cell == "" {
			return nil, invalidMapping("элемент %d: адрес ячейки не указан", i+1)
		}

		var fields []string
		switch {
		case e.FieldType == "custom":
			text := ""
			if e.CustomText != nil {
				text = *e.CustomText
			}
			mappings = append(mappings, docgen.Literal{Cell: e.Cell, Text: text})
			continue
		case e.FieldType != "" && len(e.EmployeeFields) > 0:
			fields = e.EmployeeFields
		case e.FieldType != "" && e.EmployeeField != "":
			fields = []string{e.EmployeeField}
		case len(e.Fields) > 0:
			fields = e.Fields
		default:
			// нераспознанная запись: как и раньше, пишем фамилию
			fields = []string{string(docgen.FieldSurname)}
		}

		m, err := fieldsMapping(e.Cell, fields, e.Separator)
		if err != nil {
			return nil, fmt.Errorf("элемент %d (%s): %w", i+1, e.Cell, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func upgradeV0(raw []byte) ([]docgen.FieldMapping, error) {
	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, invalidMapping("объект настроек не разбирается: %v", err)
	}

	var mappings []docgen.FieldMapping
	seen := make(map[string]bool, len(obj))
	for _, name := range legacyObjectKeys {
		cell, ok := obj[name]
		if !ok || cell == "" {
			continue
		}
		seen[name] = true

		switch name {
		case "fullName":
			mappings = append(mappings, docgen.ExplicitMultiField{
				Cell:      cell,
				Fields:    []docgen.FieldKey{docgen.FieldSurname, docgen.FieldName, docgen.FieldPatronymic},
				Separator: " ",
			})
		case "office":
			mappings = append(mappings, docgen.ExplicitMultiField{
				Cell:      cell,
				Fields:    []docgen.FieldKey{docgen.FieldOffice, docgen.FieldPhone},
				Separator: ", ",
			})
		case "sudisLogin":
			mappings = append(mappings, docgen.ExplicitSingleField{Cell: cell, Field: docgen.FieldLogin})
		default:
			mappings = append(mappings, docgen.ExplicitSingleField{Cell: cell, Field: docgen.FieldKey(name)})
		}
	}

	// прочие ключи допускаются, если это имена полей сотрудника
	extra := make([]string, 0, len(obj))
	for name := range obj {
		if !seen[name] && obj[name] != "" {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		key, err := docgen.ParseFieldKey(name)
		if err != nil {
			return nil, errors.Join(invalidMapping("неизвестный ключ %q", name), err)
		}
		mappings = append(mappings, docgen.ExplicitSingleField{Cell: obj[name], Field: key})
	}

	if len(mappings) == 0 {
		return nil, invalidMapping("в объекте настроек нет ни одной ячейки")
	}
	return mappings, nil
}

func fieldsMapping(cell string, names []string, separator *string) (docgen.FieldMapping, error) {
	if len(names) == 0 {
		return nil, invalidMapping("не указаны поля")
	}

	keys := make([]docgen.FieldKey, len(names))
	for i, n := range names {
		k, err := docgen.ParseFieldKey(n)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}

	if len(keys) == 1 && separator == nil {
		return docgen.ExplicitSingleField{Cell: cell, Field: keys[0]}, nil
	}
	sep := " "
	if separator != nil {
		sep = *separator
	}
	return docgen.ExplicitMultiField{Cell: cell, Fields: keys, Separator: sep}, nil
}

func invalidMapping(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", docgen.ErrInvalidMapping, fmt.Sprintf(format, args...))
}
