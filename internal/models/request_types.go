package models

// RequestSubtype is one selectable request type.
type RequestSubtype struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// RequestCategory groups request types.
type RequestCategory struct {
	Value    string           `json:"value"`
	Label    string           `json:"label"`
	Subtypes []RequestSubtype `json:"subtypes"`
}

// RequestCategories справочник категорий и типов заявок
var RequestCategories = []RequestCategory{
	{
		Value: "visp",
		Label: "ВИСП",
		Subtypes: []RequestSubtype{
			{Value: "visp-create", Label: "Создание УЗ"},
			{Value: "visp-modify", Label: "Изменение УЗ"},
			{Value: "visp-edit", Label: "Редактирование УЗ"},
		},
	},
	{
		Value: "systems",
		Label: "Информационные системы",
		Subtypes: []RequestSubtype{
			{Value: "ibd-r", Label: "ИБД-Р"},
			{Value: "ibd-f", Label: "ИБД-Ф"},
			{Value: "soop", Label: "СООП"},
			{Value: "eir-rmu", Label: "ЕИР РМУ"},
			{Value: "fis", Label: "ФИС"},
			{Value: "gasps", Label: "ГАСПС"},
		},
	},
	{
		Value: "equipment",
		Label: "Техника",
		Subtypes: []RequestSubtype{
			{Value: "equipment-writeoff", Label: "Списание"},
			{Value: "equipment-repair", Label: "Ремонт"},
		},
	},
}

// CategoryOf returns the category of a request type.
func CategoryOf(requestType string) (string, bool) {
	for _, c := range RequestCategories {
		for _, s := range c.Subtypes {
			if s.Value == requestType {
				return c.Value, true
			}
		}
	}
	return "", false
}

// RequestTypeLabel returns the display label or the type itself.
func RequestTypeLabel(requestType string) string {
	for _, c := range RequestCategories {
		for _, s := range c.Subtypes {
			if s.Value == requestType {
				return s.Label
			}
		}
	}
	return requestType
}
