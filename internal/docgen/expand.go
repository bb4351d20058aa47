package docgen

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Expand fills the block for every employee in input order. The first
// employee is written in place; room for the rest is inserted right after
// the block and gets the captured styles, heights and merges.
func Expand(f *excelize.File, block *Block, employees []Employee) error {
	if len(employees) == 0 {
		return newError("expand", ErrEmptyEmployeeList)
	}
	h := block.Height()
	if h == 0 {
		return newError("expand", ErrTemplateHasNoPlaceholders)
	}

	if extra := (len(employees) - 1) * h; extra > 0 {
		if err := f.InsertRows(block.Sheet, block.StartRow+h, extra); err != nil {
			return newError("insert rows", err)
		}
	}

	for i, e := range employees {
		top := block.StartRow + i*h
		if i > 0 {
			if err := applyLayout(f, block, top, i); err != nil {
				return err
			}
		}

		var err error
		if block.Strategy == StrategyExplicit {
			err = populateExplicit(f, block, top, i, e)
		} else {
			err = populateMarkers(f, block, top, i, e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyLayout переносит высоту строк, стили и объединения шаблона на строки с top.
func applyLayout(f *excelize.File, block *Block, top, employee int) error {
	for offset, row := range block.Rows {
		target := top + offset
		if row.Height > 0 {
			if err := f.SetRowHeight(block.Sheet, target, row.Height); err != nil {
				return withContext("copy layout", "", employee, err)
			}
		}
		for _, c := range row.Cells {
			if c.Style == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c.Column, target)
			if err != nil {
				return withContext("copy layout", "", employee, err)
			}
			if err := f.SetCellStyle(block.Sheet, cell, cell, c.Style); err != nil {
				return withContext("copy layout", cell, employee, err)
			}
		}
	}

	for _, m := range block.Merges {
		start, err := excelize.CoordinatesToCellName(m.StartCol, top+m.StartRow)
		if err != nil {
			return withContext("copy merges", "", employee, err)
		}
		end, err := excelize.CoordinatesToCellName(m.EndCol, top+m.EndRow)
		if err != nil {
			return withContext("copy merges", "", employee, err)
		}
		if err := f.MergeCell(block.Sheet, start, end); err != nil {
			return withContext("copy merges", start, employee, err)
		}
	}
	return nil
}

func populateMarkers(f *excelize.File, block *Block, top, employee int, e Employee) error {
	for offset, row := range block.Rows {
		for _, c := range row.Cells {
			if c.Text == "" && c.Formula == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c.Column, top+offset)
			if err != nil {
				return withContext("populate", "", employee, err)
			}

			value := c.Text
			if !c.fixed() {
				if value, err = Substitute(c.Text, e); err != nil {
					return withContext("populate", cell, employee, err)
				}
			}
			if value == c.Text {
				// Литеральные ячейки исходного блока не трогаем, в копиях
				// восстанавливаем тип и формулу.
				if employee == 0 {
					continue
				}
				if err := setLiteral(f, block.Sheet, cell, c); err != nil {
					return withContext("populate", cell, employee, err)
				}
				continue
			}
			if err := f.SetCellValue(block.Sheet, cell, value); err != nil {
				return withContext("populate", cell, employee, err)
			}
		}
	}
	return nil
}

// setLiteral пишет ячейку шаблона без маркеров с исходным типом значения.
func setLiteral(f *excelize.File, sheet, cell string, c CellTemplate) error {
	switch {
	case c.Formula != "":
		return f.SetCellFormula(sheet, cell, c.Formula)
	case c.Type == excelize.CellTypeBool:
		return f.SetCellBool(sheet, cell, c.Raw == "1" || strings.EqualFold(c.Raw, "true"))
	case c.Type == excelize.CellTypeNumber, c.Type == excelize.CellTypeUnset:
		if v, err := strconv.ParseFloat(c.Raw, 64); err == nil {
			return f.SetCellValue(sheet, cell, v)
		}
	}
	return f.SetCellValue(sheet, cell, c.Text)
}

func populateExplicit(f *excelize.File, block *Block, top, employee int, e Employee) error {
	for _, r := range block.rules {
		cell, err := excelize.CoordinatesToCellName(r.column, top)
		if err != nil {
			return withContext("populate", r.cell, employee, err)
		}
		value, err := r.value(e)
		if err != nil {
			return withContext("populate", cell, employee, err)
		}
		if err := f.SetCellValue(block.Sheet, cell, value); err != nil {
			return withContext("populate", cell, employee, err)
		}
	}
	return nil
}
