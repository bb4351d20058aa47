package docgen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CellTemplate is a captured cell of a template row. Raw, Type and Formula
// let literal cells be repeated with their original type.
type CellTemplate struct {
	Column  int
	Text    string
	Raw     string
	Type    excelize.CellType
	Formula string
	Style   int
}

// fixed reports cells whose text is never substituted: formulas and error values.
func (c CellTemplate) fixed() bool {
	return c.Formula != "" || c.Type == excelize.CellTypeError
}

// RowTemplate is a captured template row: index, height and cells.
type RowTemplate struct {
	Index  int
	Height float64
	Cells  []CellTemplate
}

// MergeTemplate is a merged range inside the block. Rows are relative to the block start.
type MergeTemplate struct {
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// Block is the repeating region found by the scanner.
type Block struct {
	Sheet    string
	Strategy Strategy
	StartRow int
	Rows     []RowTemplate
	Merges   []MergeTemplate

	rules []cellRule
}

// Height returns the number of rows one employee occupies.
func (b *Block) Height() int { return len(b.Rows) }

// LoadWorkbook opens template bytes. The caller closes the file.
func LoadWorkbook(data []byte) (*excelize.File, error) {
	if len(data) == 0 {
		return nil, newError("load workbook", ErrTemplateFileMissing)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, newError("load workbook", fmt.Errorf("%w: %w", ErrTemplateFileMissing, err))
	}
	if f.GetSheetName(0) == "" {
		_ = f.Close()
		return nil, newError("load workbook", ErrWorksheetMissing)
	}
	return f, nil
}

// Scan dispatches to the strategy chosen for mappings.
func Scan(f *excelize.File, mappings []FieldMapping, startRow int) (*Block, error) {
	strategy, err := SelectStrategy(mappings)
	if err != nil {
		return nil, err
	}
	if strategy == StrategyExplicit {
		return ScanExplicit(f, mappings, startRow)
	}
	return ScanMarkers(f)
}

// ScanExplicit captures the template row for explicit cell mappings.
// startRow <= 0 falls back to the top-most mapped row.
func ScanExplicit(f *excelize.File, mappings []FieldMapping, startRow int) (*Block, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, newError("scan explicit", ErrWorksheetMissing)
	}
	if len(mappings) == 0 {
		return nil, newError("scan explicit", ErrTemplateHasNoPlaceholders)
	}

	rules, err := explicitRules(mappings)
	if err != nil {
		return nil, err
	}

	row := startRow
	if row <= 0 {
		for _, r := range rules {
			if row <= 0 || r.row < row {
				row = r.row
			}
		}
	}

	width := sheetWidth(f, sheet, nil)
	for _, r := range rules {
		width = max(width, r.column)
	}

	tpl, err := captureRow(f, sheet, row, width)
	if err != nil {
		return nil, err
	}
	merges, err := captureMerges(f, sheet, row, row)
	if err != nil {
		return nil, err
	}

	return &Block{
		Sheet:    sheet,
		Strategy: StrategyExplicit,
		StartRow: row,
		Rows:     []RowTemplate{tpl},
		Merges:   merges,
		rules:    rules,
	}, nil
}

// ScanMarkers finds the first row with a #key marker in the first sheet and
// extends the block over the marker rows that directly follow it.
func ScanMarkers(f *excelize.File) (*Block, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, newError("scan markers", ErrWorksheetMissing)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, newError("scan markers", err)
	}

	first, last := 0, 0
	for i, cols := range rows {
		marked := rowHasMarkers(cols)
		if first == 0 {
			if marked {
				first, last = i+1, i+1
			}
			continue
		}
		if !marked {
			break
		}
		last = i + 1
	}
	if first == 0 {
		return nil, newError("scan markers", ErrTemplateHasNoPlaceholders)
	}

	width := sheetWidth(f, sheet, rows)
	block := &Block{Sheet: sheet, Strategy: StrategyMarkers, StartRow: first}
	for r := first; r <= last; r++ {
		tpl, err := captureRow(f, sheet, r, width)
		if err != nil {
			return nil, err
		}
		// Неизвестные ключи отсекаются до изменения книги.
		for _, c := range tpl.Cells {
			if c.fixed() {
				continue
			}
			if _, err := Markers(c.Text); err != nil {
				cell, _ := excelize.CoordinatesToCellName(c.Column, r)
				return nil, withContext("scan markers", cell, -1, err)
			}
		}
		block.Rows = append(block.Rows, tpl)
	}

	block.Merges, err = captureMerges(f, sheet, first, last)
	if err != nil {
		return nil, err
	}
	return block, nil
}

func rowHasMarkers(cols []string) bool {
	for _, v := range cols {
		if HasMarkers(v) {
			return true
		}
	}
	return false
}

// Ячейки только со стилем (рамка без текста) не видны в GetRows, а excelize
// не обновляет dimension у книг, созданных им самим. Поэтому первые
// minScanColumns колонок просматриваются всегда.
const minScanColumns = 26

// sheetWidth возвращает номер последней колонки, которую нужно просмотреть.
func sheetWidth(f *excelize.File, sheet string, rows [][]string) int {
	width := minScanColumns
	if dim, err := f.GetSheetDimension(sheet); err == nil && dim != "" {
		ref := dim
		if i := strings.LastIndexByte(dim, ':'); i >= 0 {
			ref = dim[i+1:]
		}
		if col, _, err := excelize.CellNameToCoordinates(ref); err == nil {
			width = max(width, col)
		}
	}
	for _, cols := range rows {
		width = max(width, len(cols))
	}
	return width
}

func captureRow(f *excelize.File, sheet string, row, width int) (RowTemplate, error) {
	height, err := f.GetRowHeight(sheet, row)
	if err != nil {
		return RowTemplate{}, newError("capture row", err)
	}

	tpl := RowTemplate{Index: row, Height: height}
	for col := 1; col <= width; col++ {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return RowTemplate{}, newError("capture row", err)
		}
		text, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return RowTemplate{}, withContext("capture row", cell, -1, err)
		}
		style, err := f.GetCellStyle(sheet, cell)
		if err != nil {
			return RowTemplate{}, withContext("capture row", cell, -1, err)
		}
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil {
			return RowTemplate{}, withContext("capture row", cell, -1, err)
		}
		if text == "" && style == 0 && formula == "" {
			continue
		}
		raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
		if err != nil {
			return RowTemplate{}, withContext("capture row", cell, -1, err)
		}
		typ, err := f.GetCellType(sheet, cell)
		if err != nil {
			return RowTemplate{}, withContext("capture row", cell, -1, err)
		}
		tpl.Cells = append(tpl.Cells, CellTemplate{
			Column:  col,
			Text:    text,
			Raw:     raw,
			Type:    typ,
			Formula: formula,
			Style:   style,
		})
	}
	return tpl, nil
}

// captureMerges keeps merged ranges that lie fully inside rows first..last.
func captureMerges(f *excelize.File, sheet string, first, last int) ([]MergeTemplate, error) {
	merged, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, newError("capture merges", err)
	}

	var out []MergeTemplate
	for _, mc := range merged {
		c1, r1, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		c2, r2, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		if r1 >= first && r2 <= last {
			out = append(out, MergeTemplate{
				StartCol: c1,
				StartRow: r1 - first,
				EndCol:   c2,
				EndRow:   r2 - first,
			})
		}
	}
	return out, nil
}
