package docgen

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the MIME type of generated documents.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Serialize writes the whole workbook back to bytes. Untouched sheets,
// styles and formulas are kept as they were loaded.
func Serialize(f *excelize.File) ([]byte, error) {
	if f == nil {
		return nil, newError("serialize", ErrSerializationFailed)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, newError("serialize", fmt.Errorf("%w: %w", ErrSerializationFailed, err))
	}
	return buf.Bytes(), nil
}
