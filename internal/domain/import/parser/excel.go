package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelDecoder decodes XLSX workbooks into a raw cell grid.
type ExcelDecoder struct {
	// SheetName selects a worksheet; empty means the first sheet.
	SheetName string
}

// NewExcelDecoder returns a decoder reading the first worksheet.
func NewExcelDecoder() *ExcelDecoder {
	return &ExcelDecoder{}
}

// Decode reads every row of the selected sheet as text. Cell values come back
// as strings to avoid type-coercion surprises; dates and amounts are parsed
// explicitly by the row processor.
func (d *ExcelDecoder) Decode(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := d.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheet)
	}
	return &Table{Rows: rows}, nil
}
