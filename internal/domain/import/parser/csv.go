package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVDecoder decodes delimited-text files into a raw cell grid. Cells are kept
// as text so the shared row logic can parse them explicitly per template;
// encoding/csv is used directly because the template supplies column names at
// runtime, not compile time.
type CSVDecoder struct {
	// Comma overrides the delimiter; zero means comma.
	Comma rune
}

// NewCSVDecoder returns a decoder with the standard comma delimiter.
func NewCSVDecoder() *CSVDecoder {
	return &CSVDecoder{}
}

// Decode reads every physical row of the file. Ragged rows are allowed; the
// row processor treats short records as missing cells.
func (d *CSVDecoder) Decode(data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(stripBOM(data)))
	if d.Comma != 0 {
		reader.Comma = d.Comma
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return &Table{Rows: rows}, nil
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
