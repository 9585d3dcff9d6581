// Package parser converts raw bank-export files into normalized transaction rows
// using a declarative template: column-name mappings, a date layout, and one of
// four amount sign conventions. File decoding is format-specific (CSV, Excel);
// all row processing is shared.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the binary money-direction tag derived from the amount sign.
type TransactionType string

const (
	TypeCredit TransactionType = "CREDIT"
	TypeDebit  TransactionType = "DEBIT"
)

// SignConvention selects how a signed amount and its CREDIT/DEBIT tag are derived
// from the raw file columns.
type SignConvention string

const (
	// SignBankStandard takes the raw amount as-is; CREDIT if >= 0.
	SignBankStandard SignConvention = "bank_standard"
	// SignInverted negates the raw amount; CREDIT if the result >= 0.
	SignInverted SignConvention = "inverted"
	// SignSplitColumns reads separate debit and credit columns.
	SignSplitColumns SignConvention = "split_columns"
	// SignAmountWithType reads an absolute amount plus a type-indicator column.
	SignAmountWithType SignConvention = "amount_with_type_column"
)

// Internal field names recognized in a template's column mappings.
const (
	FieldTransactionDate = "transaction_date"
	FieldPostedDate      = "posted_date"
	FieldDescription     = "description"
	FieldAmount          = "amount"
	FieldDebit           = "debit"
	FieldCredit          = "credit"
	FieldCategory        = "category"
	FieldTransactionType = "transaction_type"
)

// AmountConfig holds the amount-parsing settings of a template.
type AmountConfig struct {
	SignConvention  SignConvention `json:"sign_convention"`
	DecimalPlaces   int            `json:"decimal_places"`
	CreditIndicator string         `json:"credit_indicator,omitempty"`
	DebitColumn     string         `json:"debit_column,omitempty"`
	CreditColumn    string         `json:"credit_column,omitempty"`
}

// Config carries everything a RowParser needs from a template.
type Config struct {
	ColumnMappings map[string]string
	AmountConfig   AmountConfig
	DateFormat     string // Go reference layout; strptime formats are translated
	HeaderRow      int    // 1-indexed physical row holding the column headers
	SkipRows       int    // data rows to skip after the header row
}

// ParsedRow is one normalized candidate transaction. Per-row problems are
// collected in ValidationErrors; a malformed row never aborts the batch.
type ParsedRow struct {
	RowNumber        int // 1-indexed position in the original file
	TransactionDate  *time.Time
	PostedDate       *time.Time
	Description      string
	Amount           int64 // minor currency units
	TransactionType  TransactionType
	BankCategory     *string
	ValidationErrors []string
}

// IsValid reports whether the row carries no validation errors.
func (r *ParsedRow) IsValid() bool {
	return len(r.ValidationErrors) == 0
}

// Table is the raw cell grid a Decoder produces. Rows holds every physical row
// of the file, headers included.
type Table struct {
	Rows [][]string
}

// Decoder turns raw file bytes into a cell grid. Implementations exist per
// file format. A Decoder error aborts the whole import.
type Decoder interface {
	Decode(data []byte) (*Table, error)
}

// RowParser applies a template's configuration to a decoded table.
type RowParser struct {
	decoder Decoder
	cfg     Config
	layout  string
	columns map[string]int // header name -> column index, built per file
}

// NewRowParser validates the template configuration and returns a parser.
func NewRowParser(decoder Decoder, cfg Config) (*RowParser, error) {
	if cfg.HeaderRow < 1 {
		return nil, fmt.Errorf("header_row must be >= 1, got %d", cfg.HeaderRow)
	}
	if cfg.SkipRows < 0 {
		return nil, fmt.Errorf("skip_rows must be >= 0, got %d", cfg.SkipRows)
	}
	if cfg.ColumnMappings[FieldTransactionDate] == "" || cfg.ColumnMappings[FieldPostedDate] == "" {
		return nil, fmt.Errorf("column_mappings must include %s and %s", FieldTransactionDate, FieldPostedDate)
	}
	if cfg.AmountConfig.DecimalPlaces == 0 {
		cfg.AmountConfig.DecimalPlaces = 2
	}
	return &RowParser{
		decoder: decoder,
		cfg:     cfg,
		layout:  normalizeLayout(cfg.DateFormat),
	}, nil
}

// Parse decodes the file and processes every data row. It fails only when the
// file itself is unreadable; row-level problems become validation errors.
func (p *RowParser) Parse(data []byte) ([]ParsedRow, error) {
	table, err := p.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}

	headerIdx := p.cfg.HeaderRow - 1
	if headerIdx >= len(table.Rows) {
		return nil, fmt.Errorf("header row %d beyond end of file (%d rows)", p.cfg.HeaderRow, len(table.Rows))
	}

	headers := table.Rows[headerIdx]
	if len(headers) == 0 {
		return nil, fmt.Errorf("file has no columns")
	}
	p.columns = make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			continue
		}
		if _, seen := p.columns[name]; !seen {
			p.columns[name] = i
		}
	}

	dataStart := headerIdx + 1 + p.cfg.SkipRows
	rows := make([]ParsedRow, 0, max(0, len(table.Rows)-dataStart))
	for i := dataStart; i < len(table.Rows); i++ {
		// Matches what a spreadsheet viewer would show for the row.
		rowNumber := (i - dataStart) + p.cfg.HeaderRow + p.cfg.SkipRows + 1
		rows = append(rows, p.parseRow(table.Rows[i], rowNumber))
	}
	return rows, nil
}

func (p *RowParser) parseRow(record []string, rowNumber int) ParsedRow {
	var errs []string

	transactionDate := p.parseDate(record, p.cfg.ColumnMappings[FieldTransactionDate], &errs)
	postedDate := p.parseDate(record, p.cfg.ColumnMappings[FieldPostedDate], &errs)

	if transactionDate == nil {
		errs = append(errs, "Transaction date is required")
	}
	if postedDate == nil {
		errs = append(errs, "Posted date is required")
	}

	description := p.stringValue(record, p.cfg.ColumnMappings[FieldDescription])
	if strings.TrimSpace(description) == "" {
		errs = append(errs, "Description is required")
	}

	amount, txType := p.parseAmount(record, &errs)

	var bankCategory *string
	if raw, ok := p.rawValue(record, p.cfg.ColumnMappings[FieldCategory]); ok && raw != "" {
		bankCategory = &raw
	}

	return ParsedRow{
		RowNumber:        rowNumber,
		TransactionDate:  transactionDate,
		PostedDate:       postedDate,
		Description:      strings.TrimSpace(description),
		Amount:           amount,
		TransactionType:  txType,
		BankCategory:     bankCategory,
		ValidationErrors: errs,
	}
}

func (p *RowParser) parseDate(record []string, columnName string, errs *[]string) *time.Time {
	raw, ok := p.rawValue(record, columnName)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := time.Parse(p.layout, strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("Invalid date format in %s: %s", columnName, raw))
		return nil
	}
	return &t
}

// parseAmount dispatches on the sign convention. Failures are recorded as a
// validation error with a zero-amount DEBIT fallback so the row stays
// structurally complete.
func (p *RowParser) parseAmount(record []string, errs *[]string) (int64, TransactionType) {
	amount, txType, err := p.applyConvention(record)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("Error parsing amount: %v", err))
		return 0, TypeDebit
	}
	return amount, txType
}

func (p *RowParser) applyConvention(record []string) (int64, TransactionType, error) {
	places := p.cfg.AmountConfig.DecimalPlaces
	switch p.cfg.AmountConfig.SignConvention {
	case SignBankStandard, "":
		raw := p.numericValue(record, p.cfg.ColumnMappings[FieldAmount])
		cents := toMinorUnits(raw, places)
		return cents, typeForCents(cents), nil

	case SignInverted:
		raw := p.numericValue(record, p.cfg.ColumnMappings[FieldAmount]).Neg()
		cents := toMinorUnits(raw, places)
		return cents, typeForCents(cents), nil

	case SignSplitColumns:
		debitCol := p.cfg.AmountConfig.DebitColumn
		if debitCol == "" {
			debitCol = p.cfg.ColumnMappings[FieldDebit]
		}
		creditCol := p.cfg.AmountConfig.CreditColumn
		if creditCol == "" {
			creditCol = p.cfg.ColumnMappings[FieldCredit]
		}
		debit := p.numericValue(record, debitCol)
		credit := p.numericValue(record, creditCol)
		if credit.IsPositive() {
			return toMinorUnits(credit, places), TypeCredit, nil
		}
		return toMinorUnits(debit.Abs().Neg(), places), TypeDebit, nil

	case SignAmountWithType:
		// The raw amount's own sign is discarded; the indicator column decides.
		raw := p.numericValue(record, p.cfg.ColumnMappings[FieldAmount]).Abs()
		typeValue := strings.ToLower(p.stringValue(record, p.cfg.ColumnMappings[FieldTransactionType]))
		indicator := strings.ToLower(p.cfg.AmountConfig.CreditIndicator)
		if indicator == "" {
			indicator = "credit"
		}
		if strings.Contains(typeValue, indicator) {
			return toMinorUnits(raw, places), TypeCredit, nil
		}
		return toMinorUnits(raw.Neg(), places), TypeDebit, nil

	default:
		return 0, TypeDebit, fmt.Errorf("unknown sign convention %q", p.cfg.AmountConfig.SignConvention)
	}
}

// rawValue returns the cell under the mapped column. The second result is false
// when the column is unmapped or absent from the file.
func (p *RowParser) rawValue(record []string, columnName string) (string, bool) {
	if columnName == "" {
		return "", false
	}
	idx, ok := p.columns[columnName]
	if !ok || idx >= len(record) {
		return "", false
	}
	return record[idx], true
}

func (p *RowParser) stringValue(record []string, columnName string) string {
	raw, _ := p.rawValue(record, columnName)
	return raw
}

// numericValue reads a cell as a decimal, tolerating thousands separators and
// currency symbols. Missing or non-numeric values default to zero.
func (p *RowParser) numericValue(record []string, columnName string) decimal.Decimal {
	raw, ok := p.rawValue(record, columnName)
	if !ok {
		return decimal.Zero
	}
	cleaned := cleanNumeric(raw)
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func cleanNumeric(s string) string {
	replacer := strings.NewReplacer("$", "", "€", "", "£", "", ",", "")
	return strings.TrimSpace(replacer.Replace(s))
}

// toMinorUnits scales to integer minor units, rounding half away from zero.
// Decimal arithmetic keeps the scaling exact regardless of magnitude.
func toMinorUnits(d decimal.Decimal, decimalPlaces int) int64 {
	return d.Shift(int32(decimalPlaces)).Round(0).IntPart()
}

func typeForCents(cents int64) TransactionType {
	if cents >= 0 {
		return TypeCredit
	}
	return TypeDebit
}
