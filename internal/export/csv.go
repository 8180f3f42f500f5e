// Package export renders invoice lines as CSV for spreadsheet handoff.
// Cells are defended against formula injection: spreadsheet software treats
// leading = + - @ and tab as executable formulas, so such values are
// prefixed with a single quote.
package export

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

var header = []string{
	"line_id",
	"type",
	"category",
	"client",
	"project",
	"project_code",
	"description",
	"quantity",
	"rate",
	"amount",
	"taxable",
	"date",
}

// Row is one exported invoice line, already denormalized with directory
// names.
type Row struct {
	LineID      string
	Type        string
	Category    string
	Client      string
	Project     string
	ProjectCode string
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal
	Taxable     bool
	Date        string
}

// WriteLines writes a header row followed by one record per line. Quoting of
// embedded quotes, commas and newlines comes from encoding/csv.
func WriteLines(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		taxable := "false"
		if row.Taxable {
			taxable = "true"
		}
		record := []string{
			sanitizeCell(row.LineID),
			sanitizeCell(row.Type),
			sanitizeCell(row.Category),
			sanitizeCell(row.Client),
			sanitizeCell(row.Project),
			sanitizeCell(row.ProjectCode),
			sanitizeCell(row.Description),
			row.Quantity.StringFixed(2),
			row.Rate.StringFixed(2),
			row.Amount.StringFixed(2),
			taxable,
			sanitizeCell(row.Date),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	if strings.ContainsAny(value[:1], "=+-@\t") {
		return "'" + value
	}
	return value
}
