package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRow() Row {
	return Row{
		LineID:      "1893321001",
		Type:        "time",
		Client:      "Acme Consulting Co",
		Project:     "Platform Buildout",
		ProjectCode: "ACME-001",
		Description: "Jordan Reyes: Architecture review (2026-02-03)",
		Quantity:    decimal.RequireFromString("5"),
		Rate:        decimal.RequireFromString("100"),
		Amount:      decimal.RequireFromString("500"),
		Taxable:     true,
		Date:        "2026-02-03",
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLines(&buf, []Row{sampleRow()}))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{
		"line_id", "type", "category", "client", "project", "project_code",
		"description", "quantity", "rate", "amount", "taxable", "date",
	}, records[0])

	line := records[1]
	assert.Equal(t, "1893321001", line[0])
	assert.Equal(t, "time", line[1])
	assert.Equal(t, "", line[2])
	assert.Equal(t, "5.00", line[7])
	assert.Equal(t, "100.00", line[8])
	assert.Equal(t, "500.00", line[9])
	assert.Equal(t, "true", line[10])
}

func TestWriteLinesDefendsAgainstFormulaInjection(t *testing.T) {
	for _, malicious := range []string{
		"=SUM(A1:A9)",
		"+1-1",
		"-1+1",
		"@cmd",
		"\tpayload",
	} {
		var buf bytes.Buffer
		row := sampleRow()
		row.Description = malicious
		require.NoError(t, WriteLines(&buf, []Row{row}))

		records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, "'"+malicious, records[1][6], "input %q", malicious)
	}
}

func TestWriteLinesQuotesEmbeddedSeparators(t *testing.T) {
	var buf bytes.Buffer
	row := sampleRow()
	row.Description = "review, \"phase 2\"\nfollow-up"
	require.NoError(t, WriteLines(&buf, []Row{row}))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "review, \"phase 2\"\nfollow-up", records[1][6])
}

func TestWriteLinesLeavesSafeCellsAlone(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLines(&buf, []Row{sampleRow()}))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes: Architecture review (2026-02-03)", records[1][6])
}

func TestWriteLinesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLines(&buf, nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
