package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"buyerportal/pkg/models"
)

func records(t *testing.T) []*models.InvoiceRecord {
	t.Helper()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	paid := models.NewInvoiceRecord(now)
	number := "4410029384"
	paid.InvoiceNumber = &number
	paid.Supplier = "Telavox AB"
	amount := decimal.RequireFromString("12500")
	paid.Amount = &amount
	require.NoError(t, paid.Approve(now))
	require.NoError(t, paid.MarkPaid(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("12500.5"), now))

	unknown := models.NewInvoiceRecord(now)

	return []*models.InvoiceRecord{paid, unknown}
}

func TestRow(t *testing.T) {
	recs := records(t)

	assert.Equal(t,
		[]string{"4410029384", "Telavox AB", "12500.00 kr", "Utbetald", "12500.50 kr", "2026-03-02"},
		Row(recs[0]))
	assert.Equal(t,
		[]string{"Ej hittat", "Ej hittat", "Ej hittat", "Väntar på godkännande", "", ""},
		Row(recs[1]))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records(t)))

	assert.True(t, bytes.HasPrefix(buf.Bytes(),
		[]byte("Fakturanummer,Leverantör,Belopp,Status,Utbetalt belopp,Utbetalningsdatum\n")))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "12500.00 kr", rows[1][2])
	assert.Equal(t, "Ej hittat", rows[2][0])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Fakturanummer,Leverantör,Belopp,Status,Utbetalt belopp,Utbetalningsdatum\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, records(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"4410029384", "Telavox AB", "12500.00 kr", "Utbetald", "12500.50 kr", "2026-03-02"}, rows[1])
	// GetRows trims trailing empty cells.
	assert.Equal(t, []string{"Ej hittat", "Ej hittat", "Ej hittat", "Väntar på godkännande"}, rows[2])
}
