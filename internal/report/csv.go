package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"buyerportal/pkg/models"
)

// WriteCSV writes the header and one comma separated row per invoice.
func WriteCSV(w io.Writer, records []*models.InvoiceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	if err := cw.WriteAll(Rows(records)); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return nil
}
