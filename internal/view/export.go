package view

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ldenis/travel-logbook/internal/domain"
)

// Export file naming and content types, shared with the HTTP layer.
const (
	ExportFilenameJSON = "travel_logs.json"
	ExportFilenameCSV  = "travel_logs.csv"
	ExportMIMEJSON     = "application/json"
	ExportMIMECSV      = "text/csv"
)

// csvHeader is the exact first line of every CSV export. Downstream
// spreadsheet templates key on these names; do not reorder.
const csvHeader = "Title,Location,Date,Category,Rating,Total Expenses"

// ExportJSON renders the full trip collection as pretty-printed JSON.
func ExportJSON(trips []domain.Record) ([]byte, error) {
	if trips == nil {
		trips = []domain.Record{}
	}
	out, err := json.MarshalIndent(trips, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("view.ExportJSON: %w", err)
	}
	return out, nil
}

// ExportCSV renders one quoted row per trip under the fixed header, with
// per-row expense totals in the last column.
//
// Field values are wrapped in quotes but embedded quote characters are not
// escaped. That matches the long-standing export format consumers already
// parse; encoding/csv would change the bytes.
func ExportCSV(trips []domain.Record) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for _, t := range trips {
		b.WriteByte('\n')
		b.WriteString(csvRow(t))
	}
	return b.String()
}

func csvRow(t domain.Record) string {
	date := ""
	if t.StartDate != nil {
		date = t.StartDate.Format("2006-01-02")
	}
	return fmt.Sprintf(`"%s","%s","%s","%s",%d,%s`,
		t.Title, t.Location, date, t.Category, t.Rating,
		formatAmount(TotalExpenses(t)))
}

// formatAmount renders a total without a forced decimal tail: 50 not
// 50.000000, 12.5 not 12.500000.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
