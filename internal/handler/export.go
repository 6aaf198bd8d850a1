// export.go implements GET /export.
// The full trip collection is rendered as a downloadable file:
// ?format=csv for CSV, anything else (or nothing) for pretty JSON.
package handler

import (
	"fmt"
	"net/http"

	"github.com/ldenis/travel-logbook/internal/view"
)

// getExport handles GET /export.
func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	trips := s.svc.Trips()

	if r.URL.Query().Get("format") == "csv" {
		body := view.ExportCSV(trips)
		w.Header().Set("Content-Type", view.ExportMIMECSV)
		w.Header().Set("Content-Disposition", attachment(view.ExportFilenameCSV))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
		return
	}

	body, err := view.ExportJSON(trips)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", view.ExportMIMEJSON)
	w.Header().Set("Content-Disposition", attachment(view.ExportFilenameJSON))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
