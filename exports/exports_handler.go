package exports

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"skidbuild/infrastructure/sqlite"
)

// ScansExportCSVHandler streams the confirmed boxes of an order as CSV.
func ScansExportCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := strings.TrimSpace(chi.URLParam(r, "order"))
		if orderNumber == "" {
			http.Error(w, "invalid order number", http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		if _, err := writeScanDetailCSV(r.Context(), db, &buf, orderNumber); err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=order-"+orderNumber+"-scans.csv")
		_, _ = w.Write(buf.Bytes())
	}
}

// ReconciliationExportCSVHandler streams per-line planned versus scanned
// totals, including shortfalls, for an order.
func ReconciliationExportCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := strings.TrimSpace(chi.URLParam(r, "order"))
		if orderNumber == "" {
			http.Error(w, "invalid order number", http.StatusBadRequest)
			return
		}

		var buf bytes.Buffer
		lines, err := writeReconciliationCSV(r.Context(), db, &buf, orderNumber)
		if err != nil {
			http.Error(w, "failed to export csv", http.StatusInternalServerError)
			return
		}
		if lines == 0 {
			http.Error(w, "order not planned", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=order-"+orderNumber+"-reconciliation.csv")
		_, _ = w.Write(buf.Bytes())
	}
}
