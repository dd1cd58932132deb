package labels

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"skidbuild/infrastructure/sqlite"
)

// OrderLabelsQueryHandler renders the skid labels for an order as a
// single printable PDF.
func OrderLabelsQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := strings.TrimSpace(chi.URLParam(r, "order"))
		if orderNumber == "" {
			http.Error(w, "invalid order number", http.StatusBadRequest)
			return
		}

		labels, err := LoadSkidLabels(r.Context(), db, orderNumber)
		if err != nil {
			http.Error(w, "failed to load skid labels", http.StatusInternalServerError)
			return
		}
		if len(labels) == 0 {
			http.Error(w, "order not planned", http.StatusNotFound)
			return
		}

		pdfBytes, err := renderSkidLabelsPDF(labels, time.Now())
		if err != nil {
			http.Error(w, "failed to build label pdf", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=order-%s-skid-labels.pdf", orderNumber))
		_, _ = w.Write(pdfBytes)
	}
}
