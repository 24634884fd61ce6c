package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"jobtrack-engine/internal/events"
)

type HealthHandler struct{}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type StatusHandler struct {
	Hub  *events.Hub
	Info StatusInfo
}

func (h StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"info": h.Info,
		"now":  time.Now().Format(time.RFC3339),
	}
	if last, ok := h.Hub.Last(); ok {
		resp["last_run"] = last
	}
	WriteJSON(w, http.StatusOK, resp)
}

type LedgerHandler struct {
	Ledger LedgerReader
}

func (h LedgerHandler) Applications(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Ledger.Applications(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "ledger_read", err.Error())
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"row":          row.Index,
			"position":     row.Rec.Position,
			"job_id":       row.Rec.JobID,
			"company":      row.Rec.Company,
			"location":     row.Rec.Location,
			"applied_date": dateStr(row.Rec.AppliedDate),
			"email_link":   row.Rec.EmailLink,
			"notes":        row.Rec.Notes,
			"status":       string(row.Rec.Status),
			"last_updated": dateStr(row.Rec.LastUpdated),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"applications": out})
}

func (h LedgerHandler) Rejections(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Ledger.Rejections(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "ledger_read", err.Error())
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"row":           row.Index,
			"received_date": dateStr(row.Rec.ReceivedDate),
			"company":       row.Rec.Company,
			"position":      row.Rec.Position,
			"job_id":        row.Rec.JobID,
			"email_link":    row.Rec.EmailLink,
			"notes":         row.Rec.Notes,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"rejections": out})
}

func dateStr(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

type RunHandler struct {
	Deps Deps
}

func (h RunHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.Deps.RunIngest == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "not_wired", "ingest runner not configured")
		return
	}
	stats, err := h.Deps.RunIngest(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusConflict, "run_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"found":     stats.Found,
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
		"errors":    stats.Errors,
	})
}

func (h RunHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.Deps.RunReconcile == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "not_wired", "reconcile runner not configured")
		return
	}
	matched, err := h.Deps.RunReconcile(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusConflict, "run_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"matched": matched})
}

type EventsHandler struct {
	Hub *events.Hub
}

func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
