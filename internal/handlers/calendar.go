package handlers

import (
	"bytes"
	"net/http"

	"dday-scheduler/internal/calendar"
	"dday-scheduler/internal/schedule"
)

func (h *Handlers) writeCalendar(w http.ResponseWriter, r *http.Request, view schedule.PlanView) {
	var buf bytes.Buffer
	if err := calendar.Encode(&buf, view, h.now()); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", calendar.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+view.EventName+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
