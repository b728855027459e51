package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/schedule"
)

const maxBodyBytes = 1 << 20

// HandleRegister registers every offset trigger for the posted issue
// @Summary Register D-day triggers
// @Accept json
// @Produce json
// @Param request body schedule.Request true "Issue carrying a date line"
// @Success 200 {object} RegisterResponse
// @Success 207 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /register [post]
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req schedule.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		h.writeError(w, r, errors.ValidationError("request body must be {\"issue\":{\"title\":..,\"body\":..}}"))
		return
	}

	ctx, cancel := registrationContext(r)
	defer cancel()

	result, err := h.engine.Register(ctx, req.Issue)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result)
}

// HandlePreview returns the plan for ?title=..&date=YYYY-MM-DD without
// registering anything. format=ics or Accept: text/calendar selects iCalendar.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	issue := schedule.Issue{
		Title: query.Get("title"),
		Body:  "date: " + query.Get("date"),
	}

	plan, err := h.engine.Preview(r.Context(), issue)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view := plan.View()
	if query.Get("format") == "ics" || strings.Contains(r.Header.Get("Accept"), "text/calendar") {
		h.writeCalendar(w, r, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
