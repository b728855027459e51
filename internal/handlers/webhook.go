package handlers

import (
	"encoding/json"
	"net/http"

	"dday-scheduler/internal/common/errors"
	"dday-scheduler/internal/common/logging"
	"dday-scheduler/internal/schedule"
	"dday-scheduler/internal/signature"
)

// registeringActions are the issues event actions that (re)register an event
var registeringActions = map[string]bool{
	"opened":   true,
	"edited":   true,
	"labeled":  true,
	"reopened": true,
}

type githubLabel struct {
	Name string `json:"name"`
}

type githubIssuesEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number int           `json:"number"`
		Title  string        `json:"title"`
		Body   string        `json:"body"`
		Labels []githubLabel `json:"labels"`
	} `json:"issue"`
}

func (e githubIssuesEvent) issue() schedule.Issue {
	labels := make([]string, 0, len(e.Issue.Labels))
	for _, label := range e.Issue.Labels {
		labels = append(labels, label.Name)
	}
	return schedule.Issue{Title: e.Issue.Title, Body: e.Issue.Body, Labels: labels}
}

// ignoredResponse acknowledges deliveries that do not register anything
type ignoredResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// HandleGitHubWebhook registers the event carried by a labelled issue
// @Summary GitHub issues webhook
// @Accept json
// @Produce json
// @Success 200 {object} RegisterResponse
// @Success 202 {object} ignoredResponse
// @Failure 401 {object} ErrorResponse
// @Router /webhook/github [post]
func (h *Handlers) HandleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := signature.PreserveRequestBody(r)
	if err != nil {
		h.writeError(w, r, errors.ValidationError("failed to read request body"))
		return
	}

	if err := h.verifier.Verify(r, body); err != nil {
		h.writeError(w, r, err)
		return
	}

	logger := h.logger.WithContext(r.Context()).WithFields(
		logging.String("github_event", r.Header.Get("X-GitHub-Event")),
	)

	switch r.Header.Get("X-GitHub-Event") {
	case "ping":
		writeJSON(w, http.StatusOK, ignoredResponse{StatusCode: http.StatusOK, Message: "pong"})
		return
	case "issues":
	default:
		writeJSON(w, http.StatusAccepted, ignoredResponse{StatusCode: http.StatusAccepted, Message: "event ignored"})
		return
	}

	var event githubIssuesEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.writeError(w, r, errors.ValidationError("malformed issues event"))
		return
	}

	issue := event.issue()
	if !registeringActions[event.Action] || !issue.HasLabel(h.label) {
		logger.Debug("Ignoring issue event",
			logging.String("action", event.Action),
			logging.Int("issue", event.Issue.Number),
		)
		writeJSON(w, http.StatusAccepted, ignoredResponse{StatusCode: http.StatusAccepted, Message: "issue ignored"})
		return
	}

	logger.Info("Registering from issue", logging.String("action", event.Action), logging.Int("issue", event.Issue.Number))

	ctx, cancel := registrationContext(r)
	defer cancel()

	result, err := h.engine.Register(ctx, issue)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result)
}
