package schedule

import (
	"regexp"
	"strings"
	"time"

	"dday-scheduler/internal/common/errors"
)

var anchorDatePattern = regexp.MustCompile(`date:\s*(\d{4}-\d{2}-\d{2})`)

// Issue is the anchor event as it arrives from the tracker
type Issue struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

// Request is the registration request body
type Request struct {
	Issue Issue `json:"issue"`
}

// HasLabel reports whether the issue carries label (case-insensitive)
func (i Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// ParseAnchorDate finds the first "date: YYYY-MM-DD" in body and returns it
// as midnight in loc. Missing or impossible dates are InvalidAnchorDate.
func ParseAnchorDate(body string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	match := anchorDatePattern.FindStringSubmatch(body)
	if match == nil {
		return time.Time{}, errors.InvalidAnchorDate("issue body has no 'date: YYYY-MM-DD' line")
	}

	date, err := time.ParseInLocation(DateLayout, match[1], loc)
	if err != nil {
		return time.Time{}, errors.InvalidAnchorDate("issue body date is not a calendar date").
			WithContext("date", match[1])
	}
	return date, nil
}
