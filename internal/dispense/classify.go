package dispense

import (
	"fmt"
	"net/http"
	"strings"
)

// Outcome is the classified result of one dispense send attempt.
type Outcome string

// Outcome values.
const (
	// OutcomeAccepted means the device acknowledged the job.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeQueued means the device was busy and queued the job
	// internally. Counts as success; the device dispenses when ready.
	OutcomeQueued Outcome = "queued"

	// OutcomeFailed means the attempt did not land. Retryable within a
	// line's attempt budget.
	OutcomeFailed Outcome = "failed"
)

// Success reports whether the outcome means the device took the job.
func (o Outcome) Success() bool {
	return o == OutcomeAccepted || o == OutcomeQueued
}

// Classify maps a dispense response to an outcome. The firmware answers
// with a short plain-text body; a 200 containing "OK" is an
// acknowledgment and one containing "BUSY" means the job was queued on
// the device. Anything else, including any non-200 status, fails the
// attempt. The reason is empty except for failures.
func Classify(statusCode int, body string) (Outcome, string) {
	if statusCode != http.StatusOK {
		return OutcomeFailed, fmt.Sprintf("http %d", statusCode)
	}
	switch {
	case strings.Contains(body, "OK"):
		return OutcomeAccepted, ""
	case strings.Contains(body, "BUSY"):
		return OutcomeQueued, ""
	default:
		return OutcomeFailed, fmt.Sprintf("unrecognized response %q", truncate(body, 64))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
