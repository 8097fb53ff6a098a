package dispense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// responseBodyLimit caps how much of a device reply we read. The
// firmware answers with a handful of bytes.
const responseBodyLimit = 4 * 1024

// Sender delivers one dispense job to a device and classifies the
// response. A returned error means the attempt never produced a
// classifiable response (timeout, connection refused) and is retryable.
type Sender interface {
	Send(ctx context.Context, address string, job Job) (Outcome, string, error)
}

// Job is the payload the device firmware expects on POST /dispense.
type Job struct {
	PatientName string `json:"patient_name"`
	TotalVolume int    `json:"total_volume"`
}

// HTTPSender sends jobs over the device's plain-HTTP protocol.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates a sender with the given per-send timeout. The
// timeout bounds the whole exchange; dispensers can take several
// seconds to acknowledge while their pump spins up.
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the job and classifies the reply.
func (s *HTTPSender) Send(ctx context.Context, address string, job Job) (Outcome, string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("encoding job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+address+"/dispense", bytes.NewReader(payload))
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("sending to %s: %w", address, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("reading response from %s: %w", address, err)
	}

	outcome, reason := Classify(resp.StatusCode, string(body))
	return outcome, reason, nil
}
