package dispense

import (
	"time"

	"github.com/google/uuid"
)

// Line is one drug entry of a prescription, already resolved to a
// total quantity by the prescription layer.
type Line struct {
	DrugName string `json:"drug_name"`
	DrugCode string `json:"drug_code"`

	// VolumeML is unit dose x daily frequency x day count.
	VolumeML int `json:"volume_ml"`
}

// Request is one patient's dispense job. Consumed exactly once; retries
// happen only inside a line's attempt budget, never across requests.
type Request struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Lines       []Line    `json:"lines"`
	Submitted   time.Time `json:"submitted"`
}

// NewRequest builds a validated Request with a fresh ID.
func NewRequest(patientID, patientName string, lines []Line) (Request, error) {
	if patientName == "" {
		return Request{}, ErrPatientRequired
	}
	if len(lines) == 0 {
		return Request{}, ErrNoLines
	}
	for _, line := range lines {
		if line.VolumeML <= 0 {
			return Request{}, ErrInvalidVolume
		}
	}
	return Request{
		ID:          uuid.New().String(),
		PatientID:   patientID,
		PatientName: patientName,
		Lines:       lines,
		Submitted:   time.Now().UTC(),
	}, nil
}

// LineResult is the resolved outcome of one drug line.
type LineResult struct {
	Line     Line    `json:"line"`
	Identity string  `json:"identity,omitempty"`
	Address  string  `json:"address,omitempty"`
	Nickname string  `json:"nickname,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Attempts int     `json:"attempts"`
	Reason   string  `json:"reason,omitempty"`
}

// Summary is the per-request rollup emitted after all lines resolve.
type Summary struct {
	RequestID string       `json:"request_id"`
	PatientID string       `json:"patient_id"`
	Complete  bool         `json:"complete"`
	Results   []LineResult `json:"results"`
}
