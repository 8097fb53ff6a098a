package dispense

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/infrastructure/database"
)

// History persists dispense outcomes for auditing.
type History struct {
	db *database.DB
}

// NewHistory creates a History over an opened, migrated database.
func NewHistory(db *database.DB) *History {
	return &History{db: db}
}

// RequestRecord is one stored dispense request.
type RequestRecord struct {
	RequestID   string    `json:"request_id"`
	PatientID   string    `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Complete    bool      `json:"complete"`
	LineCount   int       `json:"line_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// LineRecord is one stored drug-line outcome.
type LineRecord struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Identity    string    `json:"identity"`
	Address     string    `json:"address"`
	Nickname    string    `json:"nickname"`
	DrugCode    string    `json:"drug_code"`
	PatientName string    `json:"patient_name"`
	VolumeML    int       `json:"volume_ml"`
	Outcome     Outcome   `json:"outcome"`
	Attempts    int       `json:"attempts"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record stores a finished request and all of its line results in one
// transaction.
func (h *History) Record(ctx context.Context, req Request, summary Summary) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dispense_requests
		    (request_id, patient_id, patient_name, complete, line_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.PatientID, req.PatientName, summary.Complete, len(summary.Results), now)
	if err != nil {
		return fmt.Errorf("inserting request record: %w", err)
	}

	for _, result := range summary.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dispense_history
			    (request_id, identity, address, nickname, drug_code,
			     patient_name, volume_ml, outcome, attempts, error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, result.Identity, result.Address, result.Nickname,
			result.Line.DrugCode, req.PatientName, result.Line.VolumeML,
			string(result.Outcome), result.Attempts, result.Reason, now)
		if err != nil {
			return fmt.Errorf("inserting line record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}

// Requests returns the most recent request records, newest first.
func (h *History) Requests(ctx context.Context, limit int) ([]RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT request_id, patient_id, patient_name, complete, line_count, created_at
		   FROM dispense_requests
		  ORDER BY created_at DESC, request_id
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying requests: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var records []RequestRecord
	for rows.Next() {
		var rec RequestRecord
		var createdAt string
		if err := rows.Scan(&rec.RequestID, &rec.PatientID, &rec.PatientName,
			&rec.Complete, &rec.LineCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning request record: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Lines returns the line records of one request in insertion order.
func (h *History) Lines(ctx context.Context, requestID string) ([]LineRecord, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, request_id, identity, address, nickname, drug_code,
		        patient_name, volume_ml, outcome, attempts, error, created_at
		   FROM dispense_history
		  WHERE request_id = ?
		  ORDER BY id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	return scanLines(rows)
}

// DeviceLines returns the most recent line records for one device.
func (h *History) DeviceLines(ctx context.Context, identity string, limit int) ([]LineRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, request_id, identity, address, nickname, drug_code,
		        patient_name, volume_ml, outcome, attempts, error, created_at
		   FROM dispense_history
		  WHERE identity = ?
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("querying device lines: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	return scanLines(rows)
}

func scanLines(rows *sql.Rows) ([]LineRecord, error) {
	var records []LineRecord
	for rows.Next() {
		var rec LineRecord
		var outcome, createdAt string
		var volume float64
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Identity, &rec.Address,
			&rec.Nickname, &rec.DrugCode, &rec.PatientName, &volume,
			&outcome, &rec.Attempts, &rec.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning line record: %w", err)
		}
		rec.VolumeML = int(volume)
		rec.Outcome = Outcome(outcome)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
