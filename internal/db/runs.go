package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run is one processing attempt for an uploaded invoice file. The stored
// provider response lets a failed transformation be retried without a second
// extraction call.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	FileName     string     `json:"file_name"`
	FileURL      string     `json:"file_url"`
	Status       string     `json:"status"`
	Response     string     `json:"response,omitempty"`
	Cost         float64    `json:"cost"`
	CreatedDocs  string     `json:"created_docs,omitempty"`
	InvoiceName  string     `json:"invoice_name,omitempty"`
	Message      string     `json:"message,omitempty"`
	QualityScore int        `json:"quality_score"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func ensureSchema(ctx context.Context) error {
	_, err := Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_url TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Pending',
			response TEXT NOT NULL DEFAULT '',
			cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_docs TEXT NOT NULL DEFAULT '',
			invoice_name TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			quality_score INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ
		)
	`)
	return err
}

// InsertRun records a new pending run and fills in its ID and creation time.
func InsertRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = "Pending"
	}
	return Pool.QueryRow(ctx, `
		INSERT INTO runs (id, file_name, file_url, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, run.ID, run.FileName, run.FileURL, run.Status).Scan(&run.CreatedAt)
}

// SetRunResponse stores the raw provider response and its cost, moving the
// run to Retrieved.
func SetRunResponse(ctx context.Context, id uuid.UUID, response string, cost float64) error {
	_, err := Pool.Exec(ctx, `
		UPDATE runs
		SET status = 'Retrieved', response = $2, cost = $3, updated_at = NOW()
		WHERE id = $1
	`, id, response, cost)
	return err
}

// CompleteRun marks the run Success with the created document titles and
// quality score.
func CompleteRun(ctx context.Context, id uuid.UUID, createdDocs, invoiceName string, quality int) error {
	_, err := Pool.Exec(ctx, `
		UPDATE runs
		SET status = 'Success', created_docs = $2, invoice_name = $3,
		    quality_score = $4, message = '', updated_at = NOW()
		WHERE id = $1
	`, id, createdDocs, invoiceName, quality)
	return err
}

// FailRun marks the run Error with a human-readable message.
func FailRun(ctx context.Context, id uuid.UUID, message string) error {
	_, err := Pool.Exec(ctx, `
		UPDATE runs
		SET status = 'Error', message = $2, updated_at = NOW()
		WHERE id = $1
	`, id, message)
	return err
}

// GetRun retrieves a single run by ID, including the stored response.
func GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := Pool.QueryRow(ctx, `
		SELECT id, file_name, file_url, status, response, cost,
		       created_docs, invoice_name, message, quality_score,
		       created_at, updated_at
		FROM runs
		WHERE id = $1
	`, id).Scan(
		&run.ID, &run.FileName, &run.FileURL, &run.Status, &run.Response,
		&run.Cost, &run.CreatedDocs, &run.InvoiceName, &run.Message,
		&run.QualityScore, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs without their stored responses,
// which can be large.
func ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := Pool.Query(ctx, `
		SELECT id, file_name, file_url, status, cost, created_docs,
		       invoice_name, message, quality_score, created_at, updated_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(
			&run.ID, &run.FileName, &run.FileURL, &run.Status, &run.Cost,
			&run.CreatedDocs, &run.InvoiceName, &run.Message,
			&run.QualityScore, &run.CreatedAt, &run.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
