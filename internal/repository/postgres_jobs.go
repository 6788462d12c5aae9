package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"remediation-engine/internal/domain"
)

// PostgresJobsRepo jobs 表实现（remediation_data 为 JSONB）
type PostgresJobsRepo struct {
	db *sql.DB
}

func NewPostgresJobsRepo(db *sql.DB) *PostgresJobsRepo {
	return &PostgresJobsRepo{db: db}
}

var _ JobsRepository = (*PostgresJobsRepo)(nil)

const jobColumns = `job_id, customer_name, customer_ref, customer_email,
	remediation_data, remediation_required, remediation_status,
	invoice_id, invoiced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job        domain.Job
		customer   sql.NullString
		ref        sql.NullString
		email      sql.NullString
		data       []byte
		status     sql.NullString
		invoiceID  sql.NullString
		invoicedAt sql.NullTime
	)
	if err := row.Scan(
		&job.JobID, &customer, &ref, &email,
		&data, &job.RemediationRequired, &status,
		&invoiceID, &invoicedAt,
	); err != nil {
		return nil, err
	}

	job.Customer = domain.Customer{Name: customer.String, Ref: ref.String, Email: email.String}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &job.RemediationData); err != nil {
			return nil, fmt.Errorf("decode remediation_data for job %s: %w", job.JobID, err)
		}
	}
	st, err := domain.ParseRemediationStatus(status.String)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.JobID, err)
	}
	job.RemediationStatus = st
	job.InvoiceID = invoiceID.String
	if invoicedAt.Valid {
		t := invoicedAt.Time
		job.InvoicedAt = &t
	}
	return &job, nil
}

func (r *PostgresJobsRepo) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *PostgresJobsRepo) UpdateRemediation(ctx context.Context, jobID string, update domain.RemediationUpdate) error {
	data, err := json.Marshal(update.Data)
	if err != nil {
		return fmt.Errorf("encode remediation_data: %w", err)
	}

	// 单条 UPDATE：整体生效或整体不生效
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET remediation_data = $2::jsonb,
		    remediation_required = $3,
		    remediation_status = $4,
		    updated_at = NOW()
		WHERE job_id = $1
	`, jobID, string(data), update.Required, string(update.Status))
	if err != nil {
		return fmt.Errorf("failed to update remediation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update remediation: %w", err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *PostgresJobsRepo) MarkInvoiced(ctx context.Context, jobID, invoiceID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET invoice_id = $2, invoiced_at = $3, updated_at = NOW()
		WHERE job_id = $1
	`, jobID, invoiceID, at)
	if err != nil {
		return fmt.Errorf("failed to mark job invoiced: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *PostgresJobsRepo) ListJobsWithRemediation(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE remediation_data IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	out := []*domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
