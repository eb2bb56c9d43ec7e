package resumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `id, user_id, is_original, data, job_desc, created_at, updated_at`

// FindByID returns the record with the given ID if it belongs to the user.
func (r *PGRepo) FindByID(ctx context.Context, resumeID, userID string) (*Record, error) {
	const query = `
SELECT ` + selectColumns + `
FROM resumes
WHERE id = $1 AND user_id = $2
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, resumeID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find resume by id: %w", err)
	}
	return rec, nil
}

// FindOriginalByUser returns the user's original record, if any.
func (r *PGRepo) FindOriginalByUser(ctx context.Context, userID string) (*Record, error) {
	const query = `
SELECT ` + selectColumns + `
FROM resumes
WHERE user_id = $1 AND is_original = TRUE
LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find original resume: %w", err)
	}
	return rec, nil
}

// FindAllByUser returns the user's non-original records, newest first.
func (r *PGRepo) FindAllByUser(ctx context.Context, userID string) ([]Record, error) {
	const query = `
SELECT ` + selectColumns + `
FROM resumes
WHERE user_id = $1 AND is_original = FALSE
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list resumes: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	return out, nil
}

// Create inserts a new record and returns it.
func (r *PGRepo) Create(ctx context.Context, userID string, data Data, isOriginal bool, jobDesc *JobDescription) (*Record, error) {
	const query = `
INSERT INTO resumes (id, user_id, is_original, data, job_desc, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`

	dataPayload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("create resume: marshal data: %w", err)
	}
	var jobDescPayload any
	if jobDesc != nil {
		raw, err := json.Marshal(jobDesc)
		if err != nil {
			return nil, fmt.Errorf("create resume: marshal job desc: %w", err)
		}
		jobDescPayload = raw
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:         uuid.NewString(),
		UserID:     userID,
		IsOriginal: isOriginal,
		Data:       data,
		JobDesc:    jobDesc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := r.DB.ExecContext(ctx, query, rec.ID, rec.UserID, rec.IsOriginal, dataPayload, jobDescPayload, now); err != nil {
		return nil, fmt.Errorf("create resume: %w", err)
	}
	return rec, nil
}

// UpdateByID overwrites the data payload of an existing record.
func (r *PGRepo) UpdateByID(ctx context.Context, resumeID string, data Data) (*Record, error) {
	const query = `
UPDATE resumes
SET data = $2, updated_at = $3
WHERE id = $1
RETURNING ` + selectColumns

	dataPayload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("update resume: marshal data: %w", err)
	}
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, resumeID, dataPayload, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update resume: %w", err)
	}
	return rec, nil
}

// DeleteByID removes a non-original record owned by the user. The
// is_original filter makes original records delete-protected at the store
// level; zero affected rows is not an error.
func (r *PGRepo) DeleteByID(ctx context.Context, resumeID, userID string) error {
	const query = `
DELETE FROM resumes
WHERE id = $1 AND user_id = $2 AND is_original = FALSE`
	if _, err := r.DB.ExecContext(ctx, query, resumeID, userID); err != nil {
		return fmt.Errorf("delete resume: %w", err)
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var dataRaw []byte
	var jobDescRaw []byte

	if err := row.Scan(&rec.ID, &rec.UserID, &rec.IsOriginal, &dataRaw, &jobDescRaw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if len(dataRaw) > 0 {
		if err := json.Unmarshal(dataRaw, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode data payload: %w", err)
		}
	}
	rec.Data.Normalize()
	if len(jobDescRaw) > 0 {
		var jd JobDescription
		if err := json.Unmarshal(jobDescRaw, &jd); err != nil {
			return nil, fmt.Errorf("decode job desc payload: %w", err)
		}
		jd.Normalize()
		rec.JobDesc = &jd
	}
	return &rec, nil
}
