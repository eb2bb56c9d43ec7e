package resumes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory implementation of Repo for tests and redis-less
// local development.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Record // id -> record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Record)}
}

// FindByID returns a record by ID for a user.
func (r *MemoryRepo) FindByID(ctx context.Context, resumeID, userID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.data[resumeID]
	if !ok || rec.UserID != userID {
		return nil, nil
	}
	out := rec
	return &out, nil
}

// FindOriginalByUser returns the user's original record, if any.
func (r *MemoryRepo) FindOriginalByUser(ctx context.Context, userID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.data {
		if rec.UserID == userID && rec.IsOriginal {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

// FindAllByUser returns the user's non-original records, newest first.
func (r *MemoryRepo) FindAllByUser(ctx context.Context, userID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Record{}
	for _, rec := range r.data {
		if rec.UserID == userID && !rec.IsOriginal {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Create inserts a new record.
func (r *MemoryRepo) Create(ctx context.Context, userID string, data Data, isOriginal bool, jobDesc *JobDescription) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data.Normalize()
	now := time.Now().UTC()
	rec := Record{
		ID:         uuid.NewString(),
		UserID:     userID,
		IsOriginal: isOriginal,
		Data:       data,
		JobDesc:    jobDesc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[rec.ID] = rec
	out := rec
	return &out, nil
}

// UpdateByID overwrites the data payload of an existing record.
func (r *MemoryRepo) UpdateByID(ctx context.Context, resumeID string, data Data) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data.Normalize()
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[resumeID]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Data = data
	rec.UpdatedAt = time.Now().UTC()
	r.data[resumeID] = rec
	out := rec
	return &out, nil
}

// DeleteByID removes a non-original record owned by the user; otherwise no-op.
func (r *MemoryRepo) DeleteByID(ctx context.Context, resumeID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[resumeID]
	if !ok || rec.UserID != userID || rec.IsOriginal {
		return nil
	}
	delete(r.data, resumeID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
