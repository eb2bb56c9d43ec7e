package resumes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"resumeflow-backend/internal/cache"
)

// Service is the policy layer over Repo and Cache. It owns the single
// original-resume-per-user rule and keeps the cache coherent: every write
// path invalidates the affected keys before returning.
type Service struct {
	Repo  Repo
	Cache cache.Cache
	Log   *zap.Logger
}

// NewService constructs a Service.
func NewService(repo Repo, c cache.Cache, log *zap.Logger) *Service {
	return &Service{Repo: repo, Cache: c, Log: log}
}

// UpsertOptions selects the upsert case. A ResumeID targets an existing
// record; otherwise IsOriginal picks between the original find-or-create
// path and unconditional creation of a derived record.
type UpsertOptions struct {
	ResumeID   string
	IsOriginal bool
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	ID         string `json:"id"`
	Updated    bool   `json:"updated"`
	IsOriginal bool   `json:"isOriginal"`
}

// Upsert applies the three-case write policy.
//
// The original find-or-create is not transactional with the eventual write,
// so two concurrent original upserts for one user can race; the store's
// partial unique index turns a duplicate create into an error rather than a
// second original row.
func (s *Service) Upsert(ctx context.Context, userID string, data Data, opts UpsertOptions) (UpsertResult, error) {
	if userID == "" {
		return UpsertResult{}, errors.New("user id is required")
	}
	data.Normalize()

	if opts.ResumeID != "" {
		existing, err := s.Repo.FindByID(ctx, opts.ResumeID, userID)
		if err != nil {
			return UpsertResult{}, err
		}
		if existing == nil {
			return UpsertResult{}, ErrNotFound
		}
		if _, err := s.Repo.UpdateByID(ctx, existing.ID, data); err != nil {
			return UpsertResult{}, err
		}
		s.invalidateRecord(ctx, userID, existing.ID, existing.IsOriginal)
		return UpsertResult{ID: existing.ID, Updated: true, IsOriginal: existing.IsOriginal}, nil
	}

	if opts.IsOriginal {
		existing, err := s.Repo.FindOriginalByUser(ctx, userID)
		if err != nil {
			return UpsertResult{}, err
		}
		if existing != nil {
			if _, err := s.Repo.UpdateByID(ctx, existing.ID, data); err != nil {
				return UpsertResult{}, err
			}
			s.invalidateRecord(ctx, userID, existing.ID, true)
			return UpsertResult{ID: existing.ID, Updated: true, IsOriginal: true}, nil
		}
		created, err := s.Repo.Create(ctx, userID, data, true, nil)
		if err != nil {
			return UpsertResult{}, err
		}
		s.invalidateRecord(ctx, userID, created.ID, true)
		return UpsertResult{ID: created.ID, Updated: false, IsOriginal: true}, nil
	}

	created, err := s.Repo.Create(ctx, userID, data, false, nil)
	if err != nil {
		return UpsertResult{}, err
	}
	s.Cache.Delete(ctx, cache.ListKey(userID))
	return UpsertResult{ID: created.ID, Updated: false, IsOriginal: false}, nil
}

// OriginalResume returns the user's original record through the cache.
// A nil result means no record exists; absence is never cached.
func (s *Service) OriginalResume(ctx context.Context, userID string) (*Record, error) {
	key := cache.OriginalKey(userID)
	if cached := s.Cache.Get(ctx, key); cached != nil {
		var rec Record
		if err := json.Unmarshal(cached, &rec); err == nil {
			return &rec, nil
		}
		s.Cache.Delete(ctx, key)
	}

	rec, err := s.Repo.FindOriginalByUser(ctx, userID)
	if err != nil || rec == nil {
		return rec, err
	}
	s.populate(ctx, key, rec, cache.RecordTTL)
	return rec, nil
}

// ResumeByID returns a record by ID through the cache, scoped to the user.
func (s *Service) ResumeByID(ctx context.Context, resumeID, userID string) (*Record, error) {
	key := cache.RecordKey(userID, resumeID)
	if cached := s.Cache.Get(ctx, key); cached != nil {
		var rec Record
		if err := json.Unmarshal(cached, &rec); err == nil {
			return &rec, nil
		}
		s.Cache.Delete(ctx, key)
	}

	rec, err := s.Repo.FindByID(ctx, resumeID, userID)
	if err != nil || rec == nil {
		return rec, err
	}
	s.populate(ctx, key, rec, cache.RecordTTL)
	return rec, nil
}

// UserResumes returns the user's non-original records through the cache.
func (s *Service) UserResumes(ctx context.Context, userID string) ([]Record, error) {
	key := cache.ListKey(userID)
	if cached := s.Cache.Get(ctx, key); cached != nil {
		var recs []Record
		if err := json.Unmarshal(cached, &recs); err == nil {
			return recs, nil
		}
		s.Cache.Delete(ctx, key)
	}

	recs, err := s.Repo.FindAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.populate(ctx, key, recs, cache.ListTTL)
	return recs, nil
}

// CreateImproved stores a job-tailored derived copy. Always a new
// non-original record.
func (s *Service) CreateImproved(ctx context.Context, userID string, data Data, jobDesc JobDescription) (*Record, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	data.Normalize()
	jobDesc.Normalize()

	rec, err := s.Repo.Create(ctx, userID, data, false, &jobDesc)
	if err != nil {
		return nil, fmt.Errorf("create improved resume: %w", err)
	}
	s.Cache.Delete(ctx, cache.ListKey(userID))
	return rec, nil
}

// Delete removes a non-original record. Idempotent: a missing or foreign
// resumeID is a no-op at the store. Cache keys are invalidated
// unconditionally so an attempted delete never leaves stale reads behind.
func (s *Service) Delete(ctx context.Context, userID, resumeID string) error {
	err := s.Repo.DeleteByID(ctx, resumeID, userID)
	s.Cache.Delete(ctx, cache.RecordKey(userID, resumeID), cache.ListKey(userID))
	return err
}

func (s *Service) invalidateRecord(ctx context.Context, userID, resumeID string, isOriginal bool) {
	keys := []string{cache.RecordKey(userID, resumeID), cache.ListKey(userID)}
	if isOriginal {
		keys = append(keys, cache.OriginalKey(userID))
	}
	s.Cache.Delete(ctx, keys...)
}

func (s *Service) populate(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.Log.Warn("cache populate skipped", zap.String("key", key), zap.Error(err))
		return
	}
	s.Cache.Set(ctx, key, payload, ttl)
}
