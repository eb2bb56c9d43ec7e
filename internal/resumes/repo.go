package resumes

import "context"

// Repo defines persistence operations for resume records. Every read and
// write is filtered by user ID; cross-user access is impossible at this
// layer. Finds return (nil, nil) when no record exists.
type Repo interface {
	FindByID(ctx context.Context, resumeID, userID string) (*Record, error)
	FindOriginalByUser(ctx context.Context, userID string) (*Record, error)
	// FindAllByUser returns the user's non-original records, newest first.
	FindAllByUser(ctx context.Context, userID string) ([]Record, error)
	Create(ctx context.Context, userID string, data Data, isOriginal bool, jobDesc *JobDescription) (*Record, error)
	UpdateByID(ctx context.Context, resumeID string, data Data) (*Record, error)
	// DeleteByID removes a non-original record owned by userID. Deleting a
	// record that does not exist, is not owned, or is the original is a
	// silent no-op.
	DeleteByID(ctx context.Context, resumeID, userID string) error
}
