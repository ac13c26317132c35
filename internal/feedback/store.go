package feedback

import (
	"context"
	"time"

	"credit-backend/internal/models"
)

// Store persists feedback entries. FindByID, Update and SoftDelete return
// apperrors.ErrNoRecord for missing or soft-deleted rows; Insert returns
// apperrors.ErrDuplicateDailyKey when the daily key is already taken.
type Store interface {
	Insert(ctx context.Context, feedback *models.Feedback) error
	FindByID(ctx context.Context, id int64, includeDeleted bool) (*models.Feedback, error)
	Update(ctx context.Context, id int64, patch models.FeedbackPatch, modifiedAt time.Time) (*models.Feedback, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context, filter models.FeedbackFilter, offset, limit int64) ([]models.Feedback, error)
	Count(ctx context.Context, filter models.FeedbackFilter) (int64, error)
	CountByRating(ctx context.Context, filter models.FeedbackFilter) (models.RatingCounts, error)
	CountDistinct(ctx context.Context, field string, filter models.FeedbackFilter) (int64, error)
	Timeline(ctx context.Context, filter models.FeedbackFilter) ([]models.RatingEvent, error)
	RatedTargets(ctx context.Context, raterID int64) ([]int64, error)
}

// SummaryCache caches per-user rating summaries. Every Invalidate bumps the
// user's generation; Set only stores a summary whose generation is still
// current, so a summary computed before a write is never cached after it.
type SummaryCache interface {
	Get(ctx context.Context, userID int64) (*models.RatingSummary, bool, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, summary models.RatingSummary, generation int64) (bool, error)
	Invalidate(ctx context.Context, userID int64) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (*models.RatingSummary, bool, error) {
	return nil, false, nil
}
func (noopCache) Generation(context.Context, int64) (int64, error) { return 0, nil }
func (noopCache) Set(context.Context, models.RatingSummary, int64) (bool, error) {
	return false, nil
}
func (noopCache) Invalidate(context.Context, int64) error { return nil }
