package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/calendar"
	"credit-backend/internal/models"
)

// Validator checks create requests against the rating domain and the
// one-rating-per-day limit. It only reads from the store.
type Validator struct {
	store Store
	clock clockwork.Clock
	loc   *time.Location
}

func NewValidator(store Store, clock clockwork.Clock, loc *time.Location) *Validator {
	return &Validator{store: store, clock: clock, loc: loc}
}

// ValidateCreate returns an *apperrors.Error describing why the rating may
// not be created, or nil.
func (v *Validator) ValidateCreate(ctx context.Context, raterID, targetID int64, rating int, privileged bool) error {
	if !models.ValidRating(rating) {
		return apperrors.InvalidRating()
	}
	if targetID <= 0 {
		return apperrors.InvalidTarget("feedback_to_id must be a positive user id")
	}
	if targetID == raterID {
		return apperrors.InvalidTarget("You cannot rate yourself")
	}
	if privileged {
		return nil
	}

	start, end := calendar.DayBounds(v.clock.Now(), v.loc)
	n, err := v.store.Count(ctx, models.FeedbackFilter{
		RaterID:  raterID,
		TargetID: targetID,
		From:     start,
		To:       end,
	})
	if err != nil {
		return apperrors.Persistence(fmt.Errorf("check daily rating: %w", err))
	}
	if n > 0 {
		return apperrors.DuplicateRatingToday()
	}
	return nil
}
