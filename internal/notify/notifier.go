// Package notify tells users that they received a new rating.
package notify

import (
	"context"

	"credit-backend/internal/models"
)

// Notifier publishes a "feedback received" message for a new entry.
// Implementations may be swapped without touching the handlers.
type Notifier interface {
	FeedbackReceived(ctx context.Context, feedback *models.Feedback) error
}

// UserLookup resolves the recipient of a notification.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

func ratingLabel(rating int) string {
	switch rating {
	case models.RatingPositive:
		return "positive"
	case models.RatingNegative:
		return "negative"
	default:
		return "neutral"
	}
}
