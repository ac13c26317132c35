package notify

import (
	"context"
	"log/slog"

	"credit-backend/internal/models"
)

// LogNotifier logs notifications instead of delivering them. It is used
// when no mail provider is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) FeedbackReceived(ctx context.Context, feedback *models.Feedback) error {
	slog.InfoContext(ctx, "Feedback notification (not delivered)",
		"feedback_id", feedback.ID,
		"target_id", feedback.TargetID,
		"rating", ratingLabel(feedback.Rating))
	return nil
}
