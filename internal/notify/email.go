package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"credit-backend/internal/models"
)

// EmailSender is the part of the Resend client the notifier needs.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier mails the rated user through Resend.
type EmailNotifier struct {
	sender EmailSender
	users  UserLookup
	from   string
}

func NewEmailNotifier(apiKey, from string, users UserLookup) *EmailNotifier {
	return NewEmailNotifierWithSender(resend.NewClient(apiKey).Emails, from, users)
}

func NewEmailNotifierWithSender(sender EmailSender, from string, users UserLookup) *EmailNotifier {
	return &EmailNotifier{sender: sender, users: users, from: from}
}

// FeedbackReceived is a no-op for users without a known e-mail address.
func (n *EmailNotifier) FeedbackReceived(ctx context.Context, feedback *models.Feedback) error {
	user, err := n.users.FindByID(ctx, feedback.TargetID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", feedback.TargetID, err)
	}
	if user == nil || user.Email == "" {
		slog.DebugContext(ctx, "Skipping feedback e-mail, no address", "target_id", feedback.TargetID)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{user.Email},
		Subject: "You received a new rating",
		Html:    renderFeedbackEmail(user.Username, feedback),
	}

	sent, err := n.sender.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	slog.InfoContext(ctx, "Feedback e-mail sent", "email_id", sent.Id, "target_id", feedback.TargetID)
	return nil
}

func renderFeedbackEmail(username string, feedback *models.Feedback) string {
	review := ""
	if feedback.Review != nil {
		review = fmt.Sprintf(`<blockquote style="color: #555;">%s</blockquote>`, html.EscapeString(*feedback.Review))
	}
	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">Hi %s,</h2>
			<p>Someone left you a <strong>%s</strong> rating.</p>
			%s
		</div>
	`, html.EscapeString(username), ratingLabel(feedback.Rating), review)
}
