// Package feedback implements creation, moderation and listing of user
// ratings, plus the per-user rating summary read model.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/models"
	"credit-backend/internal/policy"
)

// PageSize is the number of entries returned per listing page.
const PageSize = 30

type Service struct {
	store     Store
	validator *Validator
	cache     SummaryCache
	clock     clockwork.Clock
	loc       *time.Location

	summaryGroup singleflight.Group
}

// NewService wires the service. A nil cache disables summary caching.
func NewService(store Store, cache SummaryCache, clock clockwork.Clock, loc *time.Location) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		store:     store,
		validator: NewValidator(store, clock, loc),
		cache:     cache,
		clock:     clock,
		loc:       loc,
	}
}

type CreateInput struct {
	TargetID int64
	Rating   int
	Review   *string
}

func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.Feedback, error) {
	privileged := actor.IsPrivileged()
	if err := s.validator.ValidateCreate(ctx, actor.ID, in.TargetID, in.Rating, privileged); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	feedback := &models.Feedback{
		RaterID:   actor.ID,
		TargetID:  in.TargetID,
		Rating:    in.Rating,
		CreatedAt: now,
	}
	if in.Review != nil {
		review := *in.Review
		feedback.Review = &review
	}
	if !privileged {
		feedback.DailyKey = models.DailyKey(actor.ID, in.TargetID, now.In(s.loc))
	}

	if err := s.store.Insert(ctx, feedback); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateDailyKey) {
			return nil, apperrors.DuplicateRatingToday()
		}
		return nil, apperrors.Persistence(fmt.Errorf("insert feedback: %w", err))
	}

	s.invalidateSummary(ctx, feedback.TargetID)
	slog.InfoContext(ctx, "Feedback created",
		"feedback_id", feedback.ID,
		"rater_id", feedback.RaterID,
		"target_id", feedback.TargetID,
		"rating", feedback.Rating)
	return feedback, nil
}

func (s *Service) Update(ctx context.Context, actor models.Actor, id int64, patch models.FeedbackPatch) (*models.Feedback, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	if !policy.CanUpdate(actor) {
		return nil, apperrors.Forbidden("Only administrators can modify ratings")
	}
	if patch.Rating != nil && !models.ValidRating(*patch.Rating) {
		return nil, apperrors.InvalidRating()
	}
	if patch.Empty() {
		return nil, apperrors.NoOp()
	}

	updated, err := s.store.Update(ctx, id, patch, s.clock.Now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNoRecord) {
			return nil, apperrors.NotFound("Feedback not found")
		}
		return nil, apperrors.Persistence(fmt.Errorf("update feedback %d: %w", id, err))
	}

	s.invalidateSummary(ctx, updated.TargetID)
	slog.InfoContext(ctx, "Feedback modified by staff",
		"feedback_id", id,
		"actor_id", actor.ID,
		"role", actor.Role)
	return updated, nil
}

// Delete soft-deletes the entry. Deleting an already deleted entry
// reports NotFound.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id int64) error {
	entry, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanDelete(actor, entry) {
		return apperrors.Forbidden("You don't have permission to delete this feedback")
	}

	if err := s.store.SoftDelete(ctx, id, s.clock.Now()); err != nil {
		if errors.Is(err, apperrors.ErrNoRecord) {
			return apperrors.NotFound("Feedback not found")
		}
		return apperrors.Persistence(fmt.Errorf("delete feedback %d: %w", id, err))
	}

	s.invalidateSummary(ctx, entry.TargetID)
	slog.InfoContext(ctx, "Feedback deleted", "feedback_id", id, "actor_id", actor.ID)
	return nil
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id int64) (*models.Feedback, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(actor, entry) {
		return nil, apperrors.Forbidden("You don't have permission to view this feedback")
	}
	return entry, nil
}

type ListQuery struct {
	TargetID *int64
	Page     int // zero-based
}

type ListResult struct {
	Count     int64             `json:"count"`
	Feedbacks []models.Feedback `json:"feedbacks"`
	CanModify bool              `json:"can_modify"`
}

// List pages through entries newest first. Non-privileged actors only see
// entries they gave or received.
func (s *Service) List(ctx context.Context, actor models.Actor, q ListQuery) (*ListResult, error) {
	var filter models.FeedbackFilter
	if q.TargetID != nil {
		if *q.TargetID <= 0 {
			return nil, apperrors.InvalidTarget("feedback_to_id must be a positive user id")
		}
		filter.TargetID = *q.TargetID
	}
	if !actor.IsPrivileged() {
		filter.Participant = actor.ID
	}

	page := max(q.Page, 0)

	count, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("count feedbacks: %w", err))
	}
	feedbacks, err := s.store.List(ctx, filter, int64(page)*PageSize, PageSize)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("list feedbacks: %w", err))
	}

	return &ListResult{
		Count:     count,
		Feedbacks: feedbacks,
		CanModify: policy.CanModify(actor),
	}, nil
}

// Summary returns the received-rating summary of a user. Deleted entries
// are not counted.
func (s *Service) Summary(ctx context.Context, userID int64) (*models.RatingSummary, error) {
	if userID <= 0 {
		return nil, apperrors.InvalidTarget("user id must be positive")
	}

	cached, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Rating summary cache read failed", "user_id", userID, "error", err)
	} else if ok {
		return cached, nil
	}

	// Concurrent misses for the same user share one aggregation. The load
	// must not fail because the caller that started it went away.
	v, err, _ := s.summaryGroup.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)

		// Read the generation before the counts so that a write landing in
		// between makes the Set below a no-op.
		generation, genErr := s.cache.Generation(loadCtx, userID)
		if genErr != nil {
			slog.WarnContext(ctx, "Rating summary generation read failed", "user_id", userID, "error", genErr)
		}

		counts, err := s.store.CountByRating(loadCtx, models.FeedbackFilter{TargetID: userID})
		if err != nil {
			return nil, apperrors.Persistence(fmt.Errorf("summarize user %d: %w", userID, err))
		}

		summary := models.RatingSummary{
			UserID:   userID,
			Count:    counts.Total(),
			Positive: counts.Positive,
			Neutral:  counts.Neutral,
			Negative: counts.Negative,
		}
		if summary.Count > 0 {
			summary.Average = math.Round(float64(counts.Sum)/float64(summary.Count)*100) / 100
		}

		if genErr == nil {
			stored, err := s.cache.Set(loadCtx, summary, generation)
			if err != nil {
				slog.WarnContext(ctx, "Rating summary cache write failed", "user_id", userID, "error", err)
			} else if !stored {
				slog.DebugContext(ctx, "Rating summary changed while loading, not cached", "user_id", userID)
			}
		}
		return &summary, nil
	})
	if err != nil {
		return nil, err
	}
	summary := *v.(*models.RatingSummary)
	return &summary, nil
}

// RatedTargets lists the ids of users that userID has rated.
func (s *Service) RatedTargets(ctx context.Context, userID int64) ([]int64, error) {
	if userID <= 0 {
		return nil, apperrors.InvalidTarget("user id must be positive")
	}
	targets, err := s.store.RatedTargets(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("rated targets of %d: %w", userID, err))
	}
	return targets, nil
}

func (s *Service) find(ctx context.Context, id int64) (*models.Feedback, error) {
	entry, err := s.store.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoRecord) {
			return nil, apperrors.NotFound("Feedback not found")
		}
		return nil, apperrors.Persistence(fmt.Errorf("find feedback %d: %w", id, err))
	}
	return entry, nil
}

func (s *Service) invalidateSummary(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Rating summary cache invalidation failed", "user_id", userID, "error", err)
	}
}
