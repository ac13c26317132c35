package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/models"
)

// MemoryFeedbackRepo is an in-process feedback store with the same
// semantics as FeedbackRepo, including the daily-key uniqueness guard.
type MemoryFeedbackRepo struct {
	mu        sync.RWMutex
	nextID    int64
	entries   map[int64]*models.Feedback
	dailyKeys map[string]int64
}

func NewMemoryFeedbackRepo() *MemoryFeedbackRepo {
	return &MemoryFeedbackRepo{
		entries:   make(map[int64]*models.Feedback),
		dailyKeys: make(map[string]int64),
	}
}

func (r *MemoryFeedbackRepo) Insert(_ context.Context, feedback *models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if feedback.DailyKey != "" {
		if _, taken := r.dailyKeys[feedback.DailyKey]; taken {
			return apperrors.ErrDuplicateDailyKey
		}
	}

	r.nextID++
	feedback.ID = r.nextID
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}

	r.entries[feedback.ID] = cloneFeedback(feedback)
	if feedback.DailyKey != "" {
		r.dailyKeys[feedback.DailyKey] = feedback.ID
	}
	return nil
}

func (r *MemoryFeedbackRepo) FindByID(_ context.Context, id int64, includeDeleted bool) (*models.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok || (e.IsDeleted() && !includeDeleted) {
		return nil, apperrors.ErrNoRecord
	}
	return cloneFeedback(e), nil
}

func (r *MemoryFeedbackRepo) Update(_ context.Context, id int64, patch models.FeedbackPatch, modifiedAt time.Time) (*models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.IsDeleted() {
		return nil, apperrors.ErrNoRecord
	}

	if patch.Rating != nil {
		e.Rating = *patch.Rating
	}
	if patch.Review != nil {
		review := *patch.Review
		e.Review = &review
	}
	at := modifiedAt
	e.AdminModified = true
	e.AdminModifiedAt = &at

	return cloneFeedback(e), nil
}

func (r *MemoryFeedbackRepo) SoftDelete(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.IsDeleted() {
		return apperrors.ErrNoRecord
	}

	deletedAt := at
	e.DeletedAt = &deletedAt
	if e.DailyKey != "" {
		delete(r.dailyKeys, e.DailyKey)
		e.DailyKey = ""
	}
	return nil
}

func (r *MemoryFeedbackRepo) List(_ context.Context, filter models.FeedbackFilter, offset, limit int64) ([]models.Feedback, error) {
	matched := r.matching(filter)

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if offset >= int64(len(matched)) {
		return []models.Feedback{}, nil
	}
	end := int64(len(matched))
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], nil
}

func (r *MemoryFeedbackRepo) Count(_ context.Context, filter models.FeedbackFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r *MemoryFeedbackRepo) CountByRating(_ context.Context, filter models.FeedbackFilter) (models.RatingCounts, error) {
	var counts models.RatingCounts
	for _, e := range r.matching(filter) {
		counts.Add(e.Rating)
	}
	return counts, nil
}

func (r *MemoryFeedbackRepo) CountDistinct(_ context.Context, field string, filter models.FeedbackFilter) (int64, error) {
	seen := make(map[int64]struct{})
	for _, e := range r.matching(filter) {
		switch field {
		case models.FieldRaterID:
			seen[e.RaterID] = struct{}{}
		case models.FieldTargetID:
			seen[e.TargetID] = struct{}{}
		default:
			return 0, fmt.Errorf("count distinct: unsupported field %q", field)
		}
	}
	return int64(len(seen)), nil
}

func (r *MemoryFeedbackRepo) Timeline(_ context.Context, filter models.FeedbackFilter) ([]models.RatingEvent, error) {
	matched := r.matching(filter)
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	events := make([]models.RatingEvent, 0, len(matched))
	for _, e := range matched {
		events = append(events, models.RatingEvent{CreatedAt: e.CreatedAt, Rating: e.Rating})
	}
	return events, nil
}

func (r *MemoryFeedbackRepo) RatedTargets(_ context.Context, raterID int64) ([]int64, error) {
	seen := make(map[int64]struct{})
	targets := []int64{}
	for _, e := range r.matching(models.FeedbackFilter{RaterID: raterID}) {
		if _, ok := seen[e.TargetID]; ok {
			continue
		}
		seen[e.TargetID] = struct{}{}
		targets = append(targets, e.TargetID)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets, nil
}

func (r *MemoryFeedbackRepo) matching(filter models.FeedbackFilter) []models.Feedback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Feedback, 0)
	for _, e := range r.entries {
		if matches(e, filter) {
			out = append(out, *cloneFeedback(e))
		}
	}
	return out
}

func matches(e *models.Feedback, f models.FeedbackFilter) bool {
	if e.IsDeleted() && !f.IncludeDeleted {
		return false
	}
	if f.RaterID != 0 && e.RaterID != f.RaterID {
		return false
	}
	if f.TargetID != 0 && e.TargetID != f.TargetID {
		return false
	}
	if f.Participant != 0 && e.RaterID != f.Participant && e.TargetID != f.Participant {
		return false
	}
	if f.Rating != nil && e.Rating != *f.Rating {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

func cloneFeedback(f *models.Feedback) *models.Feedback {
	c := *f
	if f.Review != nil {
		review := *f.Review
		c.Review = &review
	}
	if f.AdminModifiedAt != nil {
		at := *f.AdminModifiedAt
		c.AdminModifiedAt = &at
	}
	if f.DeletedAt != nil {
		at := *f.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}
