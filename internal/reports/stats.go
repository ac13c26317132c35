package reports

import (
	"context"
	"fmt"
	"time"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/calendar"
	"credit-backend/internal/models"
	"credit-backend/internal/policy"
)

type Snapshot struct {
	TotalFeedbacks int64 `json:"total_feedbacks"`
	Positive       int64 `json:"positive"`
	Neutral        int64 `json:"neutral"`
	Negative       int64 `json:"negative"`
	UniqueRaters   int64 `json:"unique_raters"`
	UniqueRated    int64 `json:"unique_rated"`
}

type DailyStats struct {
	Date string `json:"date"`
	Snapshot
}

type DayBreakdown struct {
	Date     string `json:"date"`
	Total    int64  `json:"total"`
	Positive int64  `json:"positive"`
	Neutral  int64  `json:"neutral"`
	Negative int64  `json:"negative"`
}

type WeeklyStats struct {
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`
	Snapshot
	DailyBreakdown []DayBreakdown `json:"daily_breakdown"`
}

type Stats struct {
	Daily  DailyStats  `json:"daily"`
	Weekly WeeklyStats `json:"weekly"`
}

// Stats returns today's snapshot and the current Monday-to-Sunday week.
func (e *Engine) Stats(ctx context.Context, actor models.Actor) (*Stats, error) {
	if !policy.CanViewStats(actor) {
		return nil, apperrors.Forbidden("Only administrators can view statistics")
	}

	now := e.clock.Now()

	dayStart, dayEnd := calendar.DayBounds(now, e.loc)
	daily, err := e.snapshot(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	weekStart, weekEnd := calendar.WeekBounds(now, e.loc)
	weekly, err := e.snapshot(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	lastDay := weekEnd.AddDate(0, 0, -1)
	days, err := e.daily(ctx, Range{Start: weekStart, End: lastDay})
	if err != nil {
		return nil, err
	}
	breakdown := make([]DayBreakdown, 0, len(days))
	for _, d := range days {
		breakdown = append(breakdown, DayBreakdown{
			Date:     d.key,
			Total:    d.counts.Total(),
			Positive: d.counts.Positive,
			Neutral:  d.counts.Neutral,
			Negative: d.counts.Negative,
		})
	}

	return &Stats{
		Daily: DailyStats{
			Date:     calendar.DayKey(dayStart, e.loc),
			Snapshot: *daily,
		},
		Weekly: WeeklyStats{
			WeekStart:      calendar.DayKey(weekStart, e.loc),
			WeekEnd:        calendar.DayKey(lastDay, e.loc),
			Snapshot:       *weekly,
			DailyBreakdown: breakdown,
		},
	}, nil
}

func (e *Engine) snapshot(ctx context.Context, from, to time.Time) (*Snapshot, error) {
	filter := models.FeedbackFilter{From: from, To: to}

	counts, err := e.store.CountByRating(ctx, filter)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("snapshot ratings: %w", err))
	}
	raters, err := e.store.CountDistinct(ctx, models.FieldRaterID, filter)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("snapshot raters: %w", err))
	}
	rated, err := e.store.CountDistinct(ctx, models.FieldTargetID, filter)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("snapshot rated: %w", err))
	}

	return &Snapshot{
		TotalFeedbacks: counts.Total(),
		Positive:       counts.Positive,
		Neutral:        counts.Neutral,
		Negative:       counts.Negative,
		UniqueRaters:   raters,
		UniqueRated:    rated,
	}, nil
}
