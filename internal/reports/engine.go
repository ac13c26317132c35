// Package reports computes admin statistics over feedback entries:
// dense per-day series, rating breakdowns and daily/weekly snapshots.
// Soft-deleted entries are never counted.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/calendar"
	"credit-backend/internal/models"
	"credit-backend/internal/policy"
)

// DefaultWindow is how far back a report starts when no start date is given.
const DefaultWindow = 30

const (
	colorPositive = "#46B54A"
	colorNeutral  = "#F7941E"
	colorNegative = "#D32F2F"
)

// Store is the read-only subset of the feedback store used for reporting.
type Store interface {
	CountByRating(ctx context.Context, filter models.FeedbackFilter) (models.RatingCounts, error)
	CountDistinct(ctx context.Context, field string, filter models.FeedbackFilter) (int64, error)
	Timeline(ctx context.Context, filter models.FeedbackFilter) ([]models.RatingEvent, error)
}

type Engine struct {
	store Store
	clock clockwork.Clock
	loc   *time.Location
}

func NewEngine(store Store, clock clockwork.Clock, loc *time.Location) *Engine {
	return &Engine{store: store, clock: clock, loc: loc}
}

// Range is an inclusive range of calendar days. Start and End are local
// midnights; a range with Start after End is empty.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) filter() models.FeedbackFilter {
	return models.FeedbackFilter{From: r.Start, To: r.End.AddDate(0, 0, 1)}
}

func (r Range) empty() bool {
	return r.Start.After(r.End)
}

// ParseRange parses YYYY-MM-DD bounds. Missing bounds default to the
// trailing DefaultWindow days ending today.
func (e *Engine) ParseRange(start, end string) (Range, error) {
	today := calendar.StartOfDay(e.clock.Now(), e.loc)
	r := Range{
		Start: today.AddDate(0, 0, -DefaultWindow),
		End:   today,
	}

	if start != "" {
		t, err := time.ParseInLocation(models.DateLayout, start, e.loc)
		if err != nil {
			return Range{}, apperrors.InvalidParameters(fmt.Sprintf("start_date must be YYYY-MM-DD, got %q", start))
		}
		r.Start = t
	}
	if end != "" {
		t, err := time.ParseInLocation(models.DateLayout, end, e.loc)
		if err != nil {
			return Range{}, apperrors.InvalidParameters(fmt.Sprintf("end_date must be YYYY-MM-DD, got %q", end))
		}
		r.End = t
	}
	return r, nil
}

// Report is the chart payload returned by the range reports.
type Report[P any] struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Data      []P    `json:"data"`
	Total     int64  `json:"total"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type Point struct {
	X string `json:"x"`
	Y int64  `json:"y"`
}

type RatingPoint struct {
	X     string `json:"x"`
	Y     int64  `json:"y"`
	Color string `json:"color"`
}

type ActivityPoint struct {
	X        string `json:"x"`
	Y        int64  `json:"y"`
	Positive int64  `json:"positive"`
	Neutral  int64  `json:"neutral"`
	Negative int64  `json:"negative"`
}

// Totals counts entries per day, one point per day including empty days.
func (e *Engine) Totals(ctx context.Context, actor models.Actor, r Range) (*Report[Point], error) {
	if !policy.CanViewReports(actor) {
		return nil, forbiddenReport()
	}

	days, err := e.daily(ctx, r)
	if err != nil {
		return nil, err
	}

	report := newReport("user_feedbacks_total", "Total User Feedbacks", r, make([]Point, 0, len(days)))
	for _, d := range days {
		report.Data = append(report.Data, Point{X: d.key, Y: d.counts.Total()})
		report.Total += d.counts.Total()
	}
	return report, nil
}

// ByRating breaks the whole range down by rating value.
func (e *Engine) ByRating(ctx context.Context, actor models.Actor, r Range) (*Report[RatingPoint], error) {
	if !policy.CanViewReports(actor) {
		return nil, forbiddenReport()
	}

	var counts models.RatingCounts
	if !r.empty() {
		var err error
		counts, err = e.store.CountByRating(ctx, r.filter())
		if err != nil {
			return nil, apperrors.Persistence(fmt.Errorf("count by rating: %w", err))
		}
	}

	report := newReport("user_feedbacks_by_rating", "User Feedbacks by Rating", r, []RatingPoint{
		{X: "Positive", Y: counts.Positive, Color: colorPositive},
		{X: "Neutral", Y: counts.Neutral, Color: colorNeutral},
		{X: "Negative", Y: counts.Negative, Color: colorNegative},
	})
	report.Total = counts.Positive + counts.Neutral + counts.Negative
	return report, nil
}

// Activity reports per-day totals with their rating split.
func (e *Engine) Activity(ctx context.Context, actor models.Actor, r Range) (*Report[ActivityPoint], error) {
	if !policy.CanViewReports(actor) {
		return nil, forbiddenReport()
	}

	days, err := e.daily(ctx, r)
	if err != nil {
		return nil, err
	}

	report := newReport("user_feedbacks_activity", "User Feedback Activity", r, make([]ActivityPoint, 0, len(days)))
	for _, d := range days {
		report.Data = append(report.Data, ActivityPoint{
			X:        d.key,
			Y:        d.counts.Total(),
			Positive: d.counts.Positive,
			Neutral:  d.counts.Neutral,
			Negative: d.counts.Negative,
		})
		report.Total += d.counts.Total()
	}
	return report, nil
}

type dayBucket struct {
	key    string
	date   time.Time
	counts models.RatingCounts
}

// daily returns one bucket per calendar day of r, in order.
func (e *Engine) daily(ctx context.Context, r Range) ([]dayBucket, error) {
	days := calendar.Days(r.Start, r.End, e.loc)
	if len(days) == 0 {
		return []dayBucket{}, nil
	}

	events, err := e.store.Timeline(ctx, r.filter())
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("load timeline: %w", err))
	}

	byDay := make(map[string]*models.RatingCounts, len(days))
	buckets := make([]dayBucket, len(days))
	for i, d := range days {
		buckets[i] = dayBucket{key: calendar.DayKey(d, e.loc), date: d}
		byDay[buckets[i].key] = &buckets[i].counts
	}

	for _, ev := range events {
		if c, ok := byDay[calendar.DayKey(ev.CreatedAt, e.loc)]; ok {
			c.Add(ev.Rating)
		}
	}
	return buckets, nil
}

func newReport[P any](kind, title string, r Range, data []P) *Report[P] {
	return &Report[P]{
		Type:      kind,
		Title:     title,
		Data:      data,
		StartDate: r.Start.Format(models.DateLayout),
		EndDate:   r.End.Format(models.DateLayout),
	}
}

// Authorize reports whether actor may request range reports. Callers check
// it before parsing request parameters so that non-admins always see
// Forbidden.
func (e *Engine) Authorize(actor models.Actor) error {
	if !policy.CanViewReports(actor) {
		return forbiddenReport()
	}
	return nil
}

func forbiddenReport() error {
	return apperrors.Forbidden("Only administrators can access this endpoint")
}
