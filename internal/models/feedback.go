package models

import (
	"fmt"
	"time"
)

// Rating values
const (
	RatingNegative = -1
	RatingNeutral  = 0
	RatingPositive = 1
)

// ValidRating reports whether r is one of -1, 0, 1.
func ValidRating(r int) bool {
	return r == RatingNegative || r == RatingNeutral || r == RatingPositive
}

type Feedback struct {
	ID              int64      `bson:"_id" json:"id"`
	RaterID         int64      `bson:"rater_id" json:"user_id"`
	TargetID        int64      `bson:"target_id" json:"feedback_to_id"`
	Rating          int        `bson:"rating" json:"rating"`
	Review          *string    `bson:"review,omitempty" json:"review"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	AdminModified   bool       `bson:"admin_modified" json:"admin_modified"`
	AdminModifiedAt *time.Time `bson:"admin_modified_at,omitempty" json:"admin_modified_at"`
	DeletedAt       *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	// DailyKey backs the one-rating-per-day unique index. It is only set for
	// non-privileged creations and is removed on soft delete.
	DailyKey string `bson:"daily_key,omitempty" json:"-"`
}

// IsDeleted reports whether the entry has been soft-deleted.
func (f *Feedback) IsDeleted() bool {
	return f.DeletedAt != nil
}

// DailyKey builds the uniqueness key for a rater/target pair on a given day.
func DailyKey(raterID, targetID int64, day time.Time) string {
	return fmt.Sprintf("%d:%d:%s", raterID, targetID, day.Format(DateLayout))
}

// Fields accepted by distinct counts.
const (
	FieldRaterID  = "rater_id"
	FieldTargetID = "target_id"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// FeedbackPatch is a partial update applied by privileged actors.
type FeedbackPatch struct {
	Rating *int
	Review *string
}

func (p FeedbackPatch) Empty() bool {
	return p.Rating == nil && p.Review == nil
}

// FeedbackFilter narrows store queries. Zero values mean "any".
// The time range is half-open: [From, To).
type FeedbackFilter struct {
	RaterID        int64
	TargetID       int64
	Participant    int64 // rater OR target
	Rating         *int
	From           time.Time
	To             time.Time
	IncludeDeleted bool
}

// RatingCounts holds per-rating totals.
type RatingCounts struct {
	Positive int64 `json:"positive"`
	Neutral  int64 `json:"neutral"`
	Negative int64 `json:"negative"`
	Sum      int64 `json:"-"` // sum of rating values
}

func (c RatingCounts) Total() int64 {
	return c.Positive + c.Neutral + c.Negative
}

// Add increments the bucket for rating.
func (c *RatingCounts) Add(rating int) {
	switch rating {
	case RatingPositive:
		c.Positive++
	case RatingNeutral:
		c.Neutral++
	case RatingNegative:
		c.Negative++
	}
	c.Sum += int64(rating)
}

// RatingEvent is the projection of a feedback used for time bucketing.
type RatingEvent struct {
	CreatedAt time.Time `bson:"created_at"`
	Rating    int       `bson:"rating"`
}

// RatingSummary is the per-user read model of received ratings.
type RatingSummary struct {
	UserID   int64   `json:"user_id"`
	Average  float64 `json:"average_rating"`
	Count    int64   `json:"rating_count"`
	Positive int64   `json:"positive_count"`
	Neutral  int64   `json:"neutral_count"`
	Negative int64   `json:"negative_count"`
}
