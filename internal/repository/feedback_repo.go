package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	feedbackSequence = "feedbacks"
	dailyKeyIndex    = "daily_key_unique"
)

type FeedbackRepo struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

func NewFeedbackRepo(db *mongo.Database) *FeedbackRepo {
	return &FeedbackRepo{
		collection: db.Collection("feedbacks"),
		counters:   db.Collection("counters"),
	}
}

func (r *FeedbackRepo) Insert(ctx context.Context, feedback *models.Feedback) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return fmt.Errorf("allocate feedback id: %w", err)
	}

	feedback.ID = id
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, feedback); err != nil {
		if isDailyKeyConflict(err) {
			return apperrors.ErrDuplicateDailyKey
		}
		return fmt.Errorf("insert feedback %d: %w", id, err)
	}
	return nil
}

// isDailyKeyConflict reports whether err is a duplicate key error raised by
// the daily_key index. Other duplicates, such as an _id collision after the
// counters document was lost, are storage faults.
func isDailyKeyConflict(err error) bool {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return false
	}
	for _, e := range we.WriteErrors {
		if e.Code == 11000 && strings.Contains(e.Message, dailyKeyIndex) {
			return true
		}
	}
	return false
}

// nextID hands out monotonically increasing ids from the counters collection.
func (r *FeedbackRepo) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": feedbackSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (r *FeedbackRepo) FindByID(ctx context.Context, id int64, includeDeleted bool) (*models.Feedback, error) {
	filter := bson.M{"_id": id}
	if !includeDeleted {
		filter["deleted_at"] = bson.M{"$exists": false}
	}

	var feedback models.Feedback
	err := r.collection.FindOne(ctx, filter).Decode(&feedback)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNoRecord
		}
		return nil, err
	}
	return &feedback, nil
}

func (r *FeedbackRepo) Update(ctx context.Context, id int64, patch models.FeedbackPatch, modifiedAt time.Time) (*models.Feedback, error) {
	set := bson.M{
		"admin_modified":    true,
		"admin_modified_at": modifiedAt,
	}
	if patch.Rating != nil {
		set["rating"] = *patch.Rating
	}
	if patch.Review != nil {
		set["review"] = *patch.Review
	}

	var feedback models.Feedback
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&feedback)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrNoRecord
		}
		return nil, err
	}
	return &feedback, nil
}

// SoftDelete stamps deleted_at and drops the daily key so the rater may
// rate the same target again that day.
func (r *FeedbackRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}},
		bson.M{
			"$set":   bson.M{"deleted_at": at},
			"$unset": bson.M{"daily_key": ""},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrNoRecord
	}
	return nil
}

func (r *FeedbackRepo) List(ctx context.Context, filter models.FeedbackFilter, offset, limit int64) ([]models.Feedback, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, err
	}

	feedbacks := []models.Feedback{}
	if err := cursor.All(ctx, &feedbacks); err != nil {
		return nil, err
	}
	return feedbacks, nil
}

func (r *FeedbackRepo) Count(ctx context.Context, filter models.FeedbackFilter) (int64, error) {
	return r.collection.CountDocuments(ctx, buildFilter(filter))
}

func (r *FeedbackRepo) CountByRating(ctx context.Context, filter models.FeedbackFilter) (models.RatingCounts, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildFilter(filter)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$rating"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingCounts{}, err
	}

	var groups []struct {
		Rating int   `bson:"_id"`
		Count  int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return models.RatingCounts{}, err
	}

	var counts models.RatingCounts
	for _, g := range groups {
		switch g.Rating {
		case models.RatingPositive:
			counts.Positive = g.Count
		case models.RatingNeutral:
			counts.Neutral = g.Count
		case models.RatingNegative:
			counts.Negative = g.Count
		}
		counts.Sum += int64(g.Rating) * g.Count
	}
	return counts, nil
}

func (r *FeedbackRepo) CountDistinct(ctx context.Context, field string, filter models.FeedbackFilter) (int64, error) {
	if field != models.FieldRaterID && field != models.FieldTargetID {
		return 0, fmt.Errorf("count distinct: unsupported field %q", field)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildFilter(filter)}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$" + field}}}},
		{{Key: "$count", Value: "n"}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}

	var result []struct {
		N int64 `bson:"n"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return 0, err
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].N, nil
}

func (r *FeedbackRepo) Timeline(ctx context.Context, filter models.FeedbackFilter) ([]models.RatingEvent, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 0, "created_at": 1, "rating": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, err
	}

	events := []models.RatingEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *FeedbackRepo) RatedTargets(ctx context.Context, raterID int64) ([]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: buildFilter(models.FeedbackFilter{RaterID: raterID})}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$target_id"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	var groups []struct {
		TargetID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}

	targets := make([]int64, 0, len(groups))
	for _, g := range groups {
		targets = append(targets, g.TargetID)
	}
	return targets, nil
}

func buildFilter(f models.FeedbackFilter) bson.M {
	filter := bson.M{}
	if !f.IncludeDeleted {
		filter["deleted_at"] = bson.M{"$exists": false}
	}
	if f.RaterID != 0 {
		filter["rater_id"] = f.RaterID
	}
	if f.TargetID != 0 {
		filter["target_id"] = f.TargetID
	}
	if f.Participant != 0 {
		filter["$or"] = bson.A{
			bson.M{"rater_id": f.Participant},
			bson.M{"target_id": f.Participant},
		}
	}
	if f.Rating != nil {
		filter["rating"] = *f.Rating
	}

	createdAt := bson.M{}
	if !f.From.IsZero() {
		createdAt["$gte"] = f.From
	}
	if !f.To.IsZero() {
		createdAt["$lt"] = f.To
	}
	if len(createdAt) > 0 {
		filter["created_at"] = createdAt
	}
	return filter
}

// EnsureIndexes creates necessary indexes for the feedbacks collection
func (r *FeedbackRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// one rating per rater/target/day for non-privileged raters
			Keys: bson.D{{Key: "daily_key", Value: 1}},
			Options: options.Index().
				SetName(dailyKeyIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"daily_key": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "rater_id", Value: 1}, {Key: "target_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "target_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
