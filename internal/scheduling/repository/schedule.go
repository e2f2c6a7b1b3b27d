package repository

import (
	"context"
	"errors"
	"fmt"
	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/pkg/config"
	mongotx "slotwise/pkg/db/mongo"
	"slotwise/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ScheduleCollectionName = "Schedules"

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	FindByID(ctx context.Context, id string) (*model.Schedule, error)
	FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Schedule, error)
	FindActiveForProviderDate(ctx context.Context, providerID, date string) ([]*model.Schedule, error)
	FindActiveForProviderRange(ctx context.Context, providerID, fromDate, toDate string) ([]*model.Schedule, error)
	FindByNaturalKey(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error)
	FindActiveByClient(ctx context.Context, clientID string) ([]*model.Schedule, error)
	FindLatestByClient(ctx context.Context, clientID string) (*model.Schedule, error)
	Update(ctx context.Context, id string, schedule *model.Schedule) error
	Count(ctx context.Context, providerID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoScheduleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoScheduleRepository(cfg *config.Config) ScheduleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoScheduleRepository{
		cfg:        cfg,
		collection: db.Collection(ScheduleCollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// EnsureIndexes creates the partial unique index that backs duplicate
// prevention even if application-level checks race.
func (r *mongoScheduleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "client_id", Value: 1},
				{Key: "scheduled_date", Value: 1},
				{Key: "start_time", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": model.ScheduleStatusScheduled}),
		},
		{
			Keys: bson.D{
				{Key: "provider_id", Value: 1},
				{Key: "scheduled_date", Value: 1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create schedule indexes: %w", err)
	}
	return nil
}

func (r *mongoScheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	schedule.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, schedule)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s %s", schederrors.ErrDuplicateBooking, schedule.ScheduledDate, schedule.StartTime)
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		schedule.ID = oid.Hex()
	}
	return nil
}

func (r *mongoScheduleRepository) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", schederrors.ErrInvalidID, id)
	}

	var schedule model.Schedule
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&schedule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, schederrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}

	return &schedule, nil
}

func (r *mongoScheduleRepository) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "scheduled_date", Value: 1}, {Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"provider_id": providerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []*model.Schedule
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}

	return schedules, nil
}

func (r *mongoScheduleRepository) FindActiveForProviderDate(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id":    providerID,
		"scheduled_date": date,
		"status":         model.ScheduleStatusScheduled,
	}
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedules for date: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []*model.Schedule
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}

	return schedules, nil
}

// FindActiveForProviderRange loads a provider's active schedules across a
// span of dates, both ends inclusive. ISO dates compare lexicographically.
func (r *mongoScheduleRepository) FindActiveForProviderRange(ctx context.Context, providerID, fromDate, toDate string) ([]*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"provider_id":    providerID,
		"scheduled_date": bson.M{"$gte": fromDate, "$lte": toDate},
		"status":         model.ScheduleStatusScheduled,
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find schedules for range: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []*model.Schedule
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}

	return schedules, nil
}

func (r *mongoScheduleRepository) FindByNaturalKey(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"client_id":      clientID,
		"scheduled_date": date,
		"start_time":     startTime,
		"status":         model.ScheduleStatusScheduled,
	}

	var schedule model.Schedule
	err := r.collection.FindOne(ctx, filter).Decode(&schedule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, schederrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find schedule by natural key: %w", err)
	}

	return &schedule, nil
}

func (r *mongoScheduleRepository) FindActiveByClient(ctx context.Context, clientID string) ([]*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"client_id": clientID,
		"status":    model.ScheduleStatusScheduled,
	}
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_date", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find client schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []*model.Schedule
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}

	return schedules, nil
}

func (r *mongoScheduleRepository) FindLatestByClient(ctx context.Context, clientID string) (*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var schedule model.Schedule
	err := r.collection.FindOne(ctx, bson.M{"client_id": clientID}, opts).Decode(&schedule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, schederrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find latest schedule: %w", err)
	}

	return &schedule, nil
}

func (r *mongoScheduleRepository) Update(ctx context.Context, id string, schedule *model.Schedule) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", schederrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"scheduled_date":      schedule.ScheduledDate,
			"start_time":          schedule.StartTime,
			"end_time":            schedule.EndTime,
			"duration_minutes":    schedule.DurationMinutes,
			"status":              schedule.Status,
			"approval_status":     schedule.ApprovalStatus,
			"proposed_date":       schedule.ProposedDate,
			"proposed_start_time": schedule.ProposedStartTime,
			"proposed_end_time":   schedule.ProposedEndTime,
			"change_reason":       schedule.ChangeReason,
			"updated_at":          time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s %s", schederrors.ErrDuplicateBooking, schedule.ScheduledDate, schedule.StartTime)
		}
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if result.MatchedCount == 0 {
		return schederrors.ErrNotFound
	}
	return nil
}

func (r *mongoScheduleRepository) Count(ctx context.Context, providerID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"provider_id": providerID})
	if err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}

func (r *mongoScheduleRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
