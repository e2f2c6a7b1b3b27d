package repository

import (
	"context"
	"errors"
	"fmt"
	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/pkg/config"
	"slotwise/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const WorkingConfigCollectionName = "Working_configs"

type WorkingConfigRepository interface {
	Upsert(ctx context.Context, cfg *model.WorkingConfig) error
	FindByProvider(ctx context.Context, providerID string) (*model.WorkingConfig, error)
}

type mongoWorkingConfigRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoWorkingConfigRepository(cfg *config.Config) WorkingConfigRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWorkingConfigRepository{
		cfg:        cfg,
		collection: db.Collection(WorkingConfigCollectionName),
	}
}

// Upsert stores the provider's working configuration, one document per
// provider.
func (r *mongoWorkingConfigRepository) Upsert(ctx context.Context, wc *model.WorkingConfig) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"business_name":        wc.BusinessName,
			"working_days":         wc.WorkingDays,
			"day_start":            wc.DayStart,
			"day_end":              wc.DayEnd,
			"breaks":               wc.Breaks,
			"buffer_minutes":       wc.BufferMinutes,
			"small_job_hours":      wc.SmallJobHours,
			"medium_job_hours":     wc.MediumJobHours,
			"large_job_hours":      wc.LargeJobHours,
			"default_duration_min": wc.DefaultDurationMin,
			"time_zone":            wc.TimeZone,
			"updated_at":           now,
		},
		"$setOnInsert": bson.M{
			"provider_id": wc.ProviderID,
			"created_at":  now,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"provider_id": wc.ProviderID}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert working config: %w", err)
	}
	return nil
}

func (r *mongoWorkingConfigRepository) FindByProvider(ctx context.Context, providerID string) (*model.WorkingConfig, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var wc model.WorkingConfig
	err := r.collection.FindOne(ctx, bson.M{"provider_id": providerID}).Decode(&wc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, schederrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find working config: %w", err)
	}

	return &wc, nil
}
