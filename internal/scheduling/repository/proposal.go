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
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ProposalCollectionName = "Proposals"

type ProposalRepository interface {
	Create(ctx context.Context, proposal *model.Proposal) error
	FindByID(ctx context.Context, id string) (*model.Proposal, error)
	FindPendingByClient(ctx context.Context, clientID string) (*model.Proposal, error)
	FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Proposal, error)
	Update(ctx context.Context, id string, proposal *model.Proposal) error
	Count(ctx context.Context, providerID string) (int64, error)
}

type mongoProposalRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoProposalRepository(cfg *config.Config) ProposalRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoProposalRepository{
		cfg:        cfg,
		collection: db.Collection(ProposalCollectionName),
	}
}

func (r *mongoProposalRepository) Create(ctx context.Context, proposal *model.Proposal) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	proposal.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, proposal)
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		proposal.ID = oid.Hex()
	}
	return nil
}

func (r *mongoProposalRepository) FindByID(ctx context.Context, id string) (*model.Proposal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", schederrors.ErrInvalidID, id)
	}

	var proposal model.Proposal
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&proposal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, schederrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find proposal: %w", err)
	}

	return &proposal, nil
}

// FindPendingByClient returns the client's open proposal, pending or
// countered. At most one proposal per client is open at a time;
// re-proposing updates it.
func (r *mongoProposalRepository) FindPendingByClient(ctx context.Context, clientID string) (*model.Proposal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"client_id": clientID,
		"status": bson.M{"$in": []model.ProposalStatus{
			model.ProposalStatusPending, model.ProposalStatusCountered,
		}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var proposal model.Proposal
	err := r.collection.FindOne(ctx, filter, opts).Decode(&proposal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, schederrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find pending proposal: %w", err)
	}

	return &proposal, nil
}

func (r *mongoProposalRepository) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Proposal, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"provider_id": providerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find proposals: %w", err)
	}
	defer cursor.Close(ctx)

	var proposals []*model.Proposal
	if err = cursor.All(ctx, &proposals); err != nil {
		return nil, fmt.Errorf("failed to decode proposals: %w", err)
	}

	return proposals, nil
}

func (r *mongoProposalRepository) Update(ctx context.Context, id string, proposal *model.Proposal) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", schederrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"slots":         proposal.Slots,
			"round":         proposal.Round,
			"offered_by":    proposal.OfferedBy,
			"status":        proposal.Status,
			"selected_slot": proposal.SelectedSlot,
			"expires_at":    proposal.ExpiresAt,
			"updated_at":    time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	if result.MatchedCount == 0 {
		return schederrors.ErrNotFound
	}
	return nil
}

func (r *mongoProposalRepository) Count(ctx context.Context, providerID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"provider_id": providerID})
	if err != nil {
		return 0, fmt.Errorf("failed to count proposals: %w", err)
	}
	return count, nil
}
