package service

import (
	"context"

	"slotwise/internal/scheduling/repository"
	"slotwise/internal/scheduling/validator"
	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
	"slotwise/pkg/sanitizer"
)

type ClientService interface {
	Register(ctx context.Context, client *model.Client) (*model.Client, error)
	GetByID(ctx context.Context, id string) (*model.Client, error)
	ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Client, int64, error)
	SetContractSigned(ctx context.Context, id string, signed bool) error
}

type clientService struct {
	clients   repository.ClientRepository
	validator *validator.SchedulingValidator
	cfg       *config.Config
}

func NewClientService(clients repository.ClientRepository, v *validator.SchedulingValidator, cfg *config.Config) ClientService {
	return &clientService{
		clients:   clients,
		validator: v,
		cfg:       cfg,
	}
}

// Register creates a client record in the pending state. Clients normally
// arrive from enrollment; this is the manual entry path.
func (s *clientService) Register(ctx context.Context, client *model.Client) (*model.Client, error) {
	client.Name = sanitizer.NormalizeName(client.Name)
	client.Email = sanitizer.NormalizeEmail(client.Email)
	if normalized := sanitizer.NormalizePhone(client.Phone); normalized != "" || client.Phone == "" {
		client.Phone = normalized
	}
	client.PropertyAddress = sanitizer.NormalizeAddress(client.PropertyAddress)

	client.Status = model.ClientStatusPending
	if err := s.validator.ValidateClient(client); err != nil {
		return nil, apperrors.Validation("Client validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.clients.Create(ctx, client); err != nil {
		return nil, apperrors.Internal("Failed to create client", err)
	}

	s.cfg.Log.Info("Client registered",
		"client_id", client.ID,
		"provider_id", client.ProviderID,
	)
	return client, nil
}

func (s *clientService) GetByID(ctx context.Context, id string) (*model.Client, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Client ID cannot be empty")
	}
	client, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupError(err, "Client", id)
	}
	return client, nil
}

func (s *clientService) ListByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Client, int64, error) {
	if providerID == "" {
		return nil, 0, apperrors.InvalidInput("Provider ID cannot be empty")
	}

	clients, err := s.clients.FindByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list clients", err)
	}
	count, err := s.clients.Count(ctx, providerID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to count clients", err)
	}
	return clients, count, nil
}

func (s *clientService) SetContractSigned(ctx context.Context, id string, signed bool) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.clients.SetContractSigned(ctx, id, signed); err != nil {
		return apperrors.Internal("Failed to update contract status", err)
	}
	s.cfg.Log.Info("Client contract status updated", "client_id", id, "signed", signed)
	return nil
}
