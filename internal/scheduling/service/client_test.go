package service

import (
	"context"
	"testing"

	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/internal/scheduling/validator"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

func newClientFixture() (*mockClientRepository, ClientService) {
	cfg := newTestConfig()
	clients := &mockClientRepository{}
	v := validator.NewSchedulingValidator(cfg.Log)

	svc := NewClientService(clients, v, cfg)
	return clients, svc
}

func TestRegisterNormalizesContactData(t *testing.T) {
	_, svc := newClientFixture()

	created, err := svc.Register(context.Background(), &model.Client{
		ProviderID:      testProviderID,
		Name:            "  Dana   Levi ",
		Email:           " Dana@Example.COM ",
		Phone:           "+972 54-123-4567",
		PropertyAddress: "12 Main\nSt",
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if created.Name != "Dana Levi" {
		t.Errorf("expected normalized name, got %q", created.Name)
	}
	if created.Email != "dana@example.com" {
		t.Errorf("expected normalized email, got %q", created.Email)
	}
	if created.Phone != "+972541234567" {
		t.Errorf("expected E.164 phone, got %q", created.Phone)
	}
	if created.PropertyAddress != "12 Main St" {
		t.Errorf("expected normalized address, got %q", created.PropertyAddress)
	}
	if created.Status != model.ClientStatusPending {
		t.Errorf("new clients start pending, got %s", created.Status)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		client *model.Client
	}{
		{
			name: "missing email",
			client: &model.Client{
				ProviderID: testProviderID,
				Name:       "Dana Levi",
			},
		},
		{
			name: "malformed email",
			client: &model.Client{
				ProviderID: testProviderID,
				Name:       "Dana Levi",
				Email:      "not-an-email",
			},
		},
		{
			name: "unparseable phone",
			client: &model.Client{
				ProviderID: testProviderID,
				Name:       "Dana Levi",
				Email:      "dana@example.com",
				Phone:      "call me maybe",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svc := newClientFixture()

			_, err := svc.Register(context.Background(), tt.client)
			appErr, ok := err.(*apperrors.AppError)
			if !ok || appErr.Code != apperrors.CodeValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSetContractSignedUnknownClient(t *testing.T) {
	clients, svc := newClientFixture()
	clients.findByIDFunc = func(ctx context.Context, id string) (*model.Client, error) {
		return nil, schederrors.ErrNotFound
	}

	err := svc.SetContractSigned(context.Background(), "507f1f77bcf86cd799439099", true)
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected not found error, got %v", err)
	}
}
