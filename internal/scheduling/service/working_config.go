package service

import (
	"context"
	"errors"

	"slotwise/internal/availability"
	"slotwise/internal/scheduling/repository"
	"slotwise/internal/scheduling/validator"
	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

type WorkingConfigService interface {
	Get(ctx context.Context, providerID string) (*model.WorkingConfig, error)
	Put(ctx context.Context, providerID string, update *model.WorkingConfigUpdate) (*model.WorkingConfig, error)
}

type workingConfigService struct {
	configs   repository.WorkingConfigRepository
	validator *validator.SchedulingValidator
	cfg       *config.Config
}

func NewWorkingConfigService(configs repository.WorkingConfigRepository, v *validator.SchedulingValidator, cfg *config.Config) WorkingConfigService {
	return &workingConfigService{
		configs:   configs,
		validator: v,
		cfg:       cfg,
	}
}

// Get returns the provider's working profile with service defaults applied
// to any unset field, so callers always see an effective configuration.
func (s *workingConfigService) Get(ctx context.Context, providerID string) (*model.WorkingConfig, error) {
	if providerID == "" {
		return nil, apperrors.InvalidInput("Provider ID cannot be empty")
	}
	return loadWorkingConfig(ctx, s.configs, providerID, s.cfg)
}

// Put merges the update into the stored profile and upserts it. Fields the
// caller omits keep their stored values.
func (s *workingConfigService) Put(ctx context.Context, providerID string, update *model.WorkingConfigUpdate) (*model.WorkingConfig, error) {
	if providerID == "" {
		return nil, apperrors.InvalidInput("Provider ID cannot be empty")
	}

	wc, err := loadWorkingConfig(ctx, s.configs, providerID, s.cfg)
	if err != nil {
		if !errors.Is(err, availability.ErrConfiguration) {
			return nil, err
		}
		// First write: start from the service defaults.
		wc = &model.WorkingConfig{
			ProviderID:    providerID,
			WorkingDays:   s.cfg.DefaultWorkingDays,
			DayStart:      s.cfg.DefaultDayStart,
			DayEnd:        s.cfg.DefaultDayEnd,
			BufferMinutes: s.cfg.DefaultBufferMinutes,
		}
	}

	mergeWorkingConfigUpdate(wc, update)

	if err := s.validator.ValidateWorkingConfig(wc); err != nil {
		return nil, apperrors.Validation("Working configuration validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.configs.Upsert(ctx, wc); err != nil {
		return nil, apperrors.Internal("Failed to save working configuration", err)
	}

	s.cfg.Log.Info("Working configuration updated",
		"provider_id", providerID,
		"day_start", wc.DayStart,
		"day_end", wc.DayEnd,
		"buffer_minutes", wc.BufferMinutes,
	)
	return wc, nil
}

func mergeWorkingConfigUpdate(wc *model.WorkingConfig, update *model.WorkingConfigUpdate) {
	if update.BusinessName != "" {
		wc.BusinessName = update.BusinessName
	}
	if len(update.WorkingDays) > 0 {
		wc.WorkingDays = update.WorkingDays
	}
	if update.DayStart != "" {
		wc.DayStart = update.DayStart
	}
	if update.DayEnd != "" {
		wc.DayEnd = update.DayEnd
	}
	if update.Breaks != nil {
		wc.Breaks = *update.Breaks
	}
	if update.BufferMinutes != nil {
		wc.BufferMinutes = *update.BufferMinutes
	}
	if update.SmallJobHours != nil {
		wc.SmallJobHours = *update.SmallJobHours
	}
	if update.MediumJobHours != nil {
		wc.MediumJobHours = *update.MediumJobHours
	}
	if update.LargeJobHours != nil {
		wc.LargeJobHours = *update.LargeJobHours
	}
	if update.DefaultDurationMin != nil {
		wc.DefaultDurationMin = *update.DefaultDurationMin
	}
	if update.TimeZone != "" {
		wc.TimeZone = update.TimeZone
	}
}
