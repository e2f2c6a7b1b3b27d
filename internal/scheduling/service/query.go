package service

import (
	"context"
	"errors"

	"slotwise/internal/availability"
	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/internal/scheduling/repository"
	"slotwise/pkg/config"
	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
	"slotwise/pkg/timemath"
)

// SchedulingInfo is the public summary a client sees before picking a slot.
type SchedulingInfo struct {
	BusinessName         string           `json:"business_name,omitempty"`
	WorkingDays          []config.Weekday `json:"working_days"`
	DayStart             string           `json:"day_start"`
	DayEnd               string           `json:"day_end"`
	BufferMinutes        int              `json:"buffer_minutes"`
	TimeZone             string           `json:"time_zone,omitempty"`
	EstimatedDurationMin int              `json:"estimated_duration_min"`
}

// TimeSlot is a bookable or busy range rendered for transport.
type TimeSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DayAvailability is one working day's free windows on the booking page.
type DayAvailability struct {
	Date  string     `json:"date"`
	Slots []TimeSlot `json:"slots"`
}

type QueryService interface {
	SchedulingInfo(ctx context.Context, clientID string) (*SchedulingInfo, error)
	Availability(ctx context.Context, providerID, date string, durationMin int) ([]TimeSlot, error)
	AvailabilityForClient(ctx context.Context, clientID, date string) ([]TimeSlot, error)
	AvailabilityWindow(ctx context.Context, clientID, fromDate string) ([]DayAvailability, error)
	BusyIntervals(ctx context.Context, providerID, date string) ([]TimeSlot, error)
	BusyIntervalsForClient(ctx context.Context, clientID, date string) ([]TimeSlot, error)
	LatestAppointment(ctx context.Context, clientID string) (*model.Schedule, error)
}

type queryService struct {
	schedules repository.ScheduleRepository
	clients   repository.ClientRepository
	configs   repository.WorkingConfigRepository
	cfg       *config.Config
}

func NewQueryService(
	schedules repository.ScheduleRepository,
	clients repository.ClientRepository,
	configs repository.WorkingConfigRepository,
	cfg *config.Config,
) QueryService {
	return &queryService{
		schedules: schedules,
		clients:   clients,
		configs:   configs,
		cfg:       cfg,
	}
}

// SchedulingInfo projects the provider's working profile for one client,
// including the appointment length estimated from the client's property.
func (s *queryService) SchedulingInfo(ctx context.Context, clientID string) (*SchedulingInfo, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, translateLookupError(err, "Client", clientID)
	}

	wc, err := loadWorkingConfig(ctx, s.configs, client.ProviderID, s.cfg)
	if err != nil {
		return nil, err
	}

	return &SchedulingInfo{
		BusinessName:  wc.BusinessName,
		WorkingDays:   wc.WorkingDays,
		DayStart:      wc.DayStart,
		DayEnd:        wc.DayEnd,
		BufferMinutes: wc.BufferMinutes,
		TimeZone:      wc.TimeZone,
		EstimatedDurationMin: availability.EstimateDuration(
			wc, model.SizeCategoryForSqft(client.PropertySqft), s.cfg.DefaultJobDurationMin),
	}, nil
}

// Availability lists the open windows on a date that can hold an
// appointment of durationMin minutes. An inactive weekday returns an empty
// list, not an error.
func (s *queryService) Availability(ctx context.Context, providerID, date string, durationMin int) ([]TimeSlot, error) {
	if durationMin <= 0 {
		durationMin = s.cfg.DefaultJobDurationMin
	}
	if _, err := availability.ParseDate(date); err != nil {
		return nil, apperrors.InvalidInput("Unrecognized date: " + date)
	}

	wc, err := loadWorkingConfig(ctx, s.configs, providerID, s.cfg)
	if err != nil {
		return nil, err
	}

	booked, err := s.schedules.FindActiveForProviderDate(ctx, providerID, date)
	if err != nil {
		return nil, apperrors.Internal("Failed to load existing schedules", err)
	}

	free, err := availability.FreeSlots(wc, date, busyIntervals(booked), durationMin)
	if err != nil {
		if errors.Is(err, availability.ErrConfiguration) {
			return nil, apperrors.Wrap(err, apperrors.CodeConflict, "Provider working hours are misconfigured", 409)
		}
		return nil, apperrors.InvalidInput(err.Error())
	}
	return renderIntervals(free), nil
}

// AvailabilityForClient is Availability with the duration derived from the
// client's property size, for the public scheduling page.
func (s *queryService) AvailabilityForClient(ctx context.Context, clientID, date string) ([]TimeSlot, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, translateLookupError(err, "Client", clientID)
	}

	wc, err := loadWorkingConfig(ctx, s.configs, client.ProviderID, s.cfg)
	if err != nil {
		return nil, err
	}

	duration := availability.EstimateDuration(wc, model.SizeCategoryForSqft(client.PropertySqft), s.cfg.DefaultJobDurationMin)
	return s.Availability(ctx, client.ProviderID, date, duration)
}

// AvailabilityWindow lists free windows per working day for the configured
// booking horizon, starting at fromDate. Days outside the working week are
// omitted; fully booked working days appear with no slots so the page can
// grey them out.
func (s *queryService) AvailabilityWindow(ctx context.Context, clientID, fromDate string) ([]DayAvailability, error) {
	from, err := availability.ParseDate(fromDate)
	if err != nil {
		return nil, apperrors.InvalidInput("Unrecognized date: " + fromDate)
	}

	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, translateLookupError(err, "Client", clientID)
	}
	wc, err := loadWorkingConfig(ctx, s.configs, client.ProviderID, s.cfg)
	if err != nil {
		return nil, err
	}
	duration := availability.EstimateDuration(wc, model.SizeCategoryForSqft(client.PropertySqft), s.cfg.DefaultJobDurationMin)

	days := s.cfg.AvailabilityWindowDays
	if days <= 0 {
		days = 1
	}
	toDate := from.AddDate(0, 0, days-1).Format("2006-01-02")

	booked, err := s.schedules.FindActiveForProviderRange(ctx, client.ProviderID, fromDate, toDate)
	if err != nil {
		return nil, apperrors.Internal("Failed to load existing schedules", err)
	}
	byDate := make(map[string][]*model.Schedule)
	for _, sc := range booked {
		byDate[sc.ScheduledDate] = append(byDate[sc.ScheduledDate], sc)
	}

	window := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		if !wc.WorksOn(config.WeekdayOf(day)) {
			continue
		}
		date := day.Format("2006-01-02")

		free, err := availability.FreeSlots(wc, date, busyIntervals(byDate[date]), duration)
		if err != nil {
			if errors.Is(err, availability.ErrConfiguration) {
				return nil, apperrors.Wrap(err, apperrors.CodeConflict, "Provider working hours are misconfigured", 409)
			}
			return nil, apperrors.InvalidInput(err.Error())
		}
		window = append(window, DayAvailability{Date: date, Slots: renderIntervals(free)})
	}
	return window, nil
}

// BusyIntervals lists the occupied ranges on a date without buffer padding.
// Slot details are exposed, client identities are not.
func (s *queryService) BusyIntervals(ctx context.Context, providerID, date string) ([]TimeSlot, error) {
	if _, err := availability.ParseDate(date); err != nil {
		return nil, apperrors.InvalidInput("Unrecognized date: " + date)
	}

	booked, err := s.schedules.FindActiveForProviderDate(ctx, providerID, date)
	if err != nil {
		return nil, apperrors.Internal("Failed to load existing schedules", err)
	}
	return renderIntervals(timemath.Merge(busyIntervals(booked))), nil
}

// BusyIntervalsForClient resolves the client's provider first, for the
// public booking page.
func (s *queryService) BusyIntervalsForClient(ctx context.Context, clientID, date string) ([]TimeSlot, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, translateLookupError(err, "Client", clientID)
	}
	return s.BusyIntervals(ctx, client.ProviderID, date)
}

// LatestAppointment returns the client's most recent schedule in any state,
// or ErrNotFound if the client has never booked.
func (s *queryService) LatestAppointment(ctx context.Context, clientID string) (*model.Schedule, error) {
	schedule, err := s.schedules.FindLatestByClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, schederrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment for client", clientID)
		}
		return nil, translateLookupError(err, "Client", clientID)
	}
	return schedule, nil
}

func renderIntervals(intervals []timemath.Interval) []TimeSlot {
	slots := make([]TimeSlot, 0, len(intervals))
	for _, iv := range intervals {
		slots = append(slots, TimeSlot{
			StartTime: timemath.Format(iv.Start),
			EndTime:   timemath.Format(iv.End),
		})
	}
	return slots
}
