package service

import (
	"context"
	"sync"

	schederrors "slotwise/internal/scheduling/errors"
	"slotwise/pkg/config"
	mongotx "slotwise/pkg/db/mongo"
	"slotwise/pkg/events"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// Shared test fixtures and func-field mocks for the scheduling services.

const (
	testProviderID = "provider-1"
	testClientID   = "507f1f77bcf86cd799439011"
	testProposalID = "507f1f77bcf86cd799439021"
	testScheduleID = "507f1f77bcf86cd799439031"
	testMonday     = "2025-03-10"
	testTuesday    = "2025-03-11"
)

func newTestConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	return &config.Config{
		Log:                   log,
		ProposalExpiry:        config.DefaultProposalExpiry,
		DefaultBufferMinutes:  15,
		DefaultJobDurationMin: 150,
		DefaultDayStart:       "09:00",
		DefaultDayEnd:         "17:00",
		DefaultWorkingDays: []config.Weekday{
			config.Monday, config.Tuesday, config.Wednesday, config.Thursday, config.Friday,
		},
		AvailabilityWindowDays: 7,
	}
}

func testWorkingConfig() *model.WorkingConfig {
	return &model.WorkingConfig{
		ProviderID: testProviderID,
		WorkingDays: []config.Weekday{
			config.Monday, config.Tuesday, config.Wednesday, config.Thursday, config.Friday,
		},
		DayStart:       "09:00",
		DayEnd:         "17:00",
		BufferMinutes:  15,
		SmallJobHours:  2,
		MediumJobHours: 3,
		LargeJobHours:  4,
	}
}

func testClient() *model.Client {
	return &model.Client{
		ID:             testClientID,
		ProviderID:     testProviderID,
		Name:           "Dana Levi",
		Email:          "dana@example.com",
		PropertySqft:   1800,
		ContractSigned: true,
		Status:         model.ClientStatusPending,
	}
}

// duplicateKeyErr trips mongo.IsDuplicateKeyError, like a unique index
// violation would.
var duplicateKeyErr = mongo.WriteException{
	WriteErrors: []mongo.WriteError{{Code: 11000}},
}

type mockProposalRepository struct {
	createFunc              func(ctx context.Context, proposal *model.Proposal) error
	findByIDFunc            func(ctx context.Context, id string) (*model.Proposal, error)
	findPendingByClientFunc func(ctx context.Context, clientID string) (*model.Proposal, error)
	findByProviderFunc      func(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Proposal, error)
	updateFunc              func(ctx context.Context, id string, proposal *model.Proposal) error

	capturedProposal *model.Proposal
}

func (m *mockProposalRepository) Create(ctx context.Context, proposal *model.Proposal) error {
	m.capturedProposal = proposal
	if m.createFunc != nil {
		return m.createFunc(ctx, proposal)
	}
	proposal.ID = testProposalID
	return nil
}

func (m *mockProposalRepository) FindByID(ctx context.Context, id string) (*model.Proposal, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, schederrors.ErrNotFound
}

func (m *mockProposalRepository) FindPendingByClient(ctx context.Context, clientID string) (*model.Proposal, error) {
	if m.findPendingByClientFunc != nil {
		return m.findPendingByClientFunc(ctx, clientID)
	}
	return nil, schederrors.ErrNotFound
}

func (m *mockProposalRepository) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Proposal, error) {
	if m.findByProviderFunc != nil {
		return m.findByProviderFunc(ctx, providerID, limit, offset)
	}
	return nil, nil
}

func (m *mockProposalRepository) Update(ctx context.Context, id string, proposal *model.Proposal) error {
	m.capturedProposal = proposal
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, proposal)
	}
	return nil
}

func (m *mockProposalRepository) Count(ctx context.Context, providerID string) (int64, error) {
	return 0, nil
}

type mockScheduleRepository struct {
	createFunc                     func(ctx context.Context, schedule *model.Schedule) error
	findByIDFunc                   func(ctx context.Context, id string) (*model.Schedule, error)
	findActiveForProviderDateFunc  func(ctx context.Context, providerID, date string) ([]*model.Schedule, error)
	findActiveForProviderRangeFunc func(ctx context.Context, providerID, fromDate, toDate string) ([]*model.Schedule, error)
	findByNaturalKeyFunc           func(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error)
	findActiveByClientFunc         func(ctx context.Context, clientID string) ([]*model.Schedule, error)
	findLatestByClientFunc         func(ctx context.Context, clientID string) (*model.Schedule, error)
	updateFunc                     func(ctx context.Context, id string, schedule *model.Schedule) error
	executeTransactionFunc         func(ctx context.Context, fn mongotx.TransactionFunc) error

	capturedSchedule *model.Schedule
}

func (m *mockScheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	m.capturedSchedule = schedule
	if m.createFunc != nil {
		return m.createFunc(ctx, schedule)
	}
	schedule.ID = testScheduleID
	return nil
}

func (m *mockScheduleRepository) FindByID(ctx context.Context, id string) (*model.Schedule, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, schederrors.ErrNotFound
}

func (m *mockScheduleRepository) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Schedule, error) {
	return nil, nil
}

func (m *mockScheduleRepository) FindActiveForProviderDate(ctx context.Context, providerID, date string) ([]*model.Schedule, error) {
	if m.findActiveForProviderDateFunc != nil {
		return m.findActiveForProviderDateFunc(ctx, providerID, date)
	}
	return nil, nil
}

func (m *mockScheduleRepository) FindActiveForProviderRange(ctx context.Context, providerID, fromDate, toDate string) ([]*model.Schedule, error) {
	if m.findActiveForProviderRangeFunc != nil {
		return m.findActiveForProviderRangeFunc(ctx, providerID, fromDate, toDate)
	}
	return nil, nil
}

func (m *mockScheduleRepository) FindByNaturalKey(ctx context.Context, clientID, date, startTime string) (*model.Schedule, error) {
	if m.findByNaturalKeyFunc != nil {
		return m.findByNaturalKeyFunc(ctx, clientID, date, startTime)
	}
	return nil, schederrors.ErrNotFound
}

func (m *mockScheduleRepository) FindActiveByClient(ctx context.Context, clientID string) ([]*model.Schedule, error) {
	if m.findActiveByClientFunc != nil {
		return m.findActiveByClientFunc(ctx, clientID)
	}
	return nil, nil
}

func (m *mockScheduleRepository) FindLatestByClient(ctx context.Context, clientID string) (*model.Schedule, error) {
	if m.findLatestByClientFunc != nil {
		return m.findLatestByClientFunc(ctx, clientID)
	}
	return nil, schederrors.ErrNotFound
}

func (m *mockScheduleRepository) Update(ctx context.Context, id string, schedule *model.Schedule) error {
	m.capturedSchedule = schedule
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, schedule)
	}
	return nil
}

func (m *mockScheduleRepository) Count(ctx context.Context, providerID string) (int64, error) {
	return 0, nil
}

func (m *mockScheduleRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (m *mockScheduleRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTransactionFunc != nil {
		return m.executeTransactionFunc(ctx, fn)
	}
	sessCtx := mongo.NewSessionContext(ctx, nil)
	return fn(sessCtx)
}

type mockClientRepository struct {
	findByIDFunc          func(ctx context.Context, id string) (*model.Client, error)
	updateStatusFunc      func(ctx context.Context, id string, status model.ClientStatus) error
	setContractSignedFunc func(ctx context.Context, id string, signed bool) error

	capturedStatus model.ClientStatus
	statusUpdated  bool
}

func (m *mockClientRepository) Create(ctx context.Context, client *model.Client) error {
	client.ID = testClientID
	return nil
}

func (m *mockClientRepository) FindByID(ctx context.Context, id string) (*model.Client, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return testClient(), nil
}

func (m *mockClientRepository) FindByProvider(ctx context.Context, providerID string, limit int, offset int64) ([]*model.Client, error) {
	return nil, nil
}

func (m *mockClientRepository) UpdateStatus(ctx context.Context, id string, status model.ClientStatus) error {
	m.capturedStatus = status
	m.statusUpdated = true
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockClientRepository) SetContractSigned(ctx context.Context, id string, signed bool) error {
	if m.setContractSignedFunc != nil {
		return m.setContractSignedFunc(ctx, id, signed)
	}
	return nil
}

func (m *mockClientRepository) Count(ctx context.Context, providerID string) (int64, error) {
	return 0, nil
}

type mockWorkingConfigRepository struct {
	findByProviderFunc func(ctx context.Context, providerID string) (*model.WorkingConfig, error)
	upsertFunc         func(ctx context.Context, wc *model.WorkingConfig) error

	capturedConfig *model.WorkingConfig
}

func (m *mockWorkingConfigRepository) Upsert(ctx context.Context, wc *model.WorkingConfig) error {
	m.capturedConfig = wc
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, wc)
	}
	return nil
}

func (m *mockWorkingConfigRepository) FindByProvider(ctx context.Context, providerID string) (*model.WorkingConfig, error) {
	if m.findByProviderFunc != nil {
		return m.findByProviderFunc(ctx, providerID)
	}
	return testWorkingConfig(), nil
}

type mockSlotLockRepository struct {
	acquireFunc func(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error)

	acquired []string
	released []string
}

func (m *mockSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) (*model.SlotLock, error) {
	if m.acquireFunc != nil {
		return m.acquireFunc(ctx, lock)
	}
	m.acquired = append(m.acquired, lock.ID)
	return lock, nil
}

func (m *mockSlotLockRepository) Release(ctx context.Context, lockID string) error {
	m.released = append(m.released, lockID)
	return nil
}

func (m *mockSlotLockRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu            sync.Mutex
	schedules     []events.ScheduleEvent
	notifications []events.NotificationEvent
}

func (p *recordingPublisher) PublishSchedule(event events.ScheduleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schedules = append(p.schedules, event)
}

func (p *recordingPublisher) PublishNotification(event events.NotificationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, event)
}
