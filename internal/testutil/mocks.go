package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"apartment-valuation-service/internal/core/domain"
	ports "apartment-valuation-service/internal/core/ports/output"
)

// MockBaselineSource is a mock of BaselineSource.
type MockBaselineSource struct {
	mock.Mock
}

func (m *MockBaselineSource) FetchSnapshot(ctx context.Context) ([]ports.SnapshotRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.SnapshotRecord), args.Error(1)
}

func (m *MockBaselineSource) FetchHistory(ctx context.Context) ([]ports.HistoryRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.HistoryRecord), args.Error(1)
}

// MockPointerRepo is a mock of PointerRepository.
type MockPointerRepo struct {
	mock.Mock
}

func (m *MockPointerRepo) Get(ctx context.Context) (*domain.ProductionPointer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductionPointer), args.Error(1)
}

func (m *MockPointerRepo) CompareAndSwap(ctx context.Context, expectedVersion int64, next *domain.ProductionPointer) (*domain.ProductionPointer, error) {
	args := m.Called(ctx, expectedVersion, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductionPointer), args.Error(1)
}

// MockRunRepo is a mock of RunRepository.
type MockRunRepo struct {
	mock.Mock
}

func (m *MockRunRepo) Save(ctx context.Context, run *domain.TrainingRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) GetByID(ctx context.Context, runID string) (*domain.TrainingRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrainingRun), args.Error(1)
}

func (m *MockRunRepo) MarkPromoted(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

func (m *MockRunRepo) List(ctx context.Context, limit int) ([]*domain.TrainingRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TrainingRun), args.Error(1)
}

// MockEstimateRepo is a mock of EstimateRepository.
type MockEstimateRepo struct {
	mock.Mock
}

func (m *MockEstimateRepo) Create(ctx context.Context, rec *domain.EstimateRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockEstimateRepo) ListRecent(ctx context.Context, limit int) ([]*domain.EstimateRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EstimateRecord), args.Error(1)
}

// MockGeocoder is a mock of Geocoder.
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (*domain.Coordinates, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coordinates), args.Error(1)
}

// MockPromotionBus is a mock of PromotionBus.
type MockPromotionBus struct {
	mock.Mock
}

func (m *MockPromotionBus) Publish(ctx context.Context, p *domain.ProductionPointer) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPromotionBus) Subscribe(ctx context.Context, onPromote func(p *domain.ProductionPointer)) error {
	args := m.Called(ctx, onPromote)
	return args.Error(0)
}
