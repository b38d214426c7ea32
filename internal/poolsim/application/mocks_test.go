package application

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
)

type mockRunRepository struct {
	mock.Mock
}

func (m *mockRunRepository) Save(ctx context.Context, run *domain.SimulationRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRunRepository) Get(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	args := m.Called(ctx, runID)
	run, _ := args.Get(0).(*domain.SimulationRun)
	return run, args.Error(1)
}

func (m *mockRunRepository) FindCompleted(ctx context.Context, fingerprint string) (*domain.SimulationRun, error) {
	args := m.Called(ctx, fingerprint)
	run, _ := args.Get(0).(*domain.SimulationRun)
	return run, args.Error(1)
}

func (m *mockRunRepository) List(ctx context.Context, offset, limit int) ([]*domain.SimulationRun, int64, error) {
	args := m.Called(ctx, offset, limit)
	runs, _ := args.Get(0).([]*domain.SimulationRun)
	return runs, args.Get(1).(int64), args.Error(2)
}

func (m *mockRunRepository) SavePathResults(ctx context.Context, runID string, results []domain.PathResult) error {
	return m.Called(ctx, runID, results).Error(0)
}

func (m *mockRunRepository) ListPathResults(ctx context.Context, runID string) ([]domain.PathResult, error) {
	args := m.Called(ctx, runID)
	results, _ := args.Get(0).([]domain.PathResult)
	return results, args.Error(1)
}

func (m *mockRunRepository) SaveSamples(ctx context.Context, runID string, samples []*domain.Path) error {
	return m.Called(ctx, runID, samples).Error(0)
}

func (m *mockRunRepository) ListSamples(ctx context.Context, runID string) ([]*domain.Path, error) {
	args := m.Called(ctx, runID)
	samples, _ := args.Get(0).([]*domain.Path)
	return samples, args.Error(1)
}

type mockReadRepository struct {
	mock.Mock
}

func (m *mockReadRepository) Save(ctx context.Context, run *domain.SimulationRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockReadRepository) Get(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	args := m.Called(ctx, runID)
	run, _ := args.Get(0).(*domain.SimulationRun)
	return run, args.Error(1)
}

func (m *mockReadRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.SimulationRun, error) {
	args := m.Called(ctx, fingerprint)
	run, _ := args.Get(0).(*domain.SimulationRun)
	return run, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, eventType, key string, event any) error {
	return m.Called(ctx, eventType, key, event).Error(0)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) WriteCSV(w io.Writer, results []domain.PathResult) error {
	return m.Called(w, results).Error(0)
}

func (m *mockExporter) WriteExcel(w io.Writer, run *domain.SimulationRun, results []domain.PathResult, samples []*domain.Path) error {
	return m.Called(w, run, results, samples).Error(0)
}
