package application

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
)

func TestGetRunPrefersCache(t *testing.T) {
	repo := new(mockRunRepository)
	readRepo := new(mockReadRepository)
	cached := &domain.SimulationRun{RunID: "r-1", Status: domain.RunStatusCompleted}
	readRepo.On("Get", mock.Anything, "r-1").Return(cached, nil)

	svc := NewPoolSimQueryService(repo, readRepo, nil)
	dto, err := svc.GetRun(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", dto.RunID)
	assert.True(t, dto.Complete)
	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestGetRunCachesTerminalRunsOnly(t *testing.T) {
	repo := new(mockRunRepository)
	readRepo := new(mockReadRepository)
	readRepo.On("Get", mock.Anything, mock.Anything).Return(nil, domain.ErrRunNotFound)

	done := &domain.SimulationRun{RunID: "done", Status: domain.RunStatusPartial}
	running := &domain.SimulationRun{RunID: "running", Status: domain.RunStatusRunning}
	repo.On("Get", mock.Anything, "done").Return(done, nil)
	repo.On("Get", mock.Anything, "running").Return(running, nil)
	repo.On("Get", mock.Anything, "missing").Return(nil, domain.ErrRunNotFound)
	readRepo.On("Save", mock.Anything, done).Return(nil).Once()

	svc := NewPoolSimQueryService(repo, readRepo, nil)
	dto, err := svc.GetRun(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL", dto.Status)
	assert.False(t, dto.Complete)

	_, err = svc.GetRun(context.Background(), "running")
	require.NoError(t, err)

	_, err = svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	readRepo.AssertExpectations(t)
}

func TestListRunsPagination(t *testing.T) {
	repo := new(mockRunRepository)
	runs := []*domain.SimulationRun{{RunID: "a"}, {RunID: "b"}}
	repo.On("List", mock.Anything, 20, 10).Return(runs, int64(45), nil)

	svc := NewPoolSimQueryService(repo, nil, nil)
	out, err := svc.ListRuns(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, int64(45), out.Total)
	assert.Equal(t, 3, out.Page)
	assert.Equal(t, int64(5), out.TotalPages)
}

func TestExportCSVAndExcel(t *testing.T) {
	repo := new(mockRunRepository)
	exporter := new(mockExporter)
	run := &domain.SimulationRun{RunID: "r-1", Status: domain.RunStatusCompleted}
	results := []domain.PathResult{{PathID: 0, IRR: 0.1, IRRDefined: true, NPV: 12.5}}

	repo.On("Get", mock.Anything, "r-1").Return(run, nil)
	samples := []*domain.Path{{PathID: 0, ForwardRates: []float64{0.08, 0.09}}}
	repo.On("ListPathResults", mock.Anything, "r-1").Return(results, nil)
	repo.On("ListSamples", mock.Anything, "r-1").Return(samples, nil)
	exporter.On("WriteCSV", mock.Anything, results).Return(nil)
	exporter.On("WriteExcel", mock.Anything, run, results, samples).Return(nil)

	svc := NewPoolSimQueryService(repo, nil, exporter)
	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(context.Background(), "r-1", &buf))
	require.NoError(t, svc.ExportExcel(context.Background(), "r-1", &buf))
	exporter.AssertExpectations(t)

	repo.On("Get", mock.Anything, "nope").Return(nil, domain.ErrRunNotFound)
	assert.ErrorIs(t, svc.ExportCSV(context.Background(), "nope", &buf), domain.ErrRunNotFound)
}

func TestGetSamples(t *testing.T) {
	repo := new(mockRunRepository)
	samples := []*domain.Path{{PathID: 0}, {PathID: 1}}
	repo.On("Get", mock.Anything, "r-1").Return(&domain.SimulationRun{RunID: "r-1", Status: domain.RunStatusCompleted}, nil)
	repo.On("Get", mock.Anything, "nope").Return(nil, domain.ErrRunNotFound)
	repo.On("ListSamples", mock.Anything, "r-1").Return(samples, nil)

	svc := NewPoolSimQueryService(repo, nil, nil)
	out, err := svc.GetSamples(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", out.RunID)
	assert.Equal(t, samples, out.Items)

	_, err = svc.GetSamples(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	repo.AssertNotCalled(t, "ListSamples", mock.Anything, "nope")
}

func TestGetHistogram(t *testing.T) {
	repo := new(mockRunRepository)
	results := []domain.PathResult{
		{PathID: 0, IRR: 0.05, IRRDefined: true, NPV: -10},
		{PathID: 1, IRR: domain.IRRUndefined, NPV: -100},
		{PathID: 2, IRR: 0.06, IRRDefined: true, NPV: 20},
		{PathID: 3, IRR: 0.15, IRRDefined: true, NPV: 30},
	}
	repo.On("Get", mock.Anything, "r-1").Return(&domain.SimulationRun{RunID: "r-1", Status: domain.RunStatusCompleted}, nil)
	repo.On("ListPathResults", mock.Anything, "r-1").Return(results, nil)

	svc := NewPoolSimQueryService(repo, nil, nil)
	irr, err := svc.GetHistogram(context.Background(), "r-1", HistogramQuery{Bins: 2})
	require.NoError(t, err)
	assert.Equal(t, HistogramMetricIRR, irr.Metric)
	assert.Equal(t, 4, irr.Paths)
	assert.Equal(t, 1, irr.Excluded)
	require.Len(t, irr.Bins, 2)
	assert.Equal(t, 2, irr.Bins[0].Count)
	assert.Equal(t, 1, irr.Bins[1].Count)
	assert.InDelta(t, 0.05, irr.Bins[0].Lower, 1e-12)
	assert.InDelta(t, 0.15, irr.Bins[1].Upper, 1e-12)
	assert.InDelta(t, 1.0, irr.Bins[1].Cumulative, 1e-12)
	for _, b := range irr.Bins {
		assert.False(t, math.IsNaN(b.Lower))
	}

	npv, err := svc.GetHistogram(context.Background(), "r-1", HistogramQuery{Metric: HistogramMetricNPV})
	require.NoError(t, err)
	assert.Zero(t, npv.Excluded)
	assert.Len(t, npv.Bins, DefaultHistogramBins)

	for field, q := range map[string]HistogramQuery{
		"bins":   {Bins: MaxHistogramBins + 1},
		"metric": {Metric: "default_rate"},
	} {
		_, err := svc.GetHistogram(context.Background(), "r-1", q)
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr, field)
		assert.Equal(t, field, cfgErr.Fields[0].Field)
	}
}
