package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationRunLifecycle(t *testing.T) {
	cfg := testConfig(20)
	run, err := NewSimulationRun("", cfg)
	require.NoError(t, err)
	assert.Equal(t, ScenarioBase, run.Scenario)
	assert.Equal(t, RunStatusPending, run.Status)
	assert.Len(t, run.Fingerprint, 64)
	assert.NotEmpty(t, run.RunID)
	assert.Zero(t, run.Duration())

	assert.ErrorIs(t, run.Finish(&ResultSet{}), ErrInvalidRunTransition)

	require.NoError(t, run.Start())
	assert.ErrorIs(t, run.Start(), ErrInvalidRunTransition)

	rs := runEngine(t, cfg)
	require.NoError(t, run.Finish(rs))
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.True(t, run.Status.Terminal())
	assert.Equal(t, 20, run.CompletedPaths)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 20, run.Summary.Paths)
	assert.NotNil(t, run.FinishedAt)

	eventType, ev := NewRunFinishedEvent(run)
	assert.Equal(t, RunCompletedEventType, eventType)
	assert.Equal(t, run.RunID, ev.RunID)
	assert.Equal(t, "COMPLETED", ev.Status)
	assert.Equal(t, run.Summary.IRR.Mean, ev.MeanIRR)
}

func TestSimulationRunPartialAndFailed(t *testing.T) {
	run, err := NewSimulationRun("RE_CRASH", testConfig(20))
	require.NoError(t, err)
	require.NoError(t, run.Start())
	require.NoError(t, run.Finish(&ResultSet{Config: run.Config, Requested: 20}))
	assert.Equal(t, RunStatusPartial, run.Status)

	eventType, _ := NewRunFinishedEvent(run)
	assert.Equal(t, RunCancelledEventType, eventType)

	failed, err := NewSimulationRun("BASE", testConfig(20))
	require.NoError(t, err)
	failed.Fail(errors.New("boom"))
	assert.Equal(t, RunStatusFailed, failed.Status)
	assert.Equal(t, "boom", NewRunFailedEvent(failed).Error)
	assert.False(t, RunStatusRunning.Terminal())
}

func TestFingerprintStable(t *testing.T) {
	a, err := Fingerprint(DefaultSimulationConfig())
	require.NoError(t, err)
	b, err := Fingerprint(DefaultSimulationConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Fingerprint(DefaultSimulationConfig().With(func(c *SimulationConfig) { c.Seed = 1 }))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	run, err := NewSimulationRun("BASE", DefaultSimulationConfig())
	require.NoError(t, err)
	started := NewRunStartedEvent(run)
	assert.Equal(t, a, started.Fingerprint)
	assert.Equal(t, uint64(42), started.Seed)
}
