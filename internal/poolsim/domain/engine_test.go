package domain

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(paths int) SimulationConfig {
	return DefaultSimulationConfig().With(func(c *SimulationConfig) {
		c.NumPaths = paths
		c.SampleSize = 5
	})
}

func runEngine(t *testing.T, cfg SimulationConfig, opts ...EngineOption) *ResultSet {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	require.NoError(t, err)
	rs, err := e.Run(context.Background())
	require.NoError(t, err)
	return rs
}

func bits(xs []float64) []uint64 {
	out := make([]uint64, len(xs))
	for i, x := range xs {
		out[i] = math.Float64bits(x)
	}
	return out
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	_, err := NewEngine(testConfig(0))
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	cfg := testConfig(300).With(func(c *SimulationConfig) { c.StepsPerYear = 4 })

	serial := runEngine(t, cfg, WithWorkers(1))
	parallel := runEngine(t, cfg, WithWorkers(8))
	again := runEngine(t, cfg, WithWorkers(3))

	for _, other := range []*ResultSet{parallel, again} {
		require.Equal(t, serial.Len(), other.Len())
		assert.Equal(t, bits(serial.IRRs()), bits(other.IRRs()))
		assert.Equal(t, bits(serial.NPVs()), bits(other.NPVs()))
		assert.Equal(t, serial.DefaultMatrix(), other.DefaultMatrix())
		for i := range serial.Samples {
			assert.Equal(t, serial.Samples[i].Collateral, other.Samples[i].Collateral)
		}
	}

	for i, r := range serial.Results {
		assert.Equal(t, i, r.PathID)
	}
	assert.True(t, serial.Complete)
	assert.Equal(t, 300, serial.Requested)
}

func TestSeedChangesResults(t *testing.T) {
	a := runEngine(t, testConfig(50))
	b := runEngine(t, testConfig(50).With(func(c *SimulationConfig) { c.Seed = 7 }))
	assert.NotEqual(t, bits(a.NPVs()), bits(b.NPVs()))
}

func TestCollateralAndDiscountFactorsPositive(t *testing.T) {
	cfg := testConfig(200).With(func(c *SimulationConfig) {
		c.StepsPerYear = 12
		c.CollateralVol = 0.4
		c.ForwardRateVol = 0.5
		c.ForwardRateFloor = 0
	})
	streams := NewStreamFactory(cfg.Seed)
	for id := 0; id < cfg.NumPaths; id++ {
		p := SimulatePath(&cfg, streams, id)
		for i := 1; i < len(p.DiscountFactors); i++ {
			require.Greater(t, p.DiscountFactors[i], 0.0)
			require.LessOrEqual(t, p.DiscountFactors[i], p.DiscountFactors[i-1])
		}
		for _, series := range p.Collateral {
			for _, v := range series {
				require.Greater(t, v, 0.0)
			}
		}
	}
}

func TestNoAccrualAfterDefault(t *testing.T) {
	cfg := testConfig(300).With(func(c *SimulationConfig) {
		c.NumProjects = 1
		c.NumInvestors = 1
		c.BaseDefaultProb = 0.2
		c.Amortization = AmortizationLevelPrincipal
	})
	streams := NewStreamFactory(cfg.Seed)

	found := 0
	for id := 0; id < cfg.NumPaths; id++ {
		p := SimulatePath(&cfg, streams, id)
		loan := p.Loans[0]
		if loan.Status != StatusDefaulted {
			assert.Equal(t, NoDefault, loan.DefaultStep)
			assert.Zero(t, p.CashFlows.Recovery[len(p.CashFlows.Recovery)-1])
			continue
		}
		found++
		d := loan.DefaultStep
		assert.Equal(t, loan.Recovery, p.CashFlows.Recovery[d])
		for step := d; step < len(p.CashFlows.Pool); step++ {
			assert.Zero(t, p.CashFlows.Coupon[step], "coupon after default at step %d", step)
			assert.Zero(t, p.CashFlows.Principal[step], "principal after default at step %d", step)
			if step > d {
				assert.Zero(t, p.CashFlows.Recovery[step])
				assert.Zero(t, p.CashFlows.Pool[step])
			}
		}
		res := p.Result(cfg.Dt())
		assert.Equal(t, []bool{true}, res.Defaulted)
	}
	assert.Positive(t, found)
}

func TestCertainDefaultPaysOnlyRecovery(t *testing.T) {
	cfg := testConfig(10).With(func(c *SimulationConfig) {
		c.BaseDefaultProb = 1
		c.CollateralVol = 0
		c.CollateralDrift = 0
	})
	rs := runEngine(t, cfg)
	assert.Equal(t, 1.0, rs.DefaultRate())

	p := rs.Samples[0]
	recovery := cfg.InitialCollateralPerProject * (cfg.RecoveryRate - cfg.LiquidationCostRate)
	assert.InDelta(t, recovery*float64(cfg.NumProjects), p.CashFlows.Pool[1], 1e-6)
	for _, v := range p.CashFlows.Pool[2:] {
		assert.Zero(t, v)
	}
}

func TestDegenerateVolatilityGivesCouponIRR(t *testing.T) {
	cfg := testConfig(64).With(func(c *SimulationConfig) {
		c.ForwardRateVol = 0
		c.CollateralVol = 0
		c.BaseDefaultProb = 0
	})
	rs := runEngine(t, cfg, WithWorkers(4))
	require.Equal(t, 64, rs.Len())

	first := rs.Results[0]
	require.True(t, first.IRRDefined)
	assert.InDelta(t, 0.12, first.IRR, 1e-9)
	for _, r := range rs.Results {
		assert.Equal(t, first.IRR, r.IRR)
		assert.Equal(t, first.NPV, r.NPV)
	}
	assert.Zero(t, rs.DefaultRate())
}

func TestDegenerateVolatilityQuarterlySteps(t *testing.T) {
	cfg := testConfig(8).With(func(c *SimulationConfig) {
		c.StepsPerYear = 4
		c.ForwardRateVol = 0
		c.CollateralVol = 0
		c.BaseDefaultProb = 0
	})
	rs := runEngine(t, cfg)
	// 季度付息 3% 的年化 IRR
	assert.InDelta(t, math.Pow(1.03, 4)-1, rs.Results[0].IRR, 1e-9)
}

func TestHigherCollateralVolIncreasesIRRVariance(t *testing.T) {
	low := runEngine(t, testConfig(1000))
	high := runEngine(t, testConfig(1000).With(func(c *SimulationConfig) { c.CollateralVol = 0.30 }))

	lowVar, err := stats.VarianceSample(low.DefinedIRRs())
	require.NoError(t, err)
	highVar, err := stats.VarianceSample(high.DefinedIRRs())
	require.NoError(t, err)
	assert.Greater(t, highVar, lowVar)
}

func TestRecoveryWithinCollateralValue(t *testing.T) {
	cfg := testConfig(400).With(func(c *SimulationConfig) {
		c.BaseDefaultProb = 0.15
		c.CollateralVol = 0.35
		c.SampleSize = 400
	})
	rs := runEngine(t, cfg)

	events := 0
	for _, p := range rs.Samples {
		for i, loan := range p.Loans {
			if loan.Status != StatusDefaulted {
				continue
			}
			events++
			s := p.Collateral[i][loan.DefaultStep]
			assert.GreaterOrEqual(t, loan.Recovery, 0.0)
			assert.LessOrEqual(t, loan.Recovery, s)
		}
	}
	assert.Positive(t, events)
}

func TestSamplesAreFirstPaths(t *testing.T) {
	rs := runEngine(t, testConfig(40), WithWorkers(6))
	require.Len(t, rs.Samples, 5)
	for i, p := range rs.Samples {
		assert.Equal(t, i, p.PathID)
	}
}

func TestRunCancellationReturnsPartialResults(t *testing.T) {
	cfg := testConfig(5000)
	full := runEngine(t, testConfig(200), WithWorkers(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, err := NewEngine(cfg, WithWorkers(2), WithProgress(func(done, _ int) {
		if done == 10 {
			cancel()
		}
	}))
	require.NoError(t, err)

	rs, err := e.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, rs)
	assert.False(t, rs.Complete)
	assert.GreaterOrEqual(t, rs.Len(), 10)
	assert.Less(t, rs.Len(), cfg.NumPaths)

	// 已合并的路径与完整运行一致
	for _, r := range rs.Results {
		if r.PathID < full.Len() {
			assert.Equal(t, math.Float64bits(full.Results[r.PathID].NPV), math.Float64bits(r.NPV))
		}
	}
}

func TestRunIsolatesPanickingPath(t *testing.T) {
	cfg := testConfig(30)
	e, err := NewEngine(cfg, WithWorkers(4))
	require.NoError(t, err)
	simulate := e.simulate
	e.simulate = func(id int) *Path {
		if id == 3 {
			panic("corrupt state")
		}
		return simulate(id)
	}

	rs, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rs.Complete)
	assert.Equal(t, 30, rs.Requested)
	assert.Equal(t, 29, rs.Len())
	require.Len(t, rs.Failures, 1)
	assert.Equal(t, PathFailure{PathID: 3, Reason: "corrupt state"}, rs.Failures[0])

	baseline := runEngine(t, cfg)
	for _, r := range rs.Results {
		assert.Equal(t, baseline.Results[r.PathID].NPV, r.NPV)
	}
	for _, p := range rs.Samples {
		assert.NotEqual(t, 3, p.PathID)
	}

	// 缺少路径的结果集只能作为部分结果保存，不能进入指纹缓存
	run, err := NewSimulationRun(ScenarioBase, cfg)
	require.NoError(t, err)
	require.NoError(t, run.Start())
	require.NoError(t, run.Finish(rs))
	assert.Equal(t, RunStatusPartial, run.Status)
	assert.Equal(t, 1, run.FailedPaths)
	assert.False(t, run.Summary.Complete)
	eventType, _ := NewRunFinishedEvent(run)
	assert.Equal(t, RunPartialEventType, eventType)
}

func TestSamplePathJSONRoundTrip(t *testing.T) {
	rs := runEngine(t, testConfig(5))
	require.NotEmpty(t, rs.Samples)
	p := rs.Samples[0]

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"`)

	var back Path
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *p, back)

	var s ProjectStatus
	assert.Error(t, s.UnmarshalText([]byte("restructured")))
}
