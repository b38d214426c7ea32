package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	d := Describe([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, 5, d.Count)
	assert.Equal(t, 3.0, d.Mean)
	assert.Equal(t, 3.0, d.Median)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 5.0, d.Max)
	assert.InDelta(t, math.Sqrt(2), d.Std, 1e-12)
	assert.InDelta(t, 1.2, d.P5, 1e-12)
	assert.Equal(t, 2.0, d.P25)
	assert.Equal(t, 3.0, d.P50)
	assert.Equal(t, 4.0, d.P75)
	assert.InDelta(t, 4.8, d.P95, 1e-12)

	// 非均匀间隔时在相邻两点之间插值
	skewed := Describe([]float64{10, 0, 1, 3})
	assert.InDelta(t, 0.75, skewed.P25, 1e-12)
	assert.InDelta(t, 2.0, skewed.P50, 1e-12)
	assert.InDelta(t, 8.95, skewed.P95, 1e-12)

	single := Describe([]float64{7})
	assert.Zero(t, single.Std)
	assert.Equal(t, 7.0, single.P50)

	assert.Equal(t, Distribution{}, Describe(nil))
}

func TestIRRBuckets(t *testing.T) {
	buckets := IRRBuckets([]float64{0.05, 0.10, 0.12, 0.15, 0.16, 0.30, -0.2, 0.139}, IRRBucketEdges)
	require.Len(t, buckets, 4)

	labels := []string{"<10%", "10%-14%", "14%-16%", ">=16%"}
	counts := []int{2, 3, 1, 2}
	for i, b := range buckets {
		assert.Equal(t, labels[i], b.Label)
		assert.Equal(t, counts[i], b.Count)
		assert.InDelta(t, float64(counts[i])/8, b.Probability, 1e-12)
	}
	assert.Equal(t, IRRLowerBound, buckets[0].Lower)
	assert.Equal(t, IRRUpperBound, buckets[3].Upper)

	empty := IRRBuckets(nil, IRRBucketEdges)
	for _, b := range empty {
		assert.Zero(t, b.Probability)
	}
}

func TestSummarizeDegenerateRun(t *testing.T) {
	cfg := testConfig(20).With(func(c *SimulationConfig) {
		c.ForwardRateVol = 0
		c.CollateralVol = 0
		c.BaseDefaultProb = 0
	})
	rs := runEngine(t, cfg)
	s := Summarize(rs)

	assert.Equal(t, 20, s.Requested)
	assert.Equal(t, 20, s.Paths)
	assert.True(t, s.Complete)
	assert.Zero(t, s.IRRUndefined)
	assert.InDelta(t, 0.12, s.IRR.Mean, 1e-9)
	assert.InDelta(t, 0, s.IRR.Std, 1e-12)
	assert.Zero(t, s.DefaultRate)
	// 远期利率 8% 低于票息 12%，投资者不会亏损
	assert.Zero(t, s.ProbLoss)
	assert.Equal(t, 1.0, s.IRRBuckets[1].Probability)

	require.Len(t, s.ExpectedCashFlow, 11)
	assert.Equal(t, -cfg.InvestmentPerInvestor(), s.ExpectedCashFlow[0])
	assert.InDelta(t, 1.2e6, s.ExpectedCashFlow[1], 1e-6)
	assert.InDelta(t, 1.12e7, s.ExpectedCashFlow[10], 1e-6)
	assert.InDelta(t, 0, s.CashFlowStd[5], 1e-9)

	_, err := json.Marshal(s)
	assert.NoError(t, err)
}

func TestSummarizeExcludesUndefinedIRR(t *testing.T) {
	rs := &ResultSet{
		Config:    testConfig(3).With(func(c *SimulationConfig) { c.HorizonYears = 1; c.LoanMaturityYears = 1 }),
		Requested: 3,
		Complete:  true,
		Results: []PathResult{
			{PathID: 0, IRR: 0.1, IRRDefined: true, NPV: 5, Defaulted: []bool{false, true}, InvestorCashFlows: []float64{-1, 1.1}},
			{PathID: 1, IRR: IRRUndefined, NPV: -10, Defaulted: []bool{true, true}, InvestorCashFlows: []float64{-1, 0}},
			{PathID: 2, IRR: 0.2, IRRDefined: true, NPV: 8, Defaulted: []bool{false, false}, InvestorCashFlows: []float64{-1, 1.2}},
		},
	}
	s := Summarize(rs)
	assert.Equal(t, 1, s.IRRUndefined)
	assert.Equal(t, 2, s.IRR.Count)
	assert.InDelta(t, 0.15, s.IRR.Mean, 1e-12)
	assert.InDelta(t, 1.0/3, s.ProbLoss, 1e-12)
	assert.InDelta(t, 0.5, s.DefaultRate, 1e-12)
	assert.InDelta(t, 0.7666666666666667, s.ExpectedCashFlow[1], 1e-12)
}

func TestSummarizeEmptyResultSet(t *testing.T) {
	s := Summarize(&ResultSet{Config: testConfig(10), Requested: 10})
	assert.Zero(t, s.Paths)
	assert.Zero(t, s.ProbLoss)
	assert.Len(t, s.ExpectedCashFlow, 11)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 1, 2, 3, math.NaN(), 4}, 4)
	require.Len(t, bins, 4)
	assert.Equal(t, []int{1, 1, 1, 2}, []int{bins[0].Count, bins[1].Count, bins[2].Count, bins[3].Count})
	assert.Equal(t, 0.0, bins[0].Lower)
	assert.Equal(t, 4.0, bins[3].Upper)
	assert.Equal(t, 1.0, bins[3].Cumulative)
	assert.InDelta(t, 0.4, bins[1].Cumulative, 1e-12)

	flat := Histogram([]float64{2, 2, 2}, 3)
	assert.Equal(t, 3, flat[2].Count)

	assert.Nil(t, Histogram([]float64{math.NaN()}, 5))
	assert.Nil(t, Histogram([]float64{1}, 0))
}

func TestPathResultMarshalUndefinedIRR(t *testing.T) {
	data, err := json.Marshal(PathResult{PathID: 4, IRR: IRRUndefined, NPV: -1})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"irr":null`)

	data, err = json.Marshal(PathResult{PathID: 4, IRR: 0.125, IRRDefined: true})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"irr":0.125`)

	var back PathResult
	require.NoError(t, json.Unmarshal([]byte(`{"path_id":2,"irr":null,"npv":-3.5,"defaulted":[true]}`), &back))
	assert.False(t, back.IRRDefined)
	assert.True(t, math.IsNaN(back.IRR))
	assert.Equal(t, []bool{true}, back.Defaulted)

	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.IRRDefined)
	assert.Equal(t, 0.125, back.IRR)
}
