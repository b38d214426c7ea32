package domain

import (
	"fmt"
	"math"
	"slices"

	"github.com/montanaflynn/stats"
)

// Distribution 一组样本的描述统计
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P5     float64 `json:"p5"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

// Bucket IRR 区间概率，区间左闭右开
type Bucket struct {
	Label       string  `json:"label"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	Count       int     `json:"count"`
	Probability float64 `json:"probability"`
}

// IRRBucketEdges 看板使用的 IRR 分档：<10%、10-14%、14-16%、>=16%
var IRRBucketEdges = []float64{0.10, 0.14, 0.16}

// Summary 结果集的汇总统计
type Summary struct {
	Requested    int          `json:"requested"`
	Paths        int          `json:"paths"`
	Failed       int          `json:"failed"`
	Complete     bool         `json:"complete"`
	IRR          Distribution `json:"irr"`
	IRRUndefined int          `json:"irr_undefined"`
	IRRBuckets   []Bucket     `json:"irr_buckets"`
	NPV          Distribution `json:"npv"`
	// NPV < 0 的路径比例
	ProbLoss float64 `json:"prob_loss"`
	// 所有 (路径, 项目) 中违约的比例
	DefaultRate float64 `json:"default_rate"`
	// 单个投资者每一步的期望现金流及其标准差
	ExpectedCashFlow []float64 `json:"expected_cash_flow"`
	CashFlowStd      []float64 `json:"cash_flow_std"`
}

// Describe 计算描述统计，空样本返回零值。标准差为总体标准差
func Describe(values []float64) Distribution {
	d := Distribution{Count: len(values)}
	if len(values) == 0 {
		return d
	}
	data := stats.Float64Data(values)
	d.Mean, _ = stats.Mean(data)
	d.Median, _ = stats.Median(data)
	d.Min, _ = stats.Min(data)
	d.Max, _ = stats.Max(data)
	d.Std, _ = stats.StandardDeviationPopulation(data)

	sorted := slices.Sorted(slices.Values(values))
	d.P5 = percentile(sorted, 5)
	d.P25 = percentile(sorted, 25)
	d.P50 = percentile(sorted, 50)
	d.P75 = percentile(sorted, 75)
	d.P95 = percentile(sorted, 95)
	return d
}

// percentile 对已排序样本在相邻两点之间线性插值，位置为 (n-1)·pct/100
func percentile(sorted []float64, pct float64) float64 {
	h := float64(len(sorted)-1) * pct / 100
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// IRRBuckets 按 edges 分档统计有解 IRR 的概率
func IRRBuckets(irrs []float64, edges []float64) []Bucket {
	buckets := make([]Bucket, len(edges)+1)
	for i := range buckets {
		lower, upper := math.Inf(-1), math.Inf(1)
		if i > 0 {
			lower = edges[i-1]
		}
		if i < len(edges) {
			upper = edges[i]
		}
		buckets[i] = Bucket{Label: bucketLabel(lower, upper), Lower: lower, Upper: upper}
	}
	for _, r := range irrs {
		i := 0
		for i < len(edges) && r >= edges[i] {
			i++
		}
		buckets[i].Count++
	}
	for i := range buckets {
		if len(irrs) > 0 {
			buckets[i].Probability = float64(buckets[i].Count) / float64(len(irrs))
		}
		// JSON 不支持无穷大
		if math.IsInf(buckets[i].Lower, 0) {
			buckets[i].Lower = IRRLowerBound
		}
		if math.IsInf(buckets[i].Upper, 0) {
			buckets[i].Upper = IRRUpperBound
		}
	}
	return buckets
}

func bucketLabel(lower, upper float64) string {
	pct := func(x float64) string { return fmt.Sprintf("%.0f%%", x*100) }
	switch {
	case math.IsInf(lower, -1):
		return "<" + pct(upper)
	case math.IsInf(upper, 1):
		return ">=" + pct(lower)
	default:
		return pct(lower) + "-" + pct(upper)
	}
}

// Summarize 汇总结果集
func Summarize(rs *ResultSet) Summary {
	irrs := rs.DefinedIRRs()
	npvs := rs.NPVs()

	s := Summary{
		Requested:    rs.Requested,
		Paths:        rs.Len(),
		Failed:       len(rs.Failures),
		Complete:     rs.Complete,
		IRR:          Describe(irrs),
		IRRUndefined: rs.UndefinedIRRCount(),
		IRRBuckets:   IRRBuckets(irrs, IRRBucketEdges),
		NPV:          Describe(npvs),
		DefaultRate:  rs.DefaultRate(),
	}

	if len(npvs) > 0 {
		losses := 0
		for _, v := range npvs {
			if v < 0 {
				losses++
			}
		}
		s.ProbLoss = float64(losses) / float64(len(npvs))
	}

	steps := rs.Config.StepCount()
	s.ExpectedCashFlow = make([]float64, steps+1)
	s.CashFlowStd = make([]float64, steps+1)
	if rs.Len() == 0 {
		return s
	}
	column := make([]float64, rs.Len())
	for t := 0; t <= steps; t++ {
		for i := range rs.Results {
			column[i] = rs.Results[i].InvestorCashFlows[t]
		}
		d := Describe(column)
		s.ExpectedCashFlow[t] = d.Mean
		s.CashFlowStd[t] = d.Std
	}
	return s
}

// HistogramBin 直方图的一个区间
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
	// 累计分布（含本区间）
	Cumulative float64 `json:"cumulative"`
}

// Histogram 等宽直方图与经验累计分布，NaN 被忽略
func Histogram(values []float64, bins int) []HistogramBin {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 || bins <= 0 {
		return nil
	}
	lo, _ := stats.Min(clean)
	hi, _ := stats.Max(clean)
	width := (hi - lo) / float64(bins)

	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	for _, v := range clean {
		i := bins - 1
		if width > 0 {
			i = min(int((v-lo)/width), bins-1)
		}
		out[i].Count++
	}
	cum := 0
	for i := range out {
		cum += out[i].Count
		out[i].Cumulative = float64(cum) / float64(len(clean))
	}
	return out
}
