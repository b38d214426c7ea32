package domain

import "math"

// IRR 求根区间与迭代控制
const (
	IRRLowerBound = -0.99
	IRRUpperBound = 10.0
	irrMaxIter    = 200
	irrTolerance  = 1e-12
)

// IRRUndefined 区间内无根时的 IRR 取值，配合 IRRDefined=false 使用
var IRRUndefined = math.NaN()

// NPV 按贴现因子折现：Σ CF[t]·DF[t]
func NPV(cashflows, discount []float64) float64 {
	var npv float64
	for t, cf := range cashflows {
		npv += cf * discount[t]
	}
	return npv
}

// presentValue 返回 Σ CF/(1+r)^t 及其对 r 的导数
func presentValue(cashflows, times []float64, r float64) (float64, float64) {
	var pv, dpv float64
	base := 1 + r
	for i, cf := range cashflows {
		if cf == 0 {
			continue
		}
		d := math.Pow(base, -times[i])
		pv += cf * d
		dpv -= times[i] * cf * d / base
	}
	return pv, dpv
}

// IRR 求解 Σ CF[i]/(1+r)^times[i] = 0，times 以年为单位。
// 在 [IRRLowerBound, IRRUpperBound] 上用带区间保护的牛顿法：
// 牛顿步越出当前区间或导数为零时退化为二分。端点同号时返回 (IRRUndefined, false)。
func IRR(cashflows, times []float64) (float64, bool) {
	lo, hi := IRRLowerBound, IRRUpperBound
	fLo, _ := presentValue(cashflows, times, lo)
	fHi, _ := presentValue(cashflows, times, hi)

	switch {
	case math.IsNaN(fLo) || math.IsNaN(fHi):
		return IRRUndefined, false
	case fLo == 0:
		return lo, true
	case fHi == 0:
		return hi, true
	case math.Signbit(fLo) == math.Signbit(fHi):
		return IRRUndefined, false
	}

	r := 0.1
	for i := 0; i < irrMaxIter; i++ {
		f, df := presentValue(cashflows, times, r)
		if f == 0 {
			return r, true
		}
		if math.Signbit(f) == math.Signbit(fLo) {
			lo, fLo = r, f
		} else {
			hi = r
		}

		next := r - f/df
		if df == 0 || math.IsNaN(next) || next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		if math.Abs(next-r) <= irrTolerance*(1+math.Abs(r)) {
			return next, true
		}
		r = next
	}
	return r, true
}

// TimeAxis 各步对应的时间（年）：t·Δt
func TimeAxis(steps int, dt float64) []float64 {
	times := make([]float64, steps+1)
	for t := range times {
		times[t] = float64(t) * dt
	}
	return times
}
