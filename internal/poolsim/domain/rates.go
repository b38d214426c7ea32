package domain

import (
	"math"
	"math/rand/v2"
)

// RateParams 远期利率过程参数
type RateParams struct {
	Initial float64
	Drift   float64
	Vol     float64
	Floor   float64
}

// RateParamsFrom 从模拟参数提取利率过程参数
func RateParamsFrom(cfg *SimulationConfig) RateParams {
	return RateParams{
		Initial: cfg.InitialForwardRate,
		Drift:   cfg.ForwardRateDrift,
		Vol:     cfg.ForwardRateVol,
		Floor:   cfg.ForwardRateFloor,
	}
}

// SimulateForwardRates 生成单因子对数正态远期利率路径及离散复利贴现因子，
// 两个序列长度均为 steps+1，下标 0 为起点。
//
//	f[t+1] = f[t] * exp((μ - σ²/2)Δt + σ√Δt·Z)
//	DF[0] = 1, DF[t+1] = DF[t] / (1 + f[t]Δt)
func SimulateForwardRates(p RateParams, steps int, dt float64, rng *rand.Rand) (rates, discount []float64) {
	rates = make([]float64, steps+1)
	discount = make([]float64, steps+1)
	rates[0] = math.Max(p.Initial, p.Floor)
	discount[0] = 1

	drift := (p.Drift - 0.5*p.Vol*p.Vol) * dt
	diffusion := p.Vol * math.Sqrt(dt)
	for t := 0; t < steps; t++ {
		z := rng.NormFloat64()
		next := rates[t] * math.Exp(drift+diffusion*z)
		if p.Floor > 0 && next < p.Floor {
			next = p.Floor
		}
		rates[t+1] = next
		discount[t+1] = discount[t] / (1 + rates[t]*dt)
	}
	return rates, discount
}
