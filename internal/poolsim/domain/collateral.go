package domain

import (
	"math"
	"math/rand/v2"
)

// CollateralParams 抵押品价值过程参数
type CollateralParams struct {
	Initial             float64
	Drift               float64
	Vol                 float64
	SystemicWeight      float64
	IdiosyncraticWeight float64
}

// CollateralParamsFrom 从模拟参数提取抵押品过程参数
func CollateralParamsFrom(cfg *SimulationConfig) CollateralParams {
	return CollateralParams{
		Initial:             cfg.InitialCollateralPerProject,
		Drift:               cfg.CollateralDrift,
		Vol:                 cfg.CollateralVol,
		SystemicWeight:      cfg.SystemicWeight,
		IdiosyncraticWeight: cfg.IdiosyncraticWeight,
	}
}

// SimulateCollateral 生成每个项目的抵押品价值路径，返回 values[project][step]，step 取 0..steps。
// 系统性冲击 Z_sys 每步抽一次并由所有项目共享，特质冲击按项目各自的随机流抽取：
//
//	S[i][t+1] = S[i][t] * exp((μ - σ²/2)Δt + σ√Δt·(w_sys·Z_sys + w_idio·Z_i))
func SimulateCollateral(p CollateralParams, steps int, dt float64, systemic *rand.Rand, idio []*rand.Rand) [][]float64 {
	projects := len(idio)
	values := make([][]float64, projects)
	for i := range values {
		values[i] = make([]float64, steps+1)
		values[i][0] = p.Initial
	}

	drift := (p.Drift - 0.5*p.Vol*p.Vol) * dt
	diffusion := p.Vol * math.Sqrt(dt)
	for t := 0; t < steps; t++ {
		zSys := p.SystemicWeight * systemic.NormFloat64()
		for i := 0; i < projects; i++ {
			shock := zSys + p.IdiosyncraticWeight*idio[i].NormFloat64()
			values[i][t+1] = values[i][t] * math.Exp(drift+diffusion*shock)
		}
	}
	return values
}
