package domain

import (
	"encoding/json"
	"math/rand/v2"
)

// Path 一条模拟路径的完整序列，只属于模拟它的 worker
type Path struct {
	PathID          int            `json:"path_id"`
	ForwardRates    []float64      `json:"forward_rates"`
	DiscountFactors []float64      `json:"discount_factors"`
	Collateral      [][]float64    `json:"collateral"`
	Loans           []LoanState    `json:"loans"`
	CashFlows       CashFlowSeries `json:"cash_flows"`
}

// SimulatePath 模拟第 pathID 条路径，随机数只取决于 (seed, pathID, 用途)
func SimulatePath(cfg *SimulationConfig, streams StreamFactory, pathID int) *Path {
	steps := cfg.StepCount()
	dt := cfg.Dt()

	rates, discount := SimulateForwardRates(RateParamsFrom(cfg), steps, dt, streams.Stream(pathID, RoleRates, 0))

	idio := make([]*rand.Rand, cfg.NumProjects)
	defaults := make([]*rand.Rand, cfg.NumProjects)
	for i := range idio {
		idio[i] = streams.Stream(pathID, RoleIdiosyncratic, i)
		defaults[i] = streams.Stream(pathID, RoleDefault, i)
	}
	collateral := SimulateCollateral(CollateralParamsFrom(cfg), steps, dt, streams.Stream(pathID, RoleSystemic, 0), idio)

	loans, cf := NewWaterfall(cfg).Run(collateral, defaults)
	return &Path{
		PathID:          pathID,
		ForwardRates:    rates,
		DiscountFactors: discount,
		Collateral:      collateral,
		Loans:           loans,
		CashFlows:       cf,
	}
}

// Result 把路径归约为标量结果
func (p *Path) Result(dt float64) PathResult {
	investor := p.CashFlows.Investor
	irr, ok := IRR(investor, TimeAxis(len(investor)-1, dt))

	res := PathResult{
		PathID:            p.PathID,
		IRR:               irr,
		IRRDefined:        ok,
		NPV:               NPV(investor, p.DiscountFactors),
		Defaulted:         make([]bool, len(p.Loans)),
		DefaultStep:       make([]int, len(p.Loans)),
		Recoveries:        make([]float64, len(p.Loans)),
		InvestorCashFlows: append([]float64(nil), investor...),
	}
	for i, loan := range p.Loans {
		res.Defaulted[i] = loan.Status == StatusDefaulted
		res.DefaultStep[i] = loan.DefaultStep
		res.Recoveries[i] = loan.Recovery
	}
	return res
}

// PathResult 单条路径的结果，产生后不再修改
type PathResult struct {
	PathID     int
	IRR        float64
	IRRDefined bool
	NPV        float64
	// 按项目的违约标记、违约步（未违约为 NoDefault）与回收金额
	Defaulted         []bool
	DefaultStep       []int
	Recoveries        []float64
	InvestorCashFlows []float64
}

// DefaultCount 违约项目数
func (r *PathResult) DefaultCount() int {
	n := 0
	for _, d := range r.Defaulted {
		if d {
			n++
		}
	}
	return n
}

// MarshalJSON IRR 无解时输出 null
func (r PathResult) MarshalJSON() ([]byte, error) {
	var irr *float64
	if r.IRRDefined {
		irr = &r.IRR
	}
	return json.Marshal(pathResultJSON{r.PathID, irr, r.NPV, r.Defaulted, r.DefaultStep, r.Recoveries, r.InvestorCashFlows})
}

// UnmarshalJSON irr 为 null 时还原为 IRRUndefined
func (r *PathResult) UnmarshalJSON(data []byte) error {
	var raw pathResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = PathResult{
		PathID:            raw.PathID,
		IRR:               IRRUndefined,
		NPV:               raw.NPV,
		Defaulted:         raw.Defaulted,
		DefaultStep:       raw.DefaultStep,
		Recoveries:        raw.Recoveries,
		InvestorCashFlows: raw.InvestorCashFlows,
	}
	if raw.IRR != nil {
		r.IRR, r.IRRDefined = *raw.IRR, true
	}
	return nil
}

type pathResultJSON struct {
	PathID            int       `json:"path_id"`
	IRR               *float64  `json:"irr"`
	NPV               float64   `json:"npv"`
	Defaulted         []bool    `json:"defaulted"`
	DefaultStep       []int     `json:"default_step"`
	Recoveries        []float64 `json:"recoveries"`
	InvestorCashFlows []float64 `json:"investor_cash_flows"`
}

// PathFailure 单条路径内部出错（panic）的记录，不影响其他路径
type PathFailure struct {
	PathID int    `json:"path_id"`
	Reason string `json:"reason"`
}
