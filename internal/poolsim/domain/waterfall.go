package domain

import "math/rand/v2"

// CashFlowSeries 一条路径的现金流，所有切片长度为 steps+1，下标 0 为起点
type CashFlowSeries struct {
	Coupon    []float64 `json:"coupon"`
	Principal []float64 `json:"principal"`
	Recovery  []float64 `json:"recovery"`
	// 资金池合计 = 利息 + 本金 + 违约回收
	Pool []float64 `json:"pool"`
	// 单个投资者：0 时刻为出资（负数），之后为资金池按人数均分
	Investor []float64 `json:"investor"`
}

// Waterfall 把每个项目的还款、违约与回收汇总成资金池现金流并按投资者平分
type Waterfall struct {
	schedule   Schedule
	model      DefaultModel
	coupon     float64
	dt         float64
	steps      int
	investors  int
	investment float64
	principal  float64
}

// NewWaterfall 从模拟参数构造现金流瀑布
func NewWaterfall(cfg *SimulationConfig) Waterfall {
	return Waterfall{
		schedule:   ScheduleFrom(cfg),
		model:      DefaultModelFrom(cfg),
		coupon:     cfg.LoanCoupon,
		dt:         cfg.Dt(),
		steps:      cfg.StepCount(),
		investors:  cfg.NumInvestors,
		investment: cfg.InvestmentPerInvestor(),
		principal:  cfg.LoanPerProject(),
	}
}

// Run 逐步推进所有项目的贷款状态。每一步对仍在履约的项目：
// 先以期初余额和本步抵押品价值做违约抽样；违约则只产生回收现金流，
// 否则收取期初余额的利息并按计划还本。最后一步返还全部剩余余额。
func (w Waterfall) Run(collateral [][]float64, defaults []*rand.Rand) ([]LoanState, CashFlowSeries) {
	loans := make([]LoanState, len(collateral))
	for i := range loans {
		loans[i] = NewLoanState(w.principal)
	}

	cf := CashFlowSeries{
		Coupon:    make([]float64, w.steps+1),
		Principal: make([]float64, w.steps+1),
		Recovery:  make([]float64, w.steps+1),
		Pool:      make([]float64, w.steps+1),
		Investor:  make([]float64, w.steps+1),
	}

	for t := 1; t <= w.steps; t++ {
		for i := range loans {
			loan := &loans[i]
			if !loan.Performing() || loan.Balance <= 0 {
				continue
			}
			if defaulted, recovery := w.model.Evaluate(loan, collateral[i][t], defaults[i]); defaulted {
				// Evaluate 只对履约项目返回 true，Default 不会失败
				_ = loan.Default(t, recovery)
				cf.Recovery[t] += recovery
				continue
			}

			opening := loan.Balance
			cf.Coupon[t] += opening * w.coupon * w.dt
			due := w.schedule.PrincipalDue(t, opening)
			if t == w.steps {
				due = opening
			}
			cf.Principal[t] += loan.Repay(due)
		}
		cf.Pool[t] = cf.Coupon[t] + cf.Principal[t] + cf.Recovery[t]
	}

	cf.Investor[0] = -w.investment
	for t := 1; t <= w.steps; t++ {
		cf.Investor[t] = cf.Pool[t] / float64(w.investors)
	}
	return loans, cf
}
