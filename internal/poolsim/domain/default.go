package domain

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ProjectStatus 项目贷款状态，Defaulted 为终态
type ProjectStatus uint8

const (
	StatusPerforming ProjectStatus = iota
	StatusDefaulted
)

func (s ProjectStatus) String() string {
	if s == StatusDefaulted {
		return "defaulted"
	}
	return "performing"
}

func (s ProjectStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ProjectStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "performing":
		*s = StatusPerforming
	case "defaulted":
		*s = StatusDefaulted
	default:
		return fmt.Errorf("unknown project status %q", text)
	}
	return nil
}

// ErrAlreadyDefaulted 对已违约项目再次触发违约
var ErrAlreadyDefaulted = errors.New("project already defaulted")

// NoDefault 未违约项目的 DefaultStep 取值
const NoDefault = -1

// LoanState 单个项目在一条路径上的贷款状态
type LoanState struct {
	Status      ProjectStatus `json:"status"`
	Balance     float64       `json:"balance"`
	DefaultStep int           `json:"default_step"`
	Recovery    float64       `json:"recovery"`
}

// NewLoanState 以本金创建正常履约的贷款
func NewLoanState(principal float64) LoanState {
	return LoanState{Status: StatusPerforming, Balance: principal, DefaultStep: NoDefault}
}

// Performing 是否仍在履约
func (s *LoanState) Performing() bool { return s.Status == StatusPerforming }

// Repay 偿还本金，返回实际偿还金额；违约后不再偿还
func (s *LoanState) Repay(amount float64) float64 {
	if !s.Performing() || amount <= 0 {
		return 0
	}
	paid := math.Min(amount, s.Balance)
	s.Balance -= paid
	return paid
}

// Default 转入违约终态并记录回收金额，余额清零
func (s *LoanState) Default(step int, recovery float64) error {
	if !s.Performing() {
		return ErrAlreadyDefaulted
	}
	s.Status = StatusDefaulted
	s.DefaultStep = step
	s.Recovery = recovery
	s.Balance = 0
	return nil
}

// DefaultModel 覆盖率分档的违约模型
type DefaultModel struct {
	BaseProb            float64
	Threshold1          float64
	Threshold2          float64
	Mult1               float64
	Mult2               float64
	RecoveryRate        float64
	LiquidationCostRate float64
	Dt                  float64
}

// DefaultModelFrom 从模拟参数构造违约模型
func DefaultModelFrom(cfg *SimulationConfig) DefaultModel {
	return DefaultModel{
		BaseProb:            cfg.BaseDefaultProb,
		Threshold1:          cfg.DefaultThreshold1,
		Threshold2:          cfg.DefaultThreshold2,
		Mult1:               cfg.DefaultProbMult1,
		Mult2:               cfg.DefaultProbMult2,
		RecoveryRate:        cfg.RecoveryRate,
		LiquidationCostRate: cfg.LiquidationCostRate,
		Dt:                  cfg.Dt(),
	}
}

// AnnualProbability 按覆盖率（抵押品价值 / 贷款余额）选择年化违约概率
func (m DefaultModel) AnnualProbability(coverage float64) float64 {
	switch {
	case coverage >= m.Threshold1:
		return m.BaseProb
	case coverage >= m.Threshold2:
		return m.BaseProb * m.Mult1
	default:
		return m.BaseProb * m.Mult2
	}
}

// StepProbability 年化概率换算到单步：1 - (1 - p)^Δt，结果限制在 [0,1]
func (m DefaultModel) StepProbability(coverage float64) float64 {
	p := clamp01(m.AnnualProbability(coverage))
	return clamp01(1 - math.Pow(1-p, m.Dt))
}

// Recovery 违约回收：S·rr - S·lc，限制在 [0, S]
func (m DefaultModel) Recovery(collateral float64) float64 {
	net := collateral*m.RecoveryRate - collateral*m.LiquidationCostRate
	return math.Max(0, math.Min(net, collateral))
}

// Evaluate 对一个履约项目做一次违约抽样。余额为零的项目不抽样。
// 返回是否在本步违约以及回收金额。
func (m DefaultModel) Evaluate(state *LoanState, collateral float64, rng *rand.Rand) (bool, float64) {
	if !state.Performing() || state.Balance <= 0 {
		return false, 0
	}
	if rng.Float64() >= m.StepProbability(collateral/state.Balance) {
		return false, 0
	}
	return true, m.Recovery(collateral)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
