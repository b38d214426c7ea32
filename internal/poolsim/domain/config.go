// Package domain 房地产抵押贷款资金池蒙特卡洛模拟的领域模型：
// 随机流、远期利率、抵押品价值、违约状态机、现金流瀑布与投资者收益指标。
package domain

import (
	"fmt"
	"math"
	"strings"
)

// SimulationConfig 模拟参数，创建后不可修改；每个情景使用 With 派生新的副本。
type SimulationConfig struct {
	// 资金池
	TotalCorpus  float64 `json:"total_corpus" mapstructure:"total_corpus"`
	NumInvestors int     `json:"num_investors" mapstructure:"num_investors"`
	NumProjects  int     `json:"num_projects" mapstructure:"num_projects"`

	// 时间网格
	HorizonYears int `json:"horizon_years" mapstructure:"horizon_years"`
	StepsPerYear int `json:"steps_per_year" mapstructure:"steps_per_year"`

	// 远期利率（单因子对数正态）
	InitialForwardRate float64 `json:"initial_forward_rate" mapstructure:"initial_forward_rate"`
	ForwardRateDrift   float64 `json:"forward_rate_drift" mapstructure:"forward_rate_drift"`
	ForwardRateVol     float64 `json:"forward_rate_vol" mapstructure:"forward_rate_vol"`
	// 期限间相关性，单因子模型下所有期限同向变动，仅作记录
	ForwardRateCorr float64 `json:"forward_rate_corr" mapstructure:"forward_rate_corr"`
	// 利率下限，0 表示不设下限
	ForwardRateFloor float64 `json:"forward_rate_floor" mapstructure:"forward_rate_floor"`

	// 贷款条款
	LoanCoupon        float64          `json:"loan_coupon" mapstructure:"loan_coupon"`
	LoanMaturityYears int              `json:"loan_maturity_years" mapstructure:"loan_maturity_years"`
	Amortization      AmortizationKind `json:"amortization" mapstructure:"amortization"`

	// 抵押品（几何布朗运动，系统性 + 特质冲击）
	InitialCollateralPerProject float64 `json:"initial_collateral_per_project" mapstructure:"initial_collateral_per_project"`
	CollateralDrift             float64 `json:"collateral_drift" mapstructure:"collateral_drift"`
	CollateralVol               float64 `json:"collateral_vol" mapstructure:"collateral_vol"`
	SystemicWeight              float64 `json:"systemic_weight" mapstructure:"systemic_weight"`
	IdiosyncraticWeight         float64 `json:"idiosyncratic_weight" mapstructure:"idiosyncratic_weight"`

	// 违约模型
	BaseDefaultProb     float64 `json:"base_default_prob" mapstructure:"base_default_prob"`
	DefaultThreshold1   float64 `json:"default_threshold_1" mapstructure:"default_threshold_1"`
	DefaultThreshold2   float64 `json:"default_threshold_2" mapstructure:"default_threshold_2"`
	DefaultProbMult1    float64 `json:"default_prob_mult_1" mapstructure:"default_prob_mult_1"`
	DefaultProbMult2    float64 `json:"default_prob_mult_2" mapstructure:"default_prob_mult_2"`
	RecoveryRate        float64 `json:"recovery_rate" mapstructure:"recovery_rate"`
	LiquidationCostRate float64 `json:"liquidation_cost_rate" mapstructure:"liquidation_cost_rate"`

	// 蒙特卡洛
	NumPaths int    `json:"num_paths" mapstructure:"num_paths"`
	Seed     uint64 `json:"seed" mapstructure:"seed"`
	// 保留完整序列的样本路径数（前 K 条）
	SampleSize int `json:"sample_size" mapstructure:"sample_size"`
}

// DefaultSimulationConfig 基准参数：1 亿资金池，10 名投资者，10 个项目，10 年按年计息
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TotalCorpus:  100_000_000,
		NumInvestors: 10,
		NumProjects:  10,

		HorizonYears: 10,
		StepsPerYear: 1,

		InitialForwardRate: 0.08,
		ForwardRateDrift:   0,
		ForwardRateVol:     0.15,
		ForwardRateCorr:    0.8,
		ForwardRateFloor:   0.005,

		LoanCoupon:        0.12,
		LoanMaturityYears: 10,
		Amortization:      AmortizationBullet,

		InitialCollateralPerProject: 20_000_000,
		CollateralDrift:             0.05,
		CollateralVol:               0.15,
		SystemicWeight:              math.Sqrt(0.6),
		IdiosyncraticWeight:         math.Sqrt(0.4),

		BaseDefaultProb:     0.03,
		DefaultThreshold1:   1.2,
		DefaultThreshold2:   1.0,
		DefaultProbMult1:    2.0,
		DefaultProbMult2:    4.0,
		RecoveryRate:        0.70,
		LiquidationCostRate: 0.05,

		NumPaths:   5000,
		Seed:       42,
		SampleSize: 20,
	}
}

// With 返回应用 fn 之后的副本，接收者保持不变
func (c SimulationConfig) With(fn func(*SimulationConfig)) SimulationConfig {
	fn(&c)
	return c
}

// StepCount 总步数
func (c *SimulationConfig) StepCount() int { return c.HorizonYears * c.StepsPerYear }

// Dt 每步时长（年）
func (c *SimulationConfig) Dt() float64 { return 1 / float64(c.StepsPerYear) }

// MaturityStep 贷款到期所在步
func (c *SimulationConfig) MaturityStep() int { return c.LoanMaturityYears * c.StepsPerYear }

// LoanPerProject 单个项目贷款本金
func (c *SimulationConfig) LoanPerProject() float64 { return c.TotalCorpus / float64(c.NumProjects) }

// InvestmentPerInvestor 单个投资者出资
func (c *SimulationConfig) InvestmentPerInvestor() float64 {
	return c.TotalCorpus / float64(c.NumInvestors)
}

// InitialLTV 初始贷款价值比
func (c *SimulationConfig) InitialLTV() float64 {
	return c.LoanPerProject() / c.InitialCollateralPerProject
}

// EffectiveSampleSize 实际保留的样本路径数
func (c *SimulationConfig) EffectiveSampleSize() int {
	return max(0, min(c.SampleSize, c.NumPaths))
}

// FieldError 单个参数的校验失败
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ConfigError 参数校验错误，在任何路径开始模拟之前返回
type ConfigError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ConfigError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return "invalid simulation config: " + strings.Join(parts, "; ")
}

type validator struct {
	fields []FieldError
}

func (v *validator) check(ok bool, field, format string, args ...any) {
	if !ok {
		v.fields = append(v.fields, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func nonNegative(x float64) bool { return finite(x) && x >= 0 }

func unit(x float64) bool { return finite(x) && x >= 0 && x <= 1 }

// Validate 校验所有参数，返回 *ConfigError 列出每个不合法字段
func (c *SimulationConfig) Validate() error {
	v := &validator{}

	v.check(finite(c.TotalCorpus) && c.TotalCorpus > 0, "total_corpus", "must be > 0, got %v", c.TotalCorpus)
	v.check(c.NumInvestors >= 1, "num_investors", "must be >= 1, got %d", c.NumInvestors)
	v.check(c.NumProjects >= 1, "num_projects", "must be >= 1, got %d", c.NumProjects)
	v.check(c.HorizonYears >= 1, "horizon_years", "must be >= 1, got %d", c.HorizonYears)
	v.check(c.StepsPerYear >= 1, "steps_per_year", "must be >= 1, got %d", c.StepsPerYear)

	v.check(nonNegative(c.InitialForwardRate), "initial_forward_rate", "must be >= 0, got %v", c.InitialForwardRate)
	v.check(finite(c.ForwardRateDrift), "forward_rate_drift", "must be finite, got %v", c.ForwardRateDrift)
	v.check(nonNegative(c.ForwardRateVol), "forward_rate_vol", "must be >= 0, got %v", c.ForwardRateVol)
	v.check(unit(c.ForwardRateCorr), "forward_rate_corr", "must be in [0,1], got %v", c.ForwardRateCorr)
	v.check(nonNegative(c.ForwardRateFloor), "forward_rate_floor", "must be >= 0, got %v", c.ForwardRateFloor)

	v.check(nonNegative(c.LoanCoupon), "loan_coupon", "must be >= 0, got %v", c.LoanCoupon)
	v.check(c.LoanMaturityYears >= 1, "loan_maturity_years", "must be >= 1, got %d", c.LoanMaturityYears)
	v.check(c.Amortization.Valid(), "amortization", "must be one of bullet, level_principal, level_payment, got %q", c.Amortization)

	v.check(finite(c.InitialCollateralPerProject) && c.InitialCollateralPerProject > 0,
		"initial_collateral_per_project", "must be > 0, got %v", c.InitialCollateralPerProject)
	v.check(finite(c.CollateralDrift), "collateral_drift", "must be finite, got %v", c.CollateralDrift)
	v.check(nonNegative(c.CollateralVol), "collateral_vol", "must be >= 0, got %v", c.CollateralVol)
	v.check(nonNegative(c.SystemicWeight), "systemic_weight", "must be >= 0, got %v", c.SystemicWeight)
	v.check(nonNegative(c.IdiosyncraticWeight), "idiosyncratic_weight", "must be >= 0, got %v", c.IdiosyncraticWeight)

	v.check(unit(c.BaseDefaultProb), "base_default_prob", "must be in [0,1], got %v", c.BaseDefaultProb)
	v.check(finite(c.DefaultThreshold1) && c.DefaultThreshold1 > 0, "default_threshold_1", "must be > 0, got %v", c.DefaultThreshold1)
	v.check(finite(c.DefaultThreshold2) && c.DefaultThreshold2 > 0, "default_threshold_2", "must be > 0, got %v", c.DefaultThreshold2)
	v.check(c.DefaultThreshold1 >= c.DefaultThreshold2, "default_threshold_1", "must be >= default_threshold_2 (%v), got %v", c.DefaultThreshold2, c.DefaultThreshold1)
	v.check(nonNegative(c.DefaultProbMult1), "default_prob_mult_1", "must be >= 0, got %v", c.DefaultProbMult1)
	v.check(nonNegative(c.DefaultProbMult2), "default_prob_mult_2", "must be >= 0, got %v", c.DefaultProbMult2)
	v.check(unit(c.RecoveryRate), "recovery_rate", "must be in [0,1], got %v", c.RecoveryRate)
	v.check(unit(c.LiquidationCostRate), "liquidation_cost_rate", "must be in [0,1], got %v", c.LiquidationCostRate)

	v.check(c.NumPaths >= 1, "num_paths", "must be >= 1, got %d", c.NumPaths)
	v.check(c.SampleSize >= 0, "sample_size", "must be >= 0, got %d", c.SampleSize)

	if len(v.fields) > 0 {
		return &ConfigError{Fields: v.fields}
	}
	return nil
}
