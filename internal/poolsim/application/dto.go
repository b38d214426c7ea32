package application

import (
	"time"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
)

// ConfigOverrides 请求中可覆盖的模拟参数，未给出的字段沿用情景参数
type ConfigOverrides struct {
	NumPaths                    *int                     `json:"num_paths,omitempty"`
	Seed                        *uint64                  `json:"seed,omitempty"`
	StepsPerYear                *int                     `json:"steps_per_year,omitempty"`
	HorizonYears                *int                     `json:"horizon_years,omitempty"`
	LoanCoupon                  *float64                 `json:"loan_coupon,omitempty"`
	LoanMaturityYears           *int                     `json:"loan_maturity_years,omitempty"`
	Amortization                *domain.AmortizationKind `json:"amortization,omitempty"`
	InitialForwardRate          *float64                 `json:"initial_forward_rate,omitempty"`
	ForwardRateVol              *float64                 `json:"forward_rate_vol,omitempty"`
	InitialCollateralPerProject *float64                 `json:"initial_collateral_per_project,omitempty"`
	CollateralDrift             *float64                 `json:"collateral_drift,omitempty"`
	CollateralVol               *float64                 `json:"collateral_vol,omitempty"`
	BaseDefaultProb             *float64                 `json:"base_default_prob,omitempty"`
	RecoveryRate                *float64                 `json:"recovery_rate,omitempty"`
	LiquidationCostRate         *float64                 `json:"liquidation_cost_rate,omitempty"`
	SampleSize                  *int                     `json:"sample_size,omitempty"`
}

// Apply 把覆盖项写入 cfg
func (o ConfigOverrides) Apply(cfg *domain.SimulationConfig) {
	setInt(&cfg.NumPaths, o.NumPaths)
	setInt(&cfg.StepsPerYear, o.StepsPerYear)
	setInt(&cfg.SampleSize, o.SampleSize)
	setInt(&cfg.HorizonYears, o.HorizonYears)
	setInt(&cfg.LoanMaturityYears, o.LoanMaturityYears)
	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
	if o.Amortization != nil {
		cfg.Amortization = *o.Amortization
	}
	setFloat(&cfg.LoanCoupon, o.LoanCoupon)
	setFloat(&cfg.InitialForwardRate, o.InitialForwardRate)
	setFloat(&cfg.ForwardRateVol, o.ForwardRateVol)
	setFloat(&cfg.InitialCollateralPerProject, o.InitialCollateralPerProject)
	setFloat(&cfg.CollateralDrift, o.CollateralDrift)
	setFloat(&cfg.CollateralVol, o.CollateralVol)
	setFloat(&cfg.BaseDefaultProb, o.BaseDefaultProb)
	setFloat(&cfg.RecoveryRate, o.RecoveryRate)
	setFloat(&cfg.LiquidationCostRate, o.LiquidationCostRate)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// RunSimulationCommand 运行模拟命令
type RunSimulationCommand struct {
	// 情景名称，空表示 BASE
	Scenario  string          `json:"scenario"`
	Overrides ConfigOverrides `json:"overrides"`
	// 忽略同参数的已完成结果，强制重新运行
	Force bool `json:"force"`
}

// CompareScenariosCommand 情景对比命令，Scenarios 为空时对比全部已注册情景
type CompareScenariosCommand struct {
	Scenarios []string        `json:"scenarios"`
	Overrides ConfigOverrides `json:"overrides"`
}

// RunDTO 模拟批次
type RunDTO struct {
	RunID          string                  `json:"run_id"`
	Scenario       string                  `json:"scenario"`
	Status         string                  `json:"status"`
	Complete       bool                    `json:"complete"`
	Cached         bool                    `json:"cached"`
	Fingerprint    string                  `json:"fingerprint"`
	Config         domain.SimulationConfig `json:"config"`
	CompletedPaths int                     `json:"completed_paths"`
	FailedPaths    int                     `json:"failed_paths"`
	Summary        *domain.Summary         `json:"summary,omitempty"`
	Error          string                  `json:"error,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	StartedAt      *time.Time              `json:"started_at,omitempty"`
	FinishedAt     *time.Time              `json:"finished_at,omitempty"`
	DurationMs     int64                   `json:"duration_ms"`
}

// RunListDTO 批次分页列表
type RunListDTO struct {
	Items      []*RunDTO `json:"items"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int64     `json:"total_pages"`
}

// ScenarioResultDTO 单个情景的对比结果
type ScenarioResultDTO struct {
	Scenario    string          `json:"scenario"`
	Description string          `json:"description"`
	RunID       string          `json:"run_id"`
	Status      string          `json:"status"`
	Fingerprint string          `json:"fingerprint"`
	Summary     *domain.Summary `json:"summary,omitempty"`
}

// ComparisonDTO 情景对比结果
type ComparisonDTO struct {
	Results []ScenarioResultDTO `json:"results"`
}

// 直方图指标
const (
	HistogramMetricIRR = "irr"
	HistogramMetricNPV = "npv"

	DefaultHistogramBins = 20
	MaxHistogramBins     = 200
)

// HistogramQuery 直方图查询，Metric 为空表示 irr，Bins 为 0 表示默认分档数
type HistogramQuery struct {
	Metric string
	Bins   int
}

// HistogramDTO 路径指标的直方图与经验累计分布
type HistogramDTO struct {
	RunID  string `json:"run_id"`
	Metric string `json:"metric"`
	Paths  int    `json:"paths"`
	// 未计入直方图的路径数（IRR 无解）
	Excluded int                   `json:"excluded"`
	Bins     []domain.HistogramBin `json:"bins"`
}

// SamplesDTO 样本路径的完整序列
type SamplesDTO struct {
	RunID string         `json:"run_id"`
	Items []*domain.Path `json:"items"`
}

func toRunDTO(r *domain.SimulationRun) *RunDTO {
	if r == nil {
		return nil
	}
	return &RunDTO{
		RunID:          r.RunID,
		Scenario:       r.Scenario,
		Status:         string(r.Status),
		Complete:       r.Status == domain.RunStatusCompleted,
		Fingerprint:    r.Fingerprint,
		Config:         r.Config,
		CompletedPaths: r.CompletedPaths,
		FailedPaths:    r.FailedPaths,
		Summary:        r.Summary,
		Error:          r.ErrorMessage,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.Duration().Milliseconds(),
	}
}
