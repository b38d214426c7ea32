package mysql

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"gorm.io/gorm"
)

// SimulationRunModel 模拟批次数据库模型
type SimulationRunModel struct {
	gorm.Model
	RunID       string `gorm:"column:run_id;type:varchar(36);uniqueIndex;not null"`
	Scenario    string `gorm:"column:scenario;type:varchar(50);not null"`
	Status      string `gorm:"column:status;type:varchar(20);index;not null"`
	Fingerprint string `gorm:"column:fingerprint;type:char(64);index;not null"`
	Config      string `gorm:"column:config;type:text"`
	Seed        uint64 `gorm:"column:seed"`
	NumPaths    int    `gorm:"column:num_paths"`

	CompletedPaths int `gorm:"column:completed_paths"`
	FailedPaths    int `gorm:"column:failed_paths"`

	// 汇总指标单独成列，便于直接查询
	MeanIRR     decimal.Decimal `gorm:"column:mean_irr;type:decimal(20,10)"`
	MedianIRR   decimal.Decimal `gorm:"column:median_irr;type:decimal(20,10)"`
	MeanNPV     decimal.Decimal `gorm:"column:mean_npv;type:decimal(24,2)"`
	ProbLoss    decimal.Decimal `gorm:"column:prob_loss;type:decimal(10,6)"`
	DefaultRate decimal.Decimal `gorm:"column:default_rate;type:decimal(10,6)"`
	Summary     string          `gorm:"column:summary;type:text"`

	ErrorMessage string     `gorm:"column:error_message;type:text"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	FinishedAt   *time.Time `gorm:"column:finished_at"`
}

func (SimulationRunModel) TableName() string { return "simulation_runs" }

// PathResultModel 路径结果数据库模型
type PathResultModel struct {
	ID     uint   `gorm:"primarykey"`
	RunID  string `gorm:"column:run_id;type:varchar(36);uniqueIndex:idx_run_path;not null"`
	PathID int    `gorm:"column:path_id;uniqueIndex:idx_run_path;not null"`
	// IRR 无解时为 NULL
	IRR          *float64        `gorm:"column:irr"`
	NPV          decimal.Decimal `gorm:"column:npv;type:decimal(24,2)"`
	DefaultCount int             `gorm:"column:default_count"`
	Detail       string          `gorm:"column:detail;type:text"`
}

func (PathResultModel) TableName() string { return "simulation_path_results" }

// SamplePathModel 样本路径数据库模型，完整序列以 JSON 保存
type SamplePathModel struct {
	ID     uint   `gorm:"primarykey"`
	RunID  string `gorm:"column:run_id;type:varchar(36);uniqueIndex:idx_run_sample;not null"`
	PathID int    `gorm:"column:path_id;uniqueIndex:idx_run_sample;not null"`
	Detail string `gorm:"column:detail;type:longtext"`
}

func (SamplePathModel) TableName() string { return "simulation_sample_paths" }

// mapping helpers

func toRunModel(r *domain.SimulationRun) (*SimulationRunModel, error) {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	m := &SimulationRunModel{
		Model: gorm.Model{
			ID:        r.ID,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		},
		RunID:          r.RunID,
		Scenario:       r.Scenario,
		Status:         string(r.Status),
		Fingerprint:    r.Fingerprint,
		Config:         string(cfg),
		Seed:           r.Config.Seed,
		NumPaths:       r.Config.NumPaths,
		CompletedPaths: r.CompletedPaths,
		FailedPaths:    r.FailedPaths,
		ErrorMessage:   r.ErrorMessage,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
	if r.Summary != nil {
		summary, err := json.Marshal(r.Summary)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summary: %w", err)
		}
		m.Summary = string(summary)
		m.MeanIRR = decimal.NewFromFloat(r.Summary.IRR.Mean)
		m.MedianIRR = decimal.NewFromFloat(r.Summary.IRR.Median)
		m.MeanNPV = decimal.NewFromFloat(r.Summary.NPV.Mean).Round(2)
		m.ProbLoss = decimal.NewFromFloat(r.Summary.ProbLoss)
		m.DefaultRate = decimal.NewFromFloat(r.Summary.DefaultRate)
	}
	return m, nil
}

func toRun(m *SimulationRunModel) (*domain.SimulationRun, error) {
	r := &domain.SimulationRun{
		ID:             m.ID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		RunID:          m.RunID,
		Scenario:       m.Scenario,
		Status:         domain.RunStatus(m.Status),
		Fingerprint:    m.Fingerprint,
		CompletedPaths: m.CompletedPaths,
		FailedPaths:    m.FailedPaths,
		ErrorMessage:   m.ErrorMessage,
		StartedAt:      m.StartedAt,
		FinishedAt:     m.FinishedAt,
	}
	if err := json.Unmarshal([]byte(m.Config), &r.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config of run %s: %w", m.RunID, err)
	}
	if m.Summary != "" {
		var s domain.Summary
		if err := json.Unmarshal([]byte(m.Summary), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary of run %s: %w", m.RunID, err)
		}
		r.Summary = &s
	}
	return r, nil
}

func toPathResultModel(runID string, r domain.PathResult) (PathResultModel, error) {
	detail, err := json.Marshal(r)
	if err != nil {
		return PathResultModel{}, fmt.Errorf("failed to marshal path %d: %w", r.PathID, err)
	}
	m := PathResultModel{
		RunID:        runID,
		PathID:       r.PathID,
		NPV:          decimal.NewFromFloat(r.NPV).Round(2),
		DefaultCount: r.DefaultCount(),
		Detail:       string(detail),
	}
	if r.IRRDefined {
		irr := r.IRR
		m.IRR = &irr
	}
	return m, nil
}

func toPathResult(m *PathResultModel) (domain.PathResult, error) {
	var r domain.PathResult
	if err := json.Unmarshal([]byte(m.Detail), &r); err != nil {
		return domain.PathResult{}, fmt.Errorf("failed to unmarshal path %d: %w", m.PathID, err)
	}
	return r, nil
}

func toSamplePathModel(runID string, p *domain.Path) (SamplePathModel, error) {
	detail, err := json.Marshal(p)
	if err != nil {
		return SamplePathModel{}, fmt.Errorf("failed to marshal sample path %d: %w", p.PathID, err)
	}
	return SamplePathModel{RunID: runID, PathID: p.PathID, Detail: string(detail)}, nil
}

func toSamplePath(m *SamplePathModel) (*domain.Path, error) {
	p := new(domain.Path)
	if err := json.Unmarshal([]byte(m.Detail), p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample path %d: %w", m.PathID, err)
	}
	return p, nil
}
