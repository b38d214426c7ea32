package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/creditpool/pkg/utils"
)

var (
	// ErrRunNotFound 批次不存在
	ErrRunNotFound = errors.New("simulation run not found")
	// ErrRunNotRunning 批次不在运行中，无法停止
	ErrRunNotRunning = errors.New("simulation run is not running")
	// ErrRunAlreadyRunning 同一参数指纹的批次正在运行
	ErrRunAlreadyRunning = errors.New("simulation run with the same parameters is already running")
	// ErrInvalidRunTransition 非法的状态迁移
	ErrInvalidRunTransition = errors.New("invalid simulation run status transition")
)

// RunStatus 批次状态
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusPartial   RunStatus = "PARTIAL" // 被取消，只有部分路径
	RunStatusFailed    RunStatus = "FAILED"
)

// Terminal 是否为终态
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusPartial || s == RunStatusFailed
}

// SimulationRun 一次模拟批次
type SimulationRun struct {
	ID        uint
	CreatedAt time.Time
	UpdatedAt time.Time

	RunID       string
	Scenario    string
	Status      RunStatus
	Fingerprint string
	Config      SimulationConfig

	CompletedPaths int
	FailedPaths    int
	Summary        *Summary
	ErrorMessage   string

	StartedAt  *time.Time
	FinishedAt *time.Time
}

// NewSimulationRun 创建待运行批次
func NewSimulationRun(scenario string, cfg SimulationConfig) (*SimulationRun, error) {
	fp, err := Fingerprint(cfg)
	if err != nil {
		return nil, err
	}
	if scenario == "" {
		scenario = ScenarioBase
	}
	return &SimulationRun{
		RunID:       uuid.NewString(),
		Scenario:    scenario,
		Status:      RunStatusPending,
		Fingerprint: fp,
		Config:      cfg,
	}, nil
}

// Start PENDING -> RUNNING
func (r *SimulationRun) Start() error {
	if r.Status != RunStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidRunTransition, r.Status, RunStatusRunning)
	}
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
	return nil
}

// Finish 根据结果集记录终态：完整结果为 COMPLETED，否则为 PARTIAL
func (r *SimulationRun) Finish(rs *ResultSet) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: %s -> finished", ErrInvalidRunTransition, r.Status)
	}
	summary := Summarize(rs)
	now := time.Now()
	r.Summary = &summary
	r.CompletedPaths = rs.Len()
	r.FailedPaths = len(rs.Failures)
	r.FinishedAt = &now
	if rs.Complete {
		r.Status = RunStatusCompleted
	} else {
		r.Status = RunStatusPartial
	}
	return nil
}

// Fail 记录失败
func (r *SimulationRun) Fail(cause error) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.ErrorMessage = cause.Error()
	r.FinishedAt = &now
}

// Duration 运行耗时
func (r *SimulationRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// Fingerprint 参数指纹：规范 JSON 的 SHA-256，同样参数与种子得到同样结果
func Fingerprint(cfg SimulationConfig) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return utils.SHA256Hex(data), nil
}
