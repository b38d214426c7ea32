package domain

import "time"

const (
	RunStartedEventType   = "poolsim.run.started"
	RunCompletedEventType = "poolsim.run.completed"
	RunCancelledEventType = "poolsim.run.cancelled"
	// 全部路径已处理但有路径失败
	RunPartialEventType = "poolsim.run.partial"
	RunFailedEventType    = "poolsim.run.failed"
)

// RunStartedEvent 批次开始事件
type RunStartedEvent struct {
	RunID       string    `json:"run_id"`
	Scenario    string    `json:"scenario"`
	Fingerprint string    `json:"fingerprint"`
	NumPaths    int       `json:"num_paths"`
	Seed        uint64    `json:"seed"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunFinishedEvent 批次结束事件（完成或取消）
type RunFinishedEvent struct {
	RunID          string    `json:"run_id"`
	Scenario       string    `json:"scenario"`
	Status         string    `json:"status"`
	CompletedPaths int       `json:"completed_paths"`
	FailedPaths    int       `json:"failed_paths"`
	MeanIRR        float64   `json:"mean_irr"`
	MeanNPV        float64   `json:"mean_npv"`
	ProbLoss       float64   `json:"prob_loss"`
	DefaultRate    float64   `json:"default_rate"`
	DurationMs     int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// RunFailedEvent 批次失败事件
type RunFailedEvent struct {
	RunID     string    `json:"run_id"`
	Scenario  string    `json:"scenario"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRunStartedEvent 构造批次开始事件
func NewRunStartedEvent(r *SimulationRun) RunStartedEvent {
	return RunStartedEvent{
		RunID:       r.RunID,
		Scenario:    r.Scenario,
		Fingerprint: r.Fingerprint,
		NumPaths:    r.Config.NumPaths,
		Seed:        r.Config.Seed,
		Timestamp:   time.Now(),
	}
}

// NewRunFinishedEvent 构造批次结束事件，返回事件类型与事件体
func NewRunFinishedEvent(r *SimulationRun) (string, RunFinishedEvent) {
	eventType := RunCompletedEventType
	if r.Status == RunStatusPartial {
		eventType = RunCancelledEventType
		if r.CompletedPaths+r.FailedPaths >= r.Config.NumPaths {
			eventType = RunPartialEventType
		}
	}
	ev := RunFinishedEvent{
		RunID:          r.RunID,
		Scenario:       r.Scenario,
		Status:         string(r.Status),
		CompletedPaths: r.CompletedPaths,
		FailedPaths:    r.FailedPaths,
		DurationMs:     r.Duration().Milliseconds(),
		Timestamp:      time.Now(),
	}
	if r.Summary != nil {
		ev.MeanIRR = r.Summary.IRR.Mean
		ev.MeanNPV = r.Summary.NPV.Mean
		ev.ProbLoss = r.Summary.ProbLoss
		ev.DefaultRate = r.Summary.DefaultRate
	}
	return eventType, ev
}

// NewRunFailedEvent 构造批次失败事件
func NewRunFailedEvent(r *SimulationRun) RunFailedEvent {
	return RunFailedEvent{
		RunID:     r.RunID,
		Scenario:  r.Scenario,
		Error:     r.ErrorMessage,
		Timestamp: time.Now(),
	}
}
