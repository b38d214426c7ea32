package domain

import "context"

// RunRepository 模拟批次仓储接口
type RunRepository interface {
	// Save 保存或更新批次
	Save(ctx context.Context, run *SimulationRun) error
	// Get 根据 RunID 获取批次，不存在时返回 ErrRunNotFound
	Get(ctx context.Context, runID string) (*SimulationRun, error)
	// FindCompleted 查找同一参数指纹下最近完成的批次，不存在时返回 ErrRunNotFound
	FindCompleted(ctx context.Context, fingerprint string) (*SimulationRun, error)
	// List 按创建时间倒序分页
	List(ctx context.Context, offset, limit int) ([]*SimulationRun, int64, error)
	// SavePathResults 保存路径结果
	SavePathResults(ctx context.Context, runID string, results []PathResult) error
	// ListPathResults 按路径序号返回路径结果
	ListPathResults(ctx context.Context, runID string) ([]PathResult, error)
	// SaveSamples 保存样本路径的完整序列
	SaveSamples(ctx context.Context, runID string, samples []*Path) error
	// ListSamples 按路径序号返回样本路径
	ListSamples(ctx context.Context, runID string) ([]*Path, error)
}

// RunReadRepository 基于 Redis 的批次读模型缓存
type RunReadRepository interface {
	Save(ctx context.Context, run *SimulationRun) error
	// Get 未命中时返回 ErrRunNotFound
	Get(ctx context.Context, runID string) (*SimulationRun, error)
	// GetByFingerprint 按参数指纹查找已完成批次，未命中时返回 ErrRunNotFound
	GetByFingerprint(ctx context.Context, fingerprint string) (*SimulationRun, error)
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, event any) error
}
