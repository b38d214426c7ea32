// Package redis 提供模拟批次读模型的 Redis 缓存实现
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/cache"
)

const (
	runKeyPrefix         = "poolsim:run:"
	fingerprintKeyPrefix = "poolsim:fingerprint:"
	defaultTTL           = time.Hour
)

// RunRedisRepository 批次读模型缓存：按 RunID 缓存批次，按参数指纹索引已完成批次
type RunRedisRepository struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewRunRedisRepository 创建批次缓存，ttl <= 0 时使用 1 小时
func NewRunRedisRepository(c *cache.RedisCache, ttl time.Duration) *RunRedisRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RunRedisRepository{cache: c, ttl: ttl}
}

// Save 缓存批次；已完成批次同时写入指纹索引
func (r *RunRedisRepository) Save(ctx context.Context, run *domain.SimulationRun) error {
	if run == nil {
		return nil
	}
	if err := r.cache.SetJSON(ctx, runKey(run.RunID), run, r.ttl); err != nil {
		return fmt.Errorf("failed to cache run %s: %w", run.RunID, err)
	}
	if run.Status == domain.RunStatusCompleted {
		if err := r.cache.SetJSON(ctx, fingerprintKey(run.Fingerprint), run.RunID, r.ttl); err != nil {
			return fmt.Errorf("failed to index run %s: %w", run.RunID, err)
		}
	}
	return nil
}

func (r *RunRedisRepository) Get(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	var run domain.SimulationRun
	if err := r.cache.GetJSON(ctx, runKey(runID), &run); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run from redis: %w", err)
	}
	return &run, nil
}

func (r *RunRedisRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.SimulationRun, error) {
	var runID string
	if err := r.cache.GetJSON(ctx, fingerprintKey(fingerprint), &runID); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get fingerprint from redis: %w", err)
	}
	run, err := r.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	// 索引过期不同步时以批次本身为准
	if run.Status != domain.RunStatusCompleted || run.Fingerprint != fingerprint {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

// Invalidate 删除批次缓存与指纹索引
func (r *RunRedisRepository) Invalidate(ctx context.Context, run *domain.SimulationRun) error {
	return r.cache.Delete(ctx, runKey(run.RunID), fingerprintKey(run.Fingerprint))
}

func runKey(runID string) string { return runKeyPrefix + runID }

func fingerprintKey(fp string) string { return fingerprintKeyPrefix + fp }
