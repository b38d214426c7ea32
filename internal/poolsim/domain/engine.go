package domain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ErrRunCancelled 运行被取消，返回的 ResultSet 只包含已完成的路径
var ErrRunCancelled = errors.New("simulation run cancelled")

// ProgressFunc 每合并一条路径回调一次，done 为已处理路径数
type ProgressFunc func(done, total int)

// Engine 蒙特卡洛编排器：把路径分派给 worker，单个 goroutine 负责合并结果
type Engine struct {
	cfg      SimulationConfig
	streams  StreamFactory
	workers  int
	progress ProgressFunc
	simulate func(pathID int) *Path
}

// EngineOption 编排器选项
type EngineOption func(*Engine)

// WithWorkers 设置并发 worker 数，n <= 0 时使用 GOMAXPROCS
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithProgress 设置进度回调，回调在合并 goroutine 中串行执行
func WithProgress(fn ProgressFunc) EngineOption {
	return func(e *Engine) { e.progress = fn }
}

// NewEngine 校验参数并创建编排器，参数非法时返回 *ConfigError
func NewEngine(cfg SimulationConfig, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		streams: NewStreamFactory(cfg.Seed),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.simulate = func(pathID int) *Path {
		return SimulatePath(&e.cfg, e.streams, pathID)
	}
	return e, nil
}

// Config 编排器使用的参数
func (e *Engine) Config() SimulationConfig { return e.cfg }

type pathOutcome struct {
	id      int
	result  PathResult
	sample  *Path
	failure *PathFailure
}

func (e *Engine) runPath(id, sampleSize int) (out pathOutcome) {
	out.id = id
	defer func() {
		if r := recover(); r != nil {
			out = pathOutcome{id: id, failure: &PathFailure{PathID: id, Reason: fmt.Sprint(r)}}
		}
	}()

	p := e.simulate(id)
	out.result = p.Result(e.cfg.Dt())
	if id < sampleSize {
		out.sample = p
	}
	return out
}

// Run 模拟全部路径。ctx 在两次路径完成之间检查；取消后不再分派新路径，
// 已在执行的路径完成并合并，返回 Complete=false 的部分结果以及 ErrRunCancelled。
// 单条路径 panic 记为 PathFailure，不返回错误，但结果同样 Complete=false。
// 结果只取决于参数与种子，与 worker 数和调度顺序无关。
func (e *Engine) Run(ctx context.Context) (*ResultSet, error) {
	total := e.cfg.NumPaths
	sampleSize := e.cfg.EffectiveSampleSize()
	workers := min(e.workers, total)

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	jobs := make(chan int)
	outcomes := make(chan pathOutcome, workers)

	go func() {
		defer close(jobs)
		for id := 0; id < total; id++ {
			select {
			case jobs <- id:
			case <-dispatchCtx.Done():
				return
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for id := range jobs {
				outcomes <- e.runPath(id, sampleSize)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	// 合并：唯一写入方
	results := make([]PathResult, total)
	filled := make([]bool, total)
	samples := make([]*Path, sampleSize)
	var failures []PathFailure
	done := 0
	cancelled := false

	for o := range outcomes {
		done++
		if o.failure != nil {
			failures = append(failures, *o.failure)
		} else {
			results[o.id] = o.result
			filled[o.id] = true
			if o.sample != nil {
				samples[o.id] = o.sample
			}
		}
		if e.progress != nil {
			e.progress(done, total)
		}
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			stopDispatch()
		}
	}

	rs := &ResultSet{
		Config:    e.cfg,
		Results:   make([]PathResult, 0, done),
		Samples:   make([]*Path, 0, sampleSize),
		Requested: total,
		Failures:  sortFailures(failures),
	}
	for id, ok := range filled {
		if ok {
			rs.Results = append(rs.Results, results[id])
		}
	}
	for _, p := range samples {
		if p != nil {
			rs.Samples = append(rs.Samples, p)
		}
	}

	if done < total {
		return rs, fmt.Errorf("%w after %d of %d paths: %w", ErrRunCancelled, done, total, context.Cause(ctx))
	}
	// 有路径失败时结果缺少这些路径，不算完整
	rs.Complete = len(rs.Failures) == 0
	return rs, nil
}

func sortFailures(fs []PathFailure) []PathFailure {
	slices.SortFunc(fs, func(a, b PathFailure) int { return cmp.Compare(a.PathID, b.PathID) })
	return fs
}
