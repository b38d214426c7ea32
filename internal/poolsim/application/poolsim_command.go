package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/logger"
	"github.com/wyfcoding/creditpool/pkg/metrics"
)

type runningRun struct {
	fingerprint string
	cancel      context.CancelFunc
}

// PoolSimCommandService 模拟命令服务：构造参数、运行编排器、保存批次并发布事件
type PoolSimCommandService struct {
	repo      domain.RunRepository
	readRepo  domain.RunReadRepository
	publisher domain.EventPublisher
	collector metrics.Collector
	scenarios *domain.ScenarioSet
	base      domain.SimulationConfig
	engine    EngineConfig

	runningRuns map[string]*runningRun
	mu          sync.Mutex
	wg          sync.WaitGroup
}

// NewPoolSimCommandService 创建模拟命令服务实例，readRepo 可以为 nil（不启用 Redis）
func NewPoolSimCommandService(
	cfg *Config,
	repo domain.RunRepository,
	readRepo domain.RunReadRepository,
	publisher domain.EventPublisher,
	collector metrics.Collector,
) *PoolSimCommandService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &PoolSimCommandService{
		repo:        repo,
		readRepo:    readRepo,
		publisher:   publisher,
		collector:   collector,
		scenarios:   domain.NewScenarioSet(),
		base:        cfg.Simulation,
		engine:      cfg.Engine,
		runningRuns: make(map[string]*runningRun),
	}
}

// Scenarios 已注册的压力情景
func (s *PoolSimCommandService) Scenarios() *domain.ScenarioSet { return s.scenarios }

// BuildConfig 在基准参数上依次应用情景与覆盖项，并完成校验
func (s *PoolSimCommandService) BuildConfig(scenario string, overrides ConfigOverrides) (domain.SimulationConfig, error) {
	if scenario == "" {
		scenario = domain.ScenarioBase
	}
	sc, err := s.scenarios.Get(scenario)
	if err != nil {
		return domain.SimulationConfig{}, &domain.ConfigError{Fields: []domain.FieldError{{Field: "scenario", Reason: err.Error()}}}
	}
	cfg := sc.Apply(s.base)
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return domain.SimulationConfig{}, err
	}
	if cfg.NumPaths > s.engine.MaxPaths {
		return domain.SimulationConfig{}, &domain.ConfigError{Fields: []domain.FieldError{{
			Field:  "num_paths",
			Reason: fmt.Sprintf("must be <= %d, got %d", s.engine.MaxPaths, cfg.NumPaths),
		}}}
	}
	return cfg, nil
}

// RunSimulation 同步运行一个批次。相同参数与种子已有完成结果时直接返回，Force 为 true 时重新运行。
// 超时或请求被取消时批次按部分结果保存，返回 Status=PARTIAL 而不是错误。
func (s *PoolSimCommandService) RunSimulation(ctx context.Context, cmd RunSimulationCommand) (*RunDTO, error) {
	cfg, err := s.BuildConfig(cmd.Scenario, cmd.Overrides)
	if err != nil {
		return nil, err
	}

	run, err := domain.NewSimulationRun(cmd.Scenario, cfg)
	if err != nil {
		return nil, err
	}

	if !cmd.Force {
		if cached := s.findCompleted(ctx, run.Fingerprint); cached != nil {
			s.collector.RecordCache(true)
			logger.Info(ctx, "Reusing completed simulation run", "run_id", cached.RunID, "fingerprint", run.Fingerprint)
			dto := toRunDTO(cached)
			dto.Cached = true
			return dto, nil
		}
		s.collector.RecordCache(false)
	}

	if err := s.begin(ctx, run); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout())
	defer cancel()
	if err := s.execute(runCtx, run); err != nil {
		return nil, err
	}
	return toRunDTO(run), nil
}

// StartSimulation 在后台运行批次并立即返回 RUNNING 状态的批次，之后可用 StopSimulation 停止
func (s *PoolSimCommandService) StartSimulation(ctx context.Context, cmd RunSimulationCommand) (*RunDTO, error) {
	cfg, err := s.BuildConfig(cmd.Scenario, cmd.Overrides)
	if err != nil {
		return nil, err
	}
	run, err := domain.NewSimulationRun(cmd.Scenario, cfg)
	if err != nil {
		return nil, err
	}

	// 锁内只登记指纹，保存与发布事件在锁外进行
	s.mu.Lock()
	for id, r := range s.runningRuns {
		if r.fingerprint == run.Fingerprint {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", domain.ErrRunAlreadyRunning, id)
		}
	}
	workerCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout())
	s.runningRuns[run.RunID] = &runningRun{fingerprint: run.Fingerprint, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.begin(ctx, run); err != nil {
		cancel()
		s.untrack(run.RunID)
		s.wg.Done()
		return nil, err
	}
	dto := toRunDTO(run)

	workerCtx = logger.WithRunID(workerCtx, run.RunID)
	go func() {
		defer s.wg.Done()
		defer s.untrack(run.RunID)
		defer cancel()
		if err := s.execute(workerCtx, run); err != nil {
			logger.Error(workerCtx, "Background simulation run failed", "error", err)
		}
	}()

	logger.Info(ctx, "Simulation run started", "run_id", run.RunID, "scenario", run.Scenario, "paths", cfg.NumPaths)
	return dto, nil
}

// StopSimulation 取消后台批次，已合并的路径作为部分结果保存
func (s *PoolSimCommandService) StopSimulation(ctx context.Context, runID string) error {
	s.mu.Lock()
	r, ok := s.runningRuns[runID]
	s.mu.Unlock()

	if !ok {
		if _, err := s.repo.Get(ctx, runID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", domain.ErrRunNotRunning, runID)
	}

	r.cancel()
	logger.Info(ctx, "Simulation run stop requested", "run_id", runID)
	return nil
}

// CompareScenarios 在同一组覆盖项下依次运行多个情景，返回各自的汇总统计
func (s *PoolSimCommandService) CompareScenarios(ctx context.Context, cmd CompareScenariosCommand) (*ComparisonDTO, error) {
	names := cmd.Scenarios
	if len(names) == 0 {
		names = s.scenarios.Names()
	}

	// 先校验全部情景，避免跑到一半才发现参数错误
	for _, name := range names {
		if _, err := s.BuildConfig(name, cmd.Overrides); err != nil {
			return nil, err
		}
	}

	out := &ComparisonDTO{Results: make([]ScenarioResultDTO, 0, len(names))}
	for _, name := range names {
		run, err := s.RunSimulation(ctx, RunSimulationCommand{Scenario: name, Overrides: cmd.Overrides})
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		sc, _ := s.scenarios.Get(name)
		out.Results = append(out.Results, ScenarioResultDTO{
			Scenario:    name,
			Description: sc.Description,
			RunID:       run.RunID,
			Status:      run.Status,
			Fingerprint: run.Fingerprint,
			Summary:     run.Summary,
		})
	}
	return out, nil
}

// Shutdown 取消所有后台批次并等待它们保存完毕
func (s *PoolSimCommandService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, r := range s.runningRuns {
		r.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunningCount 正在后台运行的批次数
func (s *PoolSimCommandService) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runningRuns)
}

func (s *PoolSimCommandService) untrack(runID string) {
	s.mu.Lock()
	delete(s.runningRuns, runID)
	s.mu.Unlock()
}

func (s *PoolSimCommandService) runTimeout() time.Duration {
	if s.engine.RunTimeout <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.engine.RunTimeout) * time.Second
}

// begin PENDING -> RUNNING，保存并发布开始事件
func (s *PoolSimCommandService) begin(ctx context.Context, run *domain.SimulationRun) error {
	if err := run.Start(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, run); err != nil {
		return fmt.Errorf("failed to save simulation run: %w", err)
	}
	s.collector.RunStarted()
	s.publish(ctx, domain.RunStartedEventType, run.RunID, domain.NewRunStartedEvent(run))
	return nil
}

// execute 运行编排器并保存终态。ctx 取消只影响模拟本身，持久化使用脱离取消的上下文。
func (s *PoolSimCommandService) execute(ctx context.Context, run *domain.SimulationRun) error {
	ctx = logger.WithRunID(ctx, run.RunID)
	persistCtx := context.WithoutCancel(ctx)
	start := time.Now()

	engine, err := domain.NewEngine(run.Config, domain.WithWorkers(s.engine.Workers), domain.WithProgress(progressLogger(ctx)))
	if err != nil {
		return s.fail(persistCtx, run, err)
	}

	rs, err := engine.Run(ctx)
	if err != nil && !errors.Is(err, domain.ErrRunCancelled) {
		return s.fail(persistCtx, run, err)
	}
	if err != nil {
		logger.Warn(ctx, "Simulation run cancelled, keeping partial results", "error", err)
	}

	if err := run.Finish(rs); err != nil {
		return s.fail(persistCtx, run, err)
	}
	if err := s.repo.SavePathResults(persistCtx, run.RunID, rs.Results); err != nil {
		return s.fail(persistCtx, run, fmt.Errorf("failed to save path results: %w", err))
	}
	if err := s.repo.SaveSamples(persistCtx, run.RunID, rs.Samples); err != nil {
		return s.fail(persistCtx, run, fmt.Errorf("failed to save sample paths: %w", err))
	}
	if err := s.repo.Save(persistCtx, run); err != nil {
		return fmt.Errorf("failed to save simulation run: %w", err)
	}
	if s.readRepo != nil && run.Status == domain.RunStatusCompleted {
		if err := s.readRepo.Save(persistCtx, run); err != nil {
			logger.Warn(persistCtx, "Failed to cache simulation run", "error", err)
		}
	}

	s.collector.RecordPaths(rs.Len(), len(rs.Failures), rs.UndefinedIRRCount())
	s.collector.RunFinished(string(run.Status), time.Since(start).Seconds())
	eventType, event := domain.NewRunFinishedEvent(run)
	s.publish(persistCtx, eventType, run.RunID, event)

	logger.Info(persistCtx, "Simulation run finished",
		"status", run.Status,
		"paths", rs.Len(),
		"failed_paths", len(rs.Failures),
		"mean_irr", run.Summary.IRR.Mean,
		"default_rate", run.Summary.DefaultRate,
		"duration", time.Since(start),
	)
	return nil
}

func (s *PoolSimCommandService) fail(ctx context.Context, run *domain.SimulationRun, cause error) error {
	run.Fail(cause)
	if err := s.repo.Save(ctx, run); err != nil {
		logger.Error(ctx, "Failed to save failed simulation run", "error", err)
	}
	s.collector.RunFinished(string(run.Status), run.Duration().Seconds())
	s.publish(ctx, domain.RunFailedEventType, run.RunID, domain.NewRunFailedEvent(run))
	logger.Error(ctx, "Simulation run failed", "error", cause)
	return cause
}

func (s *PoolSimCommandService) publish(ctx context.Context, eventType, key string, event any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, key, event); err != nil {
		logger.Warn(ctx, "Failed to publish event", "event_type", eventType, "key", key, "error", err)
	}
}

// findCompleted 先查 Redis 再查数据库
func (s *PoolSimCommandService) findCompleted(ctx context.Context, fingerprint string) *domain.SimulationRun {
	if s.readRepo != nil {
		run, err := s.readRepo.GetByFingerprint(ctx, fingerprint)
		if err == nil {
			return run
		}
		if !errors.Is(err, domain.ErrRunNotFound) {
			logger.Warn(ctx, "Failed to read run cache", "fingerprint", fingerprint, "error", err)
		}
	}

	run, err := s.repo.FindCompleted(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, domain.ErrRunNotFound) {
			logger.Warn(ctx, "Failed to look up completed run", "fingerprint", fingerprint, "error", err)
		}
		return nil
	}
	if s.readRepo != nil {
		if err := s.readRepo.Save(ctx, run); err != nil {
			logger.Warn(ctx, "Failed to cache simulation run", "run_id", run.RunID, "error", err)
		}
	}
	return run
}

// progressLogger 每完成 10% 记录一次进度
func progressLogger(ctx context.Context) domain.ProgressFunc {
	next := 0.1
	return func(done, total int) {
		frac := float64(done) / float64(total)
		if frac < next {
			return
		}
		for next <= frac {
			next += 0.1
		}
		logger.Debug(ctx, "Simulation progress", "done", done, "total", total)
	}
}
