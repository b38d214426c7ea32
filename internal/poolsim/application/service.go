package application

import (
	"context"
	"io"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/metrics"
)

// PoolSimApplicationService 资金池模拟服务门面，整合命令服务和查询服务
type PoolSimApplicationService struct {
	commandService *PoolSimCommandService
	queryService   *PoolSimQueryService
}

// NewPoolSimApplicationService 创建资金池模拟服务门面实例
func NewPoolSimApplicationService(
	cfg *Config,
	repo domain.RunRepository,
	readRepo domain.RunReadRepository,
	publisher domain.EventPublisher,
	exporter ReportExporter,
	collector metrics.Collector,
) *PoolSimApplicationService {
	return &PoolSimApplicationService{
		commandService: NewPoolSimCommandService(cfg, repo, readRepo, publisher, collector),
		queryService:   NewPoolSimQueryService(repo, readRepo, exporter),
	}
}

// RunSimulation 同步运行模拟
func (s *PoolSimApplicationService) RunSimulation(ctx context.Context, cmd RunSimulationCommand) (*RunDTO, error) {
	return s.commandService.RunSimulation(ctx, cmd)
}

// StartSimulation 后台运行模拟
func (s *PoolSimApplicationService) StartSimulation(ctx context.Context, cmd RunSimulationCommand) (*RunDTO, error) {
	return s.commandService.StartSimulation(ctx, cmd)
}

// StopSimulation 停止后台模拟
func (s *PoolSimApplicationService) StopSimulation(ctx context.Context, runID string) error {
	return s.commandService.StopSimulation(ctx, runID)
}

// CompareScenarios 情景对比
func (s *PoolSimApplicationService) CompareScenarios(ctx context.Context, cmd CompareScenariosCommand) (*ComparisonDTO, error) {
	return s.commandService.CompareScenarios(ctx, cmd)
}

// ListScenarios 已注册的情景
func (s *PoolSimApplicationService) ListScenarios() []domain.Scenario {
	set := s.commandService.Scenarios()
	names := set.Names()
	out := make([]domain.Scenario, 0, len(names))
	for _, name := range names {
		sc, _ := set.Get(name)
		out = append(out, sc)
	}
	return out
}

// Shutdown 停止所有后台模拟
func (s *PoolSimApplicationService) Shutdown(ctx context.Context) error {
	return s.commandService.Shutdown(ctx)
}

// GetRun 获取批次
func (s *PoolSimApplicationService) GetRun(ctx context.Context, runID string) (*RunDTO, error) {
	return s.queryService.GetRun(ctx, runID)
}

// ListRuns 分页列出批次
func (s *PoolSimApplicationService) ListRuns(ctx context.Context, page, pageSize int) (*RunListDTO, error) {
	return s.queryService.ListRuns(ctx, page, pageSize)
}

// GetPathResults 获取路径结果
func (s *PoolSimApplicationService) GetPathResults(ctx context.Context, runID string) ([]domain.PathResult, error) {
	return s.queryService.GetPathResults(ctx, runID)
}

// ExportCSV 导出 CSV
func (s *PoolSimApplicationService) ExportCSV(ctx context.Context, runID string, w io.Writer) error {
	return s.queryService.ExportCSV(ctx, runID, w)
}

// ExportExcel 导出 Excel 报告
func (s *PoolSimApplicationService) ExportExcel(ctx context.Context, runID string, w io.Writer) error {
	return s.queryService.ExportExcel(ctx, runID, w)
}

// GetSamples 获取样本路径
func (s *PoolSimApplicationService) GetSamples(ctx context.Context, runID string) (*SamplesDTO, error) {
	return s.queryService.GetSamples(ctx, runID)
}

// GetHistogram 获取路径指标直方图
func (s *PoolSimApplicationService) GetHistogram(ctx context.Context, runID string, q HistogramQuery) (*HistogramDTO, error) {
	return s.queryService.GetHistogram(ctx, runID, q)
}
