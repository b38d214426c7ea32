package application

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/logger"
	"github.com/wyfcoding/creditpool/pkg/utils"
)

// ReportExporter 路径结果导出
type ReportExporter interface {
	WriteCSV(w io.Writer, results []domain.PathResult) error
	WriteExcel(w io.Writer, run *domain.SimulationRun, results []domain.PathResult, samples []*domain.Path) error
}

// PoolSimQueryService 模拟查询服务
type PoolSimQueryService struct {
	repo     domain.RunRepository
	readRepo domain.RunReadRepository
	exporter ReportExporter
}

// NewPoolSimQueryService 创建模拟查询服务实例
func NewPoolSimQueryService(repo domain.RunRepository, readRepo domain.RunReadRepository, exporter ReportExporter) *PoolSimQueryService {
	return &PoolSimQueryService{repo: repo, readRepo: readRepo, exporter: exporter}
}

// GetRun 获取批次，终态批次优先读缓存
func (s *PoolSimQueryService) GetRun(ctx context.Context, runID string) (*RunDTO, error) {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return toRunDTO(run), nil
}

// ListRuns 分页列出批次
func (s *PoolSimQueryService) ListRuns(ctx context.Context, page, pageSize int) (*RunListDTO, error) {
	p := utils.NewPagination(page, pageSize, 0)
	runs, total, err := s.repo.List(ctx, p.Offset(), p.Limit())
	if err != nil {
		return nil, err
	}
	p = utils.NewPagination(p.Page, p.PageSize, total)

	items := make([]*RunDTO, len(runs))
	for i, r := range runs {
		items[i] = toRunDTO(r)
	}
	return &RunListDTO{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.Pages,
	}, nil
}

// GetPathResults 批次的全部路径结果，按路径序号排列
func (s *PoolSimQueryService) GetPathResults(ctx context.Context, runID string) ([]domain.PathResult, error) {
	if _, err := s.getRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.repo.ListPathResults(ctx, runID)
}

// ExportCSV 以 path_id,irr,npv 格式导出路径结果
func (s *PoolSimQueryService) ExportCSV(ctx context.Context, runID string, w io.Writer) error {
	results, err := s.GetPathResults(ctx, runID)
	if err != nil {
		return err
	}
	if err := s.exporter.WriteCSV(w, results); err != nil {
		return fmt.Errorf("failed to export csv: %w", err)
	}
	return nil
}

// ExportExcel 导出包含汇总、路径明细与样本路径的 Excel 报告
func (s *PoolSimQueryService) ExportExcel(ctx context.Context, runID string, w io.Writer) error {
	run, err := s.getRun(ctx, runID)
	if err != nil {
		return err
	}
	results, err := s.repo.ListPathResults(ctx, runID)
	if err != nil {
		return err
	}
	samples, err := s.repo.ListSamples(ctx, runID)
	if err != nil {
		return err
	}
	if err := s.exporter.WriteExcel(w, run, results, samples); err != nil {
		return fmt.Errorf("failed to export excel report: %w", err)
	}
	return nil
}

// GetSamples 批次保留的前 K 条样本路径
func (s *PoolSimQueryService) GetSamples(ctx context.Context, runID string) (*SamplesDTO, error) {
	if _, err := s.getRun(ctx, runID); err != nil {
		return nil, err
	}
	samples, err := s.repo.ListSamples(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &SamplesDTO{RunID: runID, Items: samples}, nil
}

// GetHistogram 按路径 IRR 或 NPV 计算等宽直方图与累计分布，IRR 无解的路径不计入
func (s *PoolSimQueryService) GetHistogram(ctx context.Context, runID string, q HistogramQuery) (*HistogramDTO, error) {
	if q.Metric == "" {
		q.Metric = HistogramMetricIRR
	}
	if q.Bins == 0 {
		q.Bins = DefaultHistogramBins
	}
	if q.Metric != HistogramMetricIRR && q.Metric != HistogramMetricNPV {
		return nil, &domain.ConfigError{Fields: []domain.FieldError{{
			Field: "metric", Reason: fmt.Sprintf("must be %s or %s, got %q", HistogramMetricIRR, HistogramMetricNPV, q.Metric),
		}}}
	}
	if q.Bins < 1 || q.Bins > MaxHistogramBins {
		return nil, &domain.ConfigError{Fields: []domain.FieldError{{
			Field: "bins", Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxHistogramBins, q.Bins),
		}}}
	}

	results, err := s.GetPathResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	rs := &domain.ResultSet{Results: results}
	values := rs.NPVs()
	if q.Metric == HistogramMetricIRR {
		values = rs.DefinedIRRs()
	}
	bins := domain.Histogram(values, q.Bins)
	if bins == nil {
		bins = []domain.HistogramBin{}
	}
	return &HistogramDTO{
		RunID:    runID,
		Metric:   q.Metric,
		Paths:    len(results),
		Excluded: len(results) - len(values),
		Bins:     bins,
	}, nil
}

func (s *PoolSimQueryService) getRun(ctx context.Context, runID string) (*domain.SimulationRun, error) {
	if s.readRepo != nil {
		run, err := s.readRepo.Get(ctx, runID)
		if err == nil {
			return run, nil
		}
		if !errors.Is(err, domain.ErrRunNotFound) {
			logger.Warn(ctx, "Failed to read run cache", "run_id", runID, "error", err)
		}
	}

	run, err := s.repo.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if s.readRepo != nil && run.Status.Terminal() {
		if err := s.readRepo.Save(ctx, run); err != nil {
			logger.Warn(ctx, "Failed to cache simulation run", "run_id", runID, "error", err)
		}
	}
	return run, nil
}
