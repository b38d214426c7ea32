package export

import (
	"fmt"
	"io"
	"time"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	PathsSheet   = "Paths"
	SamplesSheet = "Samples"

	numFmtPercent = 10 // 0.00%
	numFmtAmount  = 4  // #,##0.00
)

var pathColumns = []string{"path_id", "irr", "npv", "defaults", "recoveries"}

var sampleColumns = []string{"path_id", "step", "forward_rate", "discount_factor", "mean_collateral", "pool_cash_flow", "investor_cash_flow"}

type workbook struct {
	file    *excelize.File
	header  int
	percent int
	amount  int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(PathsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	wb := &workbook{file: f}
	var err error
	if wb.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	}); err != nil {
		return nil, err
	}
	if wb.percent, err = f.NewStyle(&excelize.Style{NumFmt: numFmtPercent}); err != nil {
		return nil, err
	}
	if wb.amount, err = f.NewStyle(&excelize.Style{NumFmt: numFmtAmount}); err != nil {
		return nil, err
	}
	return wb, nil
}

// setRow 从 (col, row) 开始写一行，style 为 0 时不设置样式
func (wb *workbook) setRow(sheet string, col, row int, values []any, style int) error {
	start, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := wb.file.SetSheetRow(sheet, start, &values); err != nil {
		return err
	}
	if style == 0 {
		return nil
	}
	end, _ := excelize.CoordinatesToCellName(col+len(values)-1, row)
	return wb.file.SetCellStyle(sheet, start, end, style)
}

func (wb *workbook) styleColumn(sheet string, col, from, to, style int) error {
	if to < from {
		return nil
	}
	start, _ := excelize.CoordinatesToCellName(col, from)
	end, _ := excelize.CoordinatesToCellName(col, to)
	return wb.file.SetCellStyle(sheet, start, end, style)
}

// WriteExcel 写出批次报告：Summary 页为批次信息与统计，Paths 页为逐路径结果，
// 有样本路径时 Samples 页按 (路径, 步) 展开利率、抵押品与现金流序列
func (e *Exporter) WriteExcel(w io.Writer, run *domain.SimulationRun, results []domain.PathResult, samples []*domain.Path) error {
	wb, err := newWorkbook()
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	defer wb.file.Close()

	if err := wb.writeSummary(run); err != nil {
		return fmt.Errorf("failed to write summary sheet: %w", err)
	}
	if err := wb.writePaths(results); err != nil {
		return fmt.Errorf("failed to write paths sheet: %w", err)
	}
	if len(samples) > 0 {
		if err := wb.writeSamples(samples); err != nil {
			return fmt.Errorf("failed to write samples sheet: %w", err)
		}
	}
	wb.file.SetActiveSheet(0)
	return wb.file.Write(w)
}

func (wb *workbook) writeSummary(run *domain.SimulationRun) error {
	cfg := run.Config
	info := [][]any{
		{"Run ID", run.RunID},
		{"Scenario", run.Scenario},
		{"Status", string(run.Status)},
		{"Fingerprint", run.Fingerprint},
		{"Seed", cfg.Seed},
		{"Requested paths", cfg.NumPaths},
		{"Completed paths", run.CompletedPaths},
		{"Failed paths", run.FailedPaths},
		{"Total corpus", cfg.TotalCorpus},
		{"Projects", cfg.NumProjects},
		{"Investors", cfg.NumInvestors},
		{"Horizon (years)", cfg.HorizonYears},
		{"Steps per year", cfg.StepsPerYear},
		{"Loan coupon", cfg.LoanCoupon},
		{"Amortization", string(cfg.Amortization)},
		{"Started at", formatTime(run.StartedAt)},
		{"Finished at", formatTime(run.FinishedAt)},
	}
	if err := wb.setRow(SummarySheet, 1, 1, []any{"Field", "Value"}, wb.header); err != nil {
		return err
	}
	row := 2
	for _, kv := range info {
		if err := wb.setRow(SummarySheet, 1, row, kv, 0); err != nil {
			return err
		}
		row++
	}
	if err := wb.file.SetColWidth(SummarySheet, "A", "A", 22); err != nil {
		return err
	}
	if err := wb.file.SetColWidth(SummarySheet, "B", "C", 24); err != nil {
		return err
	}

	s := run.Summary
	if s == nil {
		return nil
	}

	row++
	if err := wb.setRow(SummarySheet, 1, row, []any{"Statistic", "IRR", "NPV"}, wb.header); err != nil {
		return err
	}
	stats := [][]any{
		{"Count", s.IRR.Count, s.NPV.Count},
		{"Mean", s.IRR.Mean, s.NPV.Mean},
		{"Median", s.IRR.Median, s.NPV.Median},
		{"Std", s.IRR.Std, s.NPV.Std},
		{"Min", s.IRR.Min, s.NPV.Min},
		{"P5", s.IRR.P5, s.NPV.P5},
		{"P25", s.IRR.P25, s.NPV.P25},
		{"P75", s.IRR.P75, s.NPV.P75},
		{"P95", s.IRR.P95, s.NPV.P95},
		{"Max", s.IRR.Max, s.NPV.Max},
	}
	first := row + 1
	for _, r := range stats {
		row++
		if err := wb.setRow(SummarySheet, 1, row, r, 0); err != nil {
			return err
		}
	}
	// Count 行保持整数格式
	if err := wb.styleColumn(SummarySheet, 2, first+1, row, wb.percent); err != nil {
		return err
	}
	if err := wb.styleColumn(SummarySheet, 3, first+1, row, wb.amount); err != nil {
		return err
	}

	row += 2
	risk := [][]any{
		{"Undefined IRR paths", s.IRRUndefined},
		{"Probability of loss", s.ProbLoss},
		{"Default rate", s.DefaultRate},
	}
	for _, r := range risk {
		if err := wb.setRow(SummarySheet, 1, row, r, 0); err != nil {
			return err
		}
		row++
	}
	if err := wb.styleColumn(SummarySheet, 2, row-2, row-1, wb.percent); err != nil {
		return err
	}

	row++
	if err := wb.setRow(SummarySheet, 1, row, []any{"IRR bucket", "Paths", "Probability"}, wb.header); err != nil {
		return err
	}
	for _, b := range s.IRRBuckets {
		row++
		if err := wb.setRow(SummarySheet, 1, row, []any{b.Label, b.Count, b.Probability}, 0); err != nil {
			return err
		}
	}
	if err := wb.styleColumn(SummarySheet, 3, row-len(s.IRRBuckets)+1, row, wb.percent); err != nil {
		return err
	}

	row += 2
	if err := wb.setRow(SummarySheet, 1, row, []any{"Step", "Expected cash flow", "Std"}, wb.header); err != nil {
		return err
	}
	for t, cf := range s.ExpectedCashFlow {
		row++
		if err := wb.setRow(SummarySheet, 1, row, []any{t, cf, s.CashFlowStd[t]}, 0); err != nil {
			return err
		}
	}
	n := len(s.ExpectedCashFlow)
	if err := wb.styleColumn(SummarySheet, 2, row-n+1, row, wb.amount); err != nil {
		return err
	}
	return wb.styleColumn(SummarySheet, 3, row-n+1, row, wb.amount)
}

func (wb *workbook) writePaths(results []domain.PathResult) error {
	header := make([]any, len(pathColumns))
	for i, c := range pathColumns {
		header[i] = c
	}
	if err := wb.setRow(PathsSheet, 1, 1, header, wb.header); err != nil {
		return err
	}

	for i := range results {
		r := &results[i]
		var irr any = UndefinedIRR
		if r.IRRDefined {
			irr = r.IRR
		}
		recovered := 0.0
		for _, v := range r.Recoveries {
			recovered += v
		}
		if err := wb.setRow(PathsSheet, 1, i+2, []any{r.PathID, irr, r.NPV, r.DefaultCount(), recovered}, 0); err != nil {
			return err
		}
	}

	if n := len(results); n > 0 {
		if err := wb.styleColumn(PathsSheet, 2, 2, n+1, wb.percent); err != nil {
			return err
		}
		if err := wb.styleColumn(PathsSheet, 3, 2, n+1, wb.amount); err != nil {
			return err
		}
		if err := wb.styleColumn(PathsSheet, 5, 2, n+1, wb.amount); err != nil {
			return err
		}
	}
	if err := wb.file.SetColWidth(PathsSheet, "A", "E", 16); err != nil {
		return err
	}

	// 冻结表头
	return wb.file.SetPanes(PathsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (wb *workbook) writeSamples(samples []*domain.Path) error {
	if _, err := wb.file.NewSheet(SamplesSheet); err != nil {
		return err
	}
	header := make([]any, len(sampleColumns))
	for i, c := range sampleColumns {
		header[i] = c
	}
	if err := wb.setRow(SamplesSheet, 1, 1, header, wb.header); err != nil {
		return err
	}

	row := 1
	for _, p := range samples {
		for t := range p.ForwardRates {
			row++
			values := []any{
				p.PathID, t,
				p.ForwardRates[t],
				at(p.DiscountFactors, t),
				meanCollateral(p.Collateral, t),
				at(p.CashFlows.Pool, t),
				at(p.CashFlows.Investor, t),
			}
			if err := wb.setRow(SamplesSheet, 1, row, values, 0); err != nil {
				return err
			}
		}
	}
	if row > 1 {
		if err := wb.styleColumn(SamplesSheet, 3, 2, row, wb.percent); err != nil {
			return err
		}
		for col := 5; col <= 7; col++ {
			if err := wb.styleColumn(SamplesSheet, col, 2, row, wb.amount); err != nil {
				return err
			}
		}
	}
	return wb.file.SetColWidth(SamplesSheet, "A", "G", 18)
}

func at(series []float64, t int) float64 {
	if t < len(series) {
		return series[t]
	}
	return 0
}

func meanCollateral(values [][]float64, t int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += at(v, t)
	}
	return sum / float64(len(values))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
