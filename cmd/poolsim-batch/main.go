// PoolSim 批处理程序
// 功能：按配置文件与命令行参数运行一次模拟，输出汇总日志、simulation_results.csv 与 report.xlsx（含样本路径）
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wyfcoding/creditpool/internal/poolsim/application"
	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/internal/poolsim/infrastructure/export"
	"github.com/wyfcoding/creditpool/pkg/config"
	"github.com/wyfcoding/creditpool/pkg/logger"
)

const (
	csvFileName    = "simulation_results.csv"
	reportFileName = "report.xlsx"
)

// options 命令行参数，Seed 为 nil 表示沿用配置中的种子
type options struct {
	ConfigPath string
	OutDir     string
	Scenario   string
	Paths      int
	Seed       *uint64
	Workers    int
}

func parseFlags(args []string) (options, error) {
	var opts options
	var seed uint64
	fs := flag.NewFlagSet("poolsim-batch", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "configs/poolsim/config.toml", "path to config file")
	fs.StringVar(&opts.OutDir, "out", ".", "output directory")
	fs.StringVar(&opts.Scenario, "scenario", domain.ScenarioBase, "stress scenario name")
	fs.IntVar(&opts.Paths, "paths", 0, "number of Monte Carlo paths (0 uses config)")
	fs.Uint64Var(&seed, "seed", 0, "random seed (defaults to config)")
	fs.IntVar(&opts.Workers, "workers", 0, "worker count (0 uses config, then GOMAXPROCS)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	// -seed 0 是合法种子，只有显式给出时才覆盖配置
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.Seed = &seed
		}
	})
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg := application.NewConfig()
	if err := config.Load(opts.ConfigPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		logger.Error(ctx, "Batch simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *application.Config, opts options) error {
	sc, err := domain.NewScenarioSet().Get(opts.Scenario)
	if err != nil {
		return err
	}
	simCfg := sc.Apply(cfg.Simulation)
	if opts.Paths > 0 {
		simCfg.NumPaths = opts.Paths
	}
	if opts.Seed != nil {
		simCfg.Seed = *opts.Seed
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = cfg.Engine.Workers
	}

	simRun, err := domain.NewSimulationRun(sc.Name, simCfg)
	if err != nil {
		return err
	}
	ctx = logger.WithRunID(ctx, simRun.RunID)

	step := max(1, simCfg.NumPaths/10)
	engine, err := domain.NewEngine(simCfg,
		domain.WithWorkers(workers),
		domain.WithProgress(func(done, total int) {
			if done%step == 0 || done == total {
				logger.Info(ctx, "Simulation progress", "done", done, "total", total)
			}
		}),
	)
	if err != nil {
		return err
	}

	if err := simRun.Start(); err != nil {
		return err
	}
	logger.Info(ctx, "Running batch simulation", "scenario", sc.Name, "paths", simCfg.NumPaths, "seed", simCfg.Seed)
	done := logger.LogDuration(ctx, "Batch simulation finished")
	rs, err := engine.Run(ctx)
	done()
	if err != nil && !errors.Is(err, domain.ErrRunCancelled) {
		return err
	}
	if err := simRun.Finish(rs); err != nil {
		return err
	}
	logSummary(ctx, simRun)
	logIRRDistribution(ctx, rs, application.DefaultHistogramBins)

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	exporter := export.NewExporter()
	if err := writeFile(filepath.Join(opts.OutDir, csvFileName), func(f *os.File) error {
		return exporter.WriteCSV(f, rs.Results)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(opts.OutDir, reportFileName), func(f *os.File) error {
		return exporter.WriteExcel(f, simRun, rs.Results, rs.Samples)
	}); err != nil {
		return err
	}
	logger.Info(ctx, "Results written", "dir", opts.OutDir, "status", simRun.Status)
	return nil
}

func logSummary(ctx context.Context, r *domain.SimulationRun) {
	s := r.Summary
	logger.Info(ctx, "Simulation summary",
		"status", r.Status,
		"paths", s.Paths,
		"failed", s.Failed,
		"irr_mean", s.IRR.Mean,
		"irr_median", s.IRR.Median,
		"irr_std", s.IRR.Std,
		"irr_p5", s.IRR.P5,
		"irr_p95", s.IRR.P95,
		"irr_undefined", s.IRRUndefined,
		"npv_mean", s.NPV.Mean,
		"prob_loss", s.ProbLoss,
		"default_rate", s.DefaultRate,
	)
	for _, b := range s.IRRBuckets {
		logger.Info(ctx, "IRR bucket", "range", b.Label, "probability", b.Probability)
	}
}

// logIRRDistribution 输出 IRR 的经验累计分布
func logIRRDistribution(ctx context.Context, rs *domain.ResultSet, bins int) {
	for _, b := range domain.Histogram(rs.DefinedIRRs(), bins) {
		logger.Debug(ctx, "IRR histogram bin", "lower", b.Lower, "upper", b.Upper, "count", b.Count, "cdf", b.Cumulative)
	}
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
