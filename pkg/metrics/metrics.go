// Package metrics 提供 Prometheus 指标集合与模拟服务的指标收集器
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/creditpool/pkg/logger"
)

const namespace = "creditpool"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数（按方法、路由、状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 模拟批次计数（按最终状态）
	RunsTotal *prometheus.CounterVec
	// 正在运行的批次数
	RunsActive prometheus.Gauge
	// 单个批次耗时
	RunDuration prometheus.Histogram
	// 已完成模拟的路径数
	PathsSimulated prometheus.Counter
	// 路径内部失败数（panic 被隔离）
	PathFailures prometheus.Counter
	// IRR 无解的路径数
	IRRUndefined prometheus.Counter

	// 结果缓存命中/未命中
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "runs_total",
			Help:      "Total simulation runs by final status",
		}, []string{"status"}),
		RunsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "runs_active",
			Help:      "Number of simulation runs in progress",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PathsSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "paths_simulated_total",
			Help:      "Total Monte Carlo paths simulated",
		}),
		PathFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "path_failures_total",
			Help:      "Total paths that failed with an internal error",
		}),
		IRRUndefined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "irr_undefined_total",
			Help:      "Total paths whose IRR has no root in the search bracket",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "result_cache_hits_total",
			Help:      "Simulation requests served from a previous run",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "result_cache_misses_total",
			Help:      "Simulation requests that required a new run",
		}),
	}
}

// Register 注册所有指标，reg 为空时使用默认注册器
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RunsTotal,
		m.RunsActive,
		m.RunDuration,
		m.PathsSimulated,
		m.PathFailures,
		m.IRRUndefined,
		m.CacheHits,
		m.CacheMisses,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 Prometheus 抓取端点
func Handler() http.Handler {
	return promhttp.Handler()
}

// Collector 指标收集器接口
type Collector interface {
	// 记录 HTTP 请求
	RecordHTTPRequest(method, route string, statusCode int, duration float64)
	// 批次开始
	RunStarted()
	// 批次结束
	RunFinished(status string, duration float64)
	// 记录完成的路径、失败路径与 IRR 无解路径
	RecordPaths(simulated, failed, undefinedIRR int)
	// 记录结果缓存访问
	RecordCache(hit bool)
}

// DefaultCollector 默认指标收集器实现
type DefaultCollector struct {
	metrics *Metrics
}

// NewDefaultCollector 创建默认指标收集器
func NewDefaultCollector(m *Metrics) *DefaultCollector {
	return &DefaultCollector{metrics: m}
}

// RecordHTTPRequest 记录 HTTP 请求
func (c *DefaultCollector) RecordHTTPRequest(method, route string, statusCode int, duration float64) {
	c.metrics.HTTPRequestsTotal.WithLabelValues(method, route, http.StatusText(statusCode)).Inc()
	c.metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// RunStarted 批次开始
func (c *DefaultCollector) RunStarted() {
	c.metrics.RunsActive.Inc()
}

// RunFinished 批次结束
func (c *DefaultCollector) RunFinished(status string, duration float64) {
	c.metrics.RunsActive.Dec()
	c.metrics.RunsTotal.WithLabelValues(status).Inc()
	c.metrics.RunDuration.Observe(duration)
}

// RecordPaths 记录路径数量
func (c *DefaultCollector) RecordPaths(simulated, failed, undefinedIRR int) {
	c.metrics.PathsSimulated.Add(float64(simulated))
	c.metrics.PathFailures.Add(float64(failed))
	c.metrics.IRRUndefined.Add(float64(undefinedIRR))
}

// RecordCache 记录结果缓存访问
func (c *DefaultCollector) RecordCache(hit bool) {
	if hit {
		c.metrics.CacheHits.Inc()
		return
	}
	c.metrics.CacheMisses.Inc()
}

// NopCollector 不记录任何指标，用于测试与批处理
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, float64) {}
func (NopCollector) RunStarted()                                      {}
func (NopCollector) RunFinished(string, float64)                      {}
func (NopCollector) RecordPaths(int, int, int)                        {}
func (NopCollector) RecordCache(bool)                                 {}
