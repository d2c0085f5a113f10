// Package metrics 采集运行的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "index_collector"

var (
	// RunsTotal 采集运行次数，按结果分类（success / failed / skipped）
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of collection runs",
		},
		[]string{"status"},
	)

	// RunDuration 单次运行耗时
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of collection runs in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)

	// SourceResults 数据源结果，按数据源与提取方式分类
	SourceResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_results_total",
			Help:      "Source results by extraction method",
		},
		[]string{"source", "method"},
	)

	// Running 当前是否有运行中的采集
	Running = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "Whether a collection run is in progress (1 = running)",
		},
	)
)
