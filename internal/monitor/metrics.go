package monitor

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// 采样指标
	SamplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dmm_samples_total",
		Help: "写入数据文件的采样总数",
	})

	ReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmm_reads_total",
			Help: "按仪器地址统计的读数次数",
		},
		[]string{"address"},
	)

	ReadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dmm_read_errors_total",
		Help: "致命的仪器读取错误数",
	})

	// 刷新指标
	FlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dmm_flushes_total",
		Help: "数据文件强制刷新次数",
	})

	// 延迟指标
	ReadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dmm_read_duration_seconds",
		Help:    "单次仪器读取耗时",
		Buckets: prometheus.DefBuckets,
	})

	ElapsedMinutes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dmm_elapsed_minutes",
		Help: "自第一个成功读数以来经过的分钟数",
	})
)

type Monitor struct {
	log *logrus.Logger
}

func NewMonitor(log *logrus.Logger) *Monitor {
	// 注册指标
	prometheus.MustRegister(
		SamplesTotal,
		ReadsTotal,
		ReadErrors,
		FlushesTotal,
		ReadDuration,
		ElapsedMinutes,
	)

	return &Monitor{log: log}
}

// StartMetricsServer 启动Metrics HTTP服务器
func (m *Monitor) StartMetricsServer(port int) {
	http.Handle("/metrics", promhttp.Handler())

	// 健康检查端点
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	m.log.Infof("Metrics服务器启动: %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			m.log.Errorf("Metrics服务器错误: %v", err)
		}
	}()
}
