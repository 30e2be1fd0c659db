// Package metrics 提供防火墙同步相关的 Prometheus 指标
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry 持有同步过程的全部指标，所有方法对 nil 安全
type Registry struct {
	reg *prometheus.Registry

	RunsTotal            *prometheus.CounterVec
	RulesDeleted         prometheus.Counter
	RulesCreated         prometheus.Counter
	LastRunTimestamp     prometheus.Gauge
	LastSuccessTimestamp prometheus.Gauge
	IPChanges            prometheus.Counter

	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// New 创建独立的指标注册表
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dfirewall_runs_total",
			Help: "Reconcile runs by terminal state",
		}, []string{"state"}),
		RulesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "dfirewall_rules_deleted_total",
			Help: "Firewall rules deleted",
		}),
		RulesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "dfirewall_rules_created_total",
			Help: "Firewall rules created",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "dfirewall_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last reconcile run",
		}),
		LastSuccessTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "dfirewall_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful reconcile run",
		}),
		IPChanges: f.NewCounter(prometheus.CounterOpts{
			Name: "dfirewall_ip_changes_total",
			Help: "Detected public IP changes",
		}),
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dfirewall_api_requests_total",
			Help: "Cloud API requests by action and result",
		}, []string{"action", "result"}),
		APILatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dfirewall_api_request_duration_seconds",
			Help:    "Cloud API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// Gatherer 返回底层注册表
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveRequest 记录一次云 API 调用
func (r *Registry) ObserveRequest(action, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.APIRequests.WithLabelValues(action, result).Inc()
	r.APILatency.WithLabelValues(action).Observe(d.Seconds())
}

// ObserveRun 记录一次同步结果
func (r *Registry) ObserveRun(state string, success bool, at time.Time) {
	if r == nil {
		return
	}
	r.RunsTotal.WithLabelValues(state).Inc()
	r.LastRunTimestamp.Set(float64(at.Unix()))
	if success {
		r.LastSuccessTimestamp.Set(float64(at.Unix()))
	}
}

// AddRules 累加删除和创建的规则数
func (r *Registry) AddRules(deleted, created int) {
	if r == nil {
		return
	}
	r.RulesDeleted.Add(float64(deleted))
	r.RulesCreated.Add(float64(created))
}

// IPChanged 记录一次 IP 变化
func (r *Registry) IPChanged() {
	if r == nil {
		return
	}
	r.IPChanges.Inc()
}

// WriteTextfile 以 node_exporter textfile 格式写出指标
func (r *Registry) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile failed: %w", err)
	}
	return nil
}
