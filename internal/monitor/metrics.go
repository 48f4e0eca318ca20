package monitor

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mall/pkg/utils"
)

// MetricsCollector 指标收集器。nil 接收者上的所有 Record 方法都是空操作，便于测试。
type MetricsCollector struct {
	registry *prometheus.Registry

	// 业务指标
	transitionTotal   *prometheus.CounterVec
	transitionSeconds *prometheus.HistogramVec
	teamJoinTotal     *prometheus.CounterVec
	bargainCutTotal   *prometheus.CounterVec
	flashSaleTotal    *prometheus.CounterVec
	inventoryTotal    *prometheus.CounterVec
	sweepTotal        *prometheus.CounterVec

	// 事件
	eventTotal *prometheus.CounterVec

	// 缓存
	cacheTotal *prometheus.CounterVec

	// HTTP
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetricsCollector 创建新的指标收集器，使用独立注册器
func NewMetricsCollector(namespace string) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,
		transitionTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transition_total",
			Help:      "Order state machine operations by result",
		}, []string{"operation", "result"}),
		transitionSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_transition_duration_seconds",
			Help:      "Duration of order state machine operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		teamJoinTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "team_join_total",
			Help:      "Team join attempts by result",
		}, []string{"result"}),
		bargainCutTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bargain_cut_total",
			Help:      "Bargain helper cuts by result",
		}, []string{"result"}),
		flashSaleTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_sale_reserve_total",
			Help:      "Flash-sale reservations by result",
		}, []string{"result"}),
		inventoryTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_change_total",
			Help:      "Ledger stock changes by owner type, operation and result",
		}, []string{"owner_type", "operation", "result"}),
		sweepTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_items_total",
			Help:      "Items transitioned by the expiry sweeper",
		}, []string{"kind"}),
		eventTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_total",
			Help:      "Domain events published and consumed",
		}, []string{"type", "direction", "result"}),
		cacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_request_total",
			Help:      "Cache lookups by layer and result",
		}, []string{"layer", "result"}),
		httpRequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Registry 获取Prometheus注册器
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RegisterDB 注册数据库连接池指标
func (mc *MetricsCollector) RegisterDB(db *sql.DB, name string) error {
	if mc == nil {
		return nil
	}
	return mc.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Result 将错误转换为指标标签
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if appErr, ok := utils.IsAppError(err); ok {
		return appErr.Code.String()
	}
	return "error"
}

// RecordTransition 记录订单状态机操作
func (mc *MetricsCollector) RecordTransition(operation string, err error, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.transitionTotal.WithLabelValues(operation, Result(err)).Inc()
	mc.transitionSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTeamJoin 记录拼团加入
func (mc *MetricsCollector) RecordTeamJoin(err error) {
	if mc == nil {
		return
	}
	mc.teamJoinTotal.WithLabelValues(Result(err)).Inc()
}

// RecordBargainCut 记录砍价
func (mc *MetricsCollector) RecordBargainCut(err error) {
	if mc == nil {
		return
	}
	mc.bargainCutTotal.WithLabelValues(Result(err)).Inc()
}

// RecordFlashSale 记录秒杀预占
func (mc *MetricsCollector) RecordFlashSale(err error) {
	if mc == nil {
		return
	}
	mc.flashSaleTotal.WithLabelValues(Result(err)).Inc()
}

// RecordInventory 记录库存变更
func (mc *MetricsCollector) RecordInventory(ownerType, operation string, err error) {
	if mc == nil {
		return
	}
	mc.inventoryTotal.WithLabelValues(ownerType, operation, Result(err)).Inc()
}

// RecordSweep 记录过期扫描处理数量
func (mc *MetricsCollector) RecordSweep(kind string, n int) {
	if mc == nil || n <= 0 {
		return
	}
	mc.sweepTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordEvent 记录事件发布/消费
func (mc *MetricsCollector) RecordEvent(eventType, direction string, err error) {
	if mc == nil {
		return
	}
	mc.eventTotal.WithLabelValues(eventType, direction, Result(err)).Inc()
}

// RecordCache 记录缓存命中
func (mc *MetricsCollector) RecordCache(layer, result string) {
	if mc == nil {
		return
	}
	mc.cacheTotal.WithLabelValues(layer, result).Inc()
}

// RecordHTTPRequest 记录HTTP请求
func (mc *MetricsCollector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.httpRequestTotal.WithLabelValues(method, path, status).Inc()
	mc.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
