// Package metrics 定义 API 进程暴露的 Prometheus 指标，统一使用 makerchecker_ 前缀
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal 按方法、路由模式和状态码统计请求数
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "makerchecker_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "makerchecker_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthFailuresTotal 按内部原因统计认证失败，原因不会返回给客户端：
	// missing expired malformed user_not_found disabled bad_credentials refresh_rejected
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "makerchecker_auth_failures_total",
			Help: "Total authentication failures by reason.",
		},
		[]string{"reason"},
	)

	// EmployeeReviewsTotal 按审核结果统计 checker 的决定
	EmployeeReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "makerchecker_employee_reviews_total",
			Help: "Total employee records approved or declined.",
		},
		[]string{"status"},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		AuthFailuresTotal,
		EmployeeReviewsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func ObserveRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler 只暴露本包注册表中的指标
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
