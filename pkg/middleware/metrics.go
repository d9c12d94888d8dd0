package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsPath はメトリクス公開エンドポイントのパス。自身の計測対象からは除外する。
const metricsPath = "/metrics"

// HTTPMetrics はHTTPリクエストのPrometheusメトリクス。
type HTTPMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

// NewHTTPMetrics はHTTPメトリクスを生成し、regがnilでなければ登録する。
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "s3logmanager",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status_class"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "s3logmanager",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_class"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "s3logmanager",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of HTTP requests with status >= 400.",
		}, []string{"method", "route", "status_code"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestTotal, m.requestDuration, m.requestErrors)
	}
	return m
}

// Metrics はリクエスト数・レイテンシ・エラー数を記録するGinミドルウェアを返す。
// metricsがnilの場合は何もしない。
func Metrics(metrics *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil || c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := routeLabel(c)
		status := c.Writer.Status()
		class := statusClass(status)

		metrics.requestTotal.WithLabelValues(c.Request.Method, route, class).Inc()
		metrics.requestDuration.WithLabelValues(c.Request.Method, route, class).Observe(time.Since(start).Seconds())
		if status >= 400 {
			metrics.requestErrors.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		}
	}
}

// MetricsHandler はgathererの内容をPrometheus形式で返すハンドラーを返す。
// gathererがnilの場合はデフォルトのGathererを使用する。
func MetricsHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// routeLabel はマッチしたルートパターンを返す。
// ファイル名ごとにラベルが増えないよう、未マッチのパスは "unmatched" にまとめる。
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
