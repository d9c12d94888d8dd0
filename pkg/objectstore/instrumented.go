package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nao1215/s3logmanager/pkg/objectstore"

// Metrics はバックエンド呼び出しのメトリクス。
type Metrics struct {
	// calls は操作・結果種別ごとの呼び出し回数。
	calls *prometheus.CounterVec
	// duration は操作ごとの所要時間。
	duration *prometheus.HistogramVec
}

// NewMetrics はメトリクスを生成し、regがnilでなければ登録する。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "s3logmanager",
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Total number of object store calls by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "s3logmanager",
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Object store call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.duration)
	}
	return m
}

// Instrumented はObjectStoreの各呼び出しにトレーススパンとメトリクスを付与するラッパー。
type Instrumented struct {
	next    ObjectStore
	metrics *Metrics
	tracer  trace.Tracer
}

// Instrument はnextをInstrumentedで包む。metricsがnilの場合はトレースのみ行う。
func Instrument(next ObjectStore, metrics *Metrics) *Instrumented {
	return &Instrumented{
		next:    next,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Bucket は操作対象のバケット名を返す。
func (i *Instrumented) Bucket() string {
	return i.next.Bucket()
}

// Put はnext.Putを計測付きで呼び出す。
func (i *Instrumented) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, done := i.start(ctx, "put", key)
	err := i.next.Put(ctx, key, r, size, contentType)
	done(err)
	return err
}

// Get はnext.Getを計測付きで呼び出す。
func (i *Instrumented) Get(ctx context.Context, key string, w io.Writer) (int64, error) {
	ctx, done := i.start(ctx, "get", key)
	n, err := i.next.Get(ctx, key, w)
	done(err)
	return n, err
}

// List はnext.Listを計測付きで呼び出す。
func (i *Instrumented) List(ctx context.Context) ([]string, error) {
	ctx, done := i.start(ctx, "list", "")
	keys, err := i.next.List(ctx)
	done(err)
	return keys, err
}

// Delete はnext.Deleteを計測付きで呼び出す。
func (i *Instrumented) Delete(ctx context.Context, key string) error {
	ctx, done := i.start(ctx, "delete", key)
	err := i.next.Delete(ctx, key)
	done(err)
	return err
}

// start はスパンを開始し、終了時に呼ぶ関数を返す。
func (i *Instrumented) start(ctx context.Context, op, key string) (context.Context, func(error)) {
	begin := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("objectstore.op", op),
		attribute.String("objectstore.bucket", i.next.Bucket()),
	}
	if key != "" {
		attrs = append(attrs, attribute.String("objectstore.key", key))
	}
	ctx, span := i.tracer.Start(ctx, "objectstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = KindName(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		if i.metrics != nil {
			i.metrics.calls.WithLabelValues(op, result).Inc()
			i.metrics.duration.WithLabelValues(op).Observe(time.Since(begin).Seconds())
		}
	}
}

var _ ObjectStore = (*Instrumented)(nil)
