package observe

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicemark metrics.
const meterName = "github.com/mingshi/voicemark"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ResolveDuration tracks end-to-end name resolution latency.
	ResolveDuration metric.Float64Histogram

	// Resolutions counts resolution calls. Use with attribute:
	//   attribute.String("stage", ...) — the record stage tag.
	Resolutions metric.Int64Counter

	// GradeUpdates counts gradebook counter updates. Use with attribute:
	//   attribute.String("status", "success"|"fail")
	GradeUpdates metric.Int64Counter

	// RosterSize records the size of the currently published roster snapshot.
	RosterSize metric.Int64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The
// pipeline is in-process and CPU-bound, so the buckets skew small.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ResolveDuration, err = m.Float64Histogram("voicemark.resolve.duration",
		metric.WithDescription("Latency of one name resolution call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Resolutions, err = m.Int64Counter("voicemark.resolutions",
		metric.WithDescription("Total resolution calls by outcome stage."),
	); err != nil {
		return nil, err
	}
	if met.GradeUpdates, err = m.Int64Counter("voicemark.grade.updates",
		metric.WithDescription("Total gradebook updates by status."),
	); err != nil {
		return nil, err
	}
	if met.RosterSize, err = m.Int64Gauge("voicemark.roster.size",
		metric.WithDescription("Number of entries in the published roster snapshot."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// StageAttr returns the metric attribute for a record stage.
func StageAttr(s Stage) attribute.KeyValue {
	return attribute.String("stage", string(s))
}

// StatusAttr returns the metric attribute for a gradebook update status.
func StatusAttr(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("status", "success")
	}
	return attribute.String("status", "fail")
}
