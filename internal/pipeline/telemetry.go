package pipeline

import "go.opentelemetry.io/otel/metric"

type instruments struct {
	transcriptions metric.Int64Counter
	evaluations    metric.Int64Counter
	score          metric.Int64Histogram
	stageDuration  metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	transcriptions, err := meter.Int64Counter("ortheloquence.transcriptions",
		metric.WithDescription("Audio transcriptions by outcome kind."))
	if err != nil {
		return nil, err
	}
	evaluations, err := meter.Int64Counter("ortheloquence.evaluations",
		metric.WithDescription("Exercise evaluations by category and outcome kind."))
	if err != nil {
		return nil, err
	}
	score, err := meter.Int64Histogram("ortheloquence.evaluation.score",
		metric.WithDescription("Exercise evaluation scores."),
		metric.WithExplicitBucketBoundaries(0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100))
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("ortheloquence.stage.duration",
		metric.WithDescription("Pipeline stage latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &instruments{
		transcriptions: transcriptions,
		evaluations:    evaluations,
		score:          score,
		stageDuration:  stageDuration,
	}, nil
}
