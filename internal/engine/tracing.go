package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/lazypower/cadence/internal/engine"

const (
	spanStartSession = "engine.start_session"
	spanGrade        = "engine.grade"
	spanPersist      = "engine.persist"
	spanPreview      = "engine.preview"
	spanForget       = "engine.forget"
	spanReschedule   = "engine.reschedule"
	spanDeckCounts   = "engine.deck_counts"
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
