package tracer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yndnr/stashkv/internal/pipeline"
)

// HookName is the name the tracing hook registers under.
const HookName = "tracing"

const spanExtension = "tracing.span"

// Hook opens a span in its before stage and closes it once the
// invocation finishes. Register it first so the span covers every
// other hook.
type Hook struct {
	tracer trace.Tracer
}

// NewHook creates a tracing hook on p.
func NewHook(p *Provider) *Hook {
	return &Hook{tracer: p.Tracer()}
}

// Name implements pipeline.Hook.
func (h *Hook) Name() string { return HookName }

// Before implements pipeline.BeforeHook.
func (h *Hook) Before(ctx context.Context, oc *pipeline.OperationContext) error {
	oc.SetExtension(spanExtension, h.start(ctx, oc))
	return nil
}

// Finish implements pipeline.FinishHook.
func (h *Hook) Finish(ctx context.Context, oc *pipeline.OperationContext, result any, err error) {
	v, _ := oc.Extension(spanExtension)
	span, ok := v.(trace.Span)
	if !ok {
		span = h.start(ctx, oc)
	}

	span.SetAttributes(
		attribute.Bool("stashkv.cache_hit", oc.CacheHit),
		attribute.Bool("stashkv.found", result != nil),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (h *Hook) start(ctx context.Context, oc *pipeline.OperationContext) trace.Span {
	_, span := h.tracer.Start(ctx, "stashkv."+string(oc.Op),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(oc.Started),
		trace.WithAttributes(
			attribute.String("stashkv.namespace", oc.Namespace),
			attribute.String("stashkv.operation", string(oc.Op)),
			attribute.String("stashkv.operation_id", oc.ID),
		),
	)
	return span
}
