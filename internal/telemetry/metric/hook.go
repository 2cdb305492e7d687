package metric

import (
	"context"
	"time"

	"github.com/yndnr/stashkv/internal/core/domain"
	"github.com/yndnr/stashkv/internal/pipeline"
)

// HookName is the name the metrics hook registers under.
const HookName = "metrics"

// Hook records the outcome and latency of every operation.
type Hook struct {
	reg *Registry
}

// NewHook creates a metrics hook reporting into reg.
func NewHook(reg *Registry) *Hook {
	return &Hook{reg: reg}
}

// Name implements pipeline.Hook.
func (h *Hook) Name() string { return HookName }

// Finish implements pipeline.FinishHook.
func (h *Hook) Finish(_ context.Context, oc *pipeline.OperationContext, result any, err error) {
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case result == nil && (oc.Op == domain.OpGet || oc.Op == domain.OpGetMetadata):
		outcome = OutcomeMiss
	}
	h.reg.ObserveOperation(oc.Namespace, string(oc.Op), outcome, time.Since(oc.Started))
}
