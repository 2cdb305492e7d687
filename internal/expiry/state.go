package expiry

import (
	"fmt"
	"strings"
)

// Health is the state of a namespace's background worker.
//
//	Uninitialized -> Initializing -> Healthy <-> Degraded
//	Initializing  -> Failed
//	Healthy       -> Failed
//	Degraded      -> Failed
//
// Failed is terminal until the worker is recreated.
type Health int32

const (
	Uninitialized Health = iota
	Initializing
	Healthy
	Degraded
	Failed
)

func (h Health) String() string {
	switch h {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("health(%d)", int32(h))
	}
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to Health) bool {
	switch from {
	case Uninitialized:
		return to == Initializing
	case Initializing:
		return to == Healthy || to == Failed
	case Healthy:
		return to == Degraded || to == Failed
	case Degraded:
		return to == Healthy || to == Failed
	default:
		return false
	}
}

// Strategy selects how expired records are removed.
type Strategy string

const (
	// StrategyImmediate sweeps synchronously on reads; no worker runs.
	StrategyImmediate Strategy = "immediate"
	// StrategyBackground sweeps on a fixed interval in a worker.
	StrategyBackground Strategy = "background"
	// StrategyHybrid checks on read and also nudges an interval worker.
	StrategyHybrid Strategy = "hybrid"
	// StrategyProactive wakes exactly when the next record expires.
	StrategyProactive Strategy = "proactive"
)

// ParseStrategy validates a configured strategy name. The empty string
// selects StrategyProactive.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyProactive, nil
	case StrategyImmediate, StrategyBackground, StrategyHybrid, StrategyProactive:
		return st, nil
	default:
		return "", fmt.Errorf("expiry: unknown strategy %q", s)
	}
}

// usesWorker reports whether the strategy needs a background worker.
func (s Strategy) usesWorker() bool {
	return s != StrategyImmediate
}

// workerMode maps a strategy onto the worker's scheduling mode.
func (s Strategy) workerMode() mode {
	if s == StrategyProactive {
		return modeProactive
	}
	return modeInterval
}
