// Package expiry removes expired records.
//
// A Registry runs at most one worker goroutine per namespace. In proactive
// mode a worker sweeps, then arms a single timer for the earliest remaining
// expiry; every mutation nudges it to cancel, sweep and re-arm, so a record
// written with a shorter lifetime preempts a longer pending wake. Interval
// mode sweeps on a cron.Every schedule instead.
//
// Workers talk to the registry only through messages. Their health moves
// through Uninitialized, Initializing, Healthy and Degraded; Failed is
// terminal until Registry.Recreate. Scheduler failures are logged and
// reflected in health, never returned to callers.
//
// Hook plugs expiry into a pipeline. Whatever the worker's health, an
// expired record reads as absent.
package expiry
