// Package schedule runs cancellable recurring work on an injectable clock.
//
// Every task owns a context that is cancelled by Stop, and each run of the
// task's function holds the task lock. Stop therefore cancels an in-flight
// run's context, waits for it to return, and guarantees no further run
// starts. A function must not call Stop on its own task; it ends itself by
// returning false instead.
//
// Production code uses the wall clock (clock.New); tests drive time with
// clock.NewMock and advance it explicitly.
package schedule
