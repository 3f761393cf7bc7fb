// Package behavior applies cross-cutting behaviors uniformly to the four
// asynchronous computation shapes used across permgate:
//
//	Single[T]    one value or a failure
//	Maybe[T]     an optional value or a failure
//	Stream[T]    zero or more values pulled through an Iterator, then end or failure
//	Completable  success or failure, no value
//
// A Behavior contributes two hooks. Prepare runs before the wrapped
// computation starts and can veto it. Recover sees every failure and may
// rewrite it or ask for the shape's benign outcome instead. ApplySingle,
// ApplyMaybe, ApplyStream and ApplyCompletable wire those hooks identically
// into each shape:
//
//	gated := behavior.ApplySingle(behavior.Chain(policy, gate), fetch)
//	v, err := gated(ctx)
//
// Behaviors hold configuration only, so one value can wrap any number of
// computations from any goroutine.
package behavior
