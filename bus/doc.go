// Package bus provides a typed, in-process broadcast point.
//
// A Bus fans each published event out to every listener subscribed at the
// time of publishing. Events published while nobody listens are dropped and
// late subscribers never see earlier events:
//
//	b := bus.New[permission.Response]()
//	sub := b.Subscribe(func(r permission.Response) { ... })
//	defer sub.Cancel()
//	b.Publish(resp)
//
// Listeners run synchronously on the publishing goroutine. Subscribe, Cancel
// and Publish are safe to call concurrently, including from inside a listener.
package bus
