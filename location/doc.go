// Package location is a permission-gated location client.
//
// Client exposes a Provider's four calls, each wrapped by the same
// behavior. In production that behavior is a permission gate for
// LOCATION, optionally inside an error policy:
//
//	gate := session.Gate(location.Permission)
//	client := location.NewClient(provider, behavior.Chain(behavior.IgnoreAll(), gate))
//	fix, ok, err := client.LastKnown(ctx)
package location
