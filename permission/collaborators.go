package permission

import "context"

// Checker reports whether a permission is currently granted. It must be
// synchronous and free of side effects.
type Checker interface {
	IsGranted(ctx context.Context, permission string) (bool, error)
}

// Requester triggers the prompt for a set of permissions. It returns once
// the prompt is dispatched; the answer arrives later through
// Session.Deliver.
type Requester interface {
	RequestPermissions(ctx context.Context, permissions Set) error
}

// CheckerFunc adapts a function to a Checker.
type CheckerFunc func(ctx context.Context, permission string) (bool, error)

func (f CheckerFunc) IsGranted(ctx context.Context, permission string) (bool, error) {
	return f(ctx, permission)
}

// RequesterFunc adapts a function to a Requester.
type RequesterFunc func(ctx context.Context, permissions Set) error

func (f RequesterFunc) RequestPermissions(ctx context.Context, permissions Set) error {
	return f(ctx, permissions)
}
