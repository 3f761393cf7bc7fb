package permission

import "context"

// Gate is a behavior that lets a computation start only once its
// permissions are granted. A rejection becomes the computation's failure
// and the computation never runs.
//
//	gate := session.Gate("LOCATION")
//	fetch = behavior.ApplySingle(gate, fetch)
type Gate struct {
	session  *Session
	required Set
}

// Required returns the permissions the gate asks for.
func (g *Gate) Required() Set { return g.required.Clone() }

// Check starts a gating attempt for the gate's permissions.
func (g *Gate) Check(ctx context.Context) *Completion {
	return g.session.Check(ctx, g.required)
}

// Prepare checks and waits. Cancelling ctx while waiting cancels the
// attempt and returns ctx.Err().
func (g *Gate) Prepare(ctx context.Context) error {
	return g.Check(ctx).Wait(ctx)
}

// Recover passes failures through unchanged.
func (g *Gate) Recover(err error) (error, bool) { return err, false }
