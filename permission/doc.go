// Package permission gates computations on runtime permissions.
//
// A Session owns the response bus for one host connection. Hosts report
// prompt results through Session.Deliver; gates created from the session
// wait on the bus for the response that matches their own request:
//
//	s := permission.NewSession(checker, requester)
//	defer s.Close()
//
//	gate := s.Gate("LOCATION")
//	fix, err := behavior.ApplySingle(gate, current)(ctx)
//	if errors.IsPermissionDenied(err) { ... }
//
// A gating attempt whose permissions are already granted resolves without
// touching the bus. Otherwise the gate subscribes, triggers the prompt and
// resolves once, when a matching response arrives or the caller cancels.
package permission
