// Package flow drives a form session: a Controller walks the ordered steps and
// owns the answers, and a Finalizer gates and completes submission.
//
// Navigation is free. Next, Previous and GoTo move between steps regardless of
// whether the steps in between are complete; only Submit requires every step
// to be complete. WithStrictNavigation opts into gating Next on the current
// step instead.
//
// Every state change hands a copy of the state to the progress Store, which
// debounces the write. A Controller is not safe for concurrent use; it is
// meant to be driven from a single event loop.
package flow
