// Package orchestrator wires a form session together: schema loading, the
// field registry, the debounced progress store, optional remote sync, the step
// controller and the finalizer. Callers that want a single entry point use
// Open; advanced callers can assemble the pieces themselves.
package orchestrator
