// Package hsmx is a hierarchical state-machine interpreter. A machine is
// compiled once from a declarative definition (config structs, YAML/JSON, or
// the fluent builder) into an immutable state tree, then started to produce
// Instances that process events.
//
// Each Instance serializes event processing through a single worker: events
// submitted with Send apply in exact call order, one transition at a time.
// Transitions resolve by bubbling from the current state through its
// ancestors, then machine-wide handlers, then the wildcard handler. Actions
// mutate the instance context via deep-merge and may be declared deferred,
// in which case they receive a context.Context and are awaited in order.
//
// Every applied transition is recorded in a bounded history ring and
// broadcast to subscribers. Rollback restores a recorded state and context
// directly, without replaying actions.
package hsmx
