// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose coupling
// between components in the system. The queue processor broadcasts chapter failures
// without knowing who tracks them, and the HTTP layer requests cancellations without
// holding a reference to the processor.
//
// The primary components are:
// - Event: a typed, JSON-payload message with its own ID
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
