// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SocketTransport: The replication channel to the authoritative server
//   - ClientSettingStore: Per-client setting persistence
//   - ConfigStore: Application configuration
//   - Clock: Time source and timer scheduling
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - FrameTicker: Drives the perception scheduler. Without it, perception
//     flags accumulate until Tick is invoked manually.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
