// Package domain defines the document model of the Hearth client runtime:
// typed documents with validated sources, insertion-ordered collections,
// users and permission levels, perception flags, and the object utilities
// (flatten/expand/merge/diff) used by the replication pipeline.
//
// The domain layer has no dependencies on ports, services, or adapters.
package domain
