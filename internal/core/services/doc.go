// Package services holds the core application logic of the Hearth client:
// the document CRUD pipeline, the replication apply path, compendium pack
// caching, the synthetic actor proxy, the perception scheduler, and the
// setting store. Services depend only on domain types and driven ports;
// infrastructure adapters are injected at wiring time.
package services
