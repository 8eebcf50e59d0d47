/*
Package ports defines the driven ports (interfaces) for the GlaucoScan engine.

These interfaces decouple the wizard core from external implementations, allowing
the engine to work with various storage backends, lock providers, and diagnosis sources.

# Key Interfaces

  - StateStore: Responsible for persisting and loading session State.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - Analyzer: Produces the DiagnosisResult for an uploaded image.
*/
package ports
