/*
Package domain contains the core domain models of the GlaucoScan screening wizard.

It defines the wizard phases, the tagged step variants that carry exactly the data each
phase needs, the session State that wraps them, and the fixed diagnosis record. This
package is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Phase: One of awaiting_upload, ready_to_analyze, analyzing, complete.
  - Step: The phase-specific payload (AwaitingUpload, ReadyToAnalyze, Analyzing, Complete).
  - State: The runtime snapshot of a session (Step, Generation, History).
  - UploadedImage: A user file converted into an embeddable data URI.
  - DiagnosisResult: The record shown on the results screen.
*/
package domain
