/*
Package glaucoscan is a glaucoma screening wizard engine.

A session walks a retinal fundus image through four steps: upload, review, a
simulated AI analysis and the results screen. The engine owns the session state
machine, persists every transition and runs the asynchronous work (file reads and
the analysis timer) as cancellable tasks tied to the state they were started for.

# Concept

The wizard is a finite state machine over four phases:

	awaiting_upload -> ready_to_analyze -> analyzing -> complete

Every transition bumps the session generation. A task records the generation it
was scheduled for, so a reset while a file is being read or an analysis is
running discards the stale result instead of resurrecting an old screen.

# Key Features

  - Cancellable Tasks: Reset and Delete abort pending reads and timers.
  - State Persistence: Memory, file and Redis stores, optionally encrypted.
  - Diff Streams: Subscribe to per-session StateDiff updates (used for SSE).
  - Hexagonal Architecture: HTTP, MCP and CLI adapters share one Engine.

# Usage

	engine := glaucoscan.New()
	defer engine.Close()

	state, err := engine.Start(ctx)
	if err != nil {
		log.Fatal(err)
	}

	state, err = engine.Upload(ctx, state.SessionID, upload.Input{
		Name:      "fundus.png",
		MediaType: "image/png",
		Reader:    f,
	})
	if err != nil {
		log.Fatal(err) // domain.ErrNotAnImage, domain.ErrImageTooLarge...
	}

	state, err = engine.Analyze(ctx, state.SessionID)
	// Three seconds later Get returns the complete phase with the diagnosis.
*/
package glaucoscan
