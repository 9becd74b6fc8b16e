// Package services defines shared utilities consumed by the story workflow and
// its backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp phase names, story topics, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so planning, generation,
//     and persistence failures can be classified with errors.Is at the
//     orchestrator and API boundaries.
//
// Use these helpers when wiring new workflow code so error handling and
// observability stay uniform across the client and the daemon.
package services
