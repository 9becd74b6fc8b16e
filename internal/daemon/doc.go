// Package daemon coordinates the long-running narrativd process and serves
// the REST boundary the CLI talks to.
//
// It wires configuration, the board store, the research planner, and the
// image generator into a single lifecycle with flock-based locking to prevent
// multiple instances. Planning and generation requests are delegated to their
// packages; the daemon owns request decoding, error-to-status mapping, bearer
// authentication, request ids, and static serving of generated images.
//
// Keep domain logic out of here: handlers validate the envelope, call one
// collaborator, and encode the result.
package daemon
