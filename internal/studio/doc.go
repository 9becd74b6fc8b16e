// Package studio is the HTTP client for the narrativ daemon's REST boundary.
//
// One Client covers planning, image generation, board persistence, provider
// status, and styles. Failures are tagged with the services markers so callers
// can classify them: planning calls wrap services.ErrPlanning, generation calls
// wrap services.ErrGeneration, and board calls wrap services.ErrPersistence.
// Every non-2xx failure carries a *StatusError with the HTTP status and the
// server's {"error": msg} text.
package studio
