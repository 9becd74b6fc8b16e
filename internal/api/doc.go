// Package api defines the wire-format types shared by the daemon's REST
// boundary and the CLI client.
//
// # Key Types
//
// ResearchBoard: persisted snapshot of a full plan (all slides) at
// confirmation time.
//
// ImageBoard: generated image URIs plus the subset of slides that produced
// them. images[i] belongs to slides[i].
//
// ProviderStatus: the {llm, vision, image} availability map returned by
// /check_providers.
//
// Request and response envelopes mirror each endpoint (PlanStoryRequest,
// GenerateResponse, ResearchBoardsResponse, ...).
//
// # Design Notes
//
// Slide and plan fields use snake_case JSON tags to match the planner's
// output, while board timestamps stay camelCase (createdAt/updatedAt).
// Timestamps use RFC3339 with milliseconds. Board identity for merge and
// lookup is NormalizeTopic, a Unicode case fold over whitespace-collapsed text.
package api
