// Package research turns a topic or pasted text into a story plan.
//
// Planning runs in three steps: gather facts (Tavily web search when a key is
// configured, otherwise the model's own knowledge), ask the LLM for a JSON
// slide list grounded in those facts, then ask for a caption and hashtags.
// Gathered facts are cached per topic so repeated plans and AddSlides calls do
// not search again.
//
// The aesthetic comes from the style catalog when the request names a known
// style id. Free-form style hints are handed to the LLM, and a failed
// aesthetic call falls back to the cinematic preset.
package research
