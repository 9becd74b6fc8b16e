// Package imagegen renders story slides to PNG files.
//
// Four providers are supported:
//   - gemini-flash: Imagen fast (imagen-3.0-fast-generate-001) via genai
//   - gemini-pro: Imagen (imagen-3.0-generate-002) via genai
//   - fal: fal.ai nano-banana-pro over HTTP, one random seed per story
//   - huggingface: the HF inference API over HTTP
//
// Generator.GenerateStory writes slide{N}.png files into a fresh
// "<topic>_<timestamp>" folder under the output directory. Slides render
// concurrently (three at a time by default) behind a token-bucket limiter.
// Rate-limit failures are retried with exponential backoff and jitter; any
// other failure skips the slide. The returned file list keeps slide order and
// omits skipped slides, so callers pair files with Story.SlideNumbers.
package imagegen
