// Package preflight provides readiness checks for the providers and
// filesystem paths that Narrativ depends on.
//
// These checks run in two contexts:
//   - The daemon answers GET /check_providers with ProviderStatus, which
//     reports each LLM and image backend with guidance for the missing ones.
//   - The CLI "narrativ doctor" command prints RunAll, which adds directory
//     permission checks on top of the provider checks.
//
// Only Ollama is checked over the network; the other providers are judged by
// whether their API keys are configured.
package preflight
