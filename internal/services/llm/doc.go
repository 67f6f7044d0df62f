// Package llm provides an OpenRouter-compatible chat client in JSON mode.
//
// The alignment engine uses it as its classifier transport: every batch of
// transcript segments becomes one CompleteJSON call whose reply carries the
// segment-to-slide mappings.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty content, and network
// timeouts with exponential backoff (base 1s, max 10s). The default budget is
// two attempts, one retry. Context cancellation aborts retries immediately.
//
// Final failures are wrapped with services markers: timeouts carry
// services.ErrTimeout, missing credentials services.ErrConfiguration, and
// everything else services.ErrExternalTool.
package llm
