// Package llm defines the reasoning-service contract used by the finding
// analyzers and an OpenAI-compatible implementation of it.
//
// The service is treated as a black-box classifier with a weak output
// contract: free text that the analyzers parse with a tolerant
// line-oriented grammar.
package llm

import "context"

// Client is the reasoning-service contract. A call either returns the
// service's free-text reply or an error; analyzers never recover service
// errors locally.
type Client interface {
	// Complete submits a prompt and returns the raw text reply.
	Complete(ctx context.Context, prompt string) (string, error)
}
