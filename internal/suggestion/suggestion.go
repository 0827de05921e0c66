// Package suggestion models the SuggestionProvider capability: any call out
// to an external language-model service for expansion, polish, or duplicate
// scoring. Per spec §1 this is explicitly out of scope — the engine treats
// it as an opaque capability and ships no concrete backend. A caller that
// wants AI-assisted item expansion supplies its own Provider.
package suggestion

import "context"

// Request is the opaque input handed to a Provider.
type Request struct {
	Kind    string         `json:"kind"` // e.g. "expand", "polish", "dedupe-score"
	Payload map[string]any `json:"payload"`
}

// Response is the opaque output returned by a Provider.
type Response struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Provider is the capability interface the engine depends on. No
// implementation ships in this module.
type Provider interface {
	Suggest(ctx context.Context, req Request) (Response, error)
}

// None is a Provider that always reports unavailability. Nothing in this
// module wires a Provider in.
type None struct{}

// Suggest always fails: no suggestion backend is configured.
func (None) Suggest(ctx context.Context, req Request) (Response, error) {
	return Response{}, errUnavailable
}

var errUnavailable = &unavailableError{}

type unavailableError struct{}

func (*unavailableError) Error() string {
	return "suggestion: no provider configured"
}
