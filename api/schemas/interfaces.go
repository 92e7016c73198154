package schemas

import (
	"context"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Model Endpoint --

// InvocationRequest is a single prompt plus screenshot sent to a vision model.
type InvocationRequest struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
	// MaxOutputTokens caps the reply length. Zero means DefaultMaxOutputTokens.
	MaxOutputTokens int `json:"max_output_tokens"`
}

// VisionModel is a vision-capable language model endpoint. Implementations make exactly
// one blocking call per Invoke, do not retry, and report every failure as
// ErrKindModelInvocation.
type VisionModel interface {
	Invoke(ctx context.Context, req InvocationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// -- Image Host --

// ImageHost stores screenshot bytes and hands back a stable, publicly fetchable URL.
// Put performs at most one store per call.
type ImageHost interface {
	Put(ctx context.Context, data []byte) (string, error)
}

// -- Decision --

// Decider turns a page state and goal into exactly one validated next action.
type Decider interface {
	Decide(ctx context.Context, req DecisionRequest) (*DecisionResult, error)
}

// -- Page Capture --

// PageSnapshot is what a browser sees at one moment: the rendered screenshot and the
// numbered interactable elements drawn on it.
type PageSnapshot struct {
	CurrentURL string     `json:"current_url"`
	Title      string     `json:"title"`
	Screenshot []byte     `json:"-"`
	Elements   ElementMap `json:"elements"`
}

// PageCapturer loads a page and captures a snapshot of it.
type PageCapturer interface {
	Capture(ctx context.Context, url string) (*PageSnapshot, error)
	Close() error
}
