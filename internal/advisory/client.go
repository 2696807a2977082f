// Package advisory asks a generative-text model for safety recommendations
// about the running simulation. The advisor is optional: an unconfigured or
// unreachable model never affects the simulation.
package advisory

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the client has no credentials.
var ErrUnavailable = errors.New("advisory client unavailable")

// ClientConfig configures a model client.
type ClientConfig struct {
	// APIKey authenticates requests. Empty falls back to GEMINI_API_KEY.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"apiKey"`

	// BaseURL is the API root, without the model path.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"baseUrl"`

	// Model is the model identifier to use for requests.
	Model string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`

	// Timeout is the maximum duration to wait for a response.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Client generates free text for a prompt.
type Client interface {
	// Generate returns the model's answer to prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Available returns true if the client is configured and ready to handle requests.
	Available() bool
}
