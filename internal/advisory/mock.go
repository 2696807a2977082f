package advisory

import (
	"context"
	"sync"
)

// MockClient implements Client for testing purposes. It returns a fixed
// response or error and records every prompt it receives.
type MockClient struct {
	mu sync.Mutex

	response  string
	err       error
	available bool

	Prompts []string
}

// NewMockClient creates a MockClient that is available and answers "".
func NewMockClient() *MockClient {
	return &MockClient{available: true}
}

// WithResponse configures the text returned by Generate.
func (m *MockClient) WithResponse(text string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = text
	return m
}

// WithError configures the error returned by Generate.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithAvailable configures whether Available() returns true or false.
func (m *MockClient) WithAvailable(available bool) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
	return m
}

// Generate records prompt and returns the configured response.
func (m *MockClient) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// Available reports the configured availability.
func (m *MockClient) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Calls returns the number of Generate calls so far.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
