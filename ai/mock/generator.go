package mock

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// CompleteFunc is called by Complete if set.
	// If nil, uses default deterministic behavior.
	CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	mu sync.Mutex

	callCount int

	lastSystemPrompt string
	lastUserPrompt   string
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Complete records the prompts and returns a deterministic answer.
func (m *MockGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastSystemPrompt = systemPrompt
	m.lastUserPrompt = userPrompt
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt)
	}

	// Default: echo the prompt length so tests can assert the call happened
	return fmt.Sprintf("mock answer (%d prompt bytes)", len(systemPrompt)+len(userPrompt)), nil
}

// CallCount returns the number of times Complete was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastSystemPrompt returns the system prompt of the most recent call.
func (m *MockGenerator) LastSystemPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystemPrompt
}

// LastUserPrompt returns the user prompt of the most recent call.
func (m *MockGenerator) LastUserPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUserPrompt
}

// Reset clears the call count and custom functions.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.lastSystemPrompt = ""
	m.lastUserPrompt = ""
	m.mu.Unlock()
	m.CompleteFunc = nil
}
