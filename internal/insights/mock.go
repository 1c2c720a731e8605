package insights

import (
	"context"
	"strings"
	"sync"
)

// MockProvider returns canned suggestions without calling a model. It is
// selected with provider "mock" and used throughout the tests.
type MockProvider struct {
	mu        sync.Mutex
	responses map[AnalysisType]string
	failures  []error
	calls     int
}

// NewMockProvider creates a provider answering every analysis type with a
// fixed suggestion. Errors in failures are returned, in order, by the first
// calls to Complete.
func NewMockProvider(failures ...error) *MockProvider {
	return &MockProvider{
		responses: map[AnalysisType]string{
			CharacterTags:           `{"suggestions":[{"subject":"","detail":"The lead reads as a reluctant hero","confidence":0.6}]}`,
			RelationshipSuggestions: `{"suggestions":[{"subject":"","detail":"The two leads share an unstated history","confidence":0.5}]}`,
			NarrativeCoherence:      `{"suggestions":[{"subject":"","detail":"The middle chapters drift from the central question","confidence":0.4}]}`,
		},
		failures: failures,
	}
}

// SetResponse overrides the completion returned for t.
func (m *MockProvider) SetResponse(t AnalysisType, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[t] = body
}

// Calls returns how many times Complete ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Complete(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return "", err
	}
	for t, body := range m.responses {
		if strings.Contains(user, `"analysisType":"`+string(t)+`"`) {
			return body, nil
		}
	}
	return `{"suggestions":[]}`, nil
}
