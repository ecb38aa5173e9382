package model

import (
	"fmt"
	"sync"
	"time"
)

// MockModel is a test implementation of the Model interface.
// It returns pre-configured scores regardless of input.
type MockModel struct {
	shape  Shape
	scores []float32
	err    error
	delay  time.Duration
	calls  int
	closed bool
	mu     sync.Mutex
}

// NewMockModel creates a MockModel with the given input shape and output length.
// Scores default to zero for every class.
func NewMockModel(shape Shape, outputLen int) *MockModel {
	return &MockModel{
		shape:  shape,
		scores: make([]float32, outputLen),
	}
}

// SetScores sets the raw scores returned by Predict.
func (m *MockModel) SetScores(scores []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append([]float32(nil), scores...)
}

// SetError sets the error returned by Predict.
func (m *MockModel) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Predict sleep before returning.
func (m *MockModel) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Predict returns a copy of the configured scores or the configured error.
func (m *MockModel) Predict(input []float32) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	delay, err := m.delay, m.err
	scores := append([]float32(nil), m.scores...)
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if len(input) != m.shape.Size() {
		return nil, fmt.Errorf("input has %d values, want %d", len(input), m.shape.Size())
	}
	return scores, nil
}

// InputShape returns the configured input shape.
func (m *MockModel) InputShape() Shape {
	return m.shape
}

// OutputLen returns the length of the configured score vector.
func (m *MockModel) OutputLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scores)
}

// Calls returns how many times Predict was invoked.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockModel) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the model closed.
func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
