// Package model wraps the gesture classifier network behind a small interface
// and binds it to an acceleration device when one is available.
package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Model maps a single-sample input tensor to raw per-class scores.
type Model interface {
	// Predict runs inference on a flattened NHWC input of InputShape().Size()
	// values and returns one unnormalized score per class.
	Predict(input []float32) ([]float32, error)

	// InputShape is the fixed image shape the network expects.
	InputShape() Shape

	// OutputLen is the length of the score vector.
	OutputLen() int

	// Close releases any resources held by the model.
	Close() error
}

// Shape is the per-sample image shape of a model input.
type Shape struct {
	Height   int
	Width    int
	Channels int
}

// Size returns the number of values in one sample.
func (s Shape) Size() int {
	return s.Height * s.Width * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Metadata describes the tensors of a serialized model.
type Metadata struct {
	InputName   string  `json:"input_name"`
	OutputName  string  `json:"output_name"`
	InputShape  []int64 `json:"input_shape"`  // [batch, height, width, channels]
	OutputShape []int64 `json:"output_shape"` // [batch, ..., classes]
	PixelScale  float32 `json:"pixel_scale"`  // Multiplier applied to 0-255 pixel values
}

// LoadMetadata reads and validates a metadata JSON file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// normalize fills defaults and checks the shapes.
func (m *Metadata) normalize() error {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.PixelScale == 0 {
		m.PixelScale = 1
	}

	if len(m.InputShape) != 4 {
		return fmt.Errorf("input shape %v: want [batch, height, width, channels]", m.InputShape)
	}
	for _, dim := range m.InputShape {
		if dim <= 0 {
			return fmt.Errorf("input shape %v: dimensions must be positive", m.InputShape)
		}
	}
	if m.InputShape[0] != 1 {
		return fmt.Errorf("input shape %v: batch must be 1", m.InputShape)
	}
	if m.InputShape[1] != m.InputShape[2] {
		return fmt.Errorf("input shape %v: image must be square", m.InputShape)
	}

	if len(m.OutputShape) == 0 {
		return fmt.Errorf("output shape is empty")
	}
	for _, dim := range m.OutputShape {
		if dim <= 0 {
			return fmt.Errorf("output shape %v: dimensions must be positive", m.OutputShape)
		}
	}
	return nil
}

// Shape returns the per-sample input shape.
func (m *Metadata) Shape() Shape {
	return Shape{
		Height:   int(m.InputShape[1]),
		Width:    int(m.InputShape[2]),
		Channels: int(m.InputShape[3]),
	}
}

// OutputLen returns the flattened size of the output tensor.
func (m *Metadata) OutputLen() int {
	n := 1
	for _, dim := range m.OutputShape {
		n *= int(dim)
	}
	return n
}
