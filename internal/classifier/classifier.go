// Package classifier turns a camera frame into a probability distribution over
// gesture labels using a bound model.
package classifier

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/nfnt/resize"

	"github.com/ayusman/gestureview/internal/labels"
	"github.com/ayusman/gestureview/internal/model"
)

// ErrScoreLength is returned when the model output does not have one score per label.
var ErrScoreLength = errors.New("score vector length does not match label count")

// Confidence is the probability assigned to one label.
type Confidence struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Result is the outcome of classifying one frame.
type Result struct {
	// Confidences holds one entry per label, in label order.
	Confidences []Confidence
	// Top is the most probable label; ties go to the earlier label.
	Top        string
	Confidence float64
	// Elapsed is the wall-clock duration of the model call.
	Elapsed time.Duration
	// FPS is 1/Elapsed in seconds, or 0 when Elapsed is not positive.
	FPS float64
}

// Map returns the confidences keyed by label.
func (r *Result) Map() map[string]float64 {
	m := make(map[string]float64, len(r.Confidences))
	for _, c := range r.Confidences {
		m[c.Label] = c.Probability
	}
	return m
}

// Sorted returns the confidences ordered by label name.
func (r *Result) Sorted() []Confidence {
	out := make([]Confidence, len(r.Confidences))
	copy(out, r.Confidences)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Label < out[j].Label
	})
	return out
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock replaces time.Now for measuring inference duration.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// WithPixelScale sets the multiplier applied to 0-255 pixel values.
func WithPixelScale(scale float32) Option {
	return func(c *Classifier) {
		if scale != 0 {
			c.pixelScale = scale
		}
	}
}

// Classifier runs frames through a model. It holds no per-frame state and is
// safe for concurrent use if the model is.
type Classifier struct {
	labels     labels.Set
	model      model.Model
	shape      model.Shape
	pixelScale float32
	now        func() time.Time
}

// New creates a Classifier. The model's output length must equal the number of labels.
func New(set labels.Set, m model.Model, opts ...Option) (*Classifier, error) {
	if m.OutputLen() != set.Len() {
		return nil, fmt.Errorf("%w: model has %d outputs, %d labels loaded", ErrScoreLength, m.OutputLen(), set.Len())
	}

	shape := m.InputShape()
	if shape.Channels != 3 {
		return nil, fmt.Errorf("model input %v: want 3 channels", shape)
	}

	c := &Classifier{
		labels:     set,
		model:      m,
		shape:      shape,
		pixelScale: 1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Labels returns the label set the classifier was built with.
func (c *Classifier) Labels() labels.Set {
	return c.labels
}

// Classify resizes the frame, runs the model once and normalizes its scores.
// Model errors are returned unchanged in meaning; there is no retry.
func (c *Classifier) Classify(frame image.Image) (*Result, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}

	input := c.preprocess(frame)

	start := c.now()
	scores, err := c.model.Predict(input)
	elapsed := c.now().Sub(start)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	if len(scores) != c.labels.Len() {
		return nil, fmt.Errorf("%w: got %d scores for %d labels", ErrScoreLength, len(scores), c.labels.Len())
	}

	probs, err := Softmax(scores)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Confidences: make([]Confidence, len(probs)),
		Elapsed:     elapsed,
		FPS:         Throughput(elapsed),
	}
	for i, p := range probs {
		result.Confidences[i] = Confidence{Label: c.labels.At(i), Probability: p}
	}

	top := argmax(probs)
	result.Top = c.labels.At(top)
	result.Confidence = probs[top]

	return result, nil
}

// Throughput converts an inference duration into frames per second.
// Zero or negative durations give 0.
func Throughput(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return 1 / elapsed.Seconds()
}

// preprocess resizes frame to the model input and flattens it into a
// single-sample NHWC batch of RGB values.
func (c *Classifier) preprocess(frame image.Image) []float32 {
	width, height := c.shape.Width, c.shape.Height

	resized := frame
	if b := frame.Bounds(); b.Dx() != width || b.Dy() != height {
		resized = resize.Resize(uint(width), uint(height), frame, resize.Bilinear)
	}

	bounds := resized.Bounds()
	input := make([]float32, c.shape.Size())
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			input[i] = float32(r>>8) * c.pixelScale
			input[i+1] = float32(g>>8) * c.pixelScale
			input[i+2] = float32(b>>8) * c.pixelScale
			i += 3
		}
	}
	return input
}
