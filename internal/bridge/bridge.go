// Package bridge defines the messages exchanged with the browser page that
// hosts the webcam, the gauge and the embedded 3D viewer.
package bridge

import (
	"math"
	"sync"

	"github.com/ayusman/gestureview/internal/gesture"
)

// Message types.
const (
	TypeGesture = "gesture"
	TypeResult  = "result"
	TypeError   = "error"
	TypeEnd     = "end"
)

// GaugeMax is the upper bound of the throughput gauge axis.
const GaugeMax = 30

// GestureMessage is posted by the page into the viewer iframe unchanged.
type GestureMessage struct {
	Type    string `json:"type"`
	KeyCode string `json:"keyCode"`
}

// NewGestureMessage builds the viewer message for code.
func NewGestureMessage(code gesture.Code) GestureMessage {
	return GestureMessage{Type: TypeGesture, KeyCode: string(code)}
}

// ResultMessage updates the gauge and the gesture text on the page.
type ResultMessage struct {
	Type       string  `json:"type"`
	Seq        uint64  `json:"seq"`
	FPS        float64 `json:"fps"`
	Prediction string  `json:"prediction"`
	KeyCode    string  `json:"keyCode"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ErrorMessage reports a failed frame.
type ErrorMessage struct {
	Type  string `json:"type"`
	Seq   uint64 `json:"seq"`
	Error string `json:"error"`
}

// EndMessage tells the page the session is over.
type EndMessage struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Reason  string `json:"reason"`
}

// RoundFPS rounds a throughput estimate to two decimals for display.
func RoundFPS(fps float64) float64 {
	return math.Round(fps*100) / 100
}

// Relay forwards key codes to the viewer only when the value changes, the
// way the page's change event fires. Empty codes are never forwarded but do
// reset the last value, so a repeated gesture separated by "no gesture" is
// sent again. No other smoothing is applied.
type Relay struct {
	last gesture.Code
	mu   sync.Mutex
}

// Forward records code and returns the viewer message if one should be sent.
func (r *Relay) Forward(code gesture.Code) (GestureMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := code != r.last
	r.last = code

	if !changed || code == gesture.None {
		return GestureMessage{}, false
	}
	return NewGestureMessage(code), true
}
