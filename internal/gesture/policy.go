// Package gesture decides which key code, if any, a classified frame produces.
package gesture

// Code is the key token forwarded to the 3D viewer.
type Code string

// Key codes understood by the viewer. None means no gesture was decided.
const (
	None       Code = ""
	ArrowLeft  Code = "ArrowLeft"
	ArrowRight Code = "ArrowRight"
	ArrowUp    Code = "ArrowUp"
	ArrowDown  Code = "ArrowDown"
	Space      Code = "Space"
)

// DefaultThreshold is the confidence a top label must strictly exceed.
const DefaultThreshold = 0.7

// Decision is the outward signal for one frame.
type Decision struct {
	Code       Code   `json:"keyCode"`
	Prediction string `json:"prediction"` // Echo of the label when a gesture was decided
}

// Decided reports whether the decision carries a key code.
func (d Decision) Decided() bool {
	return d.Code != None
}

// Policy gates a top label by confidence and maps it to a key code.
type Policy struct {
	Threshold float64
	Keys      map[string]Code
}

// DefaultKeys returns the label to key code table used by the viewer.
func DefaultKeys() map[string]Code {
	return map[string]Code{
		"Swiping Left":                 ArrowLeft,
		"Swiping Right":                ArrowRight,
		"Zooming In With Two Fingers":  ArrowUp,
		"Zooming Out With Two Fingers": ArrowDown,
		"Shaking Hand":                 Space,
	}
}

// DefaultPolicy returns the policy with DefaultThreshold and DefaultKeys.
func DefaultPolicy() Policy {
	return Policy{
		Threshold: DefaultThreshold,
		Keys:      DefaultKeys(),
	}
}

// Decide applies the threshold first and table membership second. A label
// outside the table yields no gesture even above the threshold.
func (p Policy) Decide(top string, confidence float64) Decision {
	if !(confidence > p.Threshold) {
		return Decision{}
	}

	code, ok := p.Keys[top]
	if !ok {
		return Decision{}
	}
	return Decision{Code: code, Prediction: top}
}

// Decide applies DefaultPolicy.
func Decide(top string, confidence float64) Decision {
	return DefaultPolicy().Decide(top, confidence)
}
