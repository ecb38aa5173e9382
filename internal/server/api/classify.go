package api

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"

	"github.com/ayusman/gestureview/internal/bridge"
	"github.com/ayusman/gestureview/internal/capture"
	"github.com/ayusman/gestureview/internal/classifier"
	"github.com/ayusman/gestureview/internal/gesture"
	"github.com/ayusman/gestureview/internal/pipeline"
)

// MaxUploadSize bounds a single uploaded frame.
const MaxUploadSize = 10 << 20

// FrameClassifier classifies one frame and decides its gesture.
type FrameClassifier interface {
	ClassifyImage(ctx context.Context, img image.Image) (*classifier.Result, gesture.Decision, error)
}

// ClassifyHandler handles POST /api/classify with a multipart "image" field.
type ClassifyHandler struct {
	classifier FrameClassifier
}

// NewClassifyHandler creates a ClassifyHandler.
func NewClassifyHandler(c FrameClassifier) *ClassifyHandler {
	return &ClassifyHandler{classifier: c}
}

type classifyResponse struct {
	Prediction  string                  `json:"prediction"`
	KeyCode     string                  `json:"keyCode"`
	Label       string                  `json:"label"`
	Confidence  float64                 `json:"confidence"`
	FPS         float64                 `json:"fps"`
	Confidences []classifier.Confidence `json:"confidences"`
}

func (h *ClassifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing image field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read image")
		return
	}

	frame, err := capture.Decode(data)
	if err != nil {
		if errors.Is(err, capture.ErrEmptyFrame) {
			writeError(w, http.StatusBadRequest, "Image is empty")
			return
		}
		writeError(w, http.StatusBadRequest, "Unsupported image")
		return
	}

	result, decision, err := h.classifier.ClassifyImage(r.Context(), frame.Image)
	if errors.Is(err, pipeline.ErrPoolBusy) {
		writeError(w, http.StatusServiceUnavailable, "Classifier is busy, try again")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Classification failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Prediction:  decision.Prediction,
		KeyCode:     string(decision.Code),
		Label:       result.Top,
		Confidence:  result.Confidence,
		FPS:         bridge.RoundFPS(result.FPS),
		Confidences: result.Sorted(),
	})
}
