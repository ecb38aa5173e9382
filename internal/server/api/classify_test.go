package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayusman/gestureview/internal/classifier"
	"github.com/ayusman/gestureview/internal/gesture"
	"github.com/ayusman/gestureview/internal/pipeline"
)

type stubClassifier struct {
	result *classifier.Result
	err    error
	calls  int
}

func (s *stubClassifier) ClassifyImage(ctx context.Context, img image.Image) (*classifier.Result, gesture.Decision, error) {
	s.calls++
	if s.err != nil {
		return nil, gesture.Decision{}, s.err
	}
	return s.result, gesture.Decide(s.result.Top, s.result.Confidence), nil
}

func multipartImage(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "frame.png")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	part.Write(data)
	mw.Close()

	return &body, mw.FormDataContentType()
}

func pngFrame(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestClassifyHandler(t *testing.T) {
	stub := &stubClassifier{result: &classifier.Result{
		Confidences: []classifier.Confidence{
			{Label: "Swiping Left", Probability: 0.9},
			{Label: "Shaking Hand", Probability: 0.1},
		},
		Top:        "Swiping Left",
		Confidence: 0.9,
		Elapsed:    40 * time.Millisecond,
		FPS:        25,
	}}
	handler := NewClassifyHandler(stub)

	body, contentType := multipartImage(t, "image", pngFrame(t))
	req := httptest.NewRequest(http.MethodPost, "/api/classify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response classifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.KeyCode != "ArrowLeft" || response.Prediction != "Swiping Left" {
		t.Errorf("decision = %q/%q, want ArrowLeft/Swiping Left", response.KeyCode, response.Prediction)
	}
	if response.FPS != 25 {
		t.Errorf("fps = %v, want 25", response.FPS)
	}
	// Sorted by label name
	if len(response.Confidences) != 2 || response.Confidences[0].Label != "Shaking Hand" {
		t.Errorf("confidences = %+v", response.Confidences)
	}
}

func TestClassifyHandler_BelowThreshold(t *testing.T) {
	stub := &stubClassifier{result: &classifier.Result{Top: "Swiping Left", Confidence: 0.7}}
	handler := NewClassifyHandler(stub)

	body, contentType := multipartImage(t, "image", pngFrame(t))
	req := httptest.NewRequest(http.MethodPost, "/api/classify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var response classifyResponse
	json.NewDecoder(rec.Body).Decode(&response)
	if response.KeyCode != "" || response.Prediction != "" {
		t.Errorf("decision = %q/%q, want empty at exactly the threshold", response.KeyCode, response.Prediction)
	}
	if response.Label != "Swiping Left" {
		t.Errorf("label = %q, want Swiping Left", response.Label)
	}
}

func TestClassifyHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		field      string
		data       []byte
		err        error
		wantStatus int
	}{
		{"wrong method", http.MethodGet, "image", nil, nil, http.StatusMethodNotAllowed},
		{"missing field", http.MethodPost, "file", []byte("x"), nil, http.StatusBadRequest},
		{"empty image", http.MethodPost, "image", []byte{}, nil, http.StatusBadRequest},
		{"not an image", http.MethodPost, "image", []byte("hello"), nil, http.StatusBadRequest},
		{"model failure", http.MethodPost, "image", nil, errors.New("device lost"), http.StatusInternalServerError},
		{"pool busy", http.MethodPost, "image", nil, pipeline.ErrPoolBusy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClassifier{result: &classifier.Result{}, err: tt.err}
			handler := NewClassifyHandler(stub)

			data := tt.data
			if data == nil {
				data = pngFrame(t)
			}
			body, contentType := multipartImage(t, tt.field, data)
			req := httptest.NewRequest(tt.method, "/api/classify", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
