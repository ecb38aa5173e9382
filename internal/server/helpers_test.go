package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/gestureview/internal/app"
	"github.com/ayusman/gestureview/internal/config"
	"github.com/ayusman/gestureview/internal/model"
)

const testLabels = "Swiping Left\nSwiping Right\nShaking Hand\nNo gesture\n"

// newTestApp builds an App around a mock model whose top label is labels[top].
func newTestApp(t *testing.T, top int, limit time.Duration) (*app.App, *model.MockModel) {
	t.Helper()

	dir := t.TempDir()
	labelsPath := filepath.Join(dir, "labels.csv")
	if err := os.WriteFile(labelsPath, []byte(testLabels), 0o644); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}

	cfg := &config.Config{
		LabelsPath:          labelsPath,
		ConfidenceThreshold: 0.7,
		StreamInterval:      20 * time.Millisecond,
		SessionTimeLimit:    limit,
		ConcurrencyLimit:    2,
		QueueSize:           8,
		DBPath:              filepath.Join(dir, "test.db"),
		CameraID:            -1,
	}

	m := model.NewMockModel(model.Shape{Height: 10, Width: 10, Channels: 3}, 4)
	scores := make([]float32, 4)
	scores[top] = 9
	m.SetScores(scores)

	a, err := app.New(cfg, app.WithModel(m, model.Bound("cuda")))
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, m
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 60, B: 30, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}
