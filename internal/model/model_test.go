package model

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/gestureview/internal/logger"
)

func TestBind(t *testing.T) {
	errIncompatible := errors.New("model not compatible")

	tests := []struct {
		name       string
		devices    []string
		failing    map[string]bool
		wantBound  bool
		wantDevice string
		wantTried  []string
		wantLog    string
	}{
		{
			name:       "no devices falls back",
			devices:    nil,
			wantBound:  false,
			wantDevice: CPU,
			wantLog:    "No acceleration devices found",
		},
		{
			name:       "first device binds",
			devices:    []string{"cuda", "coreml"},
			wantBound:  true,
			wantDevice: "cuda",
			wantTried:  []string{"cuda"},
			wantLog:    "Mapping model to device cuda",
		},
		{
			name:       "incompatible device is skipped",
			devices:    []string{"cuda", "coreml"},
			failing:    map[string]bool{"cuda": true},
			wantBound:  true,
			wantDevice: "coreml",
			wantTried:  []string{"cuda", "coreml"},
			wantLog:    "WARNING",
		},
		{
			name:       "all incompatible falls back",
			devices:    []string{"cuda"},
			failing:    map[string]bool{"cuda": true},
			wantBound:  false,
			wantDevice: CPU,
			wantTried:  []string{"cuda"},
			wantLog:    "Model not compatible with cuda",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			var tried []string

			b := Bind(tt.devices, func(device string) error {
				tried = append(tried, device)
				if tt.failing[device] {
					return errIncompatible
				}
				return nil
			}, logger.NewWriter(&buf))

			if b.IsBound() != tt.wantBound {
				t.Errorf("IsBound() = %v, want %v", b.IsBound(), tt.wantBound)
			}
			if b.DeviceName() != tt.wantDevice {
				t.Errorf("DeviceName() = %q, want %q", b.DeviceName(), tt.wantDevice)
			}
			if strings.Join(tried, ",") != strings.Join(tt.wantTried, ",") {
				t.Errorf("tried %v, want %v", tried, tt.wantTried)
			}
			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("log missing %q:\n%s", tt.wantLog, buf.String())
			}
			if !tt.wantBound && b.Reason == "" {
				t.Error("fallback binding should carry a reason")
			}
		})
	}
}

func TestBinding_String(t *testing.T) {
	if got := Bound("cuda").String(); got != "bound to cuda" {
		t.Errorf("Bound.String() = %q", got)
	}
	if got := Fallback("no devices").String(); got != "fallback to CPU (no devices)" {
		t.Errorf("Fallback.String() = %q", got)
	}
}

func TestLoadMetadata(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "model.json")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write metadata: %v", err)
		}
		return path
	}

	t.Run("valid with defaults", func(t *testing.T) {
		path := write(t, `{"input_shape":[1,100,100,3],"output_shape":[1,1,1,27]}`)

		m, err := LoadMetadata(path)
		if err != nil {
			t.Fatalf("LoadMetadata() error = %v", err)
		}

		if m.InputName != "input" || m.OutputName != "output" {
			t.Errorf("names = %q/%q, want input/output", m.InputName, m.OutputName)
		}
		if m.PixelScale != 1 {
			t.Errorf("PixelScale = %v, want 1", m.PixelScale)
		}
		if got := m.Shape(); got != (Shape{Height: 100, Width: 100, Channels: 3}) {
			t.Errorf("Shape() = %v, want 100x100x3", got)
		}
		if m.Shape().Size() != 30000 {
			t.Errorf("Size() = %d, want 30000", m.Shape().Size())
		}
		if m.OutputLen() != 27 {
			t.Errorf("OutputLen() = %d, want 27", m.OutputLen())
		}
	})

	invalid := []struct {
		name    string
		content string
	}{
		{"bad json", `{`},
		{"short input shape", `{"input_shape":[100,100,3],"output_shape":[27]}`},
		{"batch not one", `{"input_shape":[2,100,100,3],"output_shape":[27]}`},
		{"not square", `{"input_shape":[1,100,80,3],"output_shape":[27]}`},
		{"zero dimension", `{"input_shape":[1,100,100,0],"output_shape":[27]}`},
		{"missing output", `{"input_shape":[1,100,100,3]}`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadMetadata(write(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadMetadata(filepath.Join(t.TempDir(), "none.json")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestNewONNX_MissingModel(t *testing.T) {
	_, err := NewONNX(ONNXConfig{
		ModelPath:    filepath.Join(t.TempDir(), "missing.onnx"),
		MetadataPath: filepath.Join(t.TempDir(), "missing.json"),
	}, logger.Discard())

	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestMockModel(t *testing.T) {
	shape := Shape{Height: 2, Width: 2, Channels: 3}

	t.Run("returns configured scores", func(t *testing.T) {
		m := NewMockModel(shape, 3)
		m.SetScores([]float32{1, 2, 3})

		scores, err := m.Predict(make([]float32, shape.Size()))
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		if len(scores) != 3 || scores[2] != 3 {
			t.Errorf("scores = %v, want [1 2 3]", scores)
		}
		if m.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", m.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := NewMockModel(shape, 3)
		want := errors.New("device lost")
		m.SetError(want)

		if _, err := m.Predict(make([]float32, shape.Size())); err != want {
			t.Errorf("error = %v, want %v", err, want)
		}
	})

	t.Run("rejects wrong input size", func(t *testing.T) {
		m := NewMockModel(shape, 3)
		if _, err := m.Predict(make([]float32, 5)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("implements Model interface", func(t *testing.T) {
		var _ Model = (*MockModel)(nil)
		var _ Model = (*ONNXModel)(nil)
	})
}
