package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ayusman/gestureview/internal/logger"
)

// ErrUnknownDevice is returned when an acceleration device name has no
// matching ONNX Runtime execution provider.
var ErrUnknownDevice = errors.New("unknown acceleration device")

// ONNXConfig holds the paths needed to open an ONNX model.
type ONNXConfig struct {
	ModelPath    string
	MetadataPath string
	LibraryPath  string   // onnxruntime shared library; empty uses the platform default
	Devices      []string // Execution providers to try: "cuda", "tensorrt", "coreml"
}

// ONNXModel runs a gesture network through ONNX Runtime.
type ONNXModel struct {
	metadata     *Metadata
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	binding      Binding
	mu           sync.Mutex
}

// NewONNX loads the model and binds it to the first compatible device in
// config.Devices, falling back to the CPU session otherwise. A missing or
// unreadable model is an error.
func NewONNX(config ONNXConfig, log *logger.Logger) (*ONNXModel, error) {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	metadata, err := LoadMetadata(config.MetadataPath)
	if err != nil {
		return nil, err
	}

	if config.LibraryPath != "" {
		ort.SetSharedLibraryPath(config.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	m := &ONNXModel{
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}

	m.binding = Bind(config.Devices, func(device string) error {
		session, err := m.newSession(config.ModelPath, device)
		if err != nil {
			return err
		}
		m.session = session
		return nil
	}, log)

	if !m.binding.IsBound() {
		session, err := m.newSession(config.ModelPath, "")
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create ONNX session: %w", err)
		}
		m.session = session
	}

	return m, nil
}

// newSession creates a session on the named execution provider, or on the
// default CPU provider when device is empty.
func (m *ONNXModel) newSession(modelPath, device string) (*ort.AdvancedSession, error) {
	var options *ort.SessionOptions
	if device != "" {
		opts, err := sessionOptionsFor(device)
		if err != nil {
			return nil, err
		}
		defer opts.Destroy()
		options = opts
	}

	return ort.NewAdvancedSession(modelPath,
		[]string{m.metadata.InputName}, []string{m.metadata.OutputName},
		[]ort.ArbitraryTensor{m.inputTensor}, []ort.ArbitraryTensor{m.outputTensor},
		options)
}

// sessionOptionsFor builds session options that append the execution
// provider for device.
func sessionOptionsFor(device string) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}

	switch strings.ToLower(device) {
	case "cuda":
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("create CUDA options: %w", err)
		}
		defer cudaOptions.Destroy()
		err = options.AppendExecutionProviderCUDA(cudaOptions)
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("append CUDA provider: %w", err)
		}

	case "tensorrt":
		trtOptions, err := ort.NewTensorRTProviderOptions()
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("create TensorRT options: %w", err)
		}
		defer trtOptions.Destroy()
		err = options.AppendExecutionProviderTensorRT(trtOptions)
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("append TensorRT provider: %w", err)
		}

	case "coreml":
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("append CoreML provider: %w", err)
		}

	default:
		options.Destroy()
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, device)
	}

	return options, nil
}

// Predict copies input into the bound tensor, runs the session and returns a
// copy of the scores. Calls are serialized because the tensors are shared.
func (m *ONNXModel) Predict(input []float32) ([]float32, error) {
	if want := m.metadata.Shape().Size(); len(input) != want {
		return nil, fmt.Errorf("input has %d values, want %d", len(input), want)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.inputTensor.GetData(), input)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, m.metadata.OutputLen())
	copy(scores, m.outputTensor.GetData())
	return scores, nil
}

// InputShape returns the per-sample input shape from the metadata.
func (m *ONNXModel) InputShape() Shape {
	return m.metadata.Shape()
}

// OutputLen returns the score vector length from the metadata.
func (m *ONNXModel) OutputLen() int {
	return m.metadata.OutputLen()
}

// PixelScale returns the multiplier the model expects on 0-255 pixel values.
func (m *ONNXModel) PixelScale() float32 {
	return m.metadata.PixelScale
}

// Binding reports where inference runs.
func (m *ONNXModel) Binding() Binding {
	return m.binding
}

// Close destroys the session, tensors and the ONNX environment.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	return ort.DestroyEnvironment()
}
