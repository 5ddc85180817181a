package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Server owns one ONNX Runtime session with pre-allocated tensors. Run is
// serialised because the tensors are shared between calls.
type Server struct {
	mu             sync.Mutex
	session        *ort.AdvancedSession
	Metadata       Metadata
	inputTensor    *ort.Tensor[float32]
	mainTensor     *ort.Tensor[float32]
	severityTensor *ort.Tensor[float32]
}

func NewServer(modelPath string, metadata Metadata) (*Server, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	mainTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(metadata.MainClasses))))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create main output tensor: %w", err)
	}

	severityTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(metadata.SeverityClasses))))
	if err != nil {
		inputTensor.Destroy()
		mainTensor.Destroy()
		return nil, fmt.Errorf("failed to create severity output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.MainOutput, metadata.SeverityOutput},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{mainTensor, severityTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		mainTensor.Destroy()
		severityTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		session:        session,
		Metadata:       metadata,
		inputTensor:    inputTensor,
		mainTensor:     mainTensor,
		severityTensor: severityTensor,
	}, nil
}

func (s *Server) Run(inputData []float32) (*Scores, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := s.inputTensor.GetData()
	if len(inputData) != len(input) {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrInputSize, len(inputData), len(input))
	}
	copy(input, inputData)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return &Scores{
		Main:     append([]float32(nil), s.mainTensor.GetData()...),
		Severity: append([]float32(nil), s.severityTensor.GetData()...),
	}, nil
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.mainTensor != nil {
		s.mainTensor.Destroy()
	}
	if s.severityTensor != nil {
		s.severityTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// OpenONNX returns a LoadFunc that fetches the artifact from src and opens
// it with ONNX Runtime. libraryPath may be empty to use the default lookup.
func OpenONNX(libraryPath string, src Source, metadata Metadata) LoadFunc {
	return func(ctx context.Context) (Session, error) {
		modelPath, err := src.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if libraryPath != "" && !ort.IsInitialized() {
			ort.SetSharedLibraryPath(libraryPath)
		}
		return NewServer(modelPath, metadata)
	}
}
