package model

//go:generate mockgen -source=runtime.go -destination=mocks/mock_runtime.go -package=mocks

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Runner executes one forward pass over a flattened input tensor and returns
// the flattened output.
type Runner interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// Opener deserializes a model file into a Runner.
type Opener interface {
	Open(modelPath string, meta Metadata) (Runner, error)
}

// ORTOpener opens models with onnxruntime. The runtime environment is
// initialized on first use and torn down by Close.
type ORTOpener struct {
	LibraryPath string

	once    sync.Once
	initErr error
}

func (o *ORTOpener) init() error {
	o.once.Do(func() {
		if o.LibraryPath != "" {
			ort.SetSharedLibraryPath(o.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			o.initErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	})
	return o.initErr
}

func (o *ORTOpener) Open(modelPath string, meta Metadata) (Runner, error) {
	if err := o.init(); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(meta.InputShape...)
	outputShape := ort.NewShape(meta.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ortRunner{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (o *ORTOpener) Close() error {
	if o.initErr != nil || !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ortRunner binds fixed input and output tensors to its session, so runs are
// serialized.
type ortRunner struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func (r *ortRunner) Run(input []float32) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in := r.inputTensor.GetData()
	if len(input) != len(in) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInputShape, len(in), len(input))
	}
	copy(in, input)

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := r.outputTensor.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

func (r *ortRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.session != nil {
		errs = append(errs, r.session.Destroy())
		r.session = nil
	}
	if r.inputTensor != nil {
		errs = append(errs, r.inputTensor.Destroy())
		r.inputTensor = nil
	}
	if r.outputTensor != nil {
		errs = append(errs, r.outputTensor.Destroy())
		r.outputTensor = nil
	}
	return errors.Join(errs...)
}
