package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/logs"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Yousefhamdy22/ProjectGradution/detections"
)

var (
	ErrModelLoad = errors.New("model load failed")
	ErrInference = errors.New("inference failed")
)

type Options struct {
	ModelPath      string
	InputName      string // eg "images"
	OutputName     string // eg "output0"
	InputWidth     int
	InputHeight    int
	PoolSize       int
	AcquireTimeout time.Duration
	IntraOpThreads int // 0 = let the runtime decide
	InterOpThreads int
}

func DefaultOptions() Options {
	return Options{
		InputName:      "images",
		OutputName:     "output0",
		InputWidth:     detections.InputWidth,
		InputHeight:    detections.InputHeight,
		PoolSize:       DefaultPoolSize,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// Model is a loaded detection model. Load it once and share it; Run is safe for
// concurrent use because each call borrows its own session from the pool.
type Model struct {
	opt  Options
	pool *ModelSessionPool
}

// CheckModelFile verifies that path names a regular, non-empty file.
func CheckModelFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: model path is empty", ErrModelLoad)
	}
	st, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: model file not found at %v", ErrModelLoad, path)
	} else if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if st.IsDir() {
		return fmt.Errorf("%w: %v is a directory", ErrModelLoad, path)
	}
	if st.Size() == 0 {
		return fmt.Errorf("%w: %v is empty", ErrModelLoad, path)
	}
	return nil
}

// Load validates the model file and its declared inputs/outputs, then creates
// the session pool. InitRuntime must have succeeded before calling Load.
func Load(log logs.Log, opt Options) (*Model, error) {
	if err := CheckModelFile(opt.ModelPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opt.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read %v: %v", ErrModelLoad, opt.ModelPath, err)
	}
	in, err := findInfo(inputs, opt.InputName)
	if err != nil {
		return nil, err
	}
	out, err := findInfo(outputs, opt.OutputName)
	if err != nil {
		return nil, err
	}
	if err := checkInputShape(in.Dimensions, opt.InputWidth, opt.InputHeight); err != nil {
		return nil, err
	}
	log.Infof("Model %v: input %v %v, output %v %v", opt.ModelPath, in.Name, in.Dimensions, out.Name, out.Dimensions)

	pool, err := newModelSessionPool(opt.PoolSize, opt.AcquireTimeout, func(i int) (session, error) {
		return newOrtSession(opt)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	log.Infof("Created %v inference sessions", pool.Size())

	return &Model{opt: opt, pool: pool}, nil
}

func findInfo(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, error) {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
		names = append(names, info.Name)
	}
	return ort.InputOutputInfo{}, fmt.Errorf("%w: model has no tensor named %q (have %v)", ErrModelLoad, name, names)
}

// checkInputShape accepts dynamic dimensions (<= 0), but any static dimension
// must agree with [1, 3, height, width].
func checkInputShape(dims ort.Shape, width, height int) error {
	want := []int64{1, detections.NumChannels, int64(height), int64(width)}
	if len(dims) != len(want) {
		return fmt.Errorf("%w: model input has %d dimensions, expected %v", ErrModelLoad, len(dims), want)
	}
	for i, d := range dims {
		if d > 0 && d != want[i] {
			return fmt.Errorf("%w: model input shape %v does not match %v", ErrModelLoad, dims, want)
		}
	}
	return nil
}

// Run executes the model on input. There is no retry: a failure is returned as is.
func (m *Model) Run(ctx context.Context, input *detections.Tensor) ([]float32, error) {
	want := [4]int{1, detections.NumChannels, m.opt.InputHeight, m.opt.InputWidth}
	if input.Shape != want {
		return nil, fmt.Errorf("%w: input shape %v does not match model shape %v", ErrInference, input.Shape, want)
	}

	s, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	defer m.pool.Release(s)

	output, err := s.run(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return output, nil
}

func (m *Model) Metrics() PoolMetrics {
	return m.pool.Metrics()
}

func (m *Model) Close() {
	m.pool.Destroy()
}

type ortSession struct {
	session *ort.DynamicAdvancedSession
}

func newOrtSession(opt Options) (*ortSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if opt.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opt.IntraOpThreads); err != nil {
			return nil, err
		}
	}
	if opt.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(opt.InterOpThreads); err != nil {
			return nil, err
		}
	}

	s, err := ort.NewDynamicAdvancedSession(opt.ModelPath, []string{opt.InputName}, []string{opt.OutputName}, options)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return &ortSession{session: s}, nil
}

func (s *ortSession) run(input *detections.Tensor) ([]float32, error) {
	shape := ort.NewShape(int64(input.Shape[0]), int64(input.Shape[1]), int64(input.Shape[2]), int64(input.Shape[3]))
	inputTensor, err := ort.NewTensor(shape, input.Data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// A nil output lets the runtime allocate a tensor of whatever size the model emits
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, err
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output %T is not a float32 tensor", outputs[0])
	}
	return append([]float32(nil), outputTensor.GetData()...), nil
}

func (s *ortSession) destroy() {
	s.session.Destroy()
}
