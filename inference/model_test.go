package inference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Yousefhamdy22/ProjectGradution/detections"
)

func TestCheckModelFile(t *testing.T) {
	dir := t.TempDir()

	require.ErrorIs(t, CheckModelFile(""), ErrModelLoad)

	err := CheckModelFile(filepath.Join(dir, "best.onnx"))
	require.ErrorIs(t, err, ErrModelLoad)
	require.Contains(t, err.Error(), "not found")

	require.ErrorIs(t, CheckModelFile(dir), ErrModelLoad)

	empty := filepath.Join(dir, "empty.onnx")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	require.ErrorIs(t, CheckModelFile(empty), ErrModelLoad)

	model := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(model, []byte{0x08, 0x01}, 0644))
	require.NoError(t, CheckModelFile(model))
}

func TestLoadMissingModel(t *testing.T) {
	opt := DefaultOptions()
	opt.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	_, err := Load(nil, opt)
	require.ErrorIs(t, err, ErrModelLoad)
}

func TestCheckInputShape(t *testing.T) {
	require.NoError(t, checkInputShape(ort.Shape{1, 3, 640, 640}, 640, 640))
	require.NoError(t, checkInputShape(ort.Shape{-1, 3, -1, -1}, 640, 480))
	require.NoError(t, checkInputShape(ort.Shape{1, 3, 480, 640}, 640, 480))
	require.ErrorIs(t, checkInputShape(ort.Shape{1, 3, 640, 640}, 320, 320), ErrModelLoad)
	require.ErrorIs(t, checkInputShape(ort.Shape{1, 1, 640, 640}, 640, 640), ErrModelLoad)
	require.ErrorIs(t, checkInputShape(ort.Shape{3, 640, 640}, 640, 640), ErrModelLoad)
}

func TestFindInfo(t *testing.T) {
	infos := []ort.InputOutputInfo{{Name: "images"}, {Name: "other"}}
	info, err := findInfo(infos, "images")
	require.NoError(t, err)
	require.Equal(t, "images", info.Name)

	_, err = findInfo(infos, "output0")
	require.ErrorIs(t, err, ErrModelLoad)
	require.Contains(t, err.Error(), "other")
}

func newFakeModel(t *testing.T, size int, sessionErr error) *Model {
	pool, err := newModelSessionPool(size, time.Second, func(i int) (session, error) {
		return &fakeSession{id: i, output: []float32{1, 2, 3, 4, 0.5, 0}, err: sessionErr}, nil
	})
	require.NoError(t, err)
	opt := DefaultOptions()
	opt.InputWidth = 8
	opt.InputHeight = 4
	m := &Model{opt: opt, pool: pool}
	t.Cleanup(m.Close)
	return m
}

func TestModelRun(t *testing.T) {
	m := newFakeModel(t, 1, nil)
	out, err := m.Run(context.Background(), detections.NewTensor(1, 3, 4, 8))
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4, 0.5, 0}, out)
	require.Equal(t, int64(1), m.Metrics().TotalAcquired)
	require.Equal(t, 0, m.Metrics().InUse)
}

func TestModelRunShapeMismatch(t *testing.T) {
	m := newFakeModel(t, 1, nil)
	_, err := m.Run(context.Background(), detections.NewTensor(1, 3, 8, 8))
	require.ErrorIs(t, err, ErrInference)
	require.Equal(t, int64(0), m.Metrics().TotalAcquired)
}

func TestModelRunEngineError(t *testing.T) {
	cause := errors.New("bad node")
	m := newFakeModel(t, 1, cause)
	_, err := m.Run(context.Background(), detections.NewTensor(1, 3, 4, 8))
	require.ErrorIs(t, err, ErrInference)
	require.Contains(t, err.Error(), "bad node")
	// The session goes back to the pool even after a failure
	require.Equal(t, int64(1), m.Metrics().TotalReleased)
}

func TestModelRunClosed(t *testing.T) {
	m := newFakeModel(t, 1, nil)
	m.Close()
	_, err := m.Run(context.Background(), detections.NewTensor(1, 3, 4, 8))
	require.ErrorIs(t, err, ErrInference)
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestModelRunAcquireFailures(t *testing.T) {
	pool, err := newModelSessionPool(1, 20*time.Millisecond, func(i int) (session, error) {
		return &fakeSession{id: i}, nil
	})
	require.NoError(t, err)
	opt := DefaultOptions()
	opt.InputWidth = 8
	opt.InputHeight = 4
	m := &Model{opt: opt, pool: pool}
	defer m.Close()

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(held)

	_, err = m.Run(context.Background(), detections.NewTensor(1, 3, 4, 8))
	require.ErrorIs(t, err, ErrInference)
	require.ErrorIs(t, err, ErrPoolTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx, detections.NewTensor(1, 3, 4, 8))
	require.ErrorIs(t, err, ErrInference)
	require.ErrorIs(t, err, context.Canceled)
}

func TestModelRunConcurrent(t *testing.T) {
	m := newFakeModel(t, 2, nil)
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Run(context.Background(), detections.NewTensor(1, 3, 4, 8)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(12), m.Metrics().TotalAcquired)
}
