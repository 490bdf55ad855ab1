package inference

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestDefaultLibraryPath(t *testing.T) {
	p := DefaultLibraryPath()
	require.True(t, strings.HasPrefix(p, "./lib/onnxruntime"))
	if runtime.GOOS == "linux" {
		require.Equal(t, "./lib/onnxruntime_"+runtime.GOARCH+".so", p)
	}
}

func TestFormatCPUFeatures(t *testing.T) {
	s := FormatCPUFeatures()
	require.True(t, strings.HasPrefix(s, "["))
	listed := map[string]bool{}
	for _, name := range strings.Fields(strings.Trim(s, "[]")) {
		listed[name] = true
	}
	for name, ok := range CPUFeatures() {
		require.Equal(t, ok, listed[name], name)
	}
}

func TestInitRuntimeMissingLibrary(t *testing.T) {
	err := InitRuntime(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "libonnxruntime.so"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}
