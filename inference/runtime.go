package inference

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/cyclopcam/logs"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/sys/cpu"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitRuntime loads the ONNX Runtime shared library and initializes its environment.
// Only the first call does any work; later calls return the first call's result.
func InitRuntime(log logs.Log, libPath string) error {
	initOnce.Do(func() {
		if _, err := os.Stat(libPath); err != nil {
			initErr = fmt.Errorf("ONNX Runtime library not found at %v: %w", libPath, err)
			return
		}
		log.Infof("Loading ONNX Runtime from %v", libPath)
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("initialize ONNX Runtime environment: %w", err)
			return
		}
		log.Infof("ONNX Runtime ready, CPU features %v", FormatCPUFeatures())
	})
	return initErr
}

func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// DefaultLibraryPath picks the runtime library shipped next to the binary, eg
// ./lib/onnxruntime_arm64.so on linux/arm64.
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"
	switch runtime.GOOS {
	case "windows":
		return baseDir + libName + ".dll"
	case "darwin":
		return fmt.Sprintf("%s%s_%s.dylib", baseDir, libName, runtime.GOARCH)
	default:
		return fmt.Sprintf("%s%s_%s.so", baseDir, libName, runtime.GOARCH)
	}
}

// CPUFeatures reports the SIMD extensions that the runtime's CPU provider can use.
func CPUFeatures() map[string]bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return map[string]bool{
			"sse41":  cpu.X86.HasSSE41,
			"avx":    cpu.X86.HasAVX,
			"avx2":   cpu.X86.HasAVX2,
			"fma":    cpu.X86.HasFMA,
			"avx512": cpu.X86.HasAVX512,
		}
	case "arm64":
		return map[string]bool{
			"asimd":   cpu.ARM64.HasASIMD,
			"fphp":    cpu.ARM64.HasFPHP,
			"asimdhp": cpu.ARM64.HasASIMDHP,
			"asimddp": cpu.ARM64.HasASIMDDP,
		}
	}
	return map[string]bool{}
}

func FormatCPUFeatures() string {
	features := CPUFeatures()
	names := make([]string, 0, len(features))
	for name, ok := range features {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return fmt.Sprintf("%v", names)
}
