package ocr

import (
	"fmt"
	"path/filepath"
	"runtime"
)

const defaultLibDir = "./lib"

// DefaultLibraryPath ./lib 下与当前平台匹配的 onnxruntime 动态库
func DefaultLibraryPath() string {
	return LibraryPathIn(defaultLibDir)
}

// LibraryPathIn dir 下与当前平台匹配的 onnxruntime 动态库:
// windows 为 onnxruntime.dll, linux/darwin 为 onnxruntime_<arch>.so/.dylib
func LibraryPathIn(dir string) string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(dir, "onnxruntime.dll")
	case "darwin":
		return filepath.Join(dir, fmt.Sprintf("onnxruntime_%s.dylib", runtime.GOARCH))
	case "linux":
		return filepath.Join(dir, fmt.Sprintf("onnxruntime_%s.so", runtime.GOARCH))
	default:
		return filepath.Join(dir, "onnxruntime_amd64.so")
	}
}
