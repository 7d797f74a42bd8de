//go:build !tesseract

package ocr

import "errors"

// ErrTesseractNotEnabled 未使用 tesseract 构建标签编译
var ErrTesseractNotEnabled = errors.New("未启用 tesseract, 请使用 -tags tesseract 重新编译")

// NewTesseractRecognizer 未启用 tesseract 时始终返回 ErrTesseractNotEnabled
func NewTesseractRecognizer(lang string) (LineRecognizer, error) {
	return nil, ErrTesseractNotEnabled
}
