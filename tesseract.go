//go:build tesseract

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/ankurvdev/papertrail/crnn"
	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer 基于 tesseract 的整行识别, 需要以 tesseract 构建标签编译
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractRecognizer 创建 tesseract 识别器, 按单行模式识别
func NewTesseractRecognizer(lang string) (LineRecognizer, error) {
	client := gosseract.NewClient()
	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("设置 tesseract 语言失败: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("设置 tesseract 分割模式失败: %w", err)
	}
	return &TesseractRecognizer{client: client}, nil
}

// RecognizeLine 识别单行图像, 置信度为各单词置信度的平均值
func (t *TesseractRecognizer) RecognizeLine(img image.Image) (crnn.Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return crnn.Result{}, fmt.Errorf("编码图像失败: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return crnn.Result{}, fmt.Errorf("设置图像失败: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return crnn.Result{}, fmt.Errorf("tesseract 识别失败: %w", err)
	}

	var conf float64
	if boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		for _, b := range boxes {
			conf += b.Confidence / 100.0
		}
		conf /= float64(len(boxes))
	}
	return crnn.Result{Text: strings.TrimSpace(text), Confidence: conf}, nil
}

// Close 释放 tesseract 客户端
func (t *TesseractRecognizer) Close() error {
	return t.client.Close()
}
