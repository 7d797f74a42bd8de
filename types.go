package ocr

import (
	"image"
	"time"

	"github.com/ankurvdev/papertrail/craft"
	"github.com/ankurvdev/papertrail/crnn"
)

// Config OCR 引擎配置
type Config struct {
	OnnxRuntimeLibPath string
	DetModelPath       string
	RecModelPath       string
	DictPath           string // 为空时使用内置英文字符集
	UseCuda            bool

	// 模型输入输出节点名, 为空时使用默认值
	DetInputName  string
	DetOutputName string
	RecInputName  string
	RecOutputName string

	CanvasSize     int
	LinkThreshold  float64
	LowText        float64
	MergeThreshold float64
	AspectGuard    float64 // 负数关闭宽高比保护, 0 使用默认值
	NoMerge        bool    // 关闭整行合并
	RecProbs       bool    // 识别模型已输出概率, 不再做 softmax

	TesseractFallback bool   // 识别失败时使用 tesseract 识别整行
	TesseractLang     string // 默认 eng
}

// DefaultConfig 默认配置, 模型路径需调用方填写
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: DefaultLibraryPath(),
		DetInputName:       "input",
		DetOutputName:      "output",
		RecInputName:       "input",
		RecOutputName:      "output",
		CanvasSize:         craft.DefaultCanvasSize,
		LinkThreshold:      craft.DefaultLinkThreshold,
		LowText:            craft.DefaultLowText,
		MergeThreshold:     craft.DefaultMergeThreshold,
		AspectGuard:        craft.DefaultAspectGuard,
		TesseractLang:      "eng",
	}
}

// withDefaults 零值字段使用默认值
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.OnnxRuntimeLibPath == "" {
		c.OnnxRuntimeLibPath = d.OnnxRuntimeLibPath
	}
	if c.DetInputName == "" {
		c.DetInputName = d.DetInputName
	}
	if c.DetOutputName == "" {
		c.DetOutputName = d.DetOutputName
	}
	if c.RecInputName == "" {
		c.RecInputName = d.RecInputName
	}
	if c.RecOutputName == "" {
		c.RecOutputName = d.RecOutputName
	}
	if c.CanvasSize <= 0 {
		c.CanvasSize = d.CanvasSize
	}
	if c.LinkThreshold <= 0 {
		c.LinkThreshold = d.LinkThreshold
	}
	if c.LowText <= 0 {
		c.LowText = d.LowText
	}
	if c.MergeThreshold <= 0 {
		c.MergeThreshold = d.MergeThreshold
	}
	switch {
	case c.AspectGuard == 0:
		c.AspectGuard = d.AspectGuard
	case c.AspectGuard < 0:
		c.AspectGuard = 0
	}
	if c.TesseractLang == "" {
		c.TesseractLang = d.TesseractLang
	}
	return c
}

// Predictor 单输入单输出的推理模型, 返回输出数据及其形状
type Predictor interface {
	Predict(input []float32, shape []int64) ([]float32, []int64, error)
	Destroy()
}

// TextResult 单个区域的识别结果
type TextResult struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Box        craft.Box `json:"box"`        // letterbox 画布坐标
	SourceBox  craft.Box `json:"source_box"` // 原图坐标
}

// Detection 检测结果
type Detection struct {
	Letterbox craft.LetterboxResult
	Boxes     []craft.Box
	Anomalies []craft.Box
}

// SourceBoxes 映射回原图坐标的检测框
func (d *Detection) SourceBoxes() []craft.Box {
	out := make([]craft.Box, len(d.Boxes))
	for i, b := range d.Boxes {
		out[i] = b.Scale(d.Letterbox.Ratio)
	}
	return out
}

// ScanResult 整图识别结果
type ScanResult struct {
	Detection *Detection
	Results   []TextResult
	Elapsed   time.Duration
}

// Texts 按阅读顺序返回所有识别文本
func (r *ScanResult) Texts() []string {
	out := make([]string, 0, len(r.Results))
	for _, tr := range r.Results {
		out = append(out, tr.Text)
	}
	return out
}

// LineRecognizer 整行识别器, 作为识别模型失败时的备选
type LineRecognizer interface {
	RecognizeLine(img image.Image) (crnn.Result, error)
	Close() error
}
