package scanner

import (
	"fmt"
	"os"
	"time"

	ocr "github.com/ankurvdev/papertrail"
	jsoniter "github.com/json-iterator/go"
)

const (
	// ResultFile 识别结果
	ResultFile = "ocr.json"
	// AnnotatedFile 标注检测框的图像
	AnnotatedFile = "annotated.jpg"
	// RegionsFile 逐区域文本报告
	RegionsFile = "regions.log"
)

// Record 单个文件的识别记录, 写入 <workDir>/<md5>/ocr.json
type Record struct {
	Path         string           `json:"path"`
	MD5          string           `json:"md5"`
	RunID        string           `json:"run_id"`
	Width        int              `json:"width"`
	Height       int              `json:"height"`
	CanvasWidth  int              `json:"canvas_width"`
	CanvasHeight int              `json:"canvas_height"`
	Ratio        float64          `json:"ratio"`
	Regions      []ocr.TextResult `json:"regions"`
	Anomalies    int              `json:"anomalies"`
	Error        string           `json:"error,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	CreatedAt    time.Time        `json:"created_at"`
}

// WriteRecord 写入记录
func WriteRecord(path string, rec *Record) error {
	data, err := jsoniter.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化识别记录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入识别记录失败: %w", err)
	}
	return nil
}

// ReadRecord 读取记录
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec := new(Record)
	if err := jsoniter.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("解析识别记录 %s 失败: %w", path, err)
	}
	return rec, nil
}
