package ocr

import (
	"fmt"
	"io"
	"strings"
)

var reportRule = strings.Repeat("-", 40)

// WriteReport 逐区域输出识别结果
func WriteReport(w io.Writer, results []TextResult) error {
	for i, r := range results {
		b := r.SourceBox
		_, err := fmt.Fprintf(w, "LOCATION: [%d] (%d,%d)-(%d,%d)\nTEXT: %s\nCONFIDENCE: %.4f\n%s\n",
			i, b.TopLeft.X, b.TopLeft.Y, b.BottomRight.X, b.BottomRight.Y, r.Text, r.Confidence, reportRule)
		if err != nil {
			return fmt.Errorf("写入识别报告失败: %w", err)
		}
	}
	return nil
}
