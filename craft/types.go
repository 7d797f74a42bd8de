package craft

import (
	"fmt"
	"image"
)

const (
	// DefaultCanvasSize 检测输入最长边上限
	DefaultCanvasSize = 2560
	canvasAlign       = 32
)

// Box 轴对齐检测框, 坐标为 letterbox 画布坐标 (热力图的 2 倍)
type Box struct {
	TopLeft     image.Point `json:"top_left"`
	BottomRight image.Point `json:"bottom_right"`
}

// Rect 转换为 image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rectangle{Min: b.TopLeft, Max: b.BottomRight}.Canon()
}

// Scale 按 letterbox 比例映射回原图坐标
func (b Box) Scale(ratio float64) Box {
	if ratio <= 0 {
		return b
	}
	return Box{
		TopLeft:     image.Pt(int(float64(b.TopLeft.X)/ratio), int(float64(b.TopLeft.Y)/ratio)),
		BottomRight: image.Pt(int(float64(b.BottomRight.X)/ratio), int(float64(b.BottomRight.Y)/ratio)),
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d]-[%d,%d]", b.TopLeft.X, b.TopLeft.Y, b.BottomRight.X, b.BottomRight.Y)
}

// LetterboxResult letterbox 结果
type LetterboxResult struct {
	Image       *image.RGBA
	Ratio       float64
	Scaled      image.Point // 缩放后、填充前的尺寸
	HeatmapSize image.Point
}

// Heatmap 检测网络输出的双通道概率图, 取值已缩放到 [0,255]
type Heatmap struct {
	Width  int
	Height int
	Link   []uint8
	Text   []uint8
}

// NewHeatmap 创建空热力图
func NewHeatmap(w, h int) Heatmap {
	return Heatmap{
		Width:  w,
		Height: h,
		Link:   make([]uint8, w*h),
		Text:   make([]uint8, w*h),
	}
}

// Extraction 区域提取结果, Anomalies 为上下颠倒被剔除的框
type Extraction struct {
	Boxes     []Box
	Anomalies []Box
}
