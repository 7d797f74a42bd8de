package craft

import (
	"image"
	"math"
	"sort"
)

const (
	DefaultLinkThreshold = 0.4
	DefaultLowText       = 0.4
	DefaultMinArea       = 10
)

// Extractor 从热力图中提取候选文本框
type Extractor struct {
	LinkThreshold float64
	LowText       float64
	MinArea       int
}

// NewExtractor 默认阈值的提取器
func NewExtractor() *Extractor {
	return &Extractor{
		LinkThreshold: DefaultLinkThreshold,
		LowText:       DefaultLowText,
		MinArea:       DefaultMinArea,
	}
}

// Extract 阈值化、连通域标记、自适应膨胀、最小外接矩形.
// 上下颠倒的框放入 Anomalies, 不出现在 Boxes 中.
func (e *Extractor) Extract(hm Heatmap) Extraction {
	w, h := hm.Width, hm.Height
	var out Extraction
	if w <= 0 || h <= 0 {
		return out
	}

	linkScore, textScore, combined := binarize(hm, e.LinkThreshold, e.LowText)
	labels, comps := labelComponents(combined, w, h)

	minArea := e.MinArea
	if minArea <= 0 {
		minArea = DefaultMinArea
	}

	seg := make([]bool, w*h)
	for _, c := range comps {
		if c.area < minArea {
			continue
		}

		niter := int(math.Sqrt(float64(c.area*min(c.width, c.height)/(c.width*c.height))) * 2)
		sx := max(c.left-niter, 0)
		sy := max(c.top-niter, 0)
		ex := min(c.left+c.width+niter+1, w)
		ey := min(c.top+c.height+niter+1, h)

		// 组件像素集中在 bbox 内, 其余位置保持为 false
		for y := c.top; y < c.top+c.height; y++ {
			for x := c.left; x < c.left+c.width; x++ {
				i := y*w + x
				seg[i] = labels[i] == c.label && !(linkScore[i] && !textScore[i])
			}
		}
		dilateROI(seg, w, sx, sy, ex, ey, 1+niter)

		var pts []image.Point
		for y := sy; y < ey; y++ {
			for x := sx; x < ex; x++ {
				i := y*w + x
				if seg[i] {
					pts = append(pts, image.Pt(x, y))
					seg[i] = false
				}
			}
		}
		if len(pts) == 0 {
			continue
		}

		box := cornersToBox(minAreaRect(pts))
		if box.BottomRight.Y < box.TopLeft.Y {
			out.Anomalies = append(out.Anomalies, box)
			continue
		}
		out.Boxes = append(out.Boxes, box)
	}
	return out
}

// cornersToBox 角点按 x+y 升序 (稳定排序), 最小者为左上, 最大者为右下, 并放大 2 倍
func cornersToBox(rect [4]pointF) Box {
	pts := make([]image.Point, 4)
	for i, p := range rect {
		pts[i] = truncPoint(p)
	}
	sort.SliceStable(pts, func(i, j int) bool {
		return pts[i].X+pts[i].Y < pts[j].X+pts[j].Y
	})
	return Box{
		TopLeft:     pts[0].Mul(2),
		BottomRight: pts[3].Mul(2),
	}
}
