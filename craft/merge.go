package craft

import (
	"image"
	"sort"

	"github.com/ankurvdev/papertrail/internal/util"
)

const (
	DefaultMergeThreshold = 0.97
	DefaultAspectGuard    = 5
	rowTolerance          = 7
	maxMergeRatio         = 1.4
	maxMergeDeltaY        = 20
)

// Merger 将同一行相邻的候选框合并为整行文本框
type Merger struct {
	// Threshold 右边界与下一框左边界之比的下限
	Threshold float64
	// AspectGuard 画布宽大于 AspectGuard 倍高度时不合并, 0 关闭
	AspectGuard float64
}

// NewMerger 默认参数的合并器
func NewMerger() *Merger {
	return &Merger{
		Threshold:   DefaultMergeThreshold,
		AspectGuard: DefaultAspectGuard,
	}
}

// SortBoxes 行优先排序: 底边相差小于 7 像素视为同一行, 按右边界升序; 否则按底边升序
func SortBoxes(boxes []Box) {
	sort.SliceStable(boxes, func(i, j int) bool {
		a, b := boxes[i].BottomRight, boxes[j].BottomRight
		if abs(a.Y-b.Y) < rowTolerance {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}

// Merge 合并候选框, height/width 为画布尺寸. 输入切片不会被修改.
// 闭合边距每次都会扩大框, 对同一组框只应合并一次.
func (m *Merger) Merge(boxes []Box, height, width int) []Box {
	if len(boxes) == 0 {
		return nil
	}
	dets := append([]Box(nil), boxes...)
	SortBoxes(dets)

	guarded := m.AspectGuard > 0 && float64(width) > m.AspectGuard*float64(height)

	merged := make([]Box, 0, len(dets))
	start := 0
	top := dets[0].TopLeft.Y
	bottom := dets[0].BottomRight.Y
	for i := 0; i < len(dets); i++ {
		// 最后一个框不再向后读取, 直接结束当前行
		if i == len(dets)-1 {
			merged = append(merged, m.closeRun(dets[start], dets[i], top, bottom, height, width))
			break
		}

		cur, next := dets[i], dets[i+1]
		if !guarded && m.mergeable(cur, next) {
			top = min(top, next.TopLeft.Y)
			bottom = max(bottom, next.BottomRight.Y)
			continue
		}

		merged = append(merged, m.closeRun(dets[start], cur, top, bottom, height, width))
		start = i + 1
		top = next.TopLeft.Y
		bottom = next.BottomRight.Y
	}
	return merged
}

func (m *Merger) mergeable(cur, next Box) bool {
	if next.TopLeft.X == 0 {
		return false
	}
	ratio := float64(cur.BottomRight.X) / float64(next.TopLeft.X)
	return ratio > m.Threshold && ratio < maxMergeRatio &&
		abs(cur.BottomRight.Y-next.BottomRight.Y) < maxMergeDeltaY
}

// closeRun 生成整行框: 左上角向上扩展 minY 并内缩 1/64, 右下角向下扩展 maxY 并外扩 1/32
func (m *Merger) closeRun(first, last Box, top, bottom, height, width int) Box {
	minY := first.TopLeft.Y - top
	maxY := bottom - last.BottomRight.Y

	tl := image.Pt(first.TopLeft.X, first.TopLeft.Y-minY)
	tl.Y -= tl.Y / 64
	tl.X -= tl.X / 64
	tl.X = max(tl.X, 0)
	tl.Y = max(tl.Y, 0)

	br := image.Pt(last.BottomRight.X, last.BottomRight.Y+maxY)
	br.Y += br.Y / 32
	br.X += br.X / 32
	br.X = util.Clamp(br.X, 0, width-5)
	br.Y = util.Clamp(br.Y, 0, height-1)

	return Box{TopLeft: tl, BottomRight: br}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
