package craft

import "fmt"

// HeatmapFromOutput 将检测网络输出 [1,h,w,2] 转为热力图, 通道 0 为 link, 通道 1 为 text.
// 形状与数据长度不一致时返回错误.
func HeatmapFromOutput(out []float32, shape []int64) (Heatmap, error) {
	var h, w int
	switch len(shape) {
	case 4:
		if shape[0] != 1 {
			return Heatmap{}, fmt.Errorf("检测输出 batch 应为 1, 实际 %d", shape[0])
		}
		h, w = int(shape[1]), int(shape[2])
		if shape[3] != 2 {
			return Heatmap{}, fmt.Errorf("检测输出通道数应为 2, 实际 %d", shape[3])
		}
	case 3:
		h, w = int(shape[0]), int(shape[1])
		if shape[2] != 2 {
			return Heatmap{}, fmt.Errorf("检测输出通道数应为 2, 实际 %d", shape[2])
		}
	default:
		return Heatmap{}, fmt.Errorf("检测输出维度不支持: %v", shape)
	}
	if h <= 0 || w <= 0 {
		return Heatmap{}, fmt.Errorf("检测输出尺寸无效: %v", shape)
	}
	if len(out) != h*w*2 {
		return Heatmap{}, fmt.Errorf("检测输出长度 %d 与形状 %v 不一致", len(out), shape)
	}

	hm := NewHeatmap(w, h)
	for i := 0; i < h*w; i++ {
		hm.Link[i] = toByte(out[i*2])
		hm.Text[i] = toByte(out[i*2+1])
	}
	return hm, nil
}

func toByte(v float32) uint8 {
	s := v * 255
	if s <= 0 {
		return 0
	}
	if s >= 255 {
		return 255
	}
	return uint8(s)
}

// binarize 阈值化: link >= linkThresh*255, text >= lowText*255, 两者之一为正即为前景
func binarize(hm Heatmap, linkThresh, lowText float64) (link, text, combined []bool) {
	n := hm.Width * hm.Height
	link = make([]bool, n)
	text = make([]bool, n)
	combined = make([]bool, n)

	lt := linkThresh * 255
	tt := lowText * 255
	for i := 0; i < n; i++ {
		link[i] = float64(hm.Link[i]) >= lt
		text[i] = float64(hm.Text[i]) >= tt
		combined[i] = link[i] || text[i]
	}
	return link, text, combined
}

// component 连通域统计
type component struct {
	label  int
	area   int
	left   int
	top    int
	width  int
	height int
}

// labelComponents 4 连通标记.
// 按行优先扫描, 每个未访问前景像素开启新标签, 广度优先扩展, 邻居顺序为 右、左、下、上.
// 标签按各连通域第一个扫描到的像素顺序递增.
func labelComponents(mask []bool, w, h int) ([]int, []component) {
	labels := make([]int, len(mask))
	var comps []component
	queue := make([]int, 0, 64)
	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			start := y*w + x
			if !mask[start] || labels[start] != 0 {
				continue
			}
			label := len(comps) + 1
			minX, minY, maxX, maxY := x, y, x, y
			area := 0

			labels[start] = label
			queue = append(queue[:0], start)
			for head := 0; head < len(queue); head++ {
				ci := queue[head]
				cx, cy := ci%w, ci/w
				area++
				minX, maxX = min(minX, cx), max(maxX, cx)
				minY, maxY = min(minY, cy), max(maxY, cy)

				for _, d := range dirs {
					nx, ny := cx+d[0], cy+d[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if mask[ni] && labels[ni] == 0 {
						labels[ni] = label
						queue = append(queue, ni)
					}
				}
			}

			comps = append(comps, component{
				label:  label,
				area:   area,
				left:   minX,
				top:    minY,
				width:  maxX - minX + 1,
				height: maxY - minY + 1,
			})
		}
	}
	return labels, comps
}

// dilateROI 在 roi 内用边长 size 的方形结构元素膨胀, 锚点位于 size/2.
// roi 外的像素既不读取也不修改.
func dilateROI(seg []bool, w int, sx, sy, ex, ey, size int) {
	if size <= 1 {
		return
	}
	anchor := size / 2
	rw, rh := ex-sx, ey-sy
	src := make([]bool, rw*rh)
	for y := 0; y < rh; y++ {
		copy(src[y*rw:(y+1)*rw], seg[(sy+y)*w+sx:(sy+y)*w+ex])
	}

	for y := 0; y < rh; y++ {
		for x := 0; x < rw; x++ {
			hit := false
			for ky := 0; ky < size && !hit; ky++ {
				yy := y + ky - anchor
				if yy < 0 || yy >= rh {
					continue
				}
				for kx := 0; kx < size; kx++ {
					xx := x + kx - anchor
					if xx >= 0 && xx < rw && src[yy*rw+xx] {
						hit = true
						break
					}
				}
			}
			seg[(sy+y)*w+sx+x] = hit
		}
	}
}
