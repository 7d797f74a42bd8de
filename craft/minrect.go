package craft

import (
	"image"
	"math"
	"sort"
)

const snapEps = 1e-6

type pointF struct {
	X, Y float64
}

// convexHull 单调链凸包, 逆时针, 去除共线点.
// 起点为 x 最小 (同 x 取 y 最小) 的点.
func convexHull(pts []image.Point) []image.Point {
	if len(pts) < 3 {
		out := append([]image.Point(nil), pts...)
		sortPoints(out)
		return dedupe(out)
	}
	p := append([]image.Point(nil), pts...)
	sortPoints(p)
	p = dedupe(p)
	if len(p) < 3 {
		return p
	}

	hull := make([]image.Point, 0, 2*len(p))
	for _, pt := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		pt := p[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

func sortPoints(p []image.Point) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
}

func dedupe(p []image.Point) []image.Point {
	if len(p) == 0 {
		return p
	}
	out := p[:1]
	for _, pt := range p[1:] {
		if pt != out[len(out)-1] {
			out = append(out, pt)
		}
	}
	return out
}

func cross(o, a, b image.Point) int {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// minAreaRect 最小面积外接矩形的 4 个角点.
// 旋转卡壳: 按凸包顺序依次以每条边为方向, 面积严格更小才替换, 因此并列时取第一条边.
// 角点顺序为 (minU,minN) (maxU,minN) (maxU,maxN) (minU,maxN).
func minAreaRect(pts []image.Point) [4]pointF {
	hull := convexHull(pts)
	switch len(hull) {
	case 0:
		return [4]pointF{}
	case 1:
		p := pointF{float64(hull[0].X), float64(hull[0].Y)}
		return [4]pointF{p, p, p, p}
	case 2:
		a := pointF{float64(hull[0].X), float64(hull[0].Y)}
		b := pointF{float64(hull[1].X), float64(hull[1].Y)}
		return [4]pointF{a, b, b, a}
	}

	best := math.Inf(1)
	var rect [4]pointF
	n := len(hull)
	for i := 0; i < n; i++ {
		a, b := hull[i], hull[(i+1)%n]
		ex, ey := float64(b.X-a.X), float64(b.Y-a.Y)
		l := math.Hypot(ex, ey)
		if l == 0 {
			continue
		}
		ux, uy := ex/l, ey/l
		nx, ny := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minN, maxN := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			px, py := float64(p.X), float64(p.Y)
			pu := px*ux + py*uy
			pn := px*nx + py*ny
			minU, maxU = math.Min(minU, pu), math.Max(maxU, pu)
			minN, maxN = math.Min(minN, pn), math.Max(maxN, pn)
		}

		area := (maxU - minU) * (maxN - minN)
		if area < best {
			best = area
			at := func(u, v float64) pointF {
				return pointF{u*ux + v*nx, u*uy + v*ny}
			}
			rect = [4]pointF{at(minU, minN), at(maxU, minN), at(maxU, maxN), at(minU, maxN)}
		}
	}
	return rect
}

// truncPoint 截断为整数, 与整数相差不超过 snapEps 时先吸附到整数
func truncPoint(p pointF) image.Point {
	return image.Pt(truncSnap(p.X), truncSnap(p.Y))
}

func truncSnap(v float64) int {
	if r := math.Round(v); math.Abs(v-r) <= snapEps {
		return int(r)
	}
	return int(v)
}
