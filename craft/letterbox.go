package craft

import (
	"image"

	"golang.org/x/image/draw"
)

var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Letterbox 等比缩放并填充到 32 的倍数, 最长边不超过 maxSide.
// 调用方保证 img 宽高非零.
func Letterbox(img image.Image, maxSide int) LetterboxResult {
	if maxSide <= 0 {
		maxSide = DefaultCanvasSize
	}
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	ratio := min(1, float64(maxSide)/float64(max(srcW, srcH)))
	targetW := max(1, int(float64(srcW)*ratio))
	targetH := max(1, int(float64(srcH)*ratio))

	canvasW := alignUp(targetW, canvasAlign)
	canvasH := alignUp(targetH, canvasAlign)

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	dstRect := image.Rect(0, 0, targetW, targetH)
	if targetW == srcW && targetH == srcH {
		draw.Draw(canvas, dstRect, img, b.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(canvas, dstRect, img, b, draw.Src, nil)
	}

	return LetterboxResult{
		Image:       canvas,
		Ratio:       ratio,
		Scaled:      image.Pt(targetW, targetH),
		HeatmapSize: image.Pt(canvasW/2, canvasH/2),
	}
}

func alignUp(v, align int) int {
	if r := v % align; r != 0 {
		return v + align - r
	}
	return v
}

// Normalize 将画布转换为 [1,3,H,W] 的检测输入, RGB 顺序, ImageNet 均值方差
func Normalize(img *image.RGBA) ([]float32, []int64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	area := w * h
	data := make([]float32, 3*area)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			for c := 0; c < 3; c++ {
				data[c*area+y*w+x] = (float32(px[c]) - imageNetMean[c]*255) / (imageNetStd[c] * 255)
			}
		}
	}
	return data, []int64{1, 3, int64(h), int64(w)}
}
