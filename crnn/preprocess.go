package crnn

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/up-zero/gotool/imageutil"
)

const (
	// InputHeight 识别网络输入高度
	InputHeight = 64
	// MaxWidth 识别网络输入宽度上限
	MaxWidth = 2560
)

// Preprocess 裁剪 rect 区域, 灰度化并缩放到高度 64, 输出 [1,1,64,W]
func Preprocess(img image.Image, rect image.Rectangle) ([]float32, []int64, error) {
	rect = rect.Canon().Intersect(img.Bounds())
	if rect.Empty() {
		return nil, nil, fmt.Errorf("裁剪区域为空: %v", rect)
	}

	crop := imaging.Crop(img, rect)
	w, h := rect.Dx(), rect.Dy()
	targetW := int(math.Ceil(float64(InputHeight) * float64(w) / float64(h)))
	targetW = min(max(targetW, 1), MaxWidth)

	resized := imaging.Resize(crop, targetW, InputHeight, imaging.Linear)
	gray := imageutil.Grayscale(resized)

	data := make([]float32, InputHeight*targetW)
	for y := 0; y < InputHeight; y++ {
		for x := 0; x < targetW; x++ {
			pix := gray.Pix[y*gray.Stride+x]
			data[y*targetW+x] = (float32(pix)/255.0 - 0.5) / 0.5
		}
	}

	return data, []int64{1, 1, InputHeight, int64(targetW)}, nil
}
