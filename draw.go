package ocr

import (
	"image"
	"image/color"
	"strconv"

	"github.com/ankurvdev/papertrail/craft"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const boxThickness = 2

// DrawBoxes 在图像副本上绘制检测框, 框中心标注序号. boxes 需与 img 使用同一坐标系.
func DrawBoxes(img image.Image, boxes []craft.Box) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	if len(boxes) == 0 {
		return dst
	}

	palette := colorful.FastHappyPalette(len(boxes))
	for i, box := range boxes {
		rect := box.Rect()
		c := palette[i%len(palette)]
		imageutil.DrawThickRectOutline(dst, rect, c, boxThickness)
		drawLabel(dst, strconv.Itoa(i), rect, c)
	}
	return dst
}

func drawLabel(dst *image.RGBA, label string, rect image.Rectangle, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	w := d.MeasureString(label).Ceil()
	center := rect.Min.Add(rect.Max).Div(2)
	d.Dot = fixed.P(center.X-w/2, center.Y+face.Ascent/2)
	d.DrawString(label)
}
