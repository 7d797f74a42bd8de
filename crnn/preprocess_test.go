package crnn

import (
	"image"
	"image/color"
	"testing"
)

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	data, shape, err := Preprocess(img, image.Rect(10, 10, 110, 42))
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	// 100x32 -> 200x64
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 1 || shape[2] != 64 || shape[3] != 200 {
		t.Fatalf("shape: got %v", shape)
	}
	if len(data) != 64*200 {
		t.Fatalf("len: got %d", len(data))
	}
	if data[0] < 0.99 {
		t.Errorf("white pixel: got %v, want ~1", data[0])
	}
}

func TestPreprocess_ClipsAndRejects(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 50, 50))

	_, shape, err := Preprocess(img, image.Rect(40, 40, 80, 60))
	if err != nil {
		t.Fatalf("partial overlap: %v", err)
	}
	// 裁剪为 10x10
	if shape[3] != 64 {
		t.Errorf("width: got %d, want 64", shape[3])
	}

	if _, _, err := Preprocess(img, image.Rect(60, 60, 80, 80)); err == nil {
		t.Error("expected error for empty crop")
	}
}

func TestPreprocess_WidthCap(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3000, 10))
	_, shape, err := Preprocess(img, img.Bounds())
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if shape[3] != MaxWidth {
		t.Errorf("width: got %d, want %d", shape[3], MaxWidth)
	}
}
