package craft

import (
	"image"
	"reflect"
	"testing"
)

func box(x0, y0, x1, y1 int) Box {
	return Box{TopLeft: image.Pt(x0, y0), BottomRight: image.Pt(x1, y1)}
}

func TestMerge_SameRow(t *testing.T) {
	a := box(10, 10, 100, 40)
	b := box(102, 12, 200, 42)

	got := NewMerger().Merge([]Box{a, b}, 480, 640)

	want := []Box{box(10, 10, 206, 43)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for _, in := range []Box{a, b} {
		if got[0].TopLeft.X > in.TopLeft.X || got[0].TopLeft.Y > in.TopLeft.Y {
			t.Errorf("top-left %v does not cover %v", got[0].TopLeft, in)
		}
		if got[0].BottomRight.X < in.BottomRight.X || got[0].BottomRight.Y < in.BottomRight.Y {
			t.Errorf("bottom-right %v does not cover %v", got[0].BottomRight, in)
		}
	}
}

func TestMerge_ExtendsToRunExtent(t *testing.T) {
	a := box(10, 20, 100, 40)
	b := box(101, 10, 200, 45)

	got := NewMerger().Merge([]Box{a, b}, 480, 640)

	want := []Box{box(10, 10, 206, 46)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMerge_Gap(t *testing.T) {
	a := box(10, 10, 100, 40)
	b := box(150, 12, 200, 42)

	got := NewMerger().Merge([]Box{a, b}, 480, 640)

	want := []Box{box(10, 10, 103, 41), box(148, 12, 206, 43)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// 间距大于边距时再次合并保持框数
	again := NewMerger().Merge(got, 480, 640)
	if len(again) != len(got) {
		t.Errorf("re-merge changed count: %d -> %d", len(got), len(again))
	}
}

func TestMerge_RemergeGrowsMargins(t *testing.T) {
	m := NewMerger()

	once := m.Merge([]Box{box(10, 10, 100, 40)}, 480, 640)
	twice := m.Merge(once, 480, 640)
	if want := []Box{box(10, 10, 103, 41)}; !reflect.DeepEqual(once, want) {
		t.Fatalf("first pass: got %v, want %v", once, want)
	}
	if want := []Box{box(10, 10, 106, 42)}; !reflect.DeepEqual(twice, want) {
		t.Errorf("second pass: got %v, want %v", twice, want)
	}

	// 边距使比值 103/104 超过阈值, 第二次合并连接第一次分开的框
	first := m.Merge([]Box{box(10, 10, 100, 40), box(105, 12, 200, 42)}, 480, 640)
	if want := []Box{box(10, 10, 103, 41), box(104, 12, 206, 43)}; !reflect.DeepEqual(first, want) {
		t.Fatalf("first pass: got %v, want %v", first, want)
	}
	second := m.Merge(first, 480, 640)
	if want := []Box{box(10, 10, 212, 44)}; !reflect.DeepEqual(second, want) {
		t.Errorf("second pass: got %v, want %v", second, want)
	}
}

func TestMerge_DifferentRows(t *testing.T) {
	a := box(10, 10, 100, 40)
	b := box(101, 60, 200, 90)

	got := NewMerger().Merge([]Box{b, a}, 480, 640)

	if len(got) != 2 {
		t.Fatalf("got %d boxes, want 2", len(got))
	}
	if got[0].TopLeft.Y > got[1].TopLeft.Y {
		t.Errorf("rows out of order: %v", got)
	}
}

func TestMerge_AspectGuard(t *testing.T) {
	a := box(10, 10, 100, 40)
	b := box(102, 12, 200, 42)

	got := NewMerger().Merge([]Box{a, b}, 100, 1000)
	if len(got) != 2 {
		t.Errorf("guard: got %d boxes, want 2", len(got))
	}

	m := NewMerger()
	m.AspectGuard = 0
	if got := m.Merge([]Box{a, b}, 100, 1000); len(got) != 1 {
		t.Errorf("guard disabled: got %d boxes, want 1", len(got))
	}
}

func TestMerge_Clamp(t *testing.T) {
	got := NewMerger().Merge([]Box{box(600, 400, 630, 470)}, 480, 640)

	want := []Box{box(591, 394, 635, 479)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMerge_NonNegative(t *testing.T) {
	boxes := []Box{box(-4, -2, 30, 20), box(0, 5, 10, 18), box(31, -1, 60, 21)}

	for _, b := range NewMerger().Merge(boxes, 64, 64) {
		if b.TopLeft.X < 0 || b.TopLeft.Y < 0 || b.BottomRight.X < 0 || b.BottomRight.Y < 0 {
			t.Errorf("negative coordinate in %v", b)
		}
		if b.BottomRight.X > 64-5 || b.BottomRight.Y > 64-1 {
			t.Errorf("out of canvas: %v", b)
		}
	}
}

func TestMerge_ZeroLeftEdge(t *testing.T) {
	// 下一个框左边界为 0 时不能合并
	a := box(0, 10, 0, 30)
	b := box(0, 12, 5, 31)

	got := NewMerger().Merge([]Box{a, b}, 64, 64)
	if len(got) != 2 {
		t.Errorf("got %d boxes, want 2", len(got))
	}
}

func TestMerge_ChainAndInputUntouched(t *testing.T) {
	boxes := []Box{
		box(205, 12, 300, 41),
		box(10, 10, 100, 40),
		box(102, 11, 200, 42),
	}
	orig := append([]Box(nil), boxes...)

	got := NewMerger().Merge(boxes, 480, 640)

	if len(got) != 1 {
		t.Fatalf("got %d boxes, want 1: %v", len(got), got)
	}
	if got[0].TopLeft.X != 10 || got[0].BottomRight.X < 300 {
		t.Errorf("chain not covered: %v", got[0])
	}
	if !reflect.DeepEqual(boxes, orig) {
		t.Errorf("input mutated: %v", boxes)
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := NewMerger().Merge(nil, 480, 640); len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestSortBoxes(t *testing.T) {
	boxes := []Box{
		box(0, 0, 50, 100),
		box(0, 0, 90, 20),
		box(0, 0, 30, 25),
		box(0, 0, 10, 60),
	}
	SortBoxes(boxes)

	want := []Box{
		box(0, 0, 30, 25),
		box(0, 0, 90, 20),
		box(0, 0, 10, 60),
		box(0, 0, 50, 100),
	}
	if !reflect.DeepEqual(boxes, want) {
		t.Errorf("got %v, want %v", boxes, want)
	}
}
