package scanner

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	ocr "github.com/ankurvdev/papertrail"
	"github.com/ankurvdev/papertrail/craft"
	ocrerrors "github.com/ankurvdev/papertrail/internal/errors"
	"github.com/ankurvdev/papertrail/internal/log"
	"github.com/ankurvdev/papertrail/internal/util"
	"github.com/ankurvdev/papertrail/worker"
)

type fakeEngine struct {
	err       error
	destroyed *atomic.Int32
}

func (f *fakeEngine) Scan(img image.Image) (*ocr.ScanResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	lb := craft.Letterbox(img, craft.DefaultCanvasSize)
	box := craft.Box{TopLeft: image.Pt(2, 2), BottomRight: image.Pt(20, 10)}
	return &ocr.ScanResult{
		Detection: &ocr.Detection{Letterbox: lb, Boxes: []craft.Box{box}},
		Results:   []ocr.TextResult{{Text: "invoice", Confidence: 0.9, Box: box, SourceBox: box}},
	}, nil
}

func (f *fakeEngine) Destroy() {
	if f.destroyed != nil {
		f.destroyed.Add(1)
	}
}

type factoryStub struct {
	calls     atomic.Int32
	destroyed atomic.Int32
	scanErr   error
	loadErr   error
}

func (f *factoryStub) factory() EngineFactory {
	return func() (Engine, error) {
		f.calls.Add(1)
		if f.loadErr != nil {
			return nil, f.loadErr
		}
		return &fakeEngine{err: f.scanErr, destroyed: &f.destroyed}, nil
	}
}

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{shade, shade, shade, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestScanner_Process(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "work")
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 200)

	stub := &factoryStub{}
	s := New(stub.factory(), Options{WorkDir: workDir, RunID: "run-1"}, log.Discard())

	if err := s.Process(path); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sum, err := util.FileMD5(path)
	if err != nil {
		t.Fatal(err)
	}
	resultDir := filepath.Join(workDir, sum)
	for _, name := range []string{ResultFile, AnnotatedFile, RegionsFile} {
		if _, err := os.Stat(filepath.Join(resultDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	rec, err := ReadRecord(filepath.Join(resultDir, ResultFile))
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if rec.Path != path || rec.MD5 != sum || rec.RunID != "run-1" {
		t.Errorf("record header: %+v", rec)
	}
	if rec.Width != 40 || rec.Height != 20 || rec.CanvasWidth != 64 || rec.CanvasHeight != 32 {
		t.Errorf("record sizes: %+v", rec)
	}
	if len(rec.Regions) != 1 || rec.Regions[0].Text != "invoice" {
		t.Errorf("regions: %+v", rec.Regions)
	}

	report, err := os.ReadFile(filepath.Join(resultDir, RegionsFile))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(report), "TEXT: invoice") {
		t.Errorf("report: %s", report)
	}
	if stub.destroyed.Load() != 1 {
		t.Errorf("engine destroyed %d times", stub.destroyed.Load())
	}
}

func TestScanner_SkipAndForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 100)

	stub := &factoryStub{}
	s := New(stub.factory(), Options{WorkDir: dir}, log.Discard())
	if err := s.Process(path); err != nil {
		t.Fatal(err)
	}
	if err := s.Process(path); err != nil {
		t.Fatal(err)
	}
	if got := stub.calls.Load(); got != 1 {
		t.Errorf("engine created %d times, want 1", got)
	}
	if st := s.Stats(); st.Succeeded != 1 || st.Skipped != 1 {
		t.Errorf("stats: %+v", st)
	}

	forced := New(stub.factory(), Options{WorkDir: dir, Force: true}, log.Discard())
	if err := forced.Process(path); err != nil {
		t.Fatal(err)
	}
	if got := stub.calls.Load(); got != 2 {
		t.Errorf("engine created %d times after force, want 2", got)
	}
}

func TestScanner_ScanFailurePersisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 50)

	stub := &factoryStub{scanErr: ocrerrors.NewInferenceError("detect", errors.New("broken"))}
	s := New(stub.factory(), Options{WorkDir: dir}, log.Discard())

	err := s.Process(path)
	if !ocrerrors.Is(err, ocrerrors.ErrorInference) {
		t.Fatalf("expected inference error, got %v", err)
	}

	sum, _ := util.FileMD5(path)
	rec, err := ReadRecord(filepath.Join(dir, sum, ResultFile))
	if err != nil {
		t.Fatalf("failure record missing: %v", err)
	}
	if rec.ErrorCode != string(ocrerrors.ErrorInference) || rec.Error == "" || len(rec.Regions) != 0 {
		t.Errorf("failure record: %+v", rec)
	}

	// 失败的记录不算完成, 再次运行会重新识别
	stub.scanErr = nil
	if err := s.Process(path); err != nil {
		t.Fatal(err)
	}
	if got := stub.calls.Load(); got != 2 {
		t.Errorf("engine created %d times, want 2", got)
	}
}

func TestScanner_ModelLoadFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	writePNG(t, path, 10)

	stub := &factoryStub{loadErr: ocrerrors.NewModelLoadError("det.onnx", errors.New("missing"))}
	s := New(stub.factory(), Options{WorkDir: dir}, log.Discard())

	err := s.Process(path)
	if !ocrerrors.Is(err, ocrerrors.ErrorModelLoad) {
		t.Fatalf("expected model load error, got %v", err)
	}
	sum, _ := util.FileMD5(path)
	if _, err := os.Stat(filepath.Join(dir, sum, ResultFile)); !os.IsNotExist(err) {
		t.Errorf("record should not exist, stat err = %v", err)
	}
	if s.Stats().Failed != 1 {
		t.Errorf("stats: %+v", s.Stats())
	}
}

func TestScanner_MissingFile(t *testing.T) {
	s := New((&factoryStub{}).factory(), Options{WorkDir: t.TempDir()}, log.Discard())
	err := s.Process(filepath.Join(t.TempDir(), "nope.png"))
	if !ocrerrors.Is(err, ocrerrors.ErrorInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestScanner_WithPool(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i, shade := range []uint8{10, 90, 170, 250} {
		p := filepath.Join(dir, string(rune('a'+i))+".png")
		writePNG(t, p, shade)
		files = append(files, p)
	}

	stub := &factoryStub{}
	s := New(stub.factory(), Options{WorkDir: filepath.Join(dir, "work")}, log.Discard())
	pool := worker.New[string](s, worker.WithThreads(2), worker.WithLogger(log.Discard()))

	pool.Add(files...)
	pool.Start()
	if err := pool.WaitForFinish(); err != nil {
		t.Fatal(err)
	}
	if st := s.Stats(); st.Succeeded != 4 || st.Failed != 0 {
		t.Errorf("stats: %+v", st)
	}
	if s.Name() != "ocr-scan" {
		t.Errorf("name: %q", s.Name())
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.PNG", "c.txt", "d.jpeg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "e.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	explicit := filepath.Join(sub, "e.png")
	got, err := Collect([]string{explicit}, []string{dir}, nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []string{
		explicit,
		filepath.Join(dir, "a.PNG"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "d.jpeg"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	only, err := Collect(nil, []string{dir}, []string{".txt"})
	if err != nil || len(only) != 1 || filepath.Base(only[0]) != "c.txt" {
		t.Errorf("custom extensions: %v %v", only, err)
	}
}

func TestCollect_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Collect([]string{filepath.Join(dir, "missing.png")}, nil, nil); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Collect([]string{dir}, nil, nil); err == nil {
		t.Error("expected error for directory passed as file")
	}
	if _, err := Collect(nil, []string{filepath.Join(dir, "nope")}, nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
