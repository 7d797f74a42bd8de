package scanner

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	ocr "github.com/ankurvdev/papertrail"
	ocrerrors "github.com/ankurvdev/papertrail/internal/errors"
	"github.com/ankurvdev/papertrail/internal/log"
	"github.com/ankurvdev/papertrail/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/up-zero/gotool/imageutil"
)

const jpegQuality = 90

// Engine 扫描所需的引擎能力
type Engine interface {
	Scan(img image.Image) (*ocr.ScanResult, error)
	Destroy()
}

// EngineFactory 为每个任务创建独立的引擎, 会话不在任务之间共享
type EngineFactory func() (Engine, error)

// NewEngineFactory 基于 onnxruntime 的引擎工厂
func NewEngineFactory(cfg ocr.Config, entry *logrus.Entry) EngineFactory {
	return func() (Engine, error) {
		engine, err := ocr.NewEngine(cfg)
		if err != nil {
			return nil, err
		}
		engine.SetLogger(entry)
		return engine, nil
	}
}

// Options 扫描配置
type Options struct {
	WorkDir string
	Force   bool // 结果已存在时仍重新识别
	RunID   string
}

// Stats 本轮统计
type Stats struct {
	Succeeded int
	Skipped   int
	Failed    int
}

// Scanner 批量识别任务处理器, 每个任务为一个图像文件路径
type Scanner struct {
	opts    Options
	factory EngineFactory
	log     *logrus.Entry

	succeeded atomic.Int32
	skipped   atomic.Int32
	failed    atomic.Int32
	started   time.Time
}

// New 创建扫描器
func New(factory EngineFactory, opts Options, entry *logrus.Entry) *Scanner {
	if entry == nil {
		entry = log.WithRun(opts.RunID)
	}
	return &Scanner{
		opts:    opts,
		factory: factory,
		log:     entry,
		started: time.Now(),
	}
}

func (s *Scanner) Name() string { return "ocr-scan" }

func (s *Scanner) Describe(path string) string { return path }

// ResultDir 文件对应的结果目录
func (s *Scanner) ResultDir(sum string) string {
	return filepath.Join(s.opts.WorkDir, sum)
}

// Process 识别单个文件并写入结果目录. 已有成功结果时跳过.
func (s *Scanner) Process(path string) error {
	start := time.Now()

	sum, err := util.FileMD5(path)
	if err != nil {
		s.failed.Add(1)
		return ocrerrors.NewInvalidInputError(err.Error())
	}
	dir := s.ResultDir(sum)
	resultPath := filepath.Join(dir, ResultFile)
	entry := s.log.WithFields(log.Fields{"file": path, "md5": sum})

	if !s.opts.Force && s.done(resultPath) {
		s.skipped.Add(1)
		entry.Debug("已有识别结果, 跳过")
		return nil
	}

	img, err := imageutil.Open(path)
	if err != nil {
		s.failed.Add(1)
		return ocrerrors.NewInvalidInputError(fmt.Sprintf("加载图像失败 %s: %v", path, err))
	}

	engine, err := s.factory()
	if err != nil {
		s.failed.Add(1)
		return err
	}
	defer engine.Destroy()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("创建结果目录失败: %w", err)
	}

	b := img.Bounds()
	rec := &Record{
		Path:      path,
		MD5:       sum,
		RunID:     s.opts.RunID,
		Width:     b.Dx(),
		Height:    b.Dy(),
		CreatedAt: start,
	}

	res, scanErr := engine.Scan(img)
	if scanErr != nil {
		rec.Error = scanErr.Error()
		rec.ErrorCode = string(ocrerrors.CodeOf(scanErr))
		rec.ElapsedMs = time.Since(start).Milliseconds()
		if err := WriteRecord(resultPath, rec); err != nil {
			entry.WithError(err).Error("写入失败记录出错")
		}
		s.failed.Add(1)
		return scanErr
	}

	det := res.Detection
	canvas := det.Letterbox.Image.Bounds().Size()
	rec.CanvasWidth, rec.CanvasHeight = canvas.X, canvas.Y
	rec.Ratio = det.Letterbox.Ratio
	rec.Regions = res.Results
	rec.Anomalies = len(det.Anomalies)
	rec.ElapsedMs = time.Since(start).Milliseconds()

	if err := s.persist(dir, img, res); err != nil {
		s.failed.Add(1)
		return err
	}
	// ocr.json 最后写入, 作为完成标记
	if err := WriteRecord(resultPath, rec); err != nil {
		s.failed.Add(1)
		return err
	}

	s.succeeded.Add(1)
	entry.WithFields(log.Fields{
		"regions":    len(res.Results),
		"anomalies":  len(det.Anomalies),
		"elapsed_ms": rec.ElapsedMs,
	}).Info("识别完成")
	return nil
}

func (s *Scanner) persist(dir string, img image.Image, res *ocr.ScanResult) error {
	annotated := ocr.DrawBoxes(img, res.Detection.SourceBoxes())
	if err := imageutil.Save(filepath.Join(dir, AnnotatedFile), annotated, jpegQuality); err != nil {
		return fmt.Errorf("保存标注图像失败: %w", err)
	}

	var buf bytes.Buffer
	if err := ocr.WriteReport(&buf, res.Results); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, RegionsFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("写入区域报告失败: %w", err)
	}
	return nil
}

// done 结果存在且没有错误
func (s *Scanner) done(resultPath string) bool {
	rec, err := ReadRecord(resultPath)
	if err != nil {
		return false
	}
	return rec.Error == ""
}

func (s *Scanner) OnProgress(total, completed int) {
	s.log.Infof("[%d/%d]", completed, total)
}

func (s *Scanner) OnFinished() {
	st := s.Stats()
	s.log.WithFields(log.Fields{
		"succeeded": st.Succeeded,
		"skipped":   st.Skipped,
		"failed":    st.Failed,
		"elapsed":   time.Since(s.started).String(),
	}).Info("批量识别结束")
}

// Stats 当前统计
func (s *Scanner) Stats() Stats {
	return Stats{
		Succeeded: int(s.succeeded.Load()),
		Skipped:   int(s.skipped.Load()),
		Failed:    int(s.failed.Load()),
	}
}
