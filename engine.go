package ocr

import (
	"fmt"
	"image"
	"time"

	"github.com/ankurvdev/papertrail/craft"
	"github.com/ankurvdev/papertrail/crnn"
	ocrerrors "github.com/ankurvdev/papertrail/internal/errors"
	"github.com/ankurvdev/papertrail/internal/log"
	"github.com/ankurvdev/papertrail/internal/onnx"
	"github.com/ankurvdev/papertrail/internal/util"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/up-zero/gotool/convertutil"
)

// Engine 检测 + 识别流水线
type Engine struct {
	cfg       Config
	det       Predictor
	rec       Predictor
	fallback  LineRecognizer
	extractor *craft.Extractor
	merger    *craft.Merger
	decoder   *crnn.Decoder
	log       *logrus.Entry
}

// NewEngine 初始化引擎, 加载检测与识别模型
func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	oc := new(onnx.Config)
	_ = convertutil.CopyProperties(cfg, oc)

	if err := oc.New(); err != nil {
		return nil, ocrerrors.NewModelLoadError(cfg.OnnxRuntimeLibPath, err)
	}
	// 会话创建后不再需要会话选项
	defer oc.Destroy()

	det, err := oc.NewSession(cfg.DetModelPath, cfg.DetInputName, cfg.DetOutputName)
	if err != nil {
		return nil, ocrerrors.NewModelLoadError(cfg.DetModelPath, err)
	}
	rec, err := oc.NewSession(cfg.RecModelPath, cfg.RecInputName, cfg.RecOutputName)
	if err != nil {
		det.Destroy()
		return nil, ocrerrors.NewModelLoadError(cfg.RecModelPath, err)
	}

	engine, err := NewEngineWithPredictors(det, rec, cfg)
	if err != nil {
		det.Destroy()
		rec.Destroy()
		return nil, err
	}
	return engine, nil
}

// NewEngineWithPredictors 使用外部提供的检测与识别模型
func NewEngineWithPredictors(det, rec Predictor, cfg Config) (*Engine, error) {
	if det == nil || rec == nil {
		return nil, ocrerrors.NewInvalidInputError("检测模型与识别模型均不能为空")
	}
	cfg = cfg.withDefaults()

	alphabet := crnn.DefaultAlphabet
	if cfg.DictPath != "" {
		dict, err := util.LoadDict(cfg.DictPath)
		if err != nil {
			return nil, ocrerrors.NewModelLoadError(cfg.DictPath, fmt.Errorf("加载字符集失败: %w", err))
		}
		alphabet = dict
	}

	engine := &Engine{
		cfg: cfg,
		det: det,
		rec: rec,
		extractor: &craft.Extractor{
			LinkThreshold: cfg.LinkThreshold,
			LowText:       cfg.LowText,
			MinArea:       craft.DefaultMinArea,
		},
		merger: &craft.Merger{
			Threshold:   cfg.MergeThreshold,
			AspectGuard: cfg.AspectGuard,
		},
		decoder: crnn.NewDecoder(alphabet),
		log:     log.Logger().WithField("component", "engine"),
	}

	if cfg.TesseractFallback {
		fb, err := NewTesseractRecognizer(cfg.TesseractLang)
		if err != nil {
			engine.log.WithError(err).Warn("tesseract 不可用, 不使用备选识别")
		} else {
			engine.fallback = fb
		}
	}
	return engine, nil
}

// SetLogger 替换日志条目, 用于附带运行 ID
func (e *Engine) SetLogger(entry *logrus.Entry) {
	if entry != nil {
		e.log = entry.WithField("component", "engine")
	}
}

// SetFallback 设置识别失败时的备选识别器
func (e *Engine) SetFallback(r LineRecognizer) {
	e.fallback = r
}

// RunDetect 文本检测, 返回的框为 letterbox 画布坐标
func (e *Engine) RunDetect(img image.Image) (*Detection, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ocrerrors.NewInvalidInputError(fmt.Sprintf("图像尺寸为 0: %v", b.Size()))
	}

	lb := craft.Letterbox(img, e.cfg.CanvasSize)
	inputData, inputShape := craft.Normalize(lb.Image)

	outputData, outputShape, err := e.det.Predict(inputData, inputShape)
	if err != nil {
		return nil, ocrerrors.NewInferenceError("detect", err)
	}

	hm, err := craft.HeatmapFromOutput(outputData, outputShape)
	if err != nil {
		return nil, ocrerrors.NewInferenceError("detect", err)
	}
	if hm.Width != lb.HeatmapSize.X || hm.Height != lb.HeatmapSize.Y {
		return nil, ocrerrors.NewInferenceError("detect",
			fmt.Errorf("检测输出尺寸 %dx%d 与画布的一半 %v 不一致", hm.Width, hm.Height, lb.HeatmapSize))
	}

	ext := e.extractor.Extract(hm)
	for _, a := range ext.Anomalies {
		anomaly := ocrerrors.NewGeometryAnomalyError(a.TopLeft.Y, a.BottomRight.Y)
		e.log.WithFields(log.Fields(anomaly.ToMap())).Warn("剔除上下颠倒的检测框")
	}

	boxes := ext.Boxes
	if !e.cfg.NoMerge {
		size := lb.Image.Bounds().Size()
		boxes = e.merger.Merge(boxes, size.Y, size.X)
	}

	return &Detection{
		Letterbox: lb,
		Boxes:     boxes,
		Anomalies: ext.Anomalies,
	}, nil
}

// RunRecognize 识别 img 中 box 区域的文本, box 与 img 使用同一坐标系
func (e *Engine) RunRecognize(img image.Image, box craft.Box) (TextResult, error) {
	result := TextResult{Box: box}

	inputData, inputShape, err := crnn.Preprocess(img, box.Rect())
	if err != nil {
		return result, ocrerrors.NewInferenceError("recognize", err)
	}

	outputData, outputShape, err := e.rec.Predict(inputData, inputShape)
	if err != nil {
		return result, ocrerrors.NewInferenceError("recognize", err)
	}

	// 输出形状为 [1,T,C] 或 [T,C], C 为字符集大小加空白符
	classes := len(e.decoder.Alphabet) + 1
	if len(outputShape) < 2 || outputShape[len(outputShape)-1] != int64(classes) {
		return result, ocrerrors.NewInferenceError("recognize",
			fmt.Errorf("识别输出形状 %v 与类别数 %d 不匹配", outputShape, classes))
	}
	steps := len(outputData) / classes
	if steps == 0 || len(outputData)%classes != 0 {
		return result, ocrerrors.NewInferenceError("recognize",
			fmt.Errorf("识别输出长度 %d 与类别数 %d 不匹配", len(outputData), classes))
	}
	if !e.cfg.RecProbs {
		crnn.SoftmaxRows(outputData, classes)
	}

	res := e.decoder.Decode(outputData, steps, classes)
	result.Text = res.Text
	result.Confidence = res.Confidence
	return result, nil
}

// Scan 检测并识别整张图像. 单个区域识别失败时该区域记为空文本.
func (e *Engine) Scan(img image.Image) (*ScanResult, error) {
	start := time.Now()

	det, err := e.RunDetect(img)
	if err != nil {
		return nil, err
	}

	canvas := det.Letterbox.Image
	results := make([]TextResult, 0, len(det.Boxes))
	for _, box := range det.Boxes {
		tr, err := e.RunRecognize(canvas, box)
		if err != nil {
			tr = e.recognizeFallback(canvas, box, err)
		}
		tr.SourceBox = box.Scale(det.Letterbox.Ratio)
		results = append(results, tr)
	}

	return &ScanResult{
		Detection: det,
		Results:   results,
		Elapsed:   time.Since(start),
	}, nil
}

func (e *Engine) recognizeFallback(canvas image.Image, box craft.Box, cause error) TextResult {
	entry := e.log.WithField("box", box.String())
	result := TextResult{Box: box}
	if e.fallback == nil {
		entry.WithError(cause).Warn("识别失败, 该区域记为空文本")
		return result
	}

	rect := box.Rect().Intersect(canvas.Bounds())
	if rect.Empty() {
		entry.WithError(cause).Warn("识别失败, 区域为空")
		return result
	}
	res, err := e.fallback.RecognizeLine(imaging.Crop(canvas, rect))
	if err != nil {
		entry.WithError(err).Warn("备选识别失败, 该区域记为空文本")
		return result
	}
	result.Text = res.Text
	result.Confidence = res.Confidence
	return result
}

// Destroy 释放模型
func (e *Engine) Destroy() {
	if e.det != nil {
		e.det.Destroy()
	}
	if e.rec != nil {
		e.rec.Destroy()
	}
	if e.fallback != nil {
		_ = e.fallback.Close()
	}
}
