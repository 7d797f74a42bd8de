package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	ocr "github.com/ankurvdev/papertrail"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const envPrefix = "PAPERTRAIL_"

// Config 命令行与环境变量合并后的运行配置
type Config struct {
	Files    []string
	ScanDirs []string
	WorkDir  string `validate:"required"`
	Threads  int    `validate:"gte=0,lte=256"`
	Debug    bool
	Verbose  bool
	Force    bool

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string

	OnnxRuntimeLibPath string `validate:"required"`
	DetModelPath       string `validate:"required"`
	RecModelPath       string `validate:"required"`
	DictPath           string
	UseCuda            bool

	CanvasSize     int     `validate:"gte=32,lte=8192"`
	LinkThreshold  float64 `validate:"gt=0,lte=1"`
	LowText        float64 `validate:"gt=0,lte=1"`
	MergeThreshold float64 `validate:"gt=0,lt=1.4"`
	AspectGuard    float64 `validate:"gte=-1"`
	NoMerge        bool
	RecProbs       bool

	Tesseract     bool
	TesseractLang string
}

// Load 读取 .env (可选) 与 PAPERTRAIL_* 环境变量. envFile 为空时尝试当前目录的 .env.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取 .env 失败: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", envFile, err)
	}

	d := ocr.DefaultConfig()
	cfg := &Config{
		Files:              splitList(getEnvOrDefault("FILES", "")),
		ScanDirs:           splitList(getEnvOrDefault("SCAN", "")),
		WorkDir:            getEnvOrDefault("WORK_DIR", "./work"),
		Threads:            getEnvAsIntOrDefault("THREADS", 0),
		Debug:              getEnvAsBoolOrDefault("DEBUG", false),
		Verbose:            getEnvAsBoolOrDefault("VERBOSE", false),
		Force:              getEnvAsBoolOrDefault("FORCE", false),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:            getEnvOrDefault("LOG_FILE", ""),
		OnnxRuntimeLibPath: getEnvOrDefault("ORT_LIB", d.OnnxRuntimeLibPath),
		DetModelPath:       getEnvOrDefault("DET_MODEL", "./weights/craft.onnx"),
		RecModelPath:       getEnvOrDefault("REC_MODEL", "./weights/crnn.onnx"),
		DictPath:           getEnvOrDefault("DICT", ""),
		UseCuda:            getEnvAsBoolOrDefault("USE_CUDA", false),
		CanvasSize:         getEnvAsIntOrDefault("CANVAS_SIZE", d.CanvasSize),
		LinkThreshold:      getEnvAsFloatOrDefault("LINK_THRESHOLD", d.LinkThreshold),
		LowText:            getEnvAsFloatOrDefault("LOW_TEXT", d.LowText),
		MergeThreshold:     getEnvAsFloatOrDefault("MERGE_THRESHOLD", d.MergeThreshold),
		AspectGuard:        getEnvAsFloatOrDefault("ASPECT_GUARD", d.AspectGuard),
		NoMerge:            getEnvAsBoolOrDefault("NO_MERGE", false),
		RecProbs:           getEnvAsBoolOrDefault("REC_PROBS", false),
		Tesseract:          getEnvAsBoolOrDefault("TESSERACT", false),
		TesseractLang:      getEnvOrDefault("TESSERACT_LANG", d.TesseractLang),
	}
	return cfg, nil
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// ParseFlags 命令行参数覆盖环境变量, 位置参数视为待识别文件
func (c *Config) ParseFlags(args []string, output io.Writer) error {
	fset := flag.NewFlagSet("papertrail", flag.ContinueOnError)
	fset.SetOutput(output)
	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), "Usage: papertrail [flags] [image ...]\n")
		fset.PrintDefaults()
	}

	var files, dirs stringList
	fset.Var(&files, "file", "待识别的图像文件, 可重复")
	fset.Var(&dirs, "scan", "扫描目录中的 jpg/jpeg/png (不递归), 可重复")
	fset.StringVar(&c.WorkDir, "work-dir", c.WorkDir, "结果目录")
	fset.IntVar(&c.Threads, "threads", c.Threads, "并发数, 0 为 CPU 核数 + 1, 1 为单线程")
	fset.BoolVar(&c.Debug, "debug", c.Debug, "首个错误即停止")
	fset.BoolVar(&c.Verbose, "verbose", c.Verbose, "打印每个任务的开始与结束")
	fset.BoolVar(&c.Force, "force", c.Force, "忽略已有结果重新识别")
	fset.BoolVar(&c.NoMerge, "no-merge", c.NoMerge, "关闭整行合并")
	fset.StringVar(&c.LogLevel, "log-level", c.LogLevel, "日志级别")
	fset.StringVar(&c.LogFile, "log-file", c.LogFile, "日志文件, 为空时只输出到终端")
	fset.StringVar(&c.OnnxRuntimeLibPath, "lib", c.OnnxRuntimeLibPath, "onnxruntime 动态库路径")
	fset.StringVar(&c.DetModelPath, "det", c.DetModelPath, "检测模型路径")
	fset.StringVar(&c.RecModelPath, "rec", c.RecModelPath, "识别模型路径")
	fset.StringVar(&c.DictPath, "dict", c.DictPath, "字符集文件, 为空时使用内置英文字符集")
	fset.BoolVar(&c.Tesseract, "tesseract", c.Tesseract, "识别失败时使用 tesseract")

	if err := fset.Parse(args); err != nil {
		return err
	}
	c.Files = append(c.Files, files...)
	c.Files = append(c.Files, fset.Args()...)
	c.ScanDirs = append(c.ScanDirs, dirs...)
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if len(c.Files) == 0 && len(c.ScanDirs) == 0 {
		return fmt.Errorf("配置校验失败: 至少需要一个 -file 或 -scan")
	}
	return nil
}

// Engine 引擎配置
func (c *Config) Engine() ocr.Config {
	cfg := ocr.DefaultConfig()
	cfg.OnnxRuntimeLibPath = c.OnnxRuntimeLibPath
	cfg.DetModelPath = c.DetModelPath
	cfg.RecModelPath = c.RecModelPath
	cfg.DictPath = c.DictPath
	cfg.UseCuda = c.UseCuda
	cfg.CanvasSize = c.CanvasSize
	cfg.LinkThreshold = c.LinkThreshold
	cfg.LowText = c.LowText
	cfg.MergeThreshold = c.MergeThreshold
	cfg.AspectGuard = c.AspectGuard
	if cfg.AspectGuard == 0 {
		cfg.AspectGuard = -1
	}
	cfg.NoMerge = c.NoMerge
	cfg.RecProbs = c.RecProbs
	cfg.TesseractFallback = c.Tesseract
	cfg.TesseractLang = c.TesseractLang
	return cfg
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envPrefix + key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(envPrefix+key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(envPrefix + key))
	if err != nil {
		return defaultValue
	}
	return value
}
