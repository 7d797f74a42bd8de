package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

const RunIDKey = "run_id"

type Fields = logrus.Fields

// Options 日志配置
type Options struct {
	Level    string
	FilePath string
	NoColors bool
	Output   io.Writer
}

// NewLogger 初始化全局日志, 只有第一次调用的配置生效
func NewLogger(opts Options) *logrus.Logger {
	once.Do(func() {
		logger = newLogger(opts)
	})
	return logger
}

// Logger 返回全局日志, 未初始化时使用默认配置
func Logger() *logrus.Logger {
	return NewLogger(Options{Level: "info"})
}

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.FilePath,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(true)
	return l
}

// NewRunID 生成一次批处理的运行 ID
func NewRunID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return "unknown"
	}
	return id.String()
}

// WithRun 附带运行 ID 的日志条目
func WithRun(runID string) *logrus.Entry {
	if runID == "" {
		runID = "unknown"
	}
	return Logger().WithField(RunIDKey, runID)
}

// Discard 丢弃输出的日志条目, 供测试使用
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
