package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ankurvdev/papertrail/internal/config"
	"github.com/ankurvdev/papertrail/internal/log"
	"github.com/ankurvdev/papertrail/scanner"
	"github.com/ankurvdev/papertrail/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("PAPERTRAIL_ENV_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "papertrail: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.ParseFlags(os.Args[1:], os.Stderr); err != nil {
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "papertrail: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Logger().Errorf("运行失败: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log.NewLogger(log.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile})
	runID := log.NewRunID()
	logger := log.WithRun(runID)

	files, err := scanner.Collect(cfg.Files, cfg.ScanDirs, scanner.DefaultExtensions)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("没有找到待识别的图像")
		return nil
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("创建结果目录失败: %w", err)
	}

	s := scanner.New(
		scanner.NewEngineFactory(cfg.Engine(), logger),
		scanner.Options{WorkDir: cfg.WorkDir, Force: cfg.Force, RunID: runID},
		logger,
	)
	pool := worker.New[string](s,
		worker.WithThreads(cfg.Threads),
		worker.WithDebug(cfg.Debug),
		worker.WithVerbose(cfg.Verbose),
		worker.WithLogger(logger.WithField("worker", s.Name())),
	)
	pool.Add(files...)

	logger.WithFields(log.Fields{
		"files":    len(files),
		"threads":  pool.Threads(),
		"work_dir": cfg.WorkDir,
	}).Info("开始批量识别")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	watcher := make(chan struct{})
	defer func() {
		signal.Stop(sigChan)
		close(done)
		<-watcher
	}()
	go func() {
		defer close(watcher)
		if stopOnSignal(sigChan, done, pool.Stop) {
			logger.Warn("收到退出信号, 等待正在处理的任务完成")
		}
	}()

	pool.Start()
	if err := pool.WaitForFinish(); err != nil {
		return err
	}

	if st := s.Stats(); st.Failed > 0 {
		return fmt.Errorf("%d 个文件识别失败", st.Failed)
	}
	return nil
}

// stopOnSignal 收到信号时调用 stop, done 关闭后直接返回. 返回是否收到了信号.
func stopOnSignal(sig <-chan os.Signal, done <-chan struct{}, stop func()) bool {
	select {
	case <-sig:
		stop()
		return true
	case <-done:
		return false
	}
}
