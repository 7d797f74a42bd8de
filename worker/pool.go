package worker

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	ocrerrors "github.com/ankurvdev/papertrail/internal/errors"
	"github.com/ankurvdev/papertrail/internal/log"
	"github.com/sirupsen/logrus"
)

// Handler 任务处理器
type Handler[T any] interface {
	// Name 任务类别名称, 用于日志
	Name() string
	// Describe 单个任务的描述, 用于日志
	Describe(item T) string
	// Process 处理单个任务, 返回的错误只影响该任务
	Process(item T) error
	// OnProgress 每完成一个任务调用一次, completed 严格递增
	OnProgress(total, completed int)
	// OnFinished 本轮最后一个 worker 退出时调用一次
	OnFinished()
}

// Funcs 用函数组装 Handler, 未设置的回调为空操作
type Funcs[T any] struct {
	WorkName     string
	DescribeFunc func(item T) string
	ProcessFunc  func(item T) error
	ProgressFunc func(total, completed int)
	FinishedFunc func()
}

func (f Funcs[T]) Name() string {
	if f.WorkName == "" {
		return "worker"
	}
	return f.WorkName
}

func (f Funcs[T]) Describe(item T) string {
	if f.DescribeFunc != nil {
		return f.DescribeFunc(item)
	}
	return fmt.Sprintf("%v", item)
}

func (f Funcs[T]) Process(item T) error {
	if f.ProcessFunc != nil {
		return f.ProcessFunc(item)
	}
	return nil
}

func (f Funcs[T]) OnProgress(total, completed int) {
	if f.ProgressFunc != nil {
		f.ProgressFunc(total, completed)
	}
}

func (f Funcs[T]) OnFinished() {
	if f.FinishedFunc != nil {
		f.FinishedFunc()
	}
}

// Option 线程池配置项
type Option func(*options)

type options struct {
	threads int
	debug   bool
	verbose bool
	log     *logrus.Entry
}

// WithThreads 并发数, 0 为 CPU 核数 + 1, 1 为在调用方同步执行
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithDebug 首个错误即停止, 并由 WaitForFinish 返回
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithVerbose 打印每个任务的开始与结束
func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.verbose = verbose
	}
}

// WithLogger 指定日志条目
func WithLogger(entry *logrus.Entry) Option {
	return func(o *options) {
		o.log = entry
	}
}

// Pool 有界并发任务池. 任务按后进先出顺序领取, 每个任务只会被一个 worker 处理一次.
type Pool[T any] struct {
	handler Handler[T]
	opts    options

	mu    sync.Mutex
	items []T
	stop  atomic.Bool

	total     atomic.Int64
	completed atomic.Int64
	active    atomic.Int32

	progressMu sync.Mutex
	wg         sync.WaitGroup

	errMu    sync.Mutex
	firstErr error
}

// New 创建任务池
func New[T any](handler Handler[T], opts ...Option) *Pool[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.threads <= 0 {
		o.threads = runtime.NumCPU() + 1
	}
	if o.log == nil {
		o.log = log.Logger().WithField("worker", handler.Name())
	}
	return &Pool[T]{handler: handler, opts: o}
}

// Threads 实际并发数
func (p *Pool[T]) Threads() int {
	return p.opts.threads
}

// Add 追加任务
func (p *Pool[T]) Add(items ...T) {
	p.mu.Lock()
	p.items = append(p.items, items...)
	p.mu.Unlock()
}

// Pending 尚未被领取的任务数
func (p *Pool[T]) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Working 是否有 worker 在运行
func (p *Pool[T]) Working() bool {
	return p.active.Load() > 0
}

// Start 启动 worker. 单线程模式下在当前 goroutine 处理完所有任务后返回.
func (p *Pool[T]) Start() {
	total := p.Pending()
	if total == 0 {
		return
	}
	p.total.Store(int64(total))
	p.completed.Store(0)
	if p.active.Load() == 0 {
		p.stop.Store(false)
		p.errMu.Lock()
		p.firstErr = nil
		p.errMu.Unlock()
	}

	if p.opts.threads == 1 {
		p.active.Add(1)
		p.wg.Add(1)
		defer p.wg.Done()
		p.run()
		p.exit()
		return
	}

	n := min(p.opts.threads-int(p.active.Load()), total)
	if n <= 0 {
		return
	}
	// 先计数再启动, 避免先启动的 worker 提前把计数降到 0
	p.active.Add(int32(n))
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			p.run()
			p.exit()
		}()
	}
}

// WaitForFinish 等待所有 worker 退出, 可重复调用. 调试模式下返回首个错误.
func (p *Pool[T]) WaitForFinish() error {
	p.wg.Wait()
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.firstErr
}

// Stop 不再领取新任务, 等待正在处理的任务完成后清空队列. 之后可继续使用.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	p.stop.Store(true)
	p.mu.Unlock()

	_ = p.WaitForFinish()

	p.mu.Lock()
	p.items = nil
	p.mu.Unlock()
	p.stop.Store(false)
}

func (p *Pool[T]) next() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if p.stop.Load() || len(p.items) == 0 {
		return zero, false
	}
	last := len(p.items) - 1
	item := p.items[last]
	p.items[last] = zero
	p.items = p.items[:last]
	return item, true
}

func (p *Pool[T]) run() {
	for {
		item, ok := p.next()
		if !ok {
			return
		}

		desc := p.handler.Describe(item)
		entry := p.opts.log.WithField("item", desc)
		if p.opts.verbose {
			entry.Info("开始处理")
		}

		if err := p.process(item); err != nil {
			itemErr := ocrerrors.NewItemError(desc, err)
			entry.WithFields(log.Fields(itemErr.ToMap())).Errorf("%s 处理失败: %v", p.handler.Name(), err)
			if p.opts.debug {
				p.errMu.Lock()
				if p.firstErr == nil {
					p.firstErr = itemErr
				}
				p.errMu.Unlock()
				p.stop.Store(true)
			}
		}

		if p.opts.verbose {
			entry.Info("处理完成")
		}

		p.progressMu.Lock()
		completed := p.completed.Add(1)
		p.handler.OnProgress(int(p.total.Load()), int(completed))
		p.progressMu.Unlock()
	}
}

func (p *Pool[T]) process(item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler.Process(item)
}

func (p *Pool[T]) exit() {
	if p.active.Add(-1) == 0 {
		p.handler.OnFinished()
	}
}
