package onnx

import (
	"fmt"
	"sync"

	"github.com/ankurvdev/papertrail/internal/log"
	ort "github.com/getcharzp/onnxruntime_purego"
	"github.com/sirupsen/logrus"
)

var (
	runtimeOnce   sync.Once
	runtimeEngine *ort.Engine
	runtimeErr    error
)

// Config onnxruntime 配置, 由上层配置通过 CopyProperties 填充
type Config struct {
	OnnxRuntimeLibPath string
	UseCuda            bool

	OnnxEngine     *ort.Engine
	SessionOptions *ort.SessionOptions
	// CudaEnabled 会话选项是否已挂载 CUDA
	CudaEnabled bool
}

// New 加载 onnxruntime 动态库并创建会话选项.
// 动态库在进程内只加载一次, 之后的调用复用同一个运行时.
// 会话创建完成后需调用 Destroy 释放会话选项.
func (c *Config) New() error {
	runtimeOnce.Do(func() {
		runtimeEngine, runtimeErr = ort.NewEngine(c.OnnxRuntimeLibPath)
	})
	if runtimeErr != nil {
		return fmt.Errorf("加载 onnxruntime 失败: %w", runtimeErr)
	}
	c.OnnxEngine = runtimeEngine

	opts, err := runtimeEngine.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("创建会话选项失败: %w", err)
	}
	c.SessionOptions = opts
	c.CudaEnabled = enableCuda(opts, c.UseCuda, log.Logger().WithField("lib", c.OnnxRuntimeLibPath))
	return nil
}

// Destroy 释放会话选项, 已创建的会话不受影响
func (c *Config) Destroy() {
	if c.SessionOptions != nil {
		c.SessionOptions.Destroy()
		c.SessionOptions = nil
	}
}

type cudaProvider interface {
	EnableCUDA() error
}

// enableCuda 按需挂载 CUDA, 失败时保持 CPU 执行
func enableCuda(opts cudaProvider, useCuda bool, entry *logrus.Entry) bool {
	if !useCuda {
		return false
	}
	if err := opts.EnableCUDA(); err != nil {
		entry.WithError(err).Warn("启用 CUDA 失败, 使用 CPU 推理")
		return false
	}
	entry.Info("已启用 CUDA")
	return true
}

// Session 单个模型的推理会话
type Session struct {
	session    *ort.Session
	inputName  string
	outputName string
	mu         sync.Mutex
}

// NewSession 加载模型, inputName/outputName 为模型的输入输出节点名
func (c *Config) NewSession(modelPath, inputName, outputName string) (*Session, error) {
	if c.OnnxEngine == nil {
		return nil, fmt.Errorf("onnxruntime 未初始化")
	}
	session, err := c.OnnxEngine.NewSession(modelPath, c.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("创建会话失败 %s: %w", modelPath, err)
	}
	return &Session{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
	}, nil
}

// Predict 单输入单输出推理, 返回输出数据与形状. 数据已拷贝, 不依赖 onnxruntime 的内存.
func (s *Session) Predict(input []float32, shape []int64) ([]float32, []int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, nil, fmt.Errorf("会话已释放")
	}

	inputTensor, err := ort.NewTensor(shape, input)
	if err != nil {
		return nil, nil, fmt.Errorf("创建输入张量失败: %w", err)
	}
	defer inputTensor.Destroy()

	outputValues, err := s.session.Run(map[string]*ort.Value{
		s.inputName: inputTensor,
	})
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		for _, v := range outputValues {
			v.Destroy()
		}
	}()

	outputValue, ok := outputValues[s.outputName]
	if !ok {
		return nil, nil, fmt.Errorf("输出节点不存在: %s", s.outputName)
	}
	outShape, err := outputValue.GetShape()
	if err != nil {
		return nil, nil, fmt.Errorf("获取输出形状失败: %w", err)
	}
	data, err := ort.GetTensorData[float32](outputValue)
	if err != nil {
		return nil, nil, fmt.Errorf("获取输出数据失败: %w", err)
	}
	return append([]float32(nil), data...), append([]int64(nil), outShape...), nil
}

// Destroy 释放会话
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}
