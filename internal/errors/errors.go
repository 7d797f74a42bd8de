package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode 错误分类
type ErrorCode string

const (
	ErrorModelLoad       ErrorCode = "MODEL_LOAD_FAILED"
	ErrorInference       ErrorCode = "INFERENCE_FAILED"
	ErrorGeometryAnomaly ErrorCode = "GEOMETRY_ANOMALY"
	ErrorItemFailed      ErrorCode = "ITEM_FAILED"
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
)

// OcrError 带错误码的结构化错误
type OcrError struct {
	Code      ErrorCode
	Message   string
	Item      string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *OcrError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OcrError) Unwrap() error {
	return e.Cause
}

// NewModelLoadError 模型加载失败
func NewModelLoadError(model string, cause error) *OcrError {
	return &OcrError{
		Code:      ErrorModelLoad,
		Message:   fmt.Sprintf("加载模型失败: %s", model),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"model": model,
		},
		Cause: cause,
	}
}

// NewInferenceError 推理失败, stage 为 "detect" 或 "recognize"
func NewInferenceError(stage string, cause error) *OcrError {
	return &OcrError{
		Code:      ErrorInference,
		Message:   fmt.Sprintf("%s 推理失败", stage),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"stage": stage,
		},
		Cause: cause,
	}
}

// NewGeometryAnomalyError 拟合矩形上下颠倒
func NewGeometryAnomalyError(topLeftY, bottomRightY int) *OcrError {
	return &OcrError{
		Code:      ErrorGeometryAnomaly,
		Message:   fmt.Sprintf("检测框上下颠倒: topLeft.y=%d bottomRight.y=%d", topLeftY, bottomRightY),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"top_left_y":     topLeftY,
			"bottom_right_y": bottomRightY,
		},
	}
}

// NewItemError 单个任务处理失败
func NewItemError(item string, cause error) *OcrError {
	return &OcrError{
		Code:      ErrorItemFailed,
		Message:   "任务处理失败",
		Item:      item,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewInvalidInputError 输入不合法
func NewInvalidInputError(msg string) *OcrError {
	return &OcrError{
		Code:      ErrorInvalidInput,
		Message:   msg,
		Timestamp: time.Now(),
	}
}

// CodeOf 返回错误链中第一个 OcrError 的错误码, 没有则返回空串
func CodeOf(err error) ErrorCode {
	var oe *OcrError
	if stderrors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// Is 判断错误链中是否包含指定错误码
func Is(err error, code ErrorCode) bool {
	var oe *OcrError
	for err != nil {
		if !stderrors.As(err, &oe) {
			return false
		}
		if oe.Code == code {
			return true
		}
		err = oe.Cause
	}
	return false
}

// ToMap 转换为日志字段
func (e *OcrError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
	}
	if e.Item != "" {
		result["item"] = e.Item
	}
	for k, v := range e.Details {
		result[k] = v
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	return result
}
