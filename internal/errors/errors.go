// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 摘要流程中的错误类型
	ErrorTypeInput    ErrorType = "input_error"    // 视频地址无法解析
	ErrorTypeFetch    ErrorType = "fetch_error"    // 字幕接口不可达或非2xx
	ErrorTypeConfig   ErrorType = "config_error"   // 所选提供者缺少凭证
	ErrorTypeProvider ErrorType = "provider_error" // LLM调用失败或没有可用内容
	ErrorTypeParse    ErrorType = "parse_error"    // 摘要解析出零个章节

	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

func NewInputError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeInput, message, originalError)
}

func NewFetchError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeFetch, message, originalError)
}

func NewConfigError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConfig, message, originalError)
}

func NewProviderError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeProvider, message, originalError)
}

func NewParseError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeParse, message, originalError)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// TypeOf 返回错误链中第一个 AppError 的类型，非 AppError 返回空字符串
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

func IsInputError(err error) bool      { return TypeOf(err) == ErrorTypeInput }
func IsFetchError(err error) bool      { return TypeOf(err) == ErrorTypeFetch }
func IsConfigError(err error) bool     { return TypeOf(err) == ErrorTypeConfig }
func IsProviderError(err error) bool   { return TypeOf(err) == ErrorTypeProvider }
func IsParseError(err error) bool      { return TypeOf(err) == ErrorTypeParse }
func IsValidationError(err error) bool { return TypeOf(err) == ErrorTypeValidation }
func IsNotFoundError(err error) bool   { return TypeOf(err) == ErrorTypeNotFound }

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeInput:
		return "INVALID_VIDEO_INPUT"
	case ErrorTypeFetch:
		return "TRANSCRIPT_FETCH_FAILED"
	case ErrorTypeConfig:
		return "LLM_CONFIG_MISSING"
	case ErrorTypeProvider:
		return "LLM_PROVIDER_FAILED"
	case ErrorTypeParse:
		return "SUMMARY_PARSE_FAILED"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，保留原有类型，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError.Err,
			Code:    appError.Code,
		}
	}

	return NewAppError(errType, message, err)
}
