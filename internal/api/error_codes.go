// internal/api/error_codes.go
package api

import (
	"net/http"

	apperrors "github.com/Corphon/TubeDigest/internal/errors"
)

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 章节索引无法解析
	ErrorSectionInvalid = "SECTION_INDEX_INVALID"
)

// statusForError 错误类型到HTTP状态码的映射
func statusForError(errType apperrors.ErrorType) int {
	switch errType {
	case apperrors.ErrorTypeInput, apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConfig:
		return http.StatusPreconditionFailed
	case apperrors.ErrorTypeFetch, apperrors.ErrorTypeProvider:
		return http.StatusBadGateway
	case apperrors.ErrorTypeParse:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
