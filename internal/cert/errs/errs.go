package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 稳定的机器可读错误类别
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindInvalidState Kind = "INVALID_STATE"
	KindNotReady     Kind = "NOT_READY"
	KindPermission   Kind = "PERMISSION_DENIED"
	KindNotFound     Kind = "NOT_FOUND"
	KindStorage      Kind = "STORAGE_ERROR"
)

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error // 底层错误，可为nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation 参数校验错误
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InvalidState 当前状态不允许该操作
func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// NotReady 资源尚未就绪
func NotReady(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotReady, Message: fmt.Sprintf(format, args...)}
}

// Permission 无权限操作
func Permission(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

// NotFound 资源不存在
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Storage 持久化/副作用写入失败。主变更可能已提交，调用方需自行判断是否需要对账
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf 提取错误类别；非业务错误返回空
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Code 业务错误码（与响应envelope中的code字段一致）
func Code(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return 40001
	case KindInvalidState:
		return 40002
	case KindNotReady:
		return 40003
	case KindPermission:
		return 40300
	case KindNotFound:
		return 40400
	case KindStorage:
		return 50001
	}
	return 50000
}

// HTTPStatus 错误类别对应的HTTP状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidState, KindNotReady:
		return http.StatusBadRequest
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStorage:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
