package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code 区分错误类别，决定调用方是中止还是继续。
type Code string

const (
	// CodeValidation 远程调用之前的输入错误，例如缺少 owner id。
	CodeValidation Code = "VALIDATION"
	// CodeRemote 解析/匹配服务失败，包含超时。
	CodeRemote   Code = "REMOTE"
	CodeConflict Code = "CONFLICT"
	CodeNotFound Code = "NOT_FOUND"
	CodeInternal Code = "INTERNAL"
)

// AppError 是各层统一的错误结构。
type AppError struct {
	Code    Code
	Op      string // 例如 "mirror.Sync"
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "error"
	}
}

func (e *AppError) Unwrap() error { return e.Err }

// E 构造 AppError。
func E(code Code, op, msg string, err error) error {
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

// Validation 构造输入校验错误。
func Validation(op, msg string) error {
	return E(CodeValidation, op, msg, nil)
}

// Remote 包装远程服务错误，超时与取消也归入此类。
func Remote(op string, err error) error {
	msg := "remote service failed"
	if IsTimeout(err) {
		msg = "remote service timed out"
	}
	return E(CodeRemote, op, msg, err)
}

// IsTimeout 判断错误是否由超时引起，包括 http.Client.Timeout。
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// CodeOf 返回错误链上第一个 AppError 的 Code，没有则为 CodeInternal。
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode 判断错误是否属于指定类别。
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// HTTPStatus 将错误映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRemote:
		var ae *AppError
		if errors.As(err, &ae) && IsTimeout(ae.Err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
