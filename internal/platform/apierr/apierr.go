package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// ===== Error model (各機能パッケージ共通) =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeUnavailable     Code = "UNAVAILABLE" // リモートストアへの到達失敗
	CodeInternal        Code = "INTERNAL"
	CodeScanBusy        Code = "SCAN_BUSY" // 同じ作業者の前回スキャンが処理中
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.cause }

func ErrInvalid(msg string) *APIError         { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError        { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError        { return &APIError{Code: CodeConflict, Message: msg} }
func ErrUnauthenticated(msg string) *APIError { return &APIError{Code: CodeUnauthenticated, Message: msg} }
func ErrForbidden(msg string) *APIError       { return &APIError{Code: CodeForbidden, Message: msg} }
func ErrInternal(msg string) *APIError        { return &APIError{Code: CodeInternal, Message: msg} }
func ErrScanBusy(msg string) *APIError        { return &APIError{Code: CodeScanBusy, Message: msg} }

// ErrUnavailable: 原因エラーを保持したまま UNAVAILABLE にする
func ErrUnavailable(msg string, cause error) *APIError {
	return &APIError{Code: CodeUnavailable, Message: msg, cause: cause}
}

// CodeOf: APIError でなければ INTERNAL 扱い
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeScanBusy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ===== レスポンスボディ =====

type ErrorDTO struct {
	Error struct {
		Code      Code   `json:"code"`
		Message   string `json:"message"`
		Localized string `json:"localized,omitempty"`
	} `json:"error"`
}

func Body(code Code, msg string) ErrorDTO {
	var e ErrorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

// BodyFrom: cause はクライアントへ出さない（Message のみ）
func BodyFrom(err error) ErrorDTO {
	var api *APIError
	if errors.As(err, &api) {
		return Body(api.Code, api.Message)
	}
	return Body(CodeInternal, "internal error")
}
