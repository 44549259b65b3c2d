// Package apperr 定义账本的错误分类，处理层据此映射 HTTP 状态码
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindInvalidState Kind = "INVALID_STATE"
	KindConflict     Kind = "CONFLICT"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindTransient    Kind = "TRANSIENT"
	KindInternal     Kind = "INTERNAL"
)

// HTTPStatus 将错误类别映射为 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidState:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code 机器可读的错误码
type Code string

const (
	// 校验
	CodeInvalidAmount    Code = "INVALID_AMOUNT"
	CodeInvalidCurrency  Code = "INVALID_CURRENCY"
	CodeInvalidWindow    Code = "INVALID_WINDOW"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeAmountOutOfRange Code = "AMOUNT_OUT_OF_RANGE"
	CodeUnknownTier      Code = "UNKNOWN_REWARD_TIER"

	// 状态
	CodeCampaignNotActive  Code = "CAMPAIGN_NOT_ACTIVE"
	CodeCampaignNotPending Code = "CAMPAIGN_NOT_PENDING"
	CodeCampaignClosed     Code = "CAMPAIGN_CLOSED"
	CodeOutsideWindow      Code = "OUTSIDE_FUNDING_WINDOW"
	CodeTargetReached      Code = "TARGET_REACHED"
	CodeTierSoldOut        Code = "REWARD_TIER_SOLD_OUT"
	CodeIllegalTransition  Code = "ILLEGAL_TRANSITION"

	// 冲突
	CodeOpenCampaignExists Code = "OPEN_CAMPAIGN_EXISTS"
	CodePaymentRefInUse    Code = "PAYMENT_REFERENCE_IN_USE"
	CodeAlreadyPaid        Code = "ALREADY_PAID_WITH_OTHER_REFERENCE"
	CodeVersionConflict    Code = "VERSION_CONFLICT"
	CodeDuplicate          Code = "DUPLICATE"

	// 权限
	CodeNotOwner      Code = "NOT_OWNER"
	CodeNotInvestor   Code = "NOT_INVESTOR"
	CodeNotCancelable Code = "NOT_CANCELABLE"
	CodeUnauthorized  Code = "UNAUTHENTICATED"

	// 资源
	CodeCampaignNotFound   Code = "CAMPAIGN_NOT_FOUND"
	CodeInvestmentNotFound Code = "INVESTMENT_NOT_FOUND"
	CodeProjectNotFound    Code = "PROJECT_NOT_FOUND"
	CodeRefundNotFound     Code = "REFUND_NOT_FOUND"
	CodeNotFound           Code = "NOT_FOUND"

	CodeRetryExhausted Code = "RETRY_EXHAUSTED"
	CodeRateLimited    Code = "RATE_LIMITED"
)

// Error 结构化错误
type Error struct {
	Kind     Kind
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按类别匹配，目标带错误码时同时匹配错误码
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// WithMeta 附加元数据
func (e *Error) WithMeta(key, value string) *Error {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// 用于 errors.Is 的哨兵错误
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrTransient       = &Error{Kind: KindTransient}
	ErrVersionConflict = &Error{Kind: KindConflict, Code: CodeVersionConflict}
)

func newf(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code Code, format string, args ...any) *Error {
	return newf(KindValidation, code, format, args...)
}

func InvalidState(code Code, format string, args ...any) *Error {
	return newf(KindInvalidState, code, format, args...)
}

func Conflict(code Code, format string, args ...any) *Error {
	return newf(KindConflict, code, format, args...)
}

func Forbidden(code Code, format string, args ...any) *Error {
	return newf(KindForbidden, code, format, args...)
}

func NotFound(code Code, format string, args ...any) *Error {
	return newf(KindNotFound, code, format, args...)
}

// Transient 包装可重试的底层错误
func Transient(code Code, cause error, format string, args ...any) *Error {
	e := newf(KindTransient, code, format, args...)
	e.Cause = cause
	return e
}

// VersionConflict 乐观锁版本不一致
func VersionConflict(entity string, id any) *Error {
	return newf(KindConflict, CodeVersionConflict, "%s %v was modified concurrently", entity, id)
}

// KindOf 返回错误类别，非结构化错误视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf 返回错误码
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MessageOf 返回面向调用方的错误描述
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}
