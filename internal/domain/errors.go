package domain

import "errors"

// Kind 是错误的类别，只在 HTTP 边界处被转换成状态码
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap 为底层错误附上类别和可以直接展示给客户端的信息
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

var (
	ErrDuplicateEmail     = &Error{Kind: KindValidation, Message: "email already exists"}
	ErrPasswordTooLong    = &Error{Kind: KindValidation, Message: "password must be at most 72 bytes"}
	ErrStatusFinalized    = &Error{Kind: KindValidation, Message: "employee status has already been finalized"}
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Message: "invalid credentials"}
	ErrAccountDisabled    = &Error{Kind: KindAuthentication, Message: "account disabled"}
	ErrUnauthenticated    = &Error{Kind: KindAuthentication, Message: "authentication required"}
	ErrForbidden          = &Error{Kind: KindAuthorization, Message: "forbidden"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
)

// KindOf 返回错误链上第一个 *Error 的类别，没有则视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf 返回错误链上第一个 *Error 的信息
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
