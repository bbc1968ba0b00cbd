// Package errcode numbered errors shared by the tiercache packages.
//
// A code is MMBBBB: MM identifies the package (cache uses 70), BBBB the failure.
// Two errors match under errors.Is when their codes are equal, whatever their
// message, data or cause.
package errcode

import (
	"fmt"
	"maps"
)

// LayeredError is immutable: every With*/Wrap call returns a copy
type LayeredError struct {
	module string
	code   int
	msgKey string
	msg    string
	data   map[string]any
	cause  error
}

// New moduleCode 10-99, businessCode 0-9999.
// msgKey stays stable when msg is reworded, e.g. "error.cache.invalid_key".
func New(moduleCode, businessCode int, module, msgKey, msg string) *LayeredError {
	return &LayeredError{
		module: module,
		code:   moduleCode*10000 + businessCode,
		msgKey: msgKey,
		msg:    msg,
	}
}

func (e *LayeredError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *LayeredError) Code() int      { return e.code }
func (e *LayeredError) Module() string { return e.module }
func (e *LayeredError) MsgKey() string { return e.msgKey }

// Message without the cause
func (e *LayeredError) Message() string { return e.msg }

// Data attached with WithData; nil when there is none
func (e *LayeredError) Data() map[string]any { return e.data }

func (e *LayeredError) Cause() error  { return e.cause }
func (e *LayeredError) Unwrap() error { return e.cause }

func (e *LayeredError) WithMsg(msg string) *LayeredError {
	c := *e
	c.msg = msg
	return &c
}

func (e *LayeredError) WithMsgf(format string, args ...any) *LayeredError {
	return e.WithMsg(fmt.Sprintf(format, args...))
}

// WithData copies the data map before adding key
func (e *LayeredError) WithData(key string, value any) *LayeredError {
	c := *e
	c.data = maps.Clone(e.data)
	if c.data == nil {
		c.data = make(map[string]any, 1)
	}
	c.data[key] = value
	return &c
}

// Wrap nil cause returns e itself
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	c := *e
	c.cause = cause
	return &c
}

// Wrapf Wrap plus a new message; with a nil cause only the message changes
func (e *LayeredError) Wrapf(cause error, format string, args ...any) *LayeredError {
	return e.WithMsgf(format, args...).Wrap(cause)
}

// Is matches any *LayeredError carrying the same code
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	return ok && e.code == t.code
}

func (e *LayeredError) String() string {
	s := fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s", e.code, e.module, e.msg)
	if e.cause != nil {
		s += fmt.Sprintf(", cause:%v", e.cause)
	}
	return s + "}"
}
