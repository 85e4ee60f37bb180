// Package ferrors defines the error taxonomy shared across the ETL and
// recommendation paths: Config, Auth, Transient, Client, Logic (spec §7).
// Shape grounded on pkg/staging.Error from the teacher's ingestion gateway.
package ferrors

import "fmt"

// Code identifies which branch of the taxonomy an error belongs to.
type Code string

const (
	CodeConfig    Code = "CONFIG"
	CodeAuth      Code = "AUTH"
	CodeTransient Code = "TRANSIENT"
	CodeClient    Code = "CLIENT"
	CodeLogic     Code = "LOGIC"
)

// Error is a coded, retry-annotated error.
type Error struct {
	Code      Code
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeValue exposes the string code for integration with job-status reporting.
func (e *Error) CodeValue() string { return string(e.Code) }

// RetryableStatus reports whether the caller should retry.
func (e *Error) RetryableStatus() bool { return e.Retryable }

// CodedError is implemented by any error carrying taxonomy metadata.
type CodedError interface {
	error
	CodeValue() string
	RetryableStatus() bool
}

func Config(err error) *Error    { return &Error{Code: CodeConfig, Retryable: false, Err: err} }
func Auth(err error) *Error      { return &Error{Code: CodeAuth, Retryable: false, Err: err} }
func Transient(err error) *Error { return &Error{Code: CodeTransient, Retryable: true, Err: err} }
func Client(err error) *Error    { return &Error{Code: CodeClient, Retryable: false, Err: err} }
func Logic(err error) *Error     { return &Error{Code: CodeLogic, Retryable: false, Err: err} }

// IsLogic reports whether err is (or wraps) a Logic-taxonomy error — the
// applier's "no-op, counted as success" case.
func IsLogic(err error) bool {
	var ce CodedError
	if as(err, &ce) {
		return ce.CodeValue() == string(CodeLogic)
	}
	return false
}

// as is a tiny indirection so this file doesn't need to import errors twice
// for a one-line helper; kept for readability at call sites.
func as(err error, target *CodedError) bool {
	for err != nil {
		if ce, ok := err.(CodedError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
