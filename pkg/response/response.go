package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST      ErrCode = "REQUEST_FAILED"
	BAD_REQUEST         ErrCode = "FAILED_TO_DECODE"
	NOT_FOUND           ErrCode = "NOT_FOUND"
	LOCKED              ErrCode = "LOCKED"
	CONFLICT            ErrCode = "CONFLICT"
	INVALID_RANGE       ErrCode = "INVALID_RANGE"
	DATES_NOT_AVAILABLE ErrCode = "DATES_NOT_AVAILABLE"
	ILLEGAL_TRANSITION  ErrCode = "ILLEGAL_TRANSITION"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrNotFound            = errors.New("resource not found")
	ErrLocked              = errors.New("resource is locked")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidRange        = errors.New("invalid date range")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrDatesUnavailable    = errors.New("dates are not available")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrLocationUnavailable = errors.New("location unavailable")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}
