package common

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrNo struct {
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

const (
	SUCCESS     = 0
	SERVICE_ERR = iota + 10000
	REQUEST_INVALID
	TOKEN_INVALID
	UNKNOWN_APPLICATION
	APPLICATION_NOT_EXISTS
	APPLICATION_EXISTS
	APPLICATION_IN_USE
	PIPELINE_NOT_EXISTS
	STATE_CONFLICT
	NOT_PENDING
	NOT_AWAITING_APPROVAL
	ALREADY_DECIDED
	ENVIRONMENT_INVALID
	POLICY_INVALID
	WEBHOOK_INVALID
)

var errorMsg = map[int]string{
	SUCCESS:                "success",
	SERVICE_ERR:            "service error",
	REQUEST_INVALID:        "request invalid",
	TOKEN_INVALID:          "token invalid",
	UNKNOWN_APPLICATION:    "unknown application",
	APPLICATION_NOT_EXISTS: "application not exists",
	APPLICATION_EXISTS:     "application already exists",
	APPLICATION_IN_USE:     "application still referenced by pipelines",
	PIPELINE_NOT_EXISTS:    "pipeline not exists",
	STATE_CONFLICT:         "illegal pipeline state transition",
	NOT_PENDING:            "pipeline already started",
	NOT_AWAITING_APPROVAL:  "pipeline is not waiting for approval",
	ALREADY_DECIDED:        "approval already decided",
	ENVIRONMENT_INVALID:    "environment invalid",
	POLICY_INVALID:         "stage policy invalid",
	WEBHOOK_INVALID:        "webhook invalid",
}

var httpStatus = map[int]int{
	SERVICE_ERR:            http.StatusInternalServerError,
	REQUEST_INVALID:        http.StatusBadRequest,
	TOKEN_INVALID:          http.StatusUnauthorized,
	UNKNOWN_APPLICATION:    http.StatusUnprocessableEntity,
	APPLICATION_NOT_EXISTS: http.StatusNotFound,
	APPLICATION_EXISTS:     http.StatusConflict,
	APPLICATION_IN_USE:     http.StatusConflict,
	PIPELINE_NOT_EXISTS:    http.StatusNotFound,
	STATE_CONFLICT:         http.StatusConflict,
	NOT_PENDING:            http.StatusConflict,
	NOT_AWAITING_APPROVAL:  http.StatusConflict,
	ALREADY_DECIDED:        http.StatusConflict,
	ENVIRONMENT_INVALID:    http.StatusBadRequest,
	POLICY_INVALID:         http.StatusBadRequest,
	WEBHOOK_INVALID:        http.StatusUnauthorized,
}

func (e ErrNo) Error() string {
	return fmt.Sprintf("err_code=%d, err_msg=%s", e.ErrCode, e.ErrMsg)
}

// HTTPStatus maps the error code onto a response status.
func (e ErrNo) HTTPStatus() int {
	if status, ok := httpStatus[e.ErrCode]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NewErrNo(errCode int) error {
	return ErrNo{
		ErrCode: errCode,
		ErrMsg:  errorMsg[errCode],
	}
}

// NewErrNof keeps the code but replaces the message with request specific detail.
func NewErrNof(errCode int, format string, args ...any) error {
	return ErrNo{
		ErrCode: errCode,
		ErrMsg:  fmt.Sprintf("%s: %s", errorMsg[errCode], fmt.Sprintf(format, args...)),
	}
}

func ConvertErr(err error) ErrNo {
	e := ErrNo{}
	if errors.As(err, &e) {
		return e
	}
	e = ErrNo{
		ErrCode: SERVICE_ERR,
		ErrMsg:  err.Error(),
	}
	return e
}

// IsErrNo reports whether err carries the given code anywhere in its chain.
func IsErrNo(err error, errCode int) bool {
	e := ErrNo{}
	return errors.As(err, &e) && e.ErrCode == errCode
}

// IsStateConflict covers every rejection caused by an illegal transition.
func IsStateConflict(err error) bool {
	return IsErrNo(err, STATE_CONFLICT) || IsErrNo(err, NOT_PENDING)
}

// Retryable reports whether the caller may retry with backoff. Only storage
// and internal failures qualify; every coded rejection is permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return ConvertErr(err).ErrCode == SERVICE_ERR
}
