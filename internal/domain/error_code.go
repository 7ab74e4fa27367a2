package domain

import (
	"net/http"
	"strconv"
)

// ErrorCode is the numeric error code carried in failure envelopes.
type ErrorCode int

const (
	CodeUnknown ErrorCode = 1000

	CodeTokenMissing        ErrorCode = 2001
	CodeTokenExpired        ErrorCode = 2002
	CodeTokenInvalid        ErrorCode = 2003
	CodeUnauthorized        ErrorCode = 2004
	CodeRefreshTokenInvalid ErrorCode = 2005
	CodeSessionExpired      ErrorCode = 2006

	CodeAccessDenied ErrorCode = 3001
	CodeAdminOnly    ErrorCode = 3002

	CodeInvalidInput ErrorCode = 4000
	CodeLoginFailed  ErrorCode = 4001
	CodeNotFound     ErrorCode = 4004
	CodeConflict     ErrorCode = 4009
	CodeRateLimited  ErrorCode = 4029

	CodeInternal ErrorCode = 5000

	// Synthetic codes for failures that never reached the server.
	CodeRequestTimeout  ErrorCode = 9001
	CodeNetworkError    ErrorCode = 9002
	CodeRequestCanceled ErrorCode = 9003
	CodeInvalidResponse ErrorCode = 9004
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:             "UNKNOWN",
	CodeTokenMissing:        "TOKEN_MISSING",
	CodeTokenExpired:        "TOKEN_EXPIRED",
	CodeTokenInvalid:        "TOKEN_INVALID",
	CodeUnauthorized:        "UNAUTHORIZED",
	CodeRefreshTokenInvalid: "REFRESH_TOKEN_INVALID",
	CodeSessionExpired:      "SESSION_EXPIRED",
	CodeAccessDenied:        "ACCESS_DENIED",
	CodeAdminOnly:           "ADMIN_ONLY",
	CodeInvalidInput:        "INVALID_INPUT",
	CodeLoginFailed:         "LOGIN_FAILED",
	CodeNotFound:            "NOT_FOUND",
	CodeConflict:            "CONFLICT",
	CodeRateLimited:         "RATE_LIMITED",
	CodeInternal:            "INTERNAL_ERROR",
	CodeRequestTimeout:      "REQUEST_TIMEOUT",
	CodeNetworkError:        "NETWORK_ERROR",
	CodeRequestCanceled:     "REQUEST_CANCELED",
	CodeInvalidResponse:     "INVALID_RESPONSE",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "CODE_" + strconv.Itoa(int(c))
}

// CodeForStatus picks a code for a failure that carried none.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeAccessDenied
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return CodeInvalidInput
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CodeRequestTimeout
	case status >= 500:
		return CodeInternal
	default:
		return CodeUnknown
	}
}
