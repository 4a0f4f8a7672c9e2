package routes

import (
	"errors"
	"net/http"

	"table-call/internal/backend"
	"table-call/internal/dashboard"
	"table-call/internal/jwt"
	"table-call/internal/storage"
	"table-call/internal/tablecode"
	"table-call/internal/tableview"
)

// HTTPError represents an error with an associated HTTP status code and user message
type HTTPError struct {
	Err        error    // The underlying error
	StatusCode int      // HTTP status code
	Message    string   // User-friendly message
	StopCodes  []string // Optional stop codes for client-side handling
	Internal   bool     // Whether this is an internal error (hide details from user)
}

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string
	StopCodes []string
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
		Internal:   statusCode >= 500,
	}
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidToken    = errors.New("invalid table token")
	ErrInvalidViewID   = errors.New("invalid view id")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidLocation = errors.New("invalid location")

	ErrInternalServer = errors.New("internal server error")
)

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidRequest:             http.StatusBadRequest,
	ErrInvalidLocation:            http.StatusBadRequest,
	tableview.ErrInvalidFeedback:  http.StatusBadRequest,
	tableview.ErrInvalidCallType:  http.StatusBadRequest,
	tablecode.ErrInvalidLocation:  http.StatusBadRequest,
	tablecode.ErrInvalidTableName: http.StatusBadRequest,
	storage.ErrInvalidLocation:    http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized:      http.StatusUnauthorized,
	jwt.ErrNonValidToken: http.StatusUnauthorized,

	// 403 Forbidden
	ErrForbidden:     http.StatusForbidden,
	ErrInvalidViewID: http.StatusForbidden,

	// 404 Not Found
	ErrInvalidToken:           http.StatusNotFound,
	storage.ErrNotFound:       http.StatusNotFound,
	dashboard.ErrCallNotFound: http.StatusNotFound,

	// 409 Conflict
	tableview.ErrClosed: http.StatusConflict,

	// 429 Too Many Requests
	tableview.ErrCoolingDown: http.StatusTooManyRequests,

	// 500 Internal Server Error
	ErrInternalServer: http.StatusInternalServerError,

	// 503 Service Unavailable
	backend.ErrUnavailable: http.StatusServiceUnavailable,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	ErrUnauthorized: {
		Message:   "Authentication required",
		StopCodes: []string{"AUTH_REQUIRED"},
	},
	jwt.ErrNonValidToken: {
		Message:   "Invalid or expired staff token",
		StopCodes: []string{"AUTH_INVALID_TOKEN"},
	},
	ErrForbidden: {
		Message:   "Access denied",
		StopCodes: []string{"FORBIDDEN"},
	},
	ErrInvalidViewID: {
		Message:   "This page has expired, please reload",
		StopCodes: []string{"VIEW_INVALID"},
	},

	ErrInvalidToken: {
		Message:   "Unknown table. Please scan the QR code on your table again.",
		StopCodes: []string{"TABLE_INVALID_TOKEN"},
	},
	ErrInvalidRequest: {
		Message:   "Invalid request format",
		StopCodes: []string{"INVALID_REQUEST"},
	},
	ErrInvalidLocation: {
		Message:   "Invalid location",
		StopCodes: []string{"INVALID_LOCATION"},
	},
	tableview.ErrInvalidFeedback: {
		Message:   "Please choose a rating and write a comment",
		StopCodes: []string{"FEEDBACK_INVALID"},
	},
	tableview.ErrInvalidCallType: {
		Message:   "Unknown call type",
		StopCodes: []string{"CALL_TYPE_INVALID"},
	},
	tableview.ErrCoolingDown: {
		Message:   "Please wait a moment before trying again",
		StopCodes: []string{"COOLING_DOWN"},
	},
	tableview.ErrClosed: {
		Message:   "This page has been closed, please reload",
		StopCodes: []string{"VIEW_CLOSED"},
	},
	dashboard.ErrCallNotFound: {
		Message:   "The call is already closed",
		StopCodes: []string{"CALL_NOT_FOUND"},
	},
	storage.ErrNotFound: {
		Message:   "Not found",
		StopCodes: []string{"NOT_FOUND"},
	},

	ErrInternalServer: {
		Message: "An internal error occurred",
	},
	backend.ErrUnavailable: {
		Message: "The service is temporarily unavailable, please try again",
	},
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	if status, ok := errorStatusMap[err]; ok {
		return status
	}

	for knownErr, status := range errorStatusMap {
		if errors.Is(err, knownErr) {
			return status
		}
	}

	// Rejections by the backend itself
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// GetErrorInfo returns error information including message and stop codes
func GetErrorInfo(err error) ErrorInfo {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			Message:   httpErr.Message,
			StopCodes: httpErr.StopCodes,
		}
	}

	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for knownErr, info := range errorInfoMap {
		if errors.Is(err, knownErr) {
			return info
		}
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.Message != "" {
		return ErrorInfo{Message: apiErr.Message, StopCodes: []string{"BACKEND_REJECTED"}}
	}

	status := GetErrorStatus(err)
	if status >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}

// GetErrorMessage returns a user-friendly message for an error
func GetErrorMessage(err error) string {
	return GetErrorInfo(err).Message
}

// GetErrorStopCodes returns stop codes for an error
func GetErrorStopCodes(err error) []string {
	return GetErrorInfo(err).StopCodes
}
