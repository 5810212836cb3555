package routes

import (
	"errors"
	"net/http"

	"smart-stay/internal/devices"
	"smart-stay/internal/jwt"
	"smart-stay/internal/power"
	"smart-stay/internal/storage"
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
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes for client-side application
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
	// Authentication errors
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidAPIKey = errors.New("invalid api key")

	// Rate limiting
	ErrTooManyRequests = errors.New("too many requests")

	// Validation errors
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidParameter = errors.New("invalid parameter")

	// Device control
	ErrCommandFailed = errors.New("device command failed")

	// Internal errors
	ErrInternalServer     = errors.New("internal server error")
	ErrDatabaseError      = errors.New("database error")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidRequest:        http.StatusBadRequest,
	ErrInvalidParameter:      http.StatusBadRequest,
	power.ErrInvalidInput:    http.StatusBadRequest,
	devices.ErrUnknownAction: http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized:      http.StatusUnauthorized,
	ErrInvalidAPIKey:     http.StatusUnauthorized,
	jwt.ErrNonValidToken: http.StatusUnauthorized,

	// 404 Not Found
	storage.ErrNotFound: http.StatusNotFound,

	// 429 Too Many Requests
	ErrTooManyRequests: http.StatusTooManyRequests,

	// 500 Internal Server Error
	ErrInternalServer:      http.StatusInternalServerError,
	ErrDatabaseError:       http.StatusInternalServerError,
	storage.ErrPersistence: http.StatusInternalServerError,
	ErrCommandFailed:       http.StatusInternalServerError,

	// 503 Service Unavailable
	ErrServiceUnavailable: http.StatusServiceUnavailable,
	devices.ErrUnbound:    http.StatusServiceUnavailable,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	ErrUnauthorized: {
		Message:   "Authentication required",
		StopCodes: []string{"AUTH_REQUIRED"},
	},
	ErrInvalidAPIKey: {
		Message:   "Invalid API key",
		StopCodes: []string{"AUTH_INVALID_KEY"},
	},
	jwt.ErrNonValidToken: {
		Message:   "Invalid or expired operator token",
		StopCodes: []string{"AUTH_INVALID_TOKEN"},
	},
	ErrTooManyRequests: {
		Message:   "Too many requests, slow down",
		StopCodes: []string{"RATE_LIMITED"},
	},
	ErrInvalidRequest: {
		Message:   "Invalid request format",
		StopCodes: []string{"INVALID_REQUEST"},
	},
	ErrInvalidParameter: {
		Message:   "Invalid parameter value",
		StopCodes: []string{"INVALID_PARAMETER"},
	},
	power.ErrInvalidInput: {
		Message:   "Invalid state field. Send is_on/status/state as true|false|on|off|1|0",
		StopCodes: []string{"INVALID_STATE"},
	},
	devices.ErrUnknownAction: {
		Message:   "Unknown action. Use on or off",
		StopCodes: []string{"INVALID_ACTION"},
	},
	storage.ErrNotFound: {
		Message:   "Not found",
		StopCodes: []string{"NOT_FOUND"},
	},

	// Internal (no stop codes for internal errors)
	ErrInternalServer: {
		Message: "An internal error occurred",
	},
	ErrDatabaseError: {
		Message: "Database operation failed",
	},
	storage.ErrPersistence: {
		Message: "Database operation failed",
	},
	ErrCommandFailed: {
		Message:   "SmartThings did not accept the command",
		StopCodes: []string{"COMMAND_FAILED"},
	},
	ErrServiceUnavailable: {
		Message: "Service is temporarily unavailable",
	},
	devices.ErrUnbound: {
		Message:   "No device is configured for this action",
		StopCodes: []string{"DEVICE_UNBOUND"},
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

	// Generic message for 5xx, the error itself otherwise
	status := GetErrorStatus(err)
	if status >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}
