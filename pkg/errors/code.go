package errors

import "net/http"

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Auth errors
// 14000-14999: Competition module errors
// 15000-15999: Messaging & push errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Storage errors (10250-10299)
	StorageError ErrorCode = 10250

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Auth Errors (11000-11999) ==========

	TokenExpired ErrorCode = 11003
	TokenInvalid ErrorCode = 11004

	// ========== Competition Module Errors (14000-14999) ==========

	CompetitionNotFound     ErrorCode = 14000
	InvalidDescriptor       ErrorCode = 14001
	DescriptorOutOfOrder    ErrorCode = 14002
	CompetitionUpdateFailed ErrorCode = 14003
	CompetitionDeleteFailed ErrorCode = 14004

	// Archive (14100-14199)
	ArchiveNotFound     ErrorCode = 14100
	ArchiveWriteFailed  ErrorCode = 14101
	ArchiveDecodeFailed ErrorCode = 14102

	// ========== Messaging Errors (15000-15999) ==========

	EventPublishFailed ErrorCode = 15000
	EventDecodeFailed  ErrorCode = 15001
)

var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",

	CacheError:   "Cache operation failed",
	StorageError: "Object storage operation failed",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	CompetitionNotFound:     "Competition not found",
	InvalidDescriptor:       "Invalid competition descriptor",
	DescriptorOutOfOrder:    "Competition boundaries are out of order",
	CompetitionUpdateFailed: "Failed to update competition",
	CompetitionDeleteFailed: "Failed to delete competition",

	ArchiveNotFound:     "Competition archive not found",
	ArchiveWriteFailed:  "Failed to write competition archive",
	ArchiveDecodeFailed: "Failed to decode competition archive",

	EventPublishFailed: "Failed to publish event",
	EventDecodeFailed:  "Failed to decode event",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return http.StatusOK
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return http.StatusUnauthorized
	case c == Forbidden:
		return http.StatusForbidden
	case c == NotFound, c == RecordNotFound, c == CompetitionNotFound, c == ArchiveNotFound:
		return http.StatusNotFound
	case c == TooManyRequests:
		return http.StatusTooManyRequests
	case c == ServiceUnavailable:
		return http.StatusServiceUnavailable
	case c == Timeout:
		return http.StatusGatewayTimeout
	case c >= 10300 && c < 10400: // Validation errors
		return http.StatusBadRequest
	case c == InvalidParams, c == InvalidDescriptor, c == DescriptorOutOfOrder:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
