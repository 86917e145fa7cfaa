package errors

import "net/http"

// ErrorCode identifies a failure category across all layers of the platform.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	CodeOK                 ErrorCode = "OK"
	CodeUnknown            ErrorCode = "COMMON_000"
	CodeInternal           ErrorCode = "COMMON_001"
	CodeInvalidParam       ErrorCode = "COMMON_002"
	CodeUnauthorized       ErrorCode = "COMMON_003"
	CodeForbidden          ErrorCode = "COMMON_004"
	CodeNotFound           ErrorCode = "COMMON_005"
	CodeConflict           ErrorCode = "COMMON_006"
	CodeRateLimit          ErrorCode = "COMMON_007"
	CodeServiceUnavailable ErrorCode = "COMMON_008"
	CodeTimeout            ErrorCode = "COMMON_009"
	CodeValidation         ErrorCode = "COMMON_010"
	CodeSerialization      ErrorCode = "COMMON_011"
	CodeDatabaseError      ErrorCode = "COMMON_012"
	CodeCacheError         ErrorCode = "COMMON_013"
	CodeExternalService    ErrorCode = "COMMON_014"
)

// Opportunity module error codes.
const (
	CodeOpportunityNotFound    ErrorCode = "OPP_001"
	CodeOpportunityDismissed   ErrorCode = "OPP_002"
	CodeTaskAlreadyLinked      ErrorCode = "OPP_003"
	CodeOpportunityInvalid     ErrorCode = "OPP_004"
)

// Ingestion module error codes.
const (
	CodeIngestionEmptyBatch    ErrorCode = "ING_001"
	CodeIngestionPersistFailed ErrorCode = "ING_002"
	CodeIngestionArchiveFailed ErrorCode = "ING_003"
)

// Pipeline / scoring module error codes.
const (
	CodeScoreOptionsInvalid ErrorCode = "SCR_001"
	CodeBatchCancelled      ErrorCode = "SCR_002"
)

// Messaging error codes.
const (
	CodePublishFailed ErrorCode = "MSG_001"
	CodeConsumeFailed ErrorCode = "MSG_002"
)

// httpStatusByCode maps error codes to HTTP status codes for the API layer.
var httpStatusByCode = map[ErrorCode]int{
	CodeInternal:           http.StatusInternalServerError,
	CodeInvalidParam:       http.StatusBadRequest,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeRateLimit:          http.StatusTooManyRequests,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeTimeout:            http.StatusGatewayTimeout,
	CodeValidation:         http.StatusUnprocessableEntity,
	CodeSerialization:      http.StatusInternalServerError,
	CodeDatabaseError:      http.StatusInternalServerError,
	CodeCacheError:         http.StatusInternalServerError,
	CodeExternalService:    http.StatusBadGateway,

	CodeOpportunityNotFound: http.StatusNotFound,
	CodeOpportunityDismissed: http.StatusConflict,
	CodeTaskAlreadyLinked:   http.StatusConflict,
	CodeOpportunityInvalid:  http.StatusBadRequest,

	CodeIngestionEmptyBatch:    http.StatusBadRequest,
	CodeIngestionPersistFailed: http.StatusInternalServerError,
	CodeIngestionArchiveFailed: http.StatusInternalServerError,

	CodeScoreOptionsInvalid: http.StatusBadRequest,
	CodeBatchCancelled:      http.StatusRequestTimeout,

	CodePublishFailed: http.StatusInternalServerError,
	CodeConsumeFailed: http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code associated with c.
// Unmapped codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := httpStatusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
