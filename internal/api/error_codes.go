// internal/api/error_codes.go
package api

// API error code constants.
const (
	// generic
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// wizard flow
	ErrorStepNotAllowed  = "STEP_NOT_ALLOWED"
	ErrorProfileRequired = "PROFILE_REQUIRED"
	ErrorTopicRequired   = "TOPIC_REQUIRED"
	ErrorOutlineRequired = "OUTLINE_REQUIRED"

	// sections
	ErrorSectionNotFound = "SECTION_NOT_FOUND"

	// LLM service
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorMalformedAIResponse   = "MALFORMED_AI_RESPONSE"
	ErrorConnectionFailed      = "CONNECTION_FAILED"

	// export
	ErrorExportFailed        = "EXPORT_FAILED"
	ErrorExportFormatInvalid = "EXPORT_FORMAT_INVALID"

	// rate limiting
	ErrorRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)
