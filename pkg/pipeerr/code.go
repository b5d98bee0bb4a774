package pipeerr

// Code is a machine-readable error code attached to pipeline and API errors.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Message errors.
const (
	CodeMalformedMessage Code = "MALFORMED_MESSAGE"
	CodeMissingInput     Code = "MISSING_INPUT"
)

// Delegate errors.
const (
	CodeDelegateTimeout     Code = "DELEGATE_TIMEOUT"
	CodeDelegateFailed      Code = "DELEGATE_FAILED"
	CodeDelegateUnavailable Code = "DELEGATE_UNAVAILABLE"
)

// Transport errors.
const (
	CodeTransportExhausted Code = "TRANSPORT_EXHAUSTED"
	CodeQueueNotFound      Code = "QUEUE_NOT_FOUND"
	CodeDeadLetterNotFound Code = "DEAD_LETTER_NOT_FOUND"
	CodeEnqueueFailed      Code = "ENQUEUE_FAILED"
)

// Storage errors.
const (
	CodeBlobReadFailed  Code = "BLOB_READ_FAILED"
	CodeBlobWriteFailed Code = "BLOB_WRITE_FAILED"
)

// Health errors.
const (
	CodeQueueNotReady Code = "QUEUE_NOT_READY"
	CodeStoreNotReady Code = "STORE_NOT_READY"
)
