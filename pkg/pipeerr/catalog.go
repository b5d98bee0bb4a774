package pipeerr

import (
	"fmt"
	"net/http"
)

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Messages ---

func MalformedMessage(cause error) *Error {
	return Wrap(CodeMalformedMessage, http.StatusBadRequest, "Message payload could not be parsed", cause)
}

func MissingInput(container, ref string) *Error {
	return New(CodeMissingInput, http.StatusNotFound,
		"Input blob "+ref+" not found in container "+container)
}

// --- Delegate ---

func DelegateTimeout(runID int64) *Error {
	return New(CodeDelegateTimeout, http.StatusGatewayTimeout,
		fmt.Sprintf("Delegate run %d did not reach a terminal state in time", runID))
}

func DelegateFailed(resultState, detail string) *Error {
	msg := "Delegate run finished with state " + resultState
	if detail != "" {
		msg += ": " + detail
	}
	return New(CodeDelegateFailed, http.StatusBadGateway, msg)
}

func DelegateUnavailable(cause error) *Error {
	return Wrap(CodeDelegateUnavailable, http.StatusBadGateway, "Delegate API unreachable", cause)
}

// --- Transport ---

func TransportExhausted(queue string, attempts int64) *Error {
	return New(CodeTransportExhausted, http.StatusGone,
		fmt.Sprintf("Message exceeded the redelivery limit on queue %s after %d attempts", queue, attempts))
}

func QueueNotFound(name string) *Error {
	return New(CodeQueueNotFound, http.StatusNotFound, "Unknown queue "+name)
}

func DeadLetterNotFound(id string) *Error {
	return New(CodeDeadLetterNotFound, http.StatusNotFound, "Dead letter "+id+" not found")
}

func EnqueueFailed(cause error) *Error {
	return Wrap(CodeEnqueueFailed, http.StatusInternalServerError, "Failed to enqueue message", cause)
}

// --- Storage ---

func BlobReadFailed(cause error) *Error {
	return Wrap(CodeBlobReadFailed, http.StatusInternalServerError, "Failed to read blob", cause)
}

func BlobWriteFailed(cause error) *Error {
	return Wrap(CodeBlobWriteFailed, http.StatusInternalServerError, "Failed to write blob", cause)
}
