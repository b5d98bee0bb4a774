package pipeerr

import "errors"

// is reports whether err is or wraps an *Error with the given code.
func is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code() == code
	}
	return false
}

// IsMissingInput reports whether err is a missing-input error.
func IsMissingInput(err error) bool { return is(err, CodeMissingInput) }

// IsMalformedMessage reports whether err is a malformed-message error.
func IsMalformedMessage(err error) bool { return is(err, CodeMalformedMessage) }

// IsDelegateTimeout reports whether err is a delegate-timeout error.
func IsDelegateTimeout(err error) bool { return is(err, CodeDelegateTimeout) }

// IsDelegateFailed reports whether err is a delegate-reported failure.
func IsDelegateFailed(err error) bool { return is(err, CodeDelegateFailed) }

// IsTransportExhausted reports whether err is a redelivery-limit error.
func IsTransportExhausted(err error) bool { return is(err, CodeTransportExhausted) }
