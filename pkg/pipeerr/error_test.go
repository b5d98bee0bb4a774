package pipeerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := MissingInput("raw-data", "orders.csv")
	if err.Code() != CodeMissingInput {
		t.Errorf("code = %q", err.Code())
	}
	if err.Status() != http.StatusNotFound {
		t.Errorf("status = %d", err.Status())
	}
	if msg := err.Error(); msg == "" {
		t.Error("empty error string")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := DelegateUnavailable(cause)
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}

	wrapped := fmt.Errorf("submit run: %w", err)
	var pe *Error
	if !errors.As(wrapped, &pe) {
		t.Fatal("errors.As should find *Error through wrapping")
	}
	if pe.Code() != CodeDelegateUnavailable {
		t.Errorf("code = %q", pe.Code())
	}
}

func TestHelpers(t *testing.T) {
	cases := []struct {
		err  error
		want func(error) bool
	}{
		{MissingInput("landing", "a.csv"), IsMissingInput},
		{MalformedMessage(errors.New("bad json")), IsMalformedMessage},
		{DelegateTimeout(7), IsDelegateTimeout},
		{DelegateFailed("FAILED", ""), IsDelegateFailed},
		{TransportExhausted("extract-queue", 5), IsTransportExhausted},
	}
	for _, tc := range cases {
		if !tc.want(tc.err) {
			t.Errorf("helper did not match %v", tc.err)
		}
	}

	// Codes must stay distinct under the helpers.
	if IsDelegateTimeout(DelegateFailed("FAILED", "")) {
		t.Error("delegate-failed misclassified as timeout")
	}
	if IsDelegateFailed(DelegateTimeout(7)) {
		t.Error("delegate-timeout misclassified as failure")
	}
	if IsMissingInput(errors.New("plain error")) {
		t.Error("plain error misclassified")
	}
}

func TestResponseShape(t *testing.T) {
	resp := QueueNotFound("nope").Response()
	inner, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatal("response missing error object")
	}
	if inner["code"] != CodeQueueNotFound {
		t.Errorf("code = %v", inner["code"])
	}
	if inner["message"] == "" {
		t.Error("message should be populated")
	}
}
