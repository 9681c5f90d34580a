package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindConflict, http.StatusConflict},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindUpstreamUnavailable, http.StatusBadGateway},
		{KindTransient, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !KindTransient.IsRetryable() {
		t.Error("KindTransient should be retryable")
	}
	if !KindUpstreamUnavailable.IsRetryable() {
		t.Error("KindUpstreamUnavailable should be retryable")
	}
	if KindValidation.IsRetryable() {
		t.Error("KindValidation should not be retryable")
	}
	if KindNotFound.IsRetryable() {
		t.Error("KindNotFound should not be retryable")
	}
}

func TestAsUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := Wrap(KindTransient, "fetching skill", cause)

	var asErr error = wrapped
	got, ok := As(asErr)
	if !ok {
		t.Fatal("expected As to find *Error")
	}
	if got.Kind != KindTransient {
		t.Errorf("Kind = %s, want %s", got.Kind, KindTransient)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestAsMissesPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	if ok {
		t.Error("expected As to report false for a plain error")
	}
}
